// Package models defines the data structures used for API responses and history persistence.
package models

import (
	"fmt"
	"time"

	"github.com/woozymasta/masterstat/internal/masterstat"
)

// MasterOutcome is the stored result of querying one master server.
type MasterOutcome struct {
	Master  string        `json:"master"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed_ns"`
	Servers int           `json:"servers"`
}

// Run is one aggregate query over a set of masters.
type Run struct {
	StartedAt   time.Time                  `json:"started_at"`
	Fingerprint string                     `json:"fingerprint"`
	Masters     []MasterOutcome            `json:"masters,omitempty"`
	Servers     []masterstat.ServerAddress `json:"servers,omitempty"`
	Duration    time.Duration              `json:"duration_ns"`
	ID          int64                      `json:"id,omitempty"`
	MasterCount int                        `json:"master_count"`
	Succeeded   int                        `json:"succeeded"`
	ServerCount int                        `json:"server_count"`
}

// NewRun converts an aggregate result to a Run. Servers hold the sorted unique union.
func NewRun(agg masterstat.Aggregate, startedAt time.Time, duration time.Duration) Run {
	servers := agg.Servers()

	run := Run{
		StartedAt:   startedAt.UTC(),
		Duration:    duration,
		Fingerprint: FormatFingerprint(agg.Fingerprint()),
		Servers:     servers,
		MasterCount: len(agg),
		Succeeded:   agg.Succeeded(),
		ServerCount: len(servers),
		Masters:     make([]MasterOutcome, 0, len(agg)),
	}

	for _, r := range agg {
		outcome := MasterOutcome{
			Master:  r.Master,
			Servers: len(r.Servers),
			Elapsed: r.Elapsed,
		}
		if r.Err != nil {
			outcome.Error = r.Err.Error()
		}
		run.Masters = append(run.Masters, outcome)
	}

	return run
}

// FormatFingerprint renders a fingerprint as fixed-width hex.
func FormatFingerprint(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ServerEntry is a server address with optional country, as rendered to users.
type ServerEntry struct {
	Address masterstat.ServerAddress `json:"address"`
	Country string                   `json:"country,omitempty"`
}

// MasterReport is the per-master part of a query response.
type MasterReport struct {
	Master  string        `json:"master"`
	Error   string        `json:"error,omitempty"`
	Servers []ServerEntry `json:"servers"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// QueryReport is the full response of an aggregate query.
type QueryReport struct {
	Masters   []MasterReport `json:"masters"`
	Servers   []ServerEntry  `json:"servers"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}
