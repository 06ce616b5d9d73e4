package masterstat

import (
	"context"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Waiter blocks until the next dispatch is allowed. *rate.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Result is the outcome of querying one master server.
type Result struct {
	// Err is set when the query failed, Servers is nil then
	Err error

	// Master is the queried address as given by the caller
	Master string

	// Servers in the order the master sent them
	Servers []ServerAddress

	// Elapsed time from dispatch to completion
	Elapsed time.Duration
}

// OK reports whether the query succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Aggregate holds one Result per queried master, in input order.
type Aggregate []Result

// QueryMany queries every master concurrently and returns once all have settled.
// Each query has its own socket and its own timeout counted from its dispatch.
// Per-master failures are reported in the matching Result; the returned error is
// only ErrNoMastersProvided.
func (c *Client) QueryMany(masters []string) (Aggregate, error) {
	if len(masters) == 0 {
		return nil, ErrNoMastersProvided
	}

	results := make(Aggregate, len(masters))

	var g errgroup.Group
	if c.Concurrency > 0 {
		g.SetLimit(c.Concurrency)
	}

	for i, master := range masters {
		if c.Limiter != nil {
			if err := c.Limiter.Wait(context.Background()); err != nil {
				log.Warn().Err(err).Str("master", master).Msg("Dispatch limiter failed, continuing without wait")
			}
		}

		g.Go(func() error {
			start := time.Now()
			servers, err := c.Query(master)
			results[i] = Result{
				Master:  master,
				Servers: servers,
				Err:     err,
				Elapsed: time.Since(start),
			}

			if err != nil {
				log.Debug().
					Err(err).
					Str("master", master).
					Dur("elapsed", results[i].Elapsed).
					Msg("Master query failed")
			} else {
				log.Debug().
					Str("master", master).
					Int("servers", len(servers)).
					Dur("elapsed", results[i].Elapsed).
					Msg("Master query succeeded")
			}

			return nil
		})
	}

	_ = g.Wait()

	return results, nil
}

// Succeeded returns the number of successful queries.
func (a Aggregate) Succeeded() int {
	n := 0
	for _, r := range a {
		if r.OK() {
			n++
		}
	}

	return n
}

// Failed returns the number of failed queries.
func (a Aggregate) Failed() int {
	return len(a) - a.Succeeded()
}

// ByMaster indexes results by master address. For repeated addresses the last one wins.
func (a Aggregate) ByMaster() map[string]Result {
	m := make(map[string]Result, len(a))
	for _, r := range a {
		m[r.Master] = r
	}

	return m
}

// Servers returns the sorted, deduplicated union of all successful results.
func (a Aggregate) Servers() []ServerAddress {
	var all []ServerAddress
	for _, r := range a {
		all = append(all, r.Servers...)
	}

	return SortedUnique(all)
}

// Fingerprint hashes the unique server union. Equal sets give equal fingerprints
// regardless of master order or duplicates.
func (a Aggregate) Fingerprint() uint64 {
	servers := a.Servers()

	buf := make([]byte, 0, len(servers)*RecordSize)
	for _, s := range servers {
		buf = s.appendRecord(buf)
	}

	return xxhash.Sum64(buf)
}
