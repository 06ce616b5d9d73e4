// Package server implements the HTTP API, middleware, and background poller.
package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/internal/config"
	"github.com/woozymasta/masterstat/internal/masterstat"
	"github.com/woozymasta/masterstat/internal/report"
	"github.com/woozymasta/masterstat/internal/storage"
)

// maxMasterOverrides caps ?master= parameters of a single live query.
const maxMasterOverrides = 16

// New creates a Server. store and geo may be nil.
func New(client *masterstat.Client, store *storage.Repository, geo report.CountryLookup, cfg *config.Config) *Server {
	masters := cfg.Masters()
	configured := make(map[string]struct{}, len(masters))
	for _, m := range masters {
		configured[m] = struct{}{}
	}

	return &Server{
		client:         client,
		storage:        store,
		geoip:          geo,
		masters:        masters,
		configured:     configured,
		authToken:      cfg.Server.AuthToken,
		pollInterval:   cfg.Server.PollInterval,
		hardLimitCount: cfg.Server.HardLimitCount,
		hardLimitWin:   cfg.Server.HardLimitWin,
		trustProxy:     cfg.Server.TrustProxy,
		skipUnchanged:  cfg.Storage.SkipUnchanged,

		shutdown: make(chan struct{}),
	}
}

// StartWorkers starts the background poller if polling and history are enabled.
func (s *Server) StartWorkers() {
	if s.pollInterval <= 0 || s.storage == nil {
		return
	}

	s.wg.Add(1)
	go s.poller()
}

// StopWorkers stops the poller and waits for an in-flight run to be stored.
func (s *Server) StopWorkers() {
	close(s.shutdown)
	s.wg.Wait()
}

// Run configures the HTTP routes and returns the main handler.
func (s *Server) Run() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /api/servers", s.RateLimitMiddleware(http.HandlerFunc(s.handleServers)))
	mux.Handle("GET /api/health", http.HandlerFunc(s.handleHealth))

	if s.storage != nil && s.authToken != "" {
		mux.Handle("GET /api/runs", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleRuns)))
		mux.Handle("GET /api/runs/latest", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleLatestRun)))
	}

	return s.LoggingMiddleware(mux)
}

// poller queries the configured masters every pollInterval and stores the runs.
func (s *Server) poller() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.shutdown:
			return
		case <-ticker.C:
			s.poll()
		}
	}
}

func (s *Server) poll() {
	start := time.Now()
	agg, err := s.client.QueryMany(s.masters)
	if err != nil {
		log.Error().Err(err).Msg("Poll failed")
		return
	}

	id, saved, err := s.storage.Record(agg, start, time.Since(start), s.skipUnchanged)
	if err != nil {
		log.Error().Err(err).Msg("Failed to store polled run")
		return
	}

	log.Info().
		Int64("run", id).
		Bool("saved", saved).
		Int("succeeded", agg.Succeeded()).
		Int("failed", agg.Failed()).
		Msg("Poll finished")
}
