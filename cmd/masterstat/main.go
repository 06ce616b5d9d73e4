// main is the entry point of masterstat.
// It queries QuakeWorld master servers and prints the game servers they know,
// or serves the same data over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/internal/config"
	"github.com/woozymasta/masterstat/internal/fake"
	"github.com/woozymasta/masterstat/internal/geoip"
	"github.com/woozymasta/masterstat/internal/logger"
	"github.com/woozymasta/masterstat/internal/maintenance"
	"github.com/woozymasta/masterstat/internal/report"
	"github.com/woozymasta/masterstat/internal/server"
	"github.com/woozymasta/masterstat/internal/storage"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Parse()

	logger.Setup(cfg.Logger)

	// History database
	var store *storage.Repository
	if cfg.Storage.Path != "" {
		var err error
		store, err = storage.New(cfg.Storage.Path)
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize database")
			return 1
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Msg("Error closing database")
			}
		}()
	}

	if maintenance.Run(cfg, store) {
		return 0
	}

	// GeoIP, only when countries may be rendered
	var geo report.CountryLookup
	if cfg.Output.Country || cfg.Server.Address != "" {
		if provider := openGeoIP(cfg.GeoIP); provider != nil {
			defer func() { _ = provider.Close() }()
			geo = provider
		}
	}

	// Local fake master for development
	if cfg.Query.FakeMaster > 0 {
		master, err := fake.Start("127.0.0.1:0", fake.WithServers(fake.RandomServers(cfg.Query.FakeMaster)))
		if err != nil {
			log.Error().Err(err).Msg("Failed to start fake master")
			return 1
		}
		defer func() { _ = master.Close() }()

		cfg.Query.Masters = []string{master.Addr()}
		cfg.Args.Masters = nil
	}

	client := cfg.Query.NewClient()

	if cfg.Server.Address != "" {
		return serve(cfg, server.New(client, store, geo, cfg))
	}

	masters := cfg.Masters()
	log.Debug().
		Strs("masters", masters).
		Stringer("timeout", cfg.Query.QueryTimeout()).
		Msg("Querying masters")

	start := time.Now()
	agg, err := client.QueryMany(masters)
	if err != nil {
		log.Error().Err(err).Msg("Query failed")
		return 1
	}
	elapsed := time.Since(start)

	for _, r := range agg {
		if r.Err != nil {
			log.Warn().Err(r.Err).Str("master", r.Master).Msg("Master query failed")
		}
	}

	if err := report.Write(os.Stdout, cfg.Output.Format, report.Build(agg, cfg.Output.Raw, geo)); err != nil {
		log.Error().Err(err).Msg("Failed to write output")
		return 1
	}

	if store != nil {
		if _, _, err := store.Record(agg, start, elapsed, cfg.Storage.SkipUnchanged); err != nil {
			log.Error().Err(err).Msg("Failed to store run")
		}
	}

	if agg.Succeeded() == 0 {
		return 1
	}

	return 0
}

func openGeoIP(cfg config.GeoIP) *geoip.Provider {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := geoip.EnsureDB(ctx, cfg.Path, cfg.URL, cfg.Interval); err != nil {
		log.Error().Err(err).Msg("Failed to download GeoIP database")
	}

	provider, err := geoip.Open(cfg.Path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to open GeoIP database, country detection disabled")
		return nil
	}

	return provider
}

func serve(cfg *config.Config, srv *server.Server) int {
	srv.StartWorkers()

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Run(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", cfg.Server.Address).Msg("Server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	code := 0
	select {
	case <-quit:
	case err := <-errCh:
		log.Error().Err(err).Msg("Server failed")
		code = 1
	}

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	srv.StopWorkers()

	log.Info().Msg("Server exited")

	return code
}
