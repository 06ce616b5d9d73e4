// Package maintenance provides one-shot history database tasks.
package maintenance

import (
	"time"

	"github.com/rs/zerolog/log"
	"github.com/woozymasta/masterstat/internal/config"
	"github.com/woozymasta/masterstat/internal/storage"
)

// Run executes maintenance tasks selected by flags.
// Returns true if a task was executed, the program should exit then.
func Run(cfg *config.Config, store *storage.Repository) bool {
	if cfg.Storage.PruneOlder <= 0 {
		return false
	}

	if store == nil {
		log.Error().Msg("Prune requested without history database (--db-path)")
		return true
	}

	before := time.Now().Add(-cfg.Storage.PruneOlder)
	log.Info().Time("before", before).Msg("Pruning old runs...")

	count, err := store.PruneRuns(before)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prune runs")
	} else {
		log.Info().Int64("deleted", count).Msg("Prune finished")
	}

	return true
}
