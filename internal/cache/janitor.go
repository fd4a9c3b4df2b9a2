package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSweepInterval is how often the janitor sweeps when no interval is set.
const DefaultSweepInterval = time.Hour

// gcDiscardRatio is the value-log discard ratio used for badger compaction.
const gcDiscardRatio = 0.5

// Collector is implemented by backends that reclaim space in a separate step.
type Collector interface {
	RunGC(discardRatio float64) error
}

// SweepResult reports one janitor pass.
type SweepResult struct {
	Purged    int64
	Collected bool
}

// Janitor periodically drops expired entries and compacts the backend.
type Janitor struct {
	store    *Store
	interval time.Duration
	logger   zerolog.Logger
}

// NewJanitor creates a janitor for store.
func NewJanitor(store *Store, interval time.Duration, logger zerolog.Logger) *Janitor {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Janitor{
		store:    store,
		interval: interval,
		logger:   logger.With().Str("component", "cache_janitor").Logger(),
	}
}

// Run sweeps once immediately and then on every tick. Blocks until ctx is
// cancelled.
func (j *Janitor) Run(ctx context.Context) error {
	j.logger.Info().Dur("interval", j.interval).Msg("starting cache janitor")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
			j.logger.Warn().Err(err).Msg("cache sweep failed")
		}

		select {
		case <-ctx.Done():
			j.logger.Info().Msg("cache janitor stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one purge and, when supported, one compaction round.
func (j *Janitor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if j.store == nil {
		return result, nil
	}

	purged, err := j.store.PurgeExpired(ctx)
	if err != nil {
		return result, err
	}
	result.Purged = purged

	if c, ok := j.store.backend.(Collector); ok {
		if err := c.RunGC(gcDiscardRatio); err != nil {
			return result, err
		}
		result.Collected = true
	}

	if result.Purged > 0 || result.Collected {
		j.logger.Debug().
			Int64("purged", result.Purged).
			Bool("collected", result.Collected).
			Msg("cache sweep completed")
	}
	return result, nil
}
