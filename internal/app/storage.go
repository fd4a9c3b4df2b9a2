package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/cache"
	"github.com/helixir/paper-search-service/internal/config"
	"github.com/helixir/paper-search-service/internal/database"
	"github.com/helixir/paper-search-service/internal/observability"
)

// Storage is the opened cache store and the database pool behind it, if any.
type Storage struct {
	Cache *cache.Store

	db     *database.DB
	logger zerolog.Logger
}

// OpenStorage opens the configured cache backend. Any failure falls back to
// the in-memory backend so the service still starts.
func OpenStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) *Storage {
	s := &Storage{logger: observability.WithComponent(logger, "storage")}

	backend, err := s.openBackend(ctx, cfg)
	if err != nil {
		s.logger.Error().Err(err).
			Str("backend", cfg.Cache.Backend).
			Msg("cache backend unavailable, using in-memory cache")
		backend = cache.NewMemoryBackend()
	}

	s.Cache = cache.NewStore(backend, cache.Options{
		TTLs: map[cache.Namespace]time.Duration{
			cache.NamespaceSearch:    cfg.Cache.SearchTTL,
			cache.NamespaceTransform: cfg.Cache.TransformTTL,
		},
		Logger:  observability.WithComponent(logger, "cache"),
		Metrics: metrics,
	})
	return s
}

func (s *Storage) openBackend(ctx context.Context, cfg *config.Config) (cache.Backend, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemoryBackend(), nil
	case config.CacheBackendSQLite:
		return cache.NewSQLiteBackend(ctx, cfg.Cache.SQLitePath)
	case config.CacheBackendBadger:
		badgerLogger := s.logger.With().Str("backend", "badger").Logger()
		return cache.NewBadgerBackend(cache.BadgerConfig{
			Path:     cfg.Cache.BadgerPath,
			InMemory: cfg.Cache.BadgerPath == "",
			Logger:   &badgerLogger,
		})
	case config.CacheBackendPostgres:
		db, err := s.openDatabase(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		s.db = db
		return cache.NewPostgresBackend(db), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

func (s *Storage) openDatabase(ctx context.Context, cfg *config.DatabaseConfig) (*database.DB, error) {
	db, err := database.New(ctx, cfg, s.logger)
	if err != nil {
		return nil, err
	}
	if !cfg.MigrationAutoRun {
		return db, nil
	}

	migrator, err := database.NewMigrator(db, cfg.MigrationPath, s.logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			s.logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Ready reports whether storage can take traffic. A degraded cache does not
// fail readiness; an unreachable database does.
func (s *Storage) Ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return nil
	}
	status := s.db.Health(ctx)
	if status.Status != "healthy" {
		return fmt.Errorf("database %s: %s", status.Status, status.Error)
	}
	return nil
}

// Close closes the cache backend and the database pool.
func (s *Storage) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.Cache != nil {
		if closeErr := s.Cache.Close(); closeErr != nil {
			err = fmt.Errorf("close cache: %w", closeErr)
		}
		s.Cache = nil
	}
	if s.db != nil {
		s.db.Close()
		s.db = nil
	}
	return err
}
