package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// SchemaTable records the applied cache schema version.
const SchemaTable = "cache_schema_migrations"

// Migrator applies the cache table schema from a migrations directory.
type Migrator struct {
	migrate *migrate.Migrate
	sqlDB   *sql.DB // database/sql view of the pgx pool; closed with the migrator
	logger  zerolog.Logger
}

// NewMigrator binds the migrations in dir to db.
func NewMigrator(db *DB, dir string, logger zerolog.Logger) (*Migrator, error) {
	if dir == "" {
		return nil, fmt.Errorf("migrations directory is required")
	}
	if info, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("migrations directory: %w", err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("migrations directory %q is not a directory", dir)
	}
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if db.pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	sqlDB := stdlib.OpenDBFromPool(db.pool)
	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{MigrationsTable: SchemaTable})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("cache schema driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("load cache schema migrations from %s: %w", dir, err)
	}

	return &Migrator{
		migrate: m,
		sqlDB:   sqlDB,
		logger:  logger.With().Str("component", "cache_schema").Str("dir", dir).Logger(),
	}, nil
}

// Up brings the cache schema to the latest version.
func (m *Migrator) Up() error {
	return m.apply("up", m.migrate.Up)
}

// Down drops the cache schema entirely.
func (m *Migrator) Down() error {
	m.logger.Warn().Msg("dropping cache schema")
	return m.apply("down", m.migrate.Down)
}

// Steps moves the cache schema n versions, forward when n > 0.
func (m *Migrator) Steps(n int) error {
	return m.apply(fmt.Sprintf("steps %+d", n), func() error {
		return m.migrate.Steps(n)
	})
}

// Version reports the applied schema version and whether the last
// migration left it dirty. migrate.ErrNilVersion means none applied.
func (m *Migrator) Version() (uint, bool, error) {
	return m.migrate.Version()
}

// Force records version as applied and clears the dirty flag.
func (m *Migrator) Force(version int) error {
	m.logger.Warn().Int("version", version).Msg("forcing cache schema version")
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("force cache schema version %d: %w", version, err)
	}
	return nil
}

// apply runs op, treating "nothing to do" as success.
func (m *Migrator) apply(op string, fn func() error) error {
	err := fn()
	if isNoop(err) {
		m.logger.Info().Str("op", op).Msg("cache schema already current")
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache schema %s: %w", op, err)
	}

	event := m.logger.Info().Str("op", op)
	if v, dirty, verr := m.migrate.Version(); verr == nil {
		event = event.Uint("version", v).Bool("dirty", dirty)
	}
	event.Msg("cache schema migrated")
	return nil
}

// isNoop reports errors meaning there was no migration left to run.
func isNoop(err error) bool {
	return errors.Is(err, migrate.ErrNoChange) || errors.Is(err, os.ErrNotExist)
}

// Close releases the migration source and the database/sql handle.
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	var sqlErr error
	if m.sqlDB != nil {
		sqlErr = m.sqlDB.Close()
	}
	if err := errors.Join(sourceErr, dbErr, sqlErr); err != nil {
		return fmt.Errorf("close cache schema migrator: %w", err)
	}
	return nil
}
