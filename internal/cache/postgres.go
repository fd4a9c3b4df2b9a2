package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/helixir/paper-search-service/internal/database"
)

// PostgresBackend stores entries in the cache_entries table created by the
// migrations in /migrations.
type PostgresBackend struct {
	db database.DBTX
}

// NewPostgresBackend creates a PostgresBackend over db.
func NewPostgresBackend(db database.DBTX) *PostgresBackend {
	return &PostgresBackend{db: db}
}

// Get implements Backend.
func (b *PostgresBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	var (
		value     []byte
		expiresAt *time.Time
	)
	err := b.db.QueryRow(ctx,
		`SELECT value, expires_at FROM cache_entries WHERE key = $1`, key,
	).Scan(&value, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("postgres cache get: %w", err)
	}

	e := Entry{Value: value}
	if expiresAt != nil {
		e.ExpiresAt = *expiresAt
	}
	return e, true, nil
}

// Set implements Backend.
func (b *PostgresBackend) Set(ctx context.Context, key string, entry Entry) error {
	var expiresAt *time.Time
	if !entry.ExpiresAt.IsZero() {
		t := entry.ExpiresAt.UTC()
		expiresAt = &t
	}

	_, err := b.db.Exec(ctx, `
		INSERT INTO cache_entries (key, value, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = NOW()`,
		key, entry.Value, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("postgres cache set: %w", err)
	}
	return nil
}

// PurgeExpired implements Purger.
func (b *PostgresBackend) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := b.db.Exec(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres cache purge: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close is a no-op; the pool is owned by the caller.
func (b *PostgresBackend) Close() error {
	return nil
}
