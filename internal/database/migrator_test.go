package database

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMigrator_Validation(t *testing.T) {
	logger := zerolog.Nop()
	dir := getMigrationsPath(t)

	tests := []struct {
		name    string
		db      *DB
		dir     string
		wantErr string
	}{
		{name: "empty directory", db: &DB{}, dir: "", wantErr: "migrations directory is required"},
		{name: "missing directory", db: &DB{}, dir: filepath.Join(t.TempDir(), "nope"), wantErr: "migrations directory"},
		{name: "file instead of directory", db: &DB{}, dir: filepath.Join(dir, "000001_create_cache_entries.up.sql"), wantErr: "is not a directory"},
		{name: "nil database", db: nil, dir: dir, wantErr: "database is required"},
		{name: "nil pool", db: &DB{pool: nil}, dir: dir, wantErr: "database pool not initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			migrator, err := NewMigrator(tt.db, tt.dir, logger)
			require.Error(t, err)
			assert.Nil(t, migrator)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIsNoop(t *testing.T) {
	assert.True(t, isNoop(migrate.ErrNoChange))
	assert.True(t, isNoop(fmt.Errorf("steps: %w", fs.ErrNotExist)))
	assert.False(t, isNoop(nil))
	assert.False(t, isNoop(errors.New("syntax error at or near CREATE")))
}

func TestMigrationFiles(t *testing.T) {
	dir := getMigrationsPath(t)

	up, err := os.ReadFile(filepath.Join(dir, "000001_create_cache_entries.up.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS cache_entries")
	assert.Contains(t, string(up), "expires_at")

	down, err := os.ReadFile(filepath.Join(dir, "000001_create_cache_entries.down.sql"))
	require.NoError(t, err)
	assert.Contains(t, string(down), "DROP TABLE IF EXISTS cache_entries")
}

// getMigrationsPath returns the repository's migrations directory.
func getMigrationsPath(t *testing.T) string {
	t.Helper()

	cwd, err := os.Getwd()
	require.NoError(t, err)

	// internal/database -> internal -> project root
	dir := filepath.Join(cwd, "..", "..", "migrations")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Skipf("migrations directory not found at %s", dir)
	}
	return dir
}
