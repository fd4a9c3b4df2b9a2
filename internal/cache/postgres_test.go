package cache

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresBackend_Get(t *testing.T) {
	ctx := context.Background()
	query := regexp.QuoteMeta(`SELECT value, expires_at FROM cache_entries WHERE key = $1`)

	t.Run("returns entry with expiry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		exp := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		mock.ExpectQuery(query).
			WithArgs("search:abc").
			WillReturnRows(pgxmock.NewRows([]string{"value", "expires_at"}).
				AddRow([]byte("payload"), &exp))

		e, found, err := NewPostgresBackend(mock).Get(ctx, "search:abc")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte("payload"), e.Value)
		assert.True(t, exp.Equal(e.ExpiresAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns permanent entry", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(query).
			WithArgs("summary:abc").
			WillReturnRows(pgxmock.NewRows([]string{"value", "expires_at"}).
				AddRow([]byte("text"), (*time.Time)(nil)))

		e, found, err := NewPostgresBackend(mock).Get(ctx, "summary:abc")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, e.ExpiresAt.IsZero())
	})

	t.Run("treats no rows as a miss", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(query).WithArgs("search:none").WillReturnError(pgx.ErrNoRows)

		_, found, err := NewPostgresBackend(mock).Get(ctx, "search:none")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("wraps other errors", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery(query).WithArgs("k").WillReturnError(errors.New("connection reset"))

		_, _, err = NewPostgresBackend(mock).Get(ctx, "k")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "postgres cache get")
	})
}

func TestPostgresBackend_Set(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO cache_entries").
		WithArgs("search:abc", []byte("v"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresBackend(mock).Set(ctx, "search:abc", Entry{Value: []byte("v"), ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBackend_Purge(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	backend := NewPostgresBackend(mock)

	mock.ExpectExec("DELETE FROM cache_entries WHERE expires_at").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))
	n, err := backend.PurgeExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	assert.NoError(t, backend.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
