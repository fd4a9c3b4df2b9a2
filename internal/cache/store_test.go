package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingBackend fails every call while broken is set.
type failingBackend struct {
	*MemoryBackend
	mu     sync.Mutex
	broken bool
}

func (f *failingBackend) setBroken(b bool) {
	f.mu.Lock()
	f.broken = b
	f.mu.Unlock()
}

func (f *failingBackend) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.broken {
		return errors.New("disk I/O error")
	}
	return nil
}

func (f *failingBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	if err := f.err(); err != nil {
		return Entry{}, false, err
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *failingBackend) Set(ctx context.Context, key string, e Entry) error {
	if err := f.err(); err != nil {
		return err
	}
	return f.MemoryBackend.Set(ctx, key, e)
}

func TestKey(t *testing.T) {
	t.Run("prefixes namespace and keeps 16 hex chars", func(t *testing.T) {
		k := Key(NamespaceSearch, "covid vaccine", "ja", "1")
		require.True(t, strings.HasPrefix(k, "search:"))
		assert.Len(t, strings.TrimPrefix(k, "search:"), 16)
	})

	t.Run("normalizes case and surrounding whitespace", func(t *testing.T) {
		assert.Equal(t,
			Key(NamespaceSearch, "Covid Vaccine", "JA"),
			Key(NamespaceSearch, "  covid vaccine ", "ja"),
		)
	})

	t.Run("part order matters", func(t *testing.T) {
		assert.NotEqual(t, Key(NamespaceSummary, "a", "b"), Key(NamespaceSummary, "b", "a"))
	})

	t.Run("namespaces do not collide", func(t *testing.T) {
		assert.NotEqual(t, Key(NamespaceSummary, "p1"), Key(NamespaceTranslation, "p1"))
	})
}

func TestStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(NewMemoryBackend(), Options{
		TTLs: map[Namespace]time.Duration{NamespaceSearch: time.Second},
		Now:  clock.Now,
	})

	store.SetString(ctx, NamespaceSearch, "v", "q")
	got, ok := store.GetString(ctx, NamespaceSearch, "q")
	require.True(t, ok)
	assert.Equal(t, "v", got)

	clock.Advance(2 * time.Second)
	_, ok = store.GetString(ctx, NamespaceSearch, "q")
	assert.False(t, ok)
}

func TestStore_PermanentNamespace(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewStore(NewMemoryBackend(), Options{Now: clock.Now})

	assert.Zero(t, store.TTL(NamespaceSummary))
	assert.Equal(t, DefaultSearchTTL, store.TTL(NamespaceSearch))
	assert.Equal(t, DefaultTransformTTL, store.TTL(NamespaceTransform))

	store.SetString(ctx, NamespaceSummary, "summary text", "p1", "ja", "layperson")
	clock.Advance(365 * 24 * time.Hour)

	got, ok := store.GetString(ctx, NamespaceSummary, "p1", "ja", "layperson")
	require.True(t, ok)
	assert.Equal(t, "summary text", got)
}

func TestStore_JSON(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), Options{})

	type payload struct {
		Queries []string `json:"queries"`
		Intent  string   `json:"intent"`
	}

	store.SetJSON(ctx, NamespaceTransform, payload{Queries: []string{"a", "b"}, Intent: "x"}, "q")

	var got payload
	require.True(t, store.GetJSON(ctx, NamespaceTransform, &got, "q"))
	assert.Equal(t, []string{"a", "b"}, got.Queries)
	assert.Equal(t, "x", got.Intent)

	store.SetString(ctx, NamespaceTransform, "{not json", "bad")
	assert.False(t, store.GetJSON(ctx, NamespaceTransform, &got, "bad"))
}

func TestStore_DegradesToMiss(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	backend := &failingBackend{MemoryBackend: NewMemoryBackend()}
	store := NewStore(backend, Options{Logger: zerolog.New(&buf)})

	backend.setBroken(true)

	store.SetString(ctx, NamespaceSearch, "v", "q")
	_, ok := store.GetString(ctx, NamespaceSearch, "q")
	assert.False(t, ok)
	_, ok = store.GetString(ctx, NamespaceSearch, "q")
	assert.False(t, ok)
	assert.True(t, store.Degraded())

	assert.Equal(t, 1, strings.Count(buf.String(), "degrading to miss"))

	backend.setBroken(false)
	store.SetString(ctx, NamespaceSearch, "v", "q")
	got, ok := store.GetString(ctx, NamespaceSearch, "q")
	require.True(t, ok)
	assert.Equal(t, "v", got)
	assert.False(t, store.Degraded())
	assert.Contains(t, buf.String(), "cache backend recovered")
}

// racingBackend lets a writer replace the entry between a read and whatever
// the reader does next.
type racingBackend struct {
	*MemoryBackend
	afterGet func()
}

func (b *racingBackend) Get(ctx context.Context, key string) (Entry, bool, error) {
	e, found, err := b.MemoryBackend.Get(ctx, key)
	if b.afterGet != nil {
		b.afterGet()
		b.afterGet = nil
	}
	return e, found, err
}

func TestStore_ExpiredReadKeepsConcurrentWrite(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := &racingBackend{MemoryBackend: NewMemoryBackend()}
	store := NewStore(backend, Options{Now: clock.Now})

	store.SetString(ctx, NamespaceSearch, "stale", "q")
	clock.Advance(DefaultSearchTTL + time.Minute)

	backend.afterGet = func() {
		store.SetString(ctx, NamespaceSearch, "fresh", "q")
	}
	_, ok := store.GetString(ctx, NamespaceSearch, "q")
	assert.False(t, ok)

	got, ok := store.GetString(ctx, NamespaceSearch, "q")
	require.True(t, ok)
	assert.Equal(t, "fresh", got)
}

func TestStore_ExpiredReadLeavesEntryForPurge(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend()
	store := NewStore(backend, Options{Now: clock.Now})

	store.SetString(ctx, NamespaceSearch, "old", "a")
	clock.Advance(DefaultSearchTTL + time.Minute)

	_, ok := store.GetString(ctx, NamespaceSearch, "a")
	assert.False(t, ok)
	assert.Equal(t, 1, backend.Len())

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Zero(t, backend.Len())
}

func TestStore_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	backend := NewMemoryBackend()
	store := NewStore(backend, Options{Now: clock.Now})

	store.SetString(ctx, NamespaceSearch, "old", "a")
	store.SetString(ctx, NamespaceSummary, "kept", "b")
	clock.Advance(DefaultSearchTTL + time.Minute)

	n, err := store.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, 1, backend.Len())
}

func TestStore_Nil(t *testing.T) {
	ctx := context.Background()
	var store *Store

	store.SetString(ctx, NamespaceSearch, "v", "q")
	_, ok := store.GetString(ctx, NamespaceSearch, "q")
	assert.False(t, ok)
	assert.False(t, store.Degraded())
	assert.Zero(t, store.TTL(NamespaceSearch))

	n, err := store.PurgeExpired(ctx)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, store.Close())
}
