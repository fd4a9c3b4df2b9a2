package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/paper-search-service/internal/observability"
)

// Namespace groups entries that share an expiry policy.
type Namespace string

const (
	NamespaceSearch      Namespace = "search"
	NamespaceTransform   Namespace = "transform"
	NamespaceSummary     Namespace = "summary"
	NamespaceTranslation Namespace = "translation"
)

// Default namespace TTLs. Namespaces without a TTL are permanent.
const (
	DefaultSearchTTL    = 6 * time.Hour
	DefaultTransformTTL = 24 * time.Hour
)

// hashLength is the number of hex characters of the key digest kept.
const hashLength = 16

// Key derives the storage key for a namespace and ordered key parts.
func Key(ns Namespace, parts ...string) string {
	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = strings.ToLower(strings.TrimSpace(p))
	}
	sum := sha256.Sum256([]byte(strings.Join(normalized, ":")))
	return string(ns) + ":" + hex.EncodeToString(sum[:])[:hashLength]
}

// Options configures a Store.
type Options struct {
	// TTLs maps namespaces to their expiry. Missing namespaces are permanent.
	TTLs map[Namespace]time.Duration
	// Now is the clock used for expiry. Defaults to time.Now.
	Now func() time.Time
	// Logger receives degradation and recovery events.
	Logger zerolog.Logger
	// Metrics records hits, misses, sets and errors. May be nil.
	Metrics *observability.Metrics
}

// DefaultTTLs returns the standard namespace expiry policy.
func DefaultTTLs() map[Namespace]time.Duration {
	return map[Namespace]time.Duration{
		NamespaceSearch:    DefaultSearchTTL,
		NamespaceTransform: DefaultTransformTTL,
	}
}

// Store is the namespaced cache used by the pipeline. A nil *Store behaves as
// an always-empty cache.
type Store struct {
	backend Backend
	ttls    map[Namespace]time.Duration
	now     func() time.Time
	logger  zerolog.Logger
	metrics *observability.Metrics

	degraded atomic.Bool
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts Options) *Store {
	ttls := opts.TTLs
	if ttls == nil {
		ttls = DefaultTTLs()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		backend: backend,
		ttls:    ttls,
		now:     now,
		logger:  opts.Logger.With().Str("component", "cache").Logger(),
		metrics: opts.Metrics,
	}
}

// TTL returns the configured expiry for ns; zero means permanent.
func (s *Store) TTL(ns Namespace) time.Duration {
	if s == nil {
		return 0
	}
	return s.ttls[ns]
}

// Get returns the value stored under (ns, parts...). Expired entries, backend
// failures and a nil Store all read as absent.
func (s *Store) Get(ctx context.Context, ns Namespace, parts ...string) ([]byte, bool) {
	if s == nil || s.backend == nil {
		return nil, false
	}

	key := Key(ns, parts...)
	entry, found, err := s.backend.Get(ctx, key)
	if err != nil {
		s.fail(ns, "get", key, err)
		return nil, false
	}
	s.markHealthy()

	if !found {
		s.metrics.RecordCacheOperation(string(ns), "miss")
		return nil, false
	}
	// Expired entries stay in the backend until the janitor purges them.
	if entry.Expired(s.now()) {
		s.metrics.RecordCacheOperation(string(ns), "miss")
		return nil, false
	}

	s.metrics.RecordCacheOperation(string(ns), "hit")
	return entry.Value, true
}

// Set stores value under (ns, parts...) with the namespace's TTL.
func (s *Store) Set(ctx context.Context, ns Namespace, value []byte, parts ...string) {
	s.SetTTL(ctx, ns, s.TTL(ns), value, parts...)
}

// SetTTL stores value with an explicit ttl; zero ttl stores it permanently.
func (s *Store) SetTTL(ctx context.Context, ns Namespace, ttl time.Duration, value []byte, parts ...string) {
	if s == nil || s.backend == nil {
		return
	}

	entry := Entry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = s.now().Add(ttl)
	}

	key := Key(ns, parts...)
	if err := s.backend.Set(ctx, key, entry); err != nil {
		s.fail(ns, "set", key, err)
		return
	}
	s.markHealthy()
	s.metrics.RecordCacheOperation(string(ns), "set")
}

// GetString is Get for text values.
func (s *Store) GetString(ctx context.Context, ns Namespace, parts ...string) (string, bool) {
	b, ok := s.Get(ctx, ns, parts...)
	if !ok {
		return "", false
	}
	return string(b), true
}

// SetString is Set for text values.
func (s *Store) SetString(ctx context.Context, ns Namespace, value string, parts ...string) {
	s.Set(ctx, ns, []byte(value), parts...)
}

// GetJSON decodes the cached value into dst. Undecodable values read as absent.
func (s *Store) GetJSON(ctx context.Context, ns Namespace, dst interface{}, parts ...string) bool {
	b, ok := s.Get(ctx, ns, parts...)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.logger.Warn().Err(err).Str("namespace", string(ns)).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

// SetJSON encodes v and stores it with the namespace's TTL.
func (s *Store) SetJSON(ctx context.Context, ns Namespace, v interface{}, parts ...string) {
	if s == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Str("namespace", string(ns)).Msg("failed to encode cache value")
		return
	}
	s.Set(ctx, ns, b, parts...)
}

// PurgeExpired drops expired entries when the backend supports it.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	if s == nil || s.backend == nil {
		return 0, nil
	}
	p, ok := s.backend.(Purger)
	if !ok {
		return 0, nil
	}
	return p.PurgeExpired(ctx, s.now())
}

// Degraded reports whether the backend is currently failing.
func (s *Store) Degraded() bool {
	return s != nil && s.degraded.Load()
}

// Close closes the backend.
func (s *Store) Close() error {
	if s == nil || s.backend == nil {
		return nil
	}
	return s.backend.Close()
}

func (s *Store) fail(ns Namespace, op, key string, err error) {
	s.metrics.RecordCacheOperation(string(ns), "error")
	if s.degraded.CompareAndSwap(false, true) {
		s.logger.Warn().
			Err(err).
			Str("namespace", string(ns)).
			Str("operation", op).
			Str("key", key).
			Msg("cache backend unavailable, degrading to miss")
	}
}

func (s *Store) markHealthy() {
	if s.degraded.CompareAndSwap(true, false) {
		s.logger.Info().Msg("cache backend recovered")
	}
}
