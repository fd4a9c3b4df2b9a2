package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
)

// BadgerConfig configures a BadgerBackend.
type BadgerConfig struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps all data in memory.
	InMemory bool
	// SyncWrites fsyncs every write.
	SyncWrites bool
	// Logger receives badger's internal log output at debug level and above.
	// A nil Logger disables it.
	Logger *zerolog.Logger
}

// badgerLogger adapts zerolog to badger.Logger.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(format, args...)
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(format, args...)
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(format, args...)
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Trace().Msgf(format, args...)
}

// BadgerBackend stores entries in an embedded Badger database. Entries with an
// expiry also carry a native Badger TTL so they are eventually garbage collected.
type BadgerBackend struct {
	db  *badger.DB
	now func() time.Time
}

// NewBadgerBackend opens a Badger database described by cfg.
func NewBadgerBackend(cfg BadgerConfig) (*BadgerBackend, error) {
	var opts badger.Options
	if cfg.InMemory || cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger.With().Str("component", "badger").Logger()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerBackend{db: db, now: time.Now}, nil
}

// Get implements Backend.
func (b *BadgerBackend) Get(_ context.Context, key string) (Entry, bool, error) {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return Entry{}, false, nil
		}
		return Entry{}, false, fmt.Errorf("badger cache get: %w", err)
	}

	e, err := decodeEntry(raw)
	if err != nil {
		return Entry{}, false, fmt.Errorf("badger cache get %s: %w", key, err)
	}
	return e, true, nil
}

// Set implements Backend.
func (b *BadgerBackend) Set(_ context.Context, key string, entry Entry) error {
	e := badger.NewEntry([]byte(key), encodeEntry(entry))
	if !entry.ExpiresAt.IsZero() {
		// Keep the native TTL a little longer than the logical one so the
		// Store, not badger, decides when the entry reads as absent.
		if ttl := entry.ExpiresAt.Sub(b.now()) + time.Minute; ttl > 0 {
			e = e.WithTTL(ttl)
		}
	}

	if err := b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(e)
	}); err != nil {
		return fmt.Errorf("badger cache set: %w", err)
	}
	return nil
}

// RunGC runs one round of value log garbage collection. Nothing to collect
// and in-memory mode are not reported as errors.
func (b *BadgerBackend) RunGC(discardRatio float64) error {
	err := b.db.RunValueLogGC(discardRatio)
	if err == nil || errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// Close implements Backend.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
