package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"
)

// Entry is a stored value with an optional absolute expiry.
// A zero ExpiresAt means the entry never expires.
type Entry struct {
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry has expired at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Backend is the persistence contract behind a Store.
// Get returns found=false with a nil error for missing keys.
type Backend interface {
	Get(ctx context.Context, key string) (entry Entry, found bool, err error)
	Set(ctx context.Context, key string, entry Entry) error
	Close() error
}

// Purger is implemented by backends that can drop expired entries in bulk.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

var errCorruptEntry = errors.New("cache: corrupt entry")

// encodeEntry packs an entry as an 8-byte big-endian unix-nano expiry
// (0 = permanent) followed by the raw value.
func encodeEntry(e Entry) []byte {
	buf := make([]byte, 8+len(e.Value))
	var exp int64
	if !e.ExpiresAt.IsZero() {
		exp = e.ExpiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[:8], uint64(exp))
	copy(buf[8:], e.Value)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < 8 {
		return Entry{}, errCorruptEntry
	}
	var e Entry
	if exp := int64(binary.BigEndian.Uint64(b[:8])); exp != 0 {
		e.ExpiresAt = time.Unix(0, exp)
	}
	e.Value = append([]byte(nil), b[8:]...)
	return e, nil
}
