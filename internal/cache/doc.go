// Package cache provides the namespaced, TTL-aware key/value store used to
// memoize derived artifacts of the search pipeline.
//
// # Namespaces
//
// Every entry belongs to a Namespace with its own expiry policy:
//
//   - search: composed search responses (6h by default)
//   - transform: query expansions (24h by default)
//   - summary: per-paper summaries (permanent)
//   - translation: graded abstract translations (permanent)
//
// Keys are derived from the namespace and an ordered list of key parts; parts
// are trimmed and lowercased before hashing, so "Sleep " and "sleep" address
// the same entry.
//
// # Backends
//
// The Store delegates persistence to a Backend: MemoryBackend, SQLiteBackend,
// BadgerBackend or PostgresBackend. Expiry is evaluated by the Store against
// its clock, so every backend behaves identically with respect to TTLs.
//
// # Failure Handling
//
// Backend errors never reach callers. Reads degrade to a miss and writes to a
// no-op. The first error of a failure streak is logged at warn level; the
// first success afterwards logs recovery.
package cache
