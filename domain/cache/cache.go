// Package cache provides the domain interface for caching exploration results.
//
// Results are deterministic in the machine, tape mode, step bound and input,
// so a cached entry never goes stale for a given key.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Cache defines the interface for result caching.
// Implementations may be in-memory, Redis, Badger or any other backend.
type Cache interface {
	// Get retrieves a cached value by key.
	// Returns the value, whether it was found, and any error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value with the given key and options.
	Set(ctx context.Context, key string, value []byte, opts SetOptions) error

	Delete(ctx context.Context, key string) error

	Exists(ctx context.Context, key string) (bool, error)

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error
}

// SetOptions configures how a value is stored in the cache.
type SetOptions struct {
	// TTL is the time-to-live for the entry. Zero means no expiration.
	TTL time.Duration
}

// Stats provides cache statistics.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int64
	MaxSize int64 // 0 = unlimited
}

// StatsProvider is an optional interface for caches that support statistics.
type StatsProvider interface {
	Stats() Stats
}

// ResultKey derives the cache key for one exploration.
func ResultKey(fingerprint, tapeMode string, maxSteps int, input string) string {
	h := sha256.New()
	h.Write([]byte(fingerprint))
	h.Write([]byte{'|'})
	h.Write([]byte(tapeMode))
	h.Write([]byte{'|'})
	h.Write([]byte(strconv.Itoa(maxSteps)))
	h.Write([]byte{'|'})
	h.Write([]byte(input))
	return hex.EncodeToString(h.Sum(nil))
}
