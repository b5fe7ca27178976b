// File: internal/cache/cache.go
package cache

import (
	"context"
	"time"
)

// Cache is a string key-value store with per-entry TTL, used to keep
// lookup results (price, contract metadata) off the feed between refreshes.
type Cache interface {
	// Get returns the value for key. The second return reports whether the
	// key was present and unexpired.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key for the given TTL. A zero TTL stores the
	// value without expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	Close() error
}
