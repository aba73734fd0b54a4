// Package cache stores fetched payloads and rendered outputs so that
// repeated runs over an unchanged upstream product skip work.
//
// Three backends implement [Cache]:
//   - [NullCache] never stores anything
//   - [FileCache] keeps entries as JSON files, for the CLI
//   - [RedisCache] shares entries between server replicas
//
// Keys come from a [Keyer] so that callers never build them by hand.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired
	// entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases any resources held by the cache.
	Close() error
}
