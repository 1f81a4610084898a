// Package cache provides the key-value cache boundary used for answers and
// embeddings. Entries are opaque bytes with an independent TTL each; a miss
// and an expired entry are indistinguishable to callers.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned after Close has been called.
var ErrClosed = errors.New("cache closed")

// Cache is the narrow cache capability the service depends on.
//
// Get returns (value, true, nil) on a hit and (nil, false, nil) on a miss.
// Backend failures are returned as errors so callers can decide whether to
// treat them as misses; the query path does.
type Cache interface {
	// Get retrieves the value stored under key.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Del removes the entry for key. Deleting a missing key is not an error.
	Del(ctx context.Context, key string) error

	// Clear removes all entries under the given key prefix and returns the
	// number of entries removed.
	Clear(ctx context.Context, prefix string) (int, error)

	// Count returns the number of live entries under the given key prefix.
	Count(ctx context.Context, prefix string) (int, error)

	// Close releases backend resources.
	Close() error
}
