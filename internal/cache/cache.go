// Package cache provides the get/set/invalidate collaborator used to
// memoize document extraction between runs.
package cache

import (
	"context"
	"time"
)

// Store is the cache contract the core depends on. Reads are lock-free in
// the sqlite implementation (WAL mode, single writer); the memory store
// backs tests.
type Store interface {
	// Get returns the value for key, with ok=false on a miss or an
	// expired entry.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes every entry whose key matches the glob-style
	// pattern ('*' matches any run of characters).
	Invalidate(ctx context.Context, pattern string) error

	Close() error
}
