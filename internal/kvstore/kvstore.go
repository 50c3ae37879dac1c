// Package kvstore defines the shared atomic key-value store backing the
// gateway's rate-limit windows and circuit-breaker state. All gateway
// instances point at the same store, so counters must be incremented
// atomically at the store level, not read-modify-write in process memory.
package kvstore

import (
	"context"
	"time"
)

// Store is the narrow contract the resilience middleware depends on.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set stores value under key. A zero ttl means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the counter at key and returns the new
	// value. The ttl is applied only when the increment creates the key,
	// so a window's expiry is fixed at creation time.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
