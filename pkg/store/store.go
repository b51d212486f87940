// Package store abstracts the small shared-state surface (counters,
// set-if-absent markers) used by rate limiting and webhook idempotency.
// The Redis-backed implementation serves multi-node deployments; the
// in-memory implementation serves single-process ones. Both are safe for
// concurrent use.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the shared-state surface injected into limiters and guards.
type Store interface {
	// IncrWithTTL atomically increments the counter at key, arming the TTL
	// on the first increment, and returns the new value.
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the string value at key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// SetNX stores value only if key is absent; reports whether it was set.
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}
