// Package store provides the key-value persistence layer. Redis is the source
// of truth; repositories layer read-through caching on top.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("store: key not found")

// Store is a namespaced key-value store with per-key TTL.
type Store interface {
	// Put writes a value. A zero ttl means no expiry.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get reads a value, returning ErrNotFound for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists all keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Ping verifies connectivity.
	Ping(ctx context.Context) error
}
