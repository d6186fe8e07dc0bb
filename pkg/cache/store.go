package cache

import (
	"context"
	"time"
)

// Store is a byte-oriented key/value store with per-entry TTL.
type Store interface {
	// Get returns the value for key. A missing or expired key returns
	// (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for ttl. A non-positive ttl means the store's
	// default lifetime.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}
