package cache

import (
	"context"
	"time"
)

// Cache is the subset of key-value operations the interface service needs:
// the compile report cache and the fixed-window rate limiter.
type Cache interface {
	// Get returns "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) error

	// TTL returns the remaining time to live of a key, or a negative
	// duration when the key has no expiration or does not exist.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// SetNX sets key only if it does not exist and reports whether it did.
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)

	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
