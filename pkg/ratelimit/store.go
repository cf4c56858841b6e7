// Package ratelimit keeps account-keyed cooldowns and attempt counters in a
// store shared by every server instance.
package ratelimit

import (
	"context"
	"time"
)

// Store is the shared state behind Cooldown and Lockout.
type Store interface {
	// Reserve claims key for ttl. If key is already held it returns false and
	// the time left on the existing claim.
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, time.Duration, error)
	// Hit increments the counter at key. The first hit opens a window of the given length.
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
	// TTL returns the time left on key, zero when key is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Delete(ctx context.Context, keys ...string) error
}
