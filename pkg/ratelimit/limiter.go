package ratelimit

import (
	"context"
	"time"
)

// Cooldown allows one action per key per period.
type Cooldown struct {
	store  Store
	prefix string
	period time.Duration
}

func NewCooldown(store Store, prefix string, period time.Duration) *Cooldown {
	return &Cooldown{store: store, prefix: prefix, period: period}
}

// Acquire claims the cooldown for key. When the key is cooling down it returns
// false and the time until the next allowed call.
func (c *Cooldown) Acquire(ctx context.Context, key string) (bool, time.Duration, error) {
	if c.period <= 0 {
		return true, 0, nil
	}
	return c.store.Reserve(ctx, c.prefix+key, c.period)
}

// Release gives back a claim taken by Acquire, e.g. when the guarded action failed.
func (c *Cooldown) Release(ctx context.Context, key string) error {
	return c.store.Delete(ctx, c.prefix+key)
}

// Lockout counts failures per key and locks the key once MaxAttempts is
// reached inside Window.
type Lockout struct {
	store       Store
	prefix      string
	maxAttempts int
	window      time.Duration
	period      time.Duration
}

func NewLockout(store Store, prefix string, maxAttempts int, window, period time.Duration) *Lockout {
	return &Lockout{
		store:       store,
		prefix:      prefix,
		maxAttempts: maxAttempts,
		window:      window,
		period:      period,
	}
}

func (l *Lockout) failKey(key string) string { return l.prefix + "fail:" + key }
func (l *Lockout) lockKey(key string) string { return l.prefix + "lock:" + key }

// Locked returns the remaining lock time for key, zero when unlocked.
func (l *Lockout) Locked(ctx context.Context, key string) (time.Duration, error) {
	if l.maxAttempts <= 0 {
		return 0, nil
	}
	return l.store.TTL(ctx, l.lockKey(key))
}

// Fail records a failed attempt. It reports whether this attempt locked the key.
func (l *Lockout) Fail(ctx context.Context, key string) (bool, time.Duration, error) {
	if l.maxAttempts <= 0 {
		return false, 0, nil
	}

	n, err := l.store.Hit(ctx, l.failKey(key), l.window)
	if err != nil {
		return false, 0, err
	}
	if n < int64(l.maxAttempts) {
		return false, 0, nil
	}

	if _, _, err := l.store.Reserve(ctx, l.lockKey(key), l.period); err != nil {
		return false, 0, err
	}
	if err := l.store.Delete(ctx, l.failKey(key)); err != nil {
		return true, l.period, err
	}
	return true, l.period, nil
}

// Reset clears failures after a successful attempt.
func (l *Lockout) Reset(ctx context.Context, key string) error {
	return l.store.Delete(ctx, l.failKey(key))
}

// MaxAttempts is the failure count that triggers a lock.
func (l *Lockout) MaxAttempts() int {
	return l.maxAttempts
}
