package cache

import (
	"context"
	"fmt"
	"time"
)

// Cooldown allows one action per key per window.
type Cooldown struct {
	cache     *Cache
	namespace string
	window    time.Duration
}

func NewCooldown(c *Cache, namespace string, window time.Duration) *Cooldown {
	return &Cooldown{cache: c, namespace: namespace, window: window}
}

// Allow claims the window for key. When the window is already held it
// returns false and the time left on it.
func (d *Cooldown) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	ok, err := d.cache.SetNX(ctx, d.namespace, key, time.Now().Unix(), d.window)
	if err != nil {
		return false, 0, fmt.Errorf("cooldown %s: %w", d.namespace, err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := d.cache.TTL(ctx, d.namespace, key)
	if err != nil || ttl < 0 {
		ttl = d.window
	}
	return false, ttl, nil
}

// Release gives the window for key back early.
func (d *Cooldown) Release(ctx context.Context, key string) error {
	if err := d.cache.Delete(ctx, d.namespace, key); err != nil {
		return fmt.Errorf("cooldown %s: %w", d.namespace, err)
	}
	return nil
}
