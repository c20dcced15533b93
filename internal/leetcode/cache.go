package leetcode

import (
	"context"
	"sync"
	"time"
)

// TTLCache is an in-process get-or-fetch store with per-entry expiry.
// It memoizes judge responses (profiles in particular) and stays out of
// all participation write paths; a stale or missing entry only costs an
// extra upstream call.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]*cacheEntry[V]
	now     func() time.Time
}

type cacheEntry[V any] struct {
	value     V
	err       error
	expiresAt time.Time
	ready     chan struct{}
}

// NewTTLCache creates a cache whose entries expire after ttl
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		entries: make(map[K]*cacheEntry[V]),
		now:     time.Now,
	}
}

// GetOrFetch returns the cached value for key, or runs fetch and caches
// the result. Concurrent callers for the same key share one fetch.
// Fetch errors are not cached.
func (c *TTLCache[K, V]) GetOrFetch(ctx context.Context, key K, fetch func(ctx context.Context) (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		select {
		case <-e.ready:
			if e.err == nil && c.now().Before(e.expiresAt) {
				c.mu.Unlock()
				return e.value, nil
			}
			// expired or failed: fall through and refetch
		default:
			// fetch in flight: wait for it
			c.mu.Unlock()
			select {
			case <-e.ready:
				return e.value, e.err
			case <-ctx.Done():
				var zero V
				return zero, ctx.Err()
			}
		}
	}

	e := &cacheEntry[V]{ready: make(chan struct{})}
	c.entries[key] = e
	c.mu.Unlock()

	e.value, e.err = fetch(ctx)
	e.expiresAt = c.now().Add(c.ttl)
	close(e.ready)

	if e.err != nil {
		c.mu.Lock()
		if c.entries[key] == e {
			delete(c.entries, key)
		}
		c.mu.Unlock()
	}
	return e.value, e.err
}

// Invalidate drops the entry for key, if present
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}
