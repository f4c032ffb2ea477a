// Package cache implements the time-decayed cache every data source shares.
// A read chooses between fresh data, fresh-but-stale data, or a miss; two
// TTLs bound the fresh window and the extended stale-fallback window.
package cache

import (
	"sync"
	"time"
)

// Freshness classifies the outcome of a Get.
type Freshness int

const (
	// Miss means no usable entry exists.
	Miss Freshness = iota
	// Fresh means the entry is younger than the fresh TTL.
	Fresh
	// Stale means the fresh window elapsed but the stale-fallback window
	// has not; the data itself is unchanged, only the flag differs.
	Stale
)

// entry wraps cached data with its creation time and stale deadline.
// Entries are owned exclusively by the cache and replaced wholesale.
type entry[T any] struct {
	data       T
	createdAt  time.Time
	staleUntil time.Time
}

// Cache is a keyed time-decayed store. A single Set or Get is atomic;
// concurrent cycles racing on the same key resolve last-writer-wins, which
// is acceptable because every cycle recomputes from idempotent reads.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]entry[T]
	now     func() time.Time
}

// Option configures a Cache.
type Option[T any] func(*Cache[T])

// WithClock substitutes the time source. Used by tests to simulate decay.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *Cache[T]) {
		c.now = now
	}
}

// New creates an empty cache.
func New[T any](opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		entries: make(map[string]entry[T]),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores data under key. freshTTL only documents the intended fresh
// window (the caller passes it again on Get); staleTTL fixes the absolute
// deadline after which the entry is unusable.
func (c *Cache[T]) Set(key string, data T, freshTTL, staleTTL time.Duration) {
	_ = freshTTL
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry[T]{
		data:       data,
		createdAt:  now,
		staleUntil: now.Add(staleTTL),
	}
}

// Get returns the entry under key classified against freshTTL.
// Entries past their stale deadline are evicted lazily here; there is no
// background sweep.
func (c *Cache[T]) Get(key string, freshTTL time.Duration) (T, Freshness) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		var zero T
		return zero, Miss
	}
	if now.Sub(e.createdAt) < freshTTL {
		return e.data, Fresh
	}
	if now.Before(e.staleUntil) {
		return e.data, Stale
	}

	delete(c.entries, key)
	var zero T
	return zero, Miss
}

// Delete removes the entry under key if present.
func (c *Cache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of live entries, counting ones not yet lazily
// evicted.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
