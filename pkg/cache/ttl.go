package cache

import (
	"sync"
	"time"
)

// TTLCache caches values for a fixed duration, deduplicating expensive
// lookups like system info and process list RPCs. Expired entries are
// overwritten on the next GetOrFetch; there is no background sweeper.
type TTLCache[K comparable, V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[K]ttlEntry[V]
}

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// NewTTLCache creates a cache with the given entry lifetime.
func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:     ttl,
		entries: make(map[K]ttlEntry[V]),
	}
}

// GetOrFetch returns the cached value when fresh, otherwise calls fetch and
// caches the result. Fetch errors are returned without caching, so the next
// caller retries.
func (c *TTLCache[K, V]) GetOrFetch(key K, fetch func() (V, error)) (V, error) {
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && time.Now().Before(e.expires) {
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	// Fetch outside the lock; a concurrent duplicate fetch is acceptable,
	// a lock held across a network call is not.
	value, err := fetch()
	if err != nil {
		var zero V
		return zero, err
	}

	c.mu.Lock()
	c.entries[key] = ttlEntry[V]{value: value, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops an entry.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
