package cache

import "sync"

// History pairs the current value with the previous one, so detectors can
// observe transitions.
type History[T any] struct {
	Curr T
	Prev T
}

// StatusCache is a concurrent map keyed by resource id, keeping one step of
// history per entry. The monitor writes it every sweep; readers get copies.
type StatusCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]History[T]
}

// NewStatusCache creates an empty cache.
func NewStatusCache[T any]() *StatusCache[T] {
	return &StatusCache[T]{entries: make(map[string]History[T])}
}

// Update stores a new current value, shifting the old current to previous.
func (c *StatusCache[T]) Update(id string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.entries[id].Curr
	c.entries[id] = History[T]{Curr: value, Prev: prev}
}

// Get returns the current value and whether the id is present.
func (c *StatusCache[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[id]
	return h.Curr, ok
}

// GetHistory returns the current and previous values.
func (c *StatusCache[T]) GetHistory(id string) (History[T], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	h, ok := c.entries[id]
	return h, ok
}

// Ids returns the cached ids, in no particular order.
func (c *StatusCache[T]) Ids() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	return ids
}

// Remove drops an entry, after deletion of the resource.
func (c *StatusCache[T]) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, id)
}
