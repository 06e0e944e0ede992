package cache

import (
	"log/slog"
	"sync"
)

const subscriberBuffer = 64

// Hub is an in-process broadcast channel. Publish never blocks: messages to
// a subscriber with a full buffer are dropped, so a stalled consumer cannot
// stall a producer. Used for update notifications and build cancel signals.
type Hub[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]chan T
	name string
}

// NewHub creates a hub. The name appears in drop warnings.
func NewHub[T any](name string) *Hub[T] {
	return &Hub[T]{
		subs: make(map[int]chan T),
		name: name,
	}
}

// Subscribe registers a new subscriber. The returned cancel must be called
// to release it; after cancel the channel is closed.
func (h *Hub[T]) Subscribe() (<-chan T, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.next
	h.next++
	ch := make(chan T, subscriberBuffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers msg to every subscriber that has buffer space.
func (h *Hub[T]) Publish(msg T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, ch := range h.subs {
		select {
		case ch <- msg:
		default:
			slog.Warn("Dropping broadcast to slow subscriber",
				"hub", h.name, "subscriber", id)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub[T]) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
