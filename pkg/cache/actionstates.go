// Package cache holds the in-memory state shared across components: action
// state guards, monitoring status caches, TTL caches for expensive lookups,
// keyed locks, and a bounded broadcast hub.
package cache

import (
	"sync"

	"github.com/komodo-sh/komodo/pkg/types"
)

// Flags is implemented by the per-kind action state structs.
type Flags interface {
	Busy() bool
}

// ActionStates tracks in-flight operations for one resource kind. States
// live only in memory: a restart clears them, which is correct because the
// goroutines holding them are gone too.
type ActionStates[F Flags] struct {
	mu     sync.Mutex
	states map[string]*F
}

// NewActionStates creates an empty state set.
func NewActionStates[F Flags]() *ActionStates[F] {
	return &ActionStates[F]{states: make(map[string]*F)}
}

// Get returns a copy of the resource's current flags.
func (a *ActionStates[F]) Get(id string) F {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[id]; ok {
		return *s
	}
	var zero F
	return zero
}

// Busy reports whether any flag is set for the resource.
func (a *ActionStates[F]) Busy(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.states[id]; ok {
		return (*s).Busy()
	}
	return false
}

// Guard atomically claims the flag selected by pick for the resource. It
// fails with ErrBusy when any flag is already set, so at most one
// conflicting operation runs per resource. The returned release clears the
// claimed flag and may be called more than once.
func (a *ActionStates[F]) Guard(id string, pick func(*F) *bool) (func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.states[id]
	if !ok {
		s = new(F)
		a.states[id] = s
	}
	if (*s).Busy() {
		return nil, types.ErrBusy
	}
	flag := pick(s)
	*flag = true

	var once sync.Once
	release := func() {
		once.Do(func() {
			a.mu.Lock()
			defer a.mu.Unlock()
			*flag = false
		})
	}
	return release, nil
}

// Remove drops the resource's entry, after deletion of the resource.
func (a *ActionStates[F]) Remove(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.states, id)
}
