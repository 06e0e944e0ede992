package cache

import "sync"

// DedupSet remembers keys so a condition alerts once per occurrence. The
// detector inserts the key when it fires and removes it when the condition
// clears, re-arming the alert.
type DedupSet struct {
	mu   sync.Mutex
	keys map[string]bool
}

// NewDedupSet creates an empty set.
func NewDedupSet() *DedupSet {
	return &DedupSet{keys: make(map[string]bool)}
}

// Insert adds the key, reporting whether it was absent. A false return means
// the alert already fired.
func (d *DedupSet) Insert(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.keys[key] {
		return false
	}
	d.keys[key] = true
	return true
}

// Remove clears the key so the next Insert fires again.
func (d *DedupSet) Remove(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.keys, key)
}

// Contains reports whether the key is present.
func (d *DedupSet) Contains(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.keys[key]
}
