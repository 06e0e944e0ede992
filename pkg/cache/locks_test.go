package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedLocks_SerializesPerKey(t *testing.T) {
	locks := NewKeyedLocks()

	const workers = 20
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("repo-1")
			defer unlock()
			// Unsynchronized increment; the keyed lock is the only thing
			// preventing a race.
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestKeyedLocks_IndependentKeys(t *testing.T) {
	locks := NewKeyedLocks()

	unlockA := locks.Lock("a")
	defer unlockA()

	// A held lock on "a" must not block "b".
	done := make(chan struct{})
	go func() {
		unlockB := locks.Lock("b")
		unlockB()
		close(done)
	}()

	<-done
}
