package cache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToAllSubscribers(t *testing.T) {
	h := NewHub[string]("test")

	ch1, cancel1 := h.Subscribe()
	ch2, cancel2 := h.Subscribe()
	defer cancel1()
	defer cancel2()

	h.Publish("update-1")

	assert.Equal(t, "update-1", <-ch1)
	assert.Equal(t, "update-1", <-ch2)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	h := NewHub[int]("test")

	ch, cancel := h.Subscribe()
	require.Equal(t, 1, h.Subscribers())

	cancel()
	assert.Equal(t, 0, h.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	// Cancelling twice is safe.
	cancel()
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	h := NewHub[int]("test")

	// A subscriber that never reads.
	_, cancel := h.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*2; i++ {
			h.Publish(i)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestHub_ConcurrentPublishSubscribe(t *testing.T) {
	h := NewHub[int]("test")

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch, cancel := h.Subscribe()
			defer cancel()
			for range ch {
				return
			}
		}()
	}

	for i := 0; i < 100; i++ {
		h.Publish(i)
	}
	wg.Wait()
}
