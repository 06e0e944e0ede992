package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_CachesWithinTTL(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)

	calls := 0
	fetch := func() (int, error) {
		calls++
		return 42, nil
	}

	v, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	v, err = c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 1, calls, "second get within ttl must not fetch")
}

func TestTTLCache_RefetchesAfterExpiry(t *testing.T) {
	c := NewTTLCache[string, int](10 * time.Millisecond)

	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	v, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)

	v, err = c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTTLCache_ErrorsAreNotCached(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)

	calls := 0
	failing := func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("agent unreachable")
		}
		return 7, nil
	}

	_, err := c.GetOrFetch("k", failing)
	require.Error(t, err)

	v, err := c.GetOrFetch("k", failing)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 2, calls)
}

func TestTTLCache_Invalidate(t *testing.T) {
	c := NewTTLCache[string, int](time.Minute)

	calls := 0
	fetch := func() (int, error) {
		calls++
		return calls, nil
	}

	_, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)

	c.Invalidate("k")

	v, err := c.GetOrFetch("k", fetch)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}
