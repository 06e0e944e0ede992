package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/komodo-sh/komodo/pkg/types"
)

func TestStatusCache_HistoryShift(t *testing.T) {
	c := NewStatusCache[types.ServerState]()

	_, ok := c.Get("s1")
	assert.False(t, ok)

	c.Update("s1", types.ServerOk)
	curr, ok := c.Get("s1")
	require.True(t, ok)
	assert.Equal(t, types.ServerOk, curr)

	c.Update("s1", types.ServerNotOk)
	h, ok := c.GetHistory("s1")
	require.True(t, ok)
	assert.Equal(t, types.ServerNotOk, h.Curr)
	assert.Equal(t, types.ServerOk, h.Prev)

	c.Update("s1", types.ServerOk)
	h, _ = c.GetHistory("s1")
	assert.Equal(t, types.ServerOk, h.Curr)
	assert.Equal(t, types.ServerNotOk, h.Prev)
}

func TestStatusCache_IdsAndRemove(t *testing.T) {
	c := NewStatusCache[int]()
	c.Update("a", 1)
	c.Update("b", 2)

	assert.ElementsMatch(t, []string{"a", "b"}, c.Ids())

	c.Remove("a")
	assert.ElementsMatch(t, []string{"b"}, c.Ids())
	_, ok := c.Get("a")
	assert.False(t, ok)
}
