package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c, err := New[string](0)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	require.False(t, ok)

	c.Set("k", "v")
	v, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, "v", v)
	require.Equal(t, 1, c.Len())
}

func TestCache_Purge(t *testing.T) {
	c, err := New[int](4)
	require.NoError(t, err)
	c.Set("a", 1)
	c.Set("b", 2)
	require.Equal(t, 2, c.Len())
	c.Purge()
	require.Equal(t, 0, c.Len())
}
