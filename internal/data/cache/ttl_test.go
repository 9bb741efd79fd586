package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTTLCache_GetSet(t *testing.T) {
	c := NewTTLCache(time.Minute)

	_, ok := c.Get("qqq")
	assert.False(t, ok)

	c.Set("qqq", 42)
	v, ok := c.Get("qqq")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = c.LastFetched("qqq")
	assert.True(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestTTLCache_Expiry(t *testing.T) {
	c := NewTTLCache(10 * time.Millisecond)
	c.Set("qqq", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("qqq")
	assert.False(t, ok)
}

func TestTTLCache_Clear(t *testing.T) {
	c := NewTTLCache(time.Minute)
	c.Set("a", 1)
	c.Clear()
	_, ok := c.Get("a")
	assert.False(t, ok)
}
