package chain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := NewLRUCache[string, int](4)

	c.Set("a", 1, time.Minute)
	got, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiration(t *testing.T) {
	c := NewLRUCache[string, int](4)

	c.Set("a", 1, 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestCache_EvictsBeyondCapacity(t *testing.T) {
	c := NewLRUCache[int, int](2)

	c.Set(1, 1, time.Minute)
	c.Set(2, 2, time.Minute)
	c.Set(3, 3, time.Minute)

	_, ok := c.Get(1)
	assert.False(t, ok, "oldest entry is evicted at capacity")

	_, ok = c.Get(3)
	assert.True(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := NewLRUCache[string, string](4)

	c.Set("k", "v", time.Minute)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}
