package vfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayloadCache_GetMiss(t *testing.T) {
	c := newPayloadCache(0)
	_, ok := c.get(0)
	assert.False(t, ok)
}

func TestPayloadCache_PutGet(t *testing.T) {
	c := newPayloadCache(0)
	c.put(1, []byte("hello"))
	data, ok := c.get(1)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestPayloadCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newPayloadCache(10)
	c.put(1, make([]byte, 6))
	c.put(2, make([]byte, 6)) // pushes total to 12 > budget 10, evicts bundle 1

	_, ok := c.get(1)
	assert.False(t, ok, "bundle 1 should have been evicted")
	_, ok = c.get(2)
	assert.True(t, ok)
}

func TestPayloadCache_RecentAccessProtectsFromEviction(t *testing.T) {
	c := newPayloadCache(10)
	c.put(1, make([]byte, 5))
	c.put(2, make([]byte, 5))
	c.get(1) // touch bundle 1 so it's now most-recently-used

	c.put(3, make([]byte, 5)) // should evict bundle 2, not bundle 1

	_, ok := c.get(1)
	assert.True(t, ok)
	_, ok = c.get(2)
	assert.False(t, ok)
}
