package vfs

import (
	"container/list"
	"sync"
)

// payloadCache is a byte-budgeted, least-recently-used cache from bundle
// index to its decompressed payload (spec §4.6, §5). Entries are immutable
// once inserted; a zero budget disables eviction entirely.
type payloadCache struct {
	mu     sync.Mutex
	budget int64
	used   int64
	ll     *list.List
	items  map[int]*list.Element
}

type cacheEntry struct {
	bundleIdx int
	payload   []byte
}

func newPayloadCache(budgetBytes int64) *payloadCache {
	return &payloadCache{
		budget: budgetBytes,
		ll:     list.New(),
		items:  make(map[int]*list.Element),
	}
}

func (c *payloadCache) get(bundleIdx int) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[bundleIdx]
	if !ok {
		return nil, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).payload, true
}

func (c *payloadCache) put(bundleIdx int, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[bundleIdx]; ok {
		c.ll.MoveToFront(el)
		old := el.Value.(*cacheEntry)
		c.used += int64(len(payload)) - int64(len(old.payload))
		old.payload = payload
		c.evictLocked()
		return
	}

	el := c.ll.PushFront(&cacheEntry{bundleIdx: bundleIdx, payload: payload})
	c.items[bundleIdx] = el
	c.used += int64(len(payload))
	c.evictLocked()
}

func (c *payloadCache) evictLocked() {
	if c.budget <= 0 {
		return
	}
	for c.used > c.budget {
		back := c.ll.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		c.ll.Remove(back)
		delete(c.items, entry.bundleIdx)
		c.used -= int64(len(entry.payload))
	}
}
