package packfile

import (
	"container/list"
	"sync"

	"github.com/bluestreak/bgit/plumbing"
)

// deltaBaseCache memoizes reconstructed delta bases keyed by (pack, offset),
// bounded by total payload bytes rather than entry count (spec.md §4.1).
// Each Pack owns one such cache, shared by every read on that Pack and kept
// between reads rather than rebuilt per request. Resolving a
// long chain, or resolving many objects that share a common ancestor base,
// both re-walk the same intermediate offsets; caching the materialized
// bytes turns that from O(chain length) re-inflations into O(1).
type deltaBaseCache struct {
	mu    sync.Mutex
	limit int64
	used  int64
	ll    *list.List
	items map[deltaCacheKey]*list.Element
}

type deltaCacheKey struct {
	pack   string
	offset int64
}

type deltaCacheEntry struct {
	key  deltaCacheKey
	typ  plumbing.ObjectType
	data []byte
}

func newDeltaBaseCache(limit int64) *deltaBaseCache {
	return &deltaBaseCache{
		limit: limit,
		ll:    list.New(),
		items: make(map[deltaCacheKey]*list.Element),
	}
}

func (c *deltaBaseCache) get(pack string, offset int64) (deltaCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := deltaCacheKey{pack, offset}
	el, ok := c.items[key]
	if !ok {
		return deltaCacheEntry{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(deltaCacheEntry), true
}

func (c *deltaBaseCache) put(pack string, offset int64, typ plumbing.ObjectType, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := deltaCacheKey{pack, offset}
	if el, ok := c.items[key]; ok {
		c.used -= int64(len(el.Value.(deltaCacheEntry).data))
		el.Value = deltaCacheEntry{key, typ, data}
		c.used += int64(len(data))
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(deltaCacheEntry{key, typ, data})
		c.items[key] = el
		c.used += int64(len(data))
	}

	for c.used > c.limit {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.ll.Remove(back)
		ent := back.Value.(deltaCacheEntry)
		delete(c.items, ent.key)
		c.used -= int64(len(ent.data))
	}
}
