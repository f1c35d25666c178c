// Package cache implements the two process-wide, size-bounded caches the
// object store depends on: a small object cache for fully-materialized
// EncodedObjects, and the pack window cache (C2) that hands out short-lived
// views of memory-mapped (or heap-read) regions of pack files.
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/bluestreak/bgit/plumbing"
)

const (
	Byte   = 1
	KiByte = 1024 * Byte
	MiByte = 1024 * KiByte
	GiByte = 1024 * MiByte
)

// DefaultMaxSize is the default object cache budget.
const DefaultMaxSize = 96 * MiByte

// Object caches fully materialized EncodedObjects by id, bounded by total
// payload bytes rather than entry count, since object sizes vary wildly.
type Object struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	lru     *lru.Cache
}

// NewObjectLRU builds an object cache bounded at maxSize bytes of combined
// object payload.
func NewObjectLRU(maxSize int64) *Object {
	o := &Object{maxSize: maxSize}
	o.lru = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			o.size -= value.(plumbing.EncodedObject).Size()
		},
	}
	return o
}

// Add inserts obj, evicting older entries until the cache is back under
// budget.
func (o *Object) Add(obj plumbing.EncodedObject) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.lru.Add(obj.ID(), obj)
	o.size += obj.Size()

	for o.size > o.maxSize && o.lru.Len() > 1 {
		o.lru.RemoveOldest()
	}
}

// Get returns the cached object for id, or nil if absent.
func (o *Object) Get(id plumbing.ObjectID) plumbing.EncodedObject {
	o.mu.Lock()
	defer o.mu.Unlock()

	v, ok := o.lru.Get(id)
	if !ok {
		return nil
	}
	return v.(plumbing.EncodedObject)
}

// Clear empties the cache.
func (o *Object) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lru.Clear()
	o.size = 0
}
