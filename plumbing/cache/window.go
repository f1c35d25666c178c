package cache

import (
	"container/list"
	"errors"
	"sync"
)

// DefaultWindowSize is the page size a window is aligned to, matching
// core.packedGitWindowSize's default (spec.md §6).
const DefaultWindowSize = 8 * KiByte

// DefaultWindowLimit bounds the total bytes the window cache may hold
// mapped/resident at once (core.packedGitLimit's default order of
// magnitude).
const DefaultWindowLimit = 256 * MiByte

// ErrUnknownPack is returned when Get is called for a pack that was never
// Register-ed (or was Unregister-ed after a CorruptObject failure).
var ErrUnknownPack = errors.New("cache: unknown pack")

// Source is implemented by a pack's backing storage: either a real mmap of
// the file (storage/filesystem/mmap) or a plain heap read. The window cache
// is agnostic to which; it only ever asks for a byte range.
type Source interface {
	// ReadWindow reads length bytes starting at off, returning a slice
	// valid until the next call on this Source from another goroutine
	// completes (callers must not retain it past the window's lifetime).
	ReadWindow(off int64, length int) ([]byte, error)
	// Size returns the total byte length of the backing pack.
	Size() int64
}

// packKey identifies a pack uniquely within the cache, independent of how
// many times it has been reopened.
type packKey string

type windowKey struct {
	pack  packKey
	index int64 // off / windowSize
}

type window struct {
	key  windowKey
	data []byte
	pins int32
}

// WindowCache is the process-wide singleton described in spec.md §4.1 and
// §5: a fixed-capacity slab of windows, evicted LRU among unpinned entries,
// protected by a lock held only across metadata changes and never across
// I/O. groupcache/lru.Cache is used for the (pin-unaware) object cache, but
// cannot skip pinned entries during eviction, so this cache keeps its own
// intrusive list — there is no third-party LRU in the pack that supports
// pin-aware eviction, so this part is stdlib (container/list) by necessity.
type WindowCache struct {
	mu         sync.Mutex
	windowSize int
	limit      int64
	used       int64

	ll    *list.List // most-recently-used at the front
	items map[windowKey]*list.Element

	sources map[packKey]Source
}

// NewWindowCache builds a window cache with the given per-window size and
// total byte budget.
func NewWindowCache(windowSize int, limit int64) *WindowCache {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if limit <= 0 {
		limit = DefaultWindowLimit
	}

	return &WindowCache{
		windowSize: windowSize,
		limit:      limit,
		ll:         list.New(),
		items:      make(map[windowKey]*list.Element),
		sources:    make(map[packKey]Source),
	}
}

// Register associates a pack identifier with its backing Source. It must be
// called once before any Cursor is requested for that pack.
func (c *WindowCache) Register(pack string, src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[packKey(pack)] = src
}

// Unregister drops a pack's source, used when a pack is closed or found
// corrupt (spec.md §4.1: "CorruptObject on a pack invalidates that pack for
// the remainder of the process").
func (c *WindowCache) Unregister(pack string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, packKey(pack))
}

// Cursor borrows a window covering the byte at off in the given pack. The
// cursor must be released (via Close) before the caller does any further
// blocking I/O that could starve eviction of other packs.
type Cursor struct {
	c      *WindowCache
	w      *window
	within int // offset within w.data to start reading
}

// Get borrows a window view of at least length bytes starting at off.
func (c *WindowCache) Get(pack string, off int64, length int) (*Cursor, error) {
	c.mu.Lock()

	src, ok := c.sources[packKey(pack)]
	if !ok {
		c.mu.Unlock()
		return nil, ErrUnknownPack
	}

	index := off / int64(c.windowSize)
	key := windowKey{pack: packKey(pack), index: index}
	base := index * int64(c.windowSize)

	if el, ok := c.items[key]; ok {
		w := el.Value.(*window)
		within := int(off - base)
		if within+length <= len(w.data) {
			w.pins++
			c.ll.MoveToFront(el)
			c.mu.Unlock()
			return &Cursor{c: c, w: w, within: within}, nil
		}
		// Cached window is a short tail window; fall through and re-read a
		// bigger one below.
	}
	c.mu.Unlock()

	// Do the actual I/O with the lock released - the cache never holds its
	// lock across a blocking read.
	size := c.windowSize
	if base+int64(size) > src.Size() {
		size = int(src.Size() - base)
	}
	if off+int64(length) > base+int64(size) {
		size = int(off + int64(length) - base)
	}

	data, err := src.ReadWindow(base, size)
	if err != nil {
		return nil, err
	}

	w := &window{key: key, data: data, pins: 1}

	c.mu.Lock()
	if el, ok := c.items[key]; ok {
		existing := el.Value.(*window)
		if int(off-base)+length <= len(existing.data) {
			// Lost a race with another Get for the same window; keep whichever
			// copy was inserted first and drop ours to avoid double counting.
			existing.pins++
			c.ll.MoveToFront(el)
			c.mu.Unlock()
			return &Cursor{c: c, w: existing, within: int(off - base)}, nil
		}
		// The cached copy is the short tail window: replace it with ours.
		// Cursors still holding it keep their own reference to it.
		c.ll.Remove(el)
		delete(c.items, key)
		c.used -= int64(len(existing.data))
	}
	el := c.ll.PushFront(w)
	c.items[key] = el
	c.used += int64(len(data))
	c.evictLocked()
	c.mu.Unlock()

	return &Cursor{c: c, w: w, within: int(off - base)}, nil
}

// Bytes returns the cursor's borrowed view starting at the requested
// offset; it may run longer than requested, to the end of the window.
func (cur *Cursor) Bytes() []byte {
	return cur.w.data[cur.within:]
}

// Close releases the borrow. The window remains cached (and evictable) once
// its pin count reaches zero.
func (cur *Cursor) Close() {
	cur.c.mu.Lock()
	defer cur.c.mu.Unlock()
	cur.w.pins--
	cur.c.evictLocked()
}

// evictLocked drops unpinned windows, least-recently-used first, until
// usage is back under budget. Must be called with c.mu held.
func (c *WindowCache) evictLocked() {
	if c.used <= c.limit {
		return
	}

	for e := c.ll.Back(); e != nil; {
		prev := e.Prev()
		w := e.Value.(*window)
		if w.pins == 0 {
			c.ll.Remove(e)
			delete(c.items, w.key)
			c.used -= int64(len(w.data))
			if c.used <= c.limit {
				return
			}
		}
		e = prev
	}
}
