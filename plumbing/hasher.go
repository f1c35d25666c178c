package plumbing

import (
	"hash"
	"strconv"
	"sync"

	"github.com/pjbgf/sha1cd"
)

// Hasher incrementally computes the id of an object: the SHA-1 of its
// canonical "<type> SP <size> NUL" header followed by its payload. It uses
// sha1cd so that a deliberately crafted SHA-1 collision (as used in the
// historical SHAttered attack) is detected rather than silently accepted,
// matching upstream Git's own collision-detecting hash.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a Hasher primed with the object header for a payload of
// the given type and size. Callers then Write the payload bytes and call
// Sum.
func NewHasher(t ObjectType, size int64) *Hasher {
	h := &Hasher{h: sha1cd.New()}
	writeHeader(h.h, t, size)
	return h
}

// Write implements io.Writer.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the ObjectID computed so far.
func (h *Hasher) Sum() ObjectID {
	var out ObjectID
	h.h.Sum(out[:0])
	return out
}

func writeHeader(h hash.Hash, t ObjectType, size int64) {
	h.Write([]byte(t.String()))
	h.Write(spaceByte)
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write(nulByte)
}

var (
	spaceByte = []byte{' '}
	nulByte   = []byte{0}
)

// ComputeHash is a convenience wrapper computing the id of a complete
// in-memory payload.
func ComputeHash(t ObjectType, payload []byte) ObjectID {
	h := NewHasher(t, int64(len(payload)))
	h.Write(payload)
	return h.Sum()
}

// hasherPool recycles Hasher's underlying hash.Hash to avoid repeated
// sha1cd initialization cost on the hot path (delta resolution during pack
// indexing computes one hash per object).
var hasherPool = sync.Pool{
	New: func() interface{} { return sha1cd.New() },
}

func getPooledHash() hash.Hash {
	return hasherPool.Get().(hash.Hash)
}

func putPooledHash(h hash.Hash) {
	h.Reset()
	hasherPool.Put(h)
}

// NewPooledHasher is like NewHasher but borrows its hash.Hash from a shared
// pool; callers must call Release exactly once when done instead of letting
// it be garbage collected.
func NewPooledHasher(t ObjectType, size int64) *PooledHasher {
	h := getPooledHash()
	h.Reset()
	writeHeader(h, t, size)
	return &PooledHasher{h: h}
}

// PooledHasher is a Hasher whose resources must be explicitly released.
type PooledHasher struct{ h hash.Hash }

func (p *PooledHasher) Write(b []byte) (int, error) { return p.h.Write(b) }

func (p *PooledHasher) Sum() ObjectID {
	var out ObjectID
	p.h.Sum(out[:0])
	return out
}

// Release returns the underlying hash.Hash to the shared pool.
func (p *PooledHasher) Release() { putPooledHash(p.h) }
