// Package idxfile implements the pack index formats (spec.md §3): a
// binary-searchable mapping from ObjectID to pack offset, in either the v1
// (fanout + entries) or v2 (fanout + names + CRC32 + offsets + 64-bit
// overflow table) on-disk layout.
package idxfile

import (
	"encoding/binary"
	"errors"
	"sort"

	"github.com/bluestreak/bgit/plumbing"
)

const (
	// VersionSupported is the only pack index version this package can
	// write/read beyond v1.
	VersionSupported = 2

	fanoutEntries = 256
	fanoutSize    = fanoutEntries * 4
	v2Magic0      = 0xff
	v2MagicLen    = 4
)

// Magic is the 4-byte signature ("\377tOc") that distinguishes a v2 index
// from a v1 one, which has no magic and starts directly with the fanout
// table.
var Magic = [4]byte{0xff, 't', 'O', 'c'}

var (
	ErrInvalidIndex  = errors.New("idxfile: invalid index")
	ErrEntryNotFound = errors.New("idxfile: entry not found")
)

// Entry is one (id, offset, optional CRC32) triple recorded by the index.
type Entry struct {
	ID     plumbing.ObjectID
	Offset int64
	CRC32  uint32 // zero if the source was a v1 index (no CRC32 support)
}

// MemoryIndex is an in-memory, binary-searchable pack index: the shared
// representation both the v1 and v2 decoders populate, and both the v1 and
// v2 encoders serialize from. Entries are kept sorted by ID; the fanout
// table is computed by NewMemoryIndex, or read from disk by Decode.
type MemoryIndex struct {
	fanout  [fanoutEntries]uint32 // cumulative count of ids whose first byte <= i
	entries []Entry               // sorted by ID
}

// NewMemoryIndex builds an index from an unsorted entry set, computing the
// fanout table.
func NewMemoryIndex(entries []Entry) *MemoryIndex {
	idx := &MemoryIndex{entries: entries}
	idx.sort()
	return idx
}

func (idx *MemoryIndex) sort() {
	sort.Slice(idx.entries, func(i, j int) bool {
		return idx.entries[i].ID.Compare(idx.entries[j].ID) < 0
	})

	var count uint32
	fb := 0
	for i, e := range idx.entries {
		for int(e.ID[0]) > fb {
			idx.fanout[fb] = count
			fb++
		}
		count = uint32(i) + 1
	}
	for fb < fanoutEntries {
		idx.fanout[fb] = count
		fb++
	}
}

// Count returns the number of objects indexed.
func (idx *MemoryIndex) Count() int { return len(idx.entries) }

// Entries returns the entries sorted by ID. The slice must not be mutated.
func (idx *MemoryIndex) Entries() []Entry { return idx.entries }

// FindOffset performs a fanout-assisted binary search (spec.md §8 property
// 12: O(log N) comparisons even on a miss).
func (idx *MemoryIndex) FindOffset(id plumbing.ObjectID) (int64, error) {
	e, err := idx.find(id)
	if err != nil {
		return 0, err
	}
	return e.Offset, nil
}

// FindCRC32 returns the stored CRC32 for id, if this index carries CRC32
// data (v2 indexes do; v1 indexes loaded from disk report zero).
func (idx *MemoryIndex) FindCRC32(id plumbing.ObjectID) (uint32, error) {
	e, err := idx.find(id)
	if err != nil {
		return 0, err
	}
	return e.CRC32, nil
}

// Contains reports whether id is present without the caller needing to
// handle ErrEntryNotFound.
func (idx *MemoryIndex) Contains(id plumbing.ObjectID) bool {
	_, err := idx.find(id)
	return err == nil
}

func (idx *MemoryIndex) find(id plumbing.ObjectID) (Entry, error) {
	lo := 0
	if id[0] > 0 {
		lo = int(idx.fanout[id[0]-1])
	}
	hi := int(idx.fanout[id[0]])

	i := sort.Search(hi-lo, func(i int) bool {
		return idx.entries[lo+i].ID.Compare(id) >= 0
	}) + lo

	if i < hi && idx.entries[i].ID == id {
		return idx.entries[i], nil
	}
	return Entry{}, ErrEntryNotFound
}

// writeFanout serializes the 256-entry cumulative-count table in the layout
// shared by v1 and v2.
func writeFanout(buf []byte, fanout [fanoutEntries]uint32) {
	for i, c := range fanout {
		binary.BigEndian.PutUint32(buf[i*4:], c)
	}
}

func readFanout(buf []byte) (fanout [fanoutEntries]uint32) {
	for i := range fanout {
		fanout[i] = binary.BigEndian.Uint32(buf[i*4:])
	}
	return
}
