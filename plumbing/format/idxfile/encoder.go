package idxfile

import (
	"encoding/binary"
	"io"

	"github.com/pjbgf/sha1cd"

	"github.com/bluestreak/bgit/plumbing"
)

// Version selects which on-disk index format to write.
type Version int

const (
	VersionV1 Version = 1
	VersionV2 Version = 2
)

// Encoder writes a MemoryIndex in either v1 or v2 format, tracking its own
// running SHA-1 so it can append the index trailer (spec.md §4.2 step 7).
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes idx, appending packChecksum (the pack's own trailer hash)
// before the index's own trailer.
func (e *Encoder) Encode(idx *MemoryIndex, version Version, packChecksum plumbing.ObjectID) (plumbing.ObjectID, error) {
	h := sha1cd.New()
	mw := io.MultiWriter(e.w, h)

	if version == VersionV2 {
		if _, err := mw.Write(Magic[:]); err != nil {
			return plumbing.ZeroHash, err
		}
		var v [4]byte
		binary.BigEndian.PutUint32(v[:], VersionSupported)
		if _, err := mw.Write(v[:]); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	fanoutBuf := make([]byte, fanoutSize)
	writeFanout(fanoutBuf, idx.fanout)
	if _, err := mw.Write(fanoutBuf); err != nil {
		return plumbing.ZeroHash, err
	}

	if version == VersionV1 {
		if err := writeV1Entries(mw, idx.entries); err != nil {
			return plumbing.ZeroHash, err
		}
	} else {
		if err := writeV2Tables(mw, idx.entries); err != nil {
			return plumbing.ZeroHash, err
		}
	}

	if _, err := mw.Write(packChecksum[:]); err != nil {
		return plumbing.ZeroHash, err
	}

	var trailer plumbing.ObjectID
	copy(trailer[:], h.Sum(nil))
	if _, err := e.w.Write(trailer[:]); err != nil {
		return plumbing.ZeroHash, err
	}

	return trailer, nil
}

func writeV1Entries(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		var rec [4 + plumbing.Size]byte
		binary.BigEndian.PutUint32(rec[:4], uint32(e.Offset))
		copy(rec[4:], e.ID[:])
		if _, err := w.Write(rec[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeV2Tables(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := w.Write(e.ID[:]); err != nil {
			return err
		}
	}

	for _, e := range entries {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], e.CRC32)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}

	var large []int64
	for _, e := range entries {
		var b [4]byte
		if e.Offset >= (1 << 31) {
			binary.BigEndian.PutUint32(b[:], uint32(0x80000000|len(large)))
			large = append(large, e.Offset)
		} else {
			binary.BigEndian.PutUint32(b[:], uint32(e.Offset))
		}
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}

	for _, off := range large {
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(off))
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}

	return nil
}

// ShouldUseV2 implements spec.md §4.2 step 7's default rule: v2 whenever any
// offset is at or beyond 2^31, or the caller asked for CRC32 support,
// otherwise whatever the caller's configured default is.
func ShouldUseV2(entries []Entry, wantCRC32 bool, configuredDefault Version) Version {
	if wantCRC32 {
		return VersionV2
	}
	for _, e := range entries {
		if e.Offset >= (1 << 31) {
			return VersionV2
		}
	}
	return configuredDefault
}
