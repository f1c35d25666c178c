package idxfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pjbgf/sha1cd"

	"github.com/bluestreak/bgit/plumbing"
)

// Decode reads either a v1 or v2 pack index from r, auto-detecting the
// format from the leading magic (spec.md §3).
func Decode(r io.Reader) (*MemoryIndex, error) {
	br := bufio.NewReader(r)

	var lead [4]byte
	if _, err := io.ReadFull(br, lead[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}

	if lead == Magic {
		return decodeV2(br)
	}

	return decodeV1(lead, br)
}

func decodeV1(lead [4]byte, r io.Reader) (*MemoryIndex, error) {
	fanoutBuf := make([]byte, fanoutSize)
	copy(fanoutBuf, lead[:])
	if _, err := io.ReadFull(r, fanoutBuf[4:]); err != nil {
		return nil, fmt.Errorf("%w: fanout: %v", ErrInvalidIndex, err)
	}

	fanout := readFanout(fanoutBuf)
	count := int(fanout[fanoutEntries-1])

	entries := make([]Entry, count)
	rec := make([]byte, 4+plumbing.Size)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(r, rec); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidIndex, i, err)
		}
		entries[i].Offset = int64(binary.BigEndian.Uint32(rec[:4]))
		id, err := plumbing.FromBytes(rec[4:])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
		}
		entries[i].ID = id
	}

	// Pack trailer hash + index trailer hash follow; read and discard (the
	// caller that cares about pack integrity checks the pack's own
	// trailer separately against the pack bytes).
	var trailers [2 * plumbing.Size]byte
	if _, err := io.ReadFull(r, trailers[:]); err != nil {
		return nil, fmt.Errorf("%w: trailer: %v", ErrInvalidIndex, err)
	}

	idx := &MemoryIndex{fanout: fanout, entries: entries}
	return idx, nil
}

func decodeV2(tr io.Reader) (*MemoryIndex, error) {
	var version [4]byte
	if _, err := io.ReadFull(tr, version[:]); err != nil {
		return nil, fmt.Errorf("%w: version: %v", ErrInvalidIndex, err)
	}
	if binary.BigEndian.Uint32(version[:]) != VersionSupported {
		return nil, fmt.Errorf("%w: unsupported version %d", plumbing.ErrNotSupported, binary.BigEndian.Uint32(version[:]))
	}

	fanoutBuf := make([]byte, fanoutSize)
	if _, err := io.ReadFull(tr, fanoutBuf); err != nil {
		return nil, fmt.Errorf("%w: fanout: %v", ErrInvalidIndex, err)
	}
	fanout := readFanout(fanoutBuf)
	count := int(fanout[fanoutEntries-1])

	ids := make([]plumbing.ObjectID, count)
	idBuf := make([]byte, plumbing.Size)
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(tr, idBuf); err != nil {
			return nil, fmt.Errorf("%w: name %d: %v", ErrInvalidIndex, i, err)
		}
		id, err := plumbing.FromBytes(idBuf)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
		}
		ids[i] = id
	}

	crcs := make([]uint32, count)
	var crcBuf [4]byte
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(tr, crcBuf[:]); err != nil {
			return nil, fmt.Errorf("%w: crc %d: %v", ErrInvalidIndex, i, err)
		}
		crcs[i] = binary.BigEndian.Uint32(crcBuf[:])
	}

	offsets32 := make([]uint32, count)
	var off32Buf [4]byte
	var numLarge int
	for i := 0; i < count; i++ {
		if _, err := io.ReadFull(tr, off32Buf[:]); err != nil {
			return nil, fmt.Errorf("%w: offset32 %d: %v", ErrInvalidIndex, i, err)
		}
		offsets32[i] = binary.BigEndian.Uint32(off32Buf[:])
		if offsets32[i]&0x80000000 != 0 {
			numLarge++
		}
	}

	offsets64 := make([]uint64, numLarge)
	var off64Buf [8]byte
	for i := 0; i < numLarge; i++ {
		if _, err := io.ReadFull(tr, off64Buf[:]); err != nil {
			return nil, fmt.Errorf("%w: offset64 %d: %v", ErrInvalidIndex, i, err)
		}
		offsets64[i] = binary.BigEndian.Uint64(off64Buf[:])
	}

	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		entries[i].ID = ids[i]
		entries[i].CRC32 = crcs[i]
		if offsets32[i]&0x80000000 != 0 {
			idx64 := offsets32[i] &^ 0x80000000
			if int(idx64) >= len(offsets64) {
				return nil, fmt.Errorf("%w: 64-bit offset index out of range", ErrInvalidIndex)
			}
			entries[i].Offset = int64(offsets64[idx64])
		} else {
			entries[i].Offset = int64(offsets32[i])
		}
	}

	// Pack trailer hash.
	var packTrailer [plumbing.Size]byte
	if _, err := io.ReadFull(tr, packTrailer[:]); err != nil {
		return nil, fmt.Errorf("%w: pack trailer: %v", ErrInvalidIndex, err)
	}

	// Index's own trailer: the SHA-1 of everything preceding it. Validating
	// it requires the raw bytes (see ValidateTrailer); ordinary lookups
	// only need to consume it off the stream.
	var idxTrailer [plumbing.Size]byte
	if _, err := io.ReadFull(tr, idxTrailer[:]); err != nil {
		return nil, fmt.Errorf("%w: index trailer: %v", ErrInvalidIndex, err)
	}

	return &MemoryIndex{fanout: fanout, entries: entries}, nil
}

// ValidateTrailer re-reads raw and checks that its SHA-1, excluding the
// final Size bytes, equals the trailer it carries. Used by callers that
// want to validate an index file (not required for ordinary lookups).
func ValidateTrailer(raw []byte) error {
	if len(raw) < plumbing.Size {
		return fmt.Errorf("%w: too short", ErrInvalidIndex)
	}
	want := raw[len(raw)-plumbing.Size:]

	sum := shaSum(raw[:len(raw)-plumbing.Size])
	if !bytes.Equal(sum, want) {
		return fmt.Errorf("%w: trailer mismatch", ErrInvalidIndex)
	}
	return nil
}

func shaSum(b []byte) []byte {
	h := sha1cd.New()
	h.Write(b)
	return h.Sum(nil)
}
