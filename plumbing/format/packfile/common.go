// Package packfile implements the pack stream format (spec.md §3, §4.1,
// §4.2): the header, the per-object variable-length header, delta chain
// resolution, and the indexer that turns an incoming pack stream into a
// sorted index.
package packfile

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/bluestreak/bgit/plumbing"
)

// Signature is the 4-byte magic at the start of every pack file.
var Signature = [4]byte{'P', 'A', 'C', 'K'}

// SupportedVersions lists the pack format versions this package can read.
var SupportedVersions = map[uint32]bool{2: true, 3: true}

var (
	ErrBadSignature   = errors.New("packfile: bad signature")
	ErrUnsupportedVer = errors.New("packfile: unsupported version")
	ErrEmptyPackfile  = errors.New("packfile: empty packfile")
)

// Header is the fixed-size preamble: "PACK" + version + object count.
type Header struct {
	Version    uint32
	ObjectsQty uint32
}

// ReadHeader parses the 12-byte pack preamble.
func ReadHeader(r io.Reader) (Header, error) {
	var buf [12]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Header{}, ErrEmptyPackfile
		}
		return Header{}, err
	}

	var sig [4]byte
	copy(sig[:], buf[:4])
	if sig != Signature {
		return Header{}, fmt.Errorf("%w: got %q", ErrBadSignature, sig)
	}

	version := binary.BigEndian.Uint32(buf[4:8])
	if !SupportedVersions[version] {
		return Header{}, fmt.Errorf("%w: %d", ErrUnsupportedVer, version)
	}

	return Header{
		Version:    version,
		ObjectsQty: binary.BigEndian.Uint32(buf[8:12]),
	}, nil
}

// WriteHeader serializes the pack preamble.
func WriteHeader(w io.Writer, objectsQty uint32) error {
	var buf [12]byte
	copy(buf[:4], Signature[:])
	binary.BigEndian.PutUint32(buf[4:8], 2)
	binary.BigEndian.PutUint32(buf[8:12], objectsQty)
	_, err := w.Write(buf[:])
	return err
}

// objectHeaderTypeMask/lenMask implement the packed object header's
// variable-length encoding: 3-bit type, then a base-128 varint for size,
// continuation indicated by the top bit of each byte (spec.md §3).
const (
	maskType     = 0x70
	maskFirstLen = 0x0f
	maskContinue = 0x80
	maskLen      = 0x7f

	typeShift = 4
)

// ReadObjectHeader decodes the type and declared (undeltified payload, or
// post-delta target) size at the current position of r. The number of header
// bytes consumed is not returned.
func ReadObjectHeader(r io.ByteReader) (plumbing.ObjectType, int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, 0, err
	}

	t := plumbing.ObjectType((b & maskType) >> typeShift)
	size := int64(b & maskFirstLen)
	shift := uint(4)

	for b&maskContinue != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		size |= int64(b&maskLen) << shift
		shift += 7
	}

	return t, size, nil
}

// WriteObjectHeader encodes the type+size header for a to-be-written
// object.
func WriteObjectHeader(w io.ByteWriter, t plumbing.ObjectType, size int64) error {
	b := byte(t) << typeShift
	b |= byte(size & maskFirstLen)
	size >>= 4

	for size != 0 {
		if err := w.WriteByte(b | maskContinue); err != nil {
			return err
		}
		b = byte(size & maskLen)
		size >>= 7
	}

	return w.WriteByte(b)
}

// ReadOffsetDelta decodes the OFS_DELTA backward offset encoding: a
// base-128 big-endian varint, each continuation byte biased by +1 (Git's
// own peculiar encoding, see pack-format documentation).
func ReadOffsetDelta(r io.ByteReader) (int64, error) {
	b, err := r.ReadByte()
	if err != nil {
		return 0, err
	}

	offset := int64(b & maskLen)
	for b&maskContinue != 0 {
		b, err = r.ReadByte()
		if err != nil {
			return 0, err
		}
		offset++
		offset = (offset << 7) | int64(b&maskLen)
	}

	return offset, nil
}

// WriteOffsetDelta encodes a backward offset using the same biased varint.
func WriteOffsetDelta(w io.ByteWriter, offset int64) error {
	var stack []byte
	stack = append(stack, byte(offset&maskLen))
	offset >>= 7
	for offset != 0 {
		offset--
		stack = append(stack, byte(offset&maskLen)|maskContinue)
		offset >>= 7
	}

	for i := len(stack) - 1; i >= 0; i-- {
		if err := w.WriteByte(stack[i]); err != nil {
			return err
		}
	}
	return nil
}
