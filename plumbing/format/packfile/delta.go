package packfile

import (
	"bytes"
	"errors"
	"io"
)

// The delta instruction stream format (spec.md §4.1 "Delta instruction
// format"): two LEB128 sizes (base size, result size) followed by a
// sequence of copy/insert instructions. Grounded on the teacher's
// plumbing/format/packfile/patch_delta.go, adapted to this module's
// plumbing.EncodedObject-free, byte-slice-first API.

var (
	ErrInvalidDelta = errors.New("packfile: invalid delta")
	ErrDeltaCmd     = errors.New("packfile: unrecognized delta command")
)

const (
	maxCopySize = 0x10000
	minDeltaLen = 4
)

type bitOffset struct {
	mask  byte
	shift uint
}

var copyOffsetBits = []bitOffset{
	{0x01, 0}, {0x02, 8}, {0x04, 16}, {0x08, 24},
}

var copySizeBits = []bitOffset{
	{0x10, 0}, {0x20, 8}, {0x40, 16},
}

// decodeLEB128 decodes Git's little-endian base-128 varint (unrelated to
// the OFS_DELTA big-endian-biased varint in common.go) used inside delta
// payloads for base/result sizes.
func decodeLEB128(b []byte) (uint64, []byte) {
	var v uint64
	var shift uint
	for i, c := range b {
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, b[i+1:]
		}
		shift += 7
	}
	return v, nil
}

// PatchDelta applies delta against src and returns the reconstructed
// target bytes.
func PatchDelta(src, delta []byte) ([]byte, error) {
	if len(src) == 0 || len(delta) < minDeltaLen {
		return nil, ErrInvalidDelta
	}

	srcSz, rest := decodeLEB128(delta)
	if int(srcSz) != len(src) {
		return nil, ErrInvalidDelta
	}

	targetSz, rest := decodeLEB128(rest)

	dst := bytes.NewBuffer(make([]byte, 0, targetSz))

	remaining := targetSz
	for remaining > 0 {
		if len(rest) == 0 {
			return nil, ErrInvalidDelta
		}

		cmd := rest[0]
		rest = rest[1:]

		switch {
		case cmd&0x80 != 0: // copy from source
			var offset, size uint64
			var err error
			offset, rest, err = decodeBits(cmd, rest, copyOffsetBits)
			if err != nil {
				return nil, err
			}
			size, rest, err = decodeBits(cmd, rest, copySizeBits)
			if err != nil {
				return nil, err
			}
			if size == 0 {
				size = maxCopySize
			}
			if size > remaining || offset+size > srcSz || offset+size < offset {
				return nil, ErrInvalidDelta
			}
			dst.Write(src[offset : offset+size])
			remaining -= size

		case cmd != 0: // insert: low 7 bits are a literal length
			size := uint64(cmd)
			if size > remaining || uint64(len(rest)) < size {
				return nil, ErrInvalidDelta
			}
			dst.Write(rest[:size])
			rest = rest[size:]
			remaining -= size

		default:
			return nil, ErrDeltaCmd
		}
	}

	return dst.Bytes(), nil
}

func decodeBits(cmd byte, delta []byte, bits []bitOffset) (uint64, []byte, error) {
	var v uint64
	for _, b := range bits {
		if cmd&b.mask != 0 {
			if len(delta) == 0 {
				return 0, nil, ErrInvalidDelta
			}
			v |= uint64(delta[0]) << b.shift
			delta = delta[1:]
		}
	}
	return v, delta, nil
}

// DeltaHeaderSizes reads just the base/result sizes off the front of a
// delta payload, used by the parser to size buffers before fully decoding.
func DeltaHeaderSizes(r io.ByteReader) (baseSize, resultSize uint64, err error) {
	baseSize, err = readLEB128FromReader(r)
	if err != nil {
		return 0, 0, err
	}
	resultSize, err = readLEB128FromReader(r)
	return baseSize, resultSize, err
}

func readLEB128FromReader(r io.ByteReader) (uint64, error) {
	var v uint64
	var shift uint
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return v, nil
		}
		shift += 7
	}
}
