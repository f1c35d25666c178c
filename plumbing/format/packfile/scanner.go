package packfile

import (
	"bufio"
	"compress/zlib"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/pjbgf/sha1cd"

	"github.com/bluestreak/bgit/plumbing"
)

// ErrUnexpectedEndOfStream is returned when the pack stream ends before the
// declared object count is satisfied.
var ErrUnexpectedEndOfStream = errors.New("packfile: unexpected end of stream")

// ObjectEntry describes one object as seen during the sequential scan,
// before any delta has been resolved. This is exactly the per-entry record
// spec.md §4.2 step 2 asks for: "{offset, type, unresolved-base}".
type ObjectEntry struct {
	Offset        int64
	Type          plumbing.ObjectType // OFSDeltaObject / REFDeltaObject for undelfied entries
	Size          int64               // declared size: payload size for non-delta, target size is unknown yet for delta
	ContentOffset int64               // offset of the first byte of the compressed payload
	CRC32         uint32

	// Exactly one of these is valid, selected by Type.
	BaseOffset int64         // for OFSDeltaObject: absolute offset of the base
	BaseRef    plumbing.ObjectID // for REFDeltaObject
}

// countingReader tracks how many bytes have been read through it, a
// per-object CRC32 (reset between objects, feeding the v2 index) and a
// whole-stream SHA-1 (never reset, verified against the pack trailer).
type countingReader struct {
	r   *bufio.Reader
	pos int64
	crc hash32
	sha hash20
}

type hash32 interface {
	io.Writer
	Sum32() uint32
	Reset()
}

type hash20 interface {
	io.Writer
	Sum(b []byte) []byte
}

func newCountingReader(r io.Reader) *countingReader {
	return &countingReader{r: bufio.NewReaderSize(r, 32*1024), crc: crc32.NewIEEE(), sha: sha1cd.New()}
}

func (c *countingReader) ReadByte() (byte, error) {
	b, err := c.r.ReadByte()
	if err == nil {
		c.pos++
		c.crc.Write([]byte{b})
		c.sha.Write([]byte{b})
	}
	return b, err
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += int64(n)
	c.crc.Write(p[:n])
	c.sha.Write(p[:n])
	return n, err
}

// Scanner performs the sequential, single-pass scan over a pack stream that
// feeds the indexer's first pass (spec.md §4.2 steps 1–3).
type Scanner struct {
	r       *countingReader
	header  Header
	scanned uint32
}

// NewScanner wraps r, which must start at the pack's "PACK" signature.
func NewScanner(r io.Reader) (*Scanner, error) {
	cr := newCountingReader(r)
	h, err := ReadHeader(cr)
	if err != nil {
		return nil, err
	}
	return &Scanner{r: cr, header: h}, nil
}

// Header returns the parsed pack preamble.
func (s *Scanner) Header() Header { return s.header }

// Pos returns the number of pack bytes consumed so far.
func (s *Scanner) Pos() int64 { return s.r.pos }

// NextObject reads one object's header and fully consumes (without
// materializing) its compressed payload, returning the entry record and
// resetting the running CRC32 for the next call.
func (s *Scanner) NextObject() (ObjectEntry, error) {
	if s.scanned >= s.header.ObjectsQty {
		return ObjectEntry{}, io.EOF
	}

	s.r.crc.Reset()
	offset := s.r.pos

	t, size, err := ReadObjectHeader(s.r)
	if err != nil {
		return ObjectEntry{}, fmt.Errorf("%w: object header at %d: %v", ErrUnexpectedEndOfStream, offset, err)
	}

	entry := ObjectEntry{Offset: offset, Type: t, Size: size}

	switch t {
	case plumbing.OFSDeltaObject:
		backward, err := ReadOffsetDelta(s.r)
		if err != nil {
			return ObjectEntry{}, err
		}
		entry.BaseOffset = offset - backward
		if entry.BaseOffset < 0 {
			return ObjectEntry{}, fmt.Errorf("%w: negative base offset", plumbing.ErrObjectCorrupt)
		}
	case plumbing.REFDeltaObject:
		var idBuf [plumbing.Size]byte
		if _, err := io.ReadFull(s.r, idBuf[:]); err != nil {
			return ObjectEntry{}, err
		}
		id, err := plumbing.FromBytes(idBuf[:])
		if err != nil {
			return ObjectEntry{}, err
		}
		entry.BaseRef = id
	}

	entry.ContentOffset = s.r.pos

	// Run inflate to its end to learn the compressed length, without
	// retaining the inflated bytes (spec.md §4.2 step 2: "decode only ...
	// the compressed stream length, by running inflate to its end").
	zr, err := zlib.NewReader(s.r)
	if err != nil {
		return ObjectEntry{}, fmt.Errorf("%w: zlib header: %v", plumbing.ErrObjectCorrupt, err)
	}
	n, err := io.Copy(io.Discard, zr)
	if err != nil {
		return ObjectEntry{}, fmt.Errorf("%w: inflate: %v", plumbing.ErrObjectCorrupt, err)
	}
	if err := zr.Close(); err != nil {
		return ObjectEntry{}, fmt.Errorf("%w: inflate trailer: %v", plumbing.ErrObjectCorrupt, err)
	}

	if t == plumbing.CommitObject || t == plumbing.TreeObject || t == plumbing.BlobObject || t == plumbing.TagObject {
		if n != size {
			return ObjectEntry{}, fmt.Errorf("%w: declared size %d, inflated %d", plumbing.ErrObjectCorrupt, size, n)
		}
	}

	entry.CRC32 = s.r.crc.Sum32()
	s.scanned++

	return entry, nil
}

// ReadTrailer consumes the pack's trailing 20-byte SHA-1 and verifies it
// against the scanner's own running digest of everything preceding it
// (spec.md §4.2 step 3). The scanner must have consumed exactly ObjectsQty
// objects before this is called.
func (s *Scanner) ReadTrailer() (plumbing.ObjectID, error) {
	computed, err := plumbing.FromBytes(s.r.sha.Sum(nil))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	var trailer [plumbing.Size]byte
	if _, err := io.ReadFull(s.r.r, trailer[:]); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("%w: trailer: %v", ErrUnexpectedEndOfStream, err)
	}

	id, err := plumbing.FromBytes(trailer[:])
	if err != nil {
		return plumbing.ZeroHash, err
	}

	if id != computed {
		return plumbing.ZeroHash, fmt.Errorf("%w: pack trailer mismatch", plumbing.ErrObjectCorrupt)
	}

	return id, nil
}
