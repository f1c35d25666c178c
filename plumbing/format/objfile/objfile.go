// Package objfile reads and writes a single loose object file: the
// zlib-deflated concatenation of "<type> SP <size> NUL <payload>" that Git
// stores at objects/XX/YYYY...
package objfile

import (
	"bufio"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bluestreak/bgit/plumbing"
)

var (
	// ErrHeader is returned when the inflated stream does not start with a
	// well-formed "<type> SP <size> NUL" header.
	ErrHeader = errors.New("objfile: invalid header")
)

// Reader inflates a loose object stream and exposes its header followed by
// its payload.
type Reader struct {
	zr     io.ReadCloser
	typ    plumbing.ObjectType
	size   int64
	read   int64
}

// NewReader wraps r (the raw file contents) and parses the header eagerly.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHeader, err)
	}

	rd := &Reader{zr: zr}
	if err := rd.readHeader(); err != nil {
		_ = zr.Close()
		return nil, err
	}

	return rd, nil
}

func (r *Reader) readHeader() error {
	br := bufio.NewReader(r.zr)

	typ, err := br.ReadString(' ')
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeader, err)
	}
	typ = typ[:len(typ)-1]

	t, err := plumbing.ParseObjectType(typ)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeader, err)
	}
	r.typ = t

	sizeStr, err := br.ReadString(0)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHeader, err)
	}
	sizeStr = sizeStr[:len(sizeStr)-1]

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad size %q", ErrHeader, sizeStr)
	}
	r.size = size

	// Anything buffered in br beyond the header belongs to the payload;
	// replace r.zr so Read below sees it without rebuffering.
	r.zr = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(br, r.zr), r.zr}

	return nil
}

// Header returns the object's declared type and size.
func (r *Reader) Header() (plumbing.ObjectType, int64) { return r.typ, r.size }

// Read implements io.Reader over the payload only (the header has already
// been consumed by NewReader).
func (r *Reader) Read(p []byte) (int, error) {
	if r.read >= r.size {
		return 0, io.EOF
	}
	if max := r.size - r.read; int64(len(p)) > max {
		p = p[:max]
	}
	n, err := r.zr.Read(p)
	r.read += int64(n)
	return n, err
}

// Close releases the underlying inflate stream.
func (r *Reader) Close() error { return r.zr.Close() }

// Writer deflates a "<type> SP <size> NUL <payload>" stream to w, computing
// the object's id as it goes.
type Writer struct {
	raw    io.Writer
	zw     *zlib.Writer
	hasher *plumbing.Hasher
	size   int64
	pos    int64
}

// NewWriter wraps w (which will receive the raw, deflated bytes).
func NewWriter(w io.Writer) *Writer {
	return &Writer{raw: w}
}

// WriteHeader must be called exactly once, before any Write, declaring the
// object's type and payload size.
func (w *Writer) WriteHeader(t plumbing.ObjectType, size int64) error {
	if w.zw != nil {
		return fmt.Errorf("objfile: header already written")
	}

	w.size = size
	w.hasher = plumbing.NewHasher(t, size)
	w.zw = zlib.NewWriter(w.raw)

	header := fmt.Sprintf("%s %d", t, size)
	if _, err := w.zw.Write([]byte(header)); err != nil {
		return err
	}
	_, err := w.zw.Write([]byte{0})
	return err
}

// Write streams payload bytes; their count must exactly match the size
// passed to WriteHeader by the time Close is called.
func (w *Writer) Write(p []byte) (int, error) {
	if w.pos+int64(len(p)) > w.size {
		return 0, fmt.Errorf("objfile: write exceeds declared size %d", w.size)
	}

	n, err := w.zw.Write(p)
	w.pos += int64(n)
	w.hasher.Write(p[:n])
	return n, err
}

// Hash returns the id computed from the header and all bytes written so
// far. Valid only after the declared size has been fully written.
func (w *Writer) Hash() plumbing.ObjectID { return w.hasher.Sum() }

// Close flushes the deflate stream. It is an error to Close before the
// declared size has been fully written.
func (w *Writer) Close() error {
	if w.pos != w.size {
		return fmt.Errorf("objfile: wrote %d bytes, declared %d", w.pos, w.size)
	}
	return w.zw.Close()
}
