package packfile

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/cache"
)

// Index is the subset of idxfile.MemoryIndex the pack reader needs: a
// forward id->offset lookup. Kept as an interface here so packfile does not
// import idxfile (idxfile already depends on plumbing only).
type Index interface {
	FindOffset(plumbing.ObjectID) (int64, error)
}

// ExternalResolver is consulted for REF_DELTA bases that are not present in
// this pack — used both by the ordinary reader (a thin pack read through a
// Repository that holds other packs/loose objects) and, during indexing, by
// the thin-pack fixer (spec.md §4.2 step 6).
type ExternalResolver interface {
	EncodedObject(plumbing.ObjectType, plumbing.ObjectID) (plumbing.EncodedObject, error)
}

// Pack is a random-access reader over a single pack file (C4): given an
// offset, it returns the fully reconstructed object, following OFS_DELTA/
// REF_DELTA chains iteratively through a bounded stack of frames and
// through the shared window cache (C2).
type Pack struct {
	name     string
	size     int64
	index    Index
	window   *cache.WindowCache
	external ExternalResolver
	deltaCache *deltaBaseCache
}

// NewPack builds a Pack. name must already be Register-ed with window
// against a cache.Source for the underlying file.
func NewPack(name string, size int64, index Index, window *cache.WindowCache, external ExternalResolver) *Pack {
	return &Pack{
		name:       name,
		size:       size,
		index:      index,
		window:     window,
		external:   external,
		deltaCache: newDeltaBaseCache(32 * cache.MiByte),
	}
}

// Get resolves id to its fully reconstructed canonical bytes.
func (p *Pack) Get(id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	offset, err := p.index.FindOffset(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, id)
	}
	return p.GetByOffset(offset, id)
}

// GetByOffset reconstructs the object stored at offset. wantID, if not the
// zero hash, is verified against the reconstructed payload's computed id.
func (p *Pack) GetByOffset(offset int64, wantID plumbing.ObjectID) (plumbing.EncodedObject, error) {
	type frame struct {
		offset     int64
		deltaBytes []byte // nil for the base frame
	}

	var frames []frame
	cur := offset

	var baseType plumbing.ObjectType
	var baseBytes []byte

	for {
		if cached, ok := p.deltaCache.get(p.name, cur); ok {
			baseType = cached.typ
			baseBytes = cached.data
			break
		}

		t, size, contentOffset, baseOffset, baseRef, err := p.readHeader(cur)
		if err != nil {
			return nil, err
		}

		switch t {
		case plumbing.OFSDeltaObject:
			payload, err := p.inflateAt(contentOffset, -1)
			if err != nil {
				return nil, err
			}
			frames = append(frames, frame{offset: cur, deltaBytes: payload})
			cur = baseOffset
			continue

		case plumbing.REFDeltaObject:
			payload, err := p.inflateAt(contentOffset, -1)
			if err != nil {
				return nil, err
			}
			if baseOffset, err := p.index.FindOffset(baseRef); err == nil {
				frames = append(frames, frame{offset: cur, deltaBytes: payload})
				cur = baseOffset
				continue
			}
			if p.external == nil {
				return nil, fmt.Errorf("%w: thin base %s", plumbing.ErrObjectNotFound, baseRef)
			}
			base, err := p.external.EncodedObject(plumbing.InvalidObject, baseRef)
			if err != nil {
				return nil, fmt.Errorf("%w: thin base %s: %v", plumbing.ErrObjectNotFound, baseRef, err)
			}
			r, err := base.Reader()
			if err != nil {
				return nil, err
			}
			baseBytes, err = io.ReadAll(r)
			_ = r.Close()
			if err != nil {
				return nil, err
			}
			baseType = base.Type()
			frames = append(frames, frame{offset: cur, deltaBytes: payload})
			goto apply

		default:
			baseBytes, err = p.inflateAt(contentOffset, size)
			if err != nil {
				return nil, err
			}
			baseType = t
			goto apply
		}
	}

apply:
	// Apply collected deltas from the base outward (frames was built
	// target-to-base, so walk it in reverse).
	result := baseBytes
	resultType := baseType
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		if f.deltaBytes == nil {
			continue
		}
		patched, err := PatchDelta(result, f.deltaBytes)
		if err != nil {
			return nil, fmt.Errorf("%w: at offset %d: %v", plumbing.ErrObjectCorrupt, f.offset, err)
		}
		result = patched
		p.deltaCache.put(p.name, f.offset, resultType, result)
	}

	id := plumbing.ComputeHash(resultType, result)
	if !wantID.IsZero() && id != wantID {
		return nil, fmt.Errorf("%w: computed %s, wanted %s", plumbing.ErrObjectCorrupt, id, wantID)
	}

	return plumbing.NewMemoryObject(resultType, result), nil
}

// readHeader decodes the per-object header at offset using the window
// cache, returning enough bytes-at-a-time via a small byte reader adapter.
func (p *Pack) readHeader(offset int64) (t plumbing.ObjectType, size int64, contentOffset int64, baseOffset int64, baseRef plumbing.ObjectID, err error) {
	cur, err := p.window.Get(p.name, offset, 32)
	if err != nil {
		return 0, 0, 0, 0, plumbing.ZeroHash, err
	}
	defer cur.Close()

	br := &windowByteReader{data: cur.Bytes()}
	t, size, err = ReadObjectHeader(br)
	if err != nil {
		return 0, 0, 0, 0, plumbing.ZeroHash, err
	}

	switch t {
	case plumbing.OFSDeltaObject:
		back, err2 := ReadOffsetDelta(br)
		if err2 != nil {
			return 0, 0, 0, 0, plumbing.ZeroHash, err2
		}
		baseOffset = offset - back
		contentOffset = offset + int64(br.pos)
	case plumbing.REFDeltaObject:
		if br.pos+plumbing.Size > len(br.data) {
			// Unlikely with a 32-byte peek; re-fetch a larger window.
			cur2, err2 := p.window.Get(p.name, offset, 64)
			if err2 != nil {
				return 0, 0, 0, 0, plumbing.ZeroHash, err2
			}
			defer cur2.Close()
			br = &windowByteReader{data: cur2.Bytes()}
			_, _, _ = ReadObjectHeader(br)
		}
		id, err2 := plumbing.FromBytes(br.data[br.pos : br.pos+plumbing.Size])
		if err2 != nil {
			return 0, 0, 0, 0, plumbing.ZeroHash, err2
		}
		baseRef = id
		br.pos += plumbing.Size
		contentOffset = offset + int64(br.pos)
	default:
		contentOffset = offset + int64(br.pos)
	}

	return t, size, contentOffset, baseOffset, baseRef, nil
}

// inflateAt fully inflates the zlib stream starting at off. expectedSize,
// if >= 0, is used only to preallocate the output buffer.
func (p *Pack) inflateAt(off int64, expectedSize int64) ([]byte, error) {
	// zlib streams are self-terminating; stream straight from a
	// window-backed reader that refills from the cache as needed.
	src := &windowStreamReader{pack: p, off: off}
	zr, err := zlib.NewReader(bufio.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header: %v", plumbing.ErrObjectCorrupt, err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if expectedSize > 0 {
		buf.Grow(int(expectedSize))
	}
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, fmt.Errorf("%w: inflate at %d: %v", plumbing.ErrObjectCorrupt, off, err)
	}

	return buf.Bytes(), nil
}

// windowByteReader is a io.ByteReader over an already-fetched window slice.
type windowByteReader struct {
	data []byte
	pos  int
}

func (r *windowByteReader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// windowStreamReader adapts the window cache's fixed-size borrows into a
// plain streaming io.Reader by re-requesting successive windows as the
// cursor advances, so zlib.NewReader never sees a short read before EOF.
type windowStreamReader struct {
	pack *Pack
	off  int64
}

func (s *windowStreamReader) Read(p []byte) (int, error) {
	want := len(p)
	if want > 4096 {
		want = 4096
	}
	if s.off >= s.pack.size {
		return 0, io.EOF
	}
	if int64(want) > s.pack.size-s.off {
		want = int(s.pack.size - s.off)
	}

	cur, err := s.pack.window.Get(s.pack.name, s.off, want)
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	n := copy(p, cur.Bytes()[:want])
	s.off += int64(n)
	return n, nil
}
