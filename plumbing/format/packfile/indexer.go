package packfile

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/pjbgf/sha1cd"

	"github.com/bluestreak/bgit/internal/trace"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/format/idxfile"
)

// Spill is the random-access sink the indexer writes the incoming pack
// stream to before resolving it (spec.md §4.2 step 1: "the entire byte
// stream is always written to a temporary file first"). storage/filesystem's
// tempBuffer (C13) is the concrete implementation used by the repository;
// tests may use a simple *bytes.Reader-backed stand-in.
type Spill interface {
	io.Writer
	io.ReaderAt
}

// RandomWriteSpill extends Spill with the ability to patch bytes already
// written. FixThinPack needs this to rewrite the pack header's object count
// in place once an external base has been appended (spec.md §4.2 step 6).
type RandomWriteSpill interface {
	Spill
	io.WriterAt
}

// ScanAndSpill copies src into tmp while running the sequential Scanner over
// it, returning every entry's pre-resolution record plus the verified pack
// trailer. tmp accumulates the exact bytes of src so later random-access
// resolution can read compressed payloads back out by offset.
func ScanAndSpill(src io.Reader, tmp Spill) ([]ObjectEntry, plumbing.ObjectID, error) {
	s, err := NewScanner(io.TeeReader(src, tmp))
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}

	entries := make([]ObjectEntry, 0, s.Header().ObjectsQty)
	for {
		e, err := s.NextObject()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, plumbing.ZeroHash, err
		}
		entries = append(entries, e)
	}

	trailer, err := s.ReadTrailer()
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}

	trace.Packfile.Printf("packfile: scanned %d object(s), trailer %s", len(entries), trailer)
	return entries, trailer, nil
}

// Options configures BuildIndex and FixThinPack.
type Options struct {
	// WantCRC32 forces a v2 index even when every offset would fit in v1.
	WantCRC32 bool
	// DefaultVersion is used when neither a 2^31+ offset nor WantCRC32
	// forces v2 (spec.md §4.2 step 7).
	DefaultVersion idxfile.Version
	// External resolves REF_DELTA bases absent from this pack (thin packs,
	// spec.md §4.2 step 6). May be nil for packs known to be non-thin.
	External ExternalResolver
	// FixThin, when true, makes FixThinPack physically append every
	// externally-resolved REF_DELTA base as a new non-delta object at the
	// end of the pack and rewrite its header count and trailer, so the
	// pack on disk is no longer thin. storage/filesystem.WritePack always
	// sets this on its way to committing a pack; left false, BuildIndex's
	// own External fallback below still resolves thin bases for the
	// index it emits, without mutating the pack file itself.
	FixThin bool
}

type resolvedObject struct {
	typ  plumbing.ObjectType
	data []byte
}

// resolveEntries runs the fixed-point OFS_DELTA/REF_DELTA resolution pass
// shared by BuildIndex and FixThinPack (spec.md §4.2 steps 4-5): every
// non-delta entry and every OFS_DELTA chain resolves from ra alone, since a
// base always precedes its delta in the stream; a REF_DELTA entry resolves
// once its base id has appeared among already-resolved entries. What
// remains in pending after the fixed point references a base outside this
// pack — a thin pack.
func resolveEntries(ra io.ReaderAt, size int64, entries []ObjectEntry) (idToOffset map[plumbing.ObjectID]int64, result map[int64]plumbing.ObjectID, pending []*ObjectEntry, err error) {
	byOffset := make(map[int64]*ObjectEntry, len(entries))
	for i := range entries {
		byOffset[entries[i].Offset] = &entries[i]
	}

	cache := make(map[int64]resolvedObject, len(entries))
	idToOffset = make(map[plumbing.ObjectID]int64, len(entries))
	result = make(map[int64]plumbing.ObjectID, len(entries))

	var resolveOffset func(off int64, seen map[int64]bool) (resolvedObject, error)
	resolveOffset = func(off int64, seen map[int64]bool) (resolvedObject, error) {
		if r, ok := cache[off]; ok {
			return r, nil
		}
		if seen[off] {
			return resolvedObject{}, fmt.Errorf("%w: delta cycle at offset %d", plumbing.ErrObjectCorrupt, off)
		}
		seen[off] = true

		e, ok := byOffset[off]
		if !ok {
			return resolvedObject{}, fmt.Errorf("%w: no entry at offset %d", plumbing.ErrObjectCorrupt, off)
		}

		var r resolvedObject
		switch e.Type {
		case plumbing.OFSDeltaObject:
			base, err := resolveOffset(e.BaseOffset, seen)
			if err != nil {
				return resolvedObject{}, err
			}
			delta, err := inflateFromReaderAt(ra, e.ContentOffset, size)
			if err != nil {
				return resolvedObject{}, err
			}
			patched, err := PatchDelta(base.data, delta)
			if err != nil {
				return resolvedObject{}, fmt.Errorf("%w: offset %d: %v", plumbing.ErrObjectCorrupt, off, err)
			}
			r = resolvedObject{typ: base.typ, data: patched}

		default: // non-delta base object
			data, err := inflateFromReaderAt(ra, e.ContentOffset, size)
			if err != nil {
				return resolvedObject{}, err
			}
			r = resolvedObject{typ: e.Type, data: data}
		}

		cache[off] = r
		id := plumbing.ComputeHash(r.typ, r.data)
		idToOffset[id] = off
		result[off] = id
		return r, nil
	}

	// Resolve every non-REF_DELTA entry first; OFS_DELTA chains bottom out
	// in these, so this single pass covers the bulk of a normal pack.
	for i := range entries {
		e := &entries[i]
		if e.Type == plumbing.REFDeltaObject {
			pending = append(pending, e)
			continue
		}
		if _, err := resolveOffset(e.Offset, map[int64]bool{}); err != nil {
			return nil, nil, nil, err
		}
	}

	// Fixed-point over REF_DELTA entries: each pass resolves whatever now
	// has a known base; stop when a pass makes no progress.
	for len(pending) > 0 {
		var next []*ObjectEntry
		progressed := false

		for _, e := range pending {
			if _, ok := result[e.Offset]; ok {
				continue
			}
			baseOffset, ok := idToOffset[e.BaseRef]
			if !ok {
				next = append(next, e)
				continue
			}
			base, err := resolveOffset(baseOffset, map[int64]bool{})
			if err != nil {
				return nil, nil, nil, err
			}
			delta, err := inflateFromReaderAt(ra, e.ContentOffset, size)
			if err != nil {
				return nil, nil, nil, err
			}
			patched, err := PatchDelta(base.data, delta)
			if err != nil {
				return nil, nil, nil, fmt.Errorf("%w: offset %d: %v", plumbing.ErrObjectCorrupt, e.Offset, err)
			}
			id := plumbing.ComputeHash(base.typ, patched)
			cache[e.Offset] = resolvedObject{typ: base.typ, data: patched}
			idToOffset[id] = e.Offset
			result[e.Offset] = id
			progressed = true
		}

		if !progressed {
			pending = next
			break
		}
		pending = next
	}

	return idToOffset, result, pending, nil
}

// BuildIndex resolves every entry scanned from a pack stream now resident in
// ra (size bytes long) into its final type, bytes and id, then emits a
// sorted idxfile.MemoryIndex (spec.md §4.2 steps 4, 5, 7). Any REF_DELTA
// entry whose base is still missing after the fixed point falls back to
// opts.External, resolving it for the index only (thin pack fix, step 6);
// a base still missing after that fails with plumbing.ErrObjectNotFound.
// storage/filesystem.WritePack
// runs FixThinPack first, so by the time this is called the pack is
// typically no longer thin and this fallback never triggers.
func BuildIndex(ra io.ReaderAt, size int64, trailer plumbing.ObjectID, entries []ObjectEntry, opts Options) (*idxfile.MemoryIndex, error) {
	idToOffset, result, pending, err := resolveEntries(ra, size, entries)
	if err != nil {
		return nil, err
	}

	for _, e := range pending {
		if _, ok := result[e.Offset]; ok {
			continue
		}
		if opts.External == nil {
			return nil, fmt.Errorf("%w: thin base %s", plumbing.ErrObjectNotFound, e.BaseRef)
		}
		obj, err := opts.External.EncodedObject(plumbing.InvalidObject, e.BaseRef)
		if err != nil {
			return nil, fmt.Errorf("%w: thin base %s: %v", plumbing.ErrObjectNotFound, e.BaseRef, err)
		}
		r, err := obj.Reader()
		if err != nil {
			return nil, err
		}
		baseData, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, err
		}
		delta, err := inflateFromReaderAt(ra, e.ContentOffset, size)
		if err != nil {
			return nil, err
		}
		patched, err := PatchDelta(baseData, delta)
		if err != nil {
			return nil, fmt.Errorf("%w: offset %d: %v", plumbing.ErrObjectCorrupt, e.Offset, err)
		}
		id := plumbing.ComputeHash(obj.Type(), patched)
		idToOffset[id] = e.Offset
		result[e.Offset] = id
	}

	idxEntries := make([]idxfile.Entry, 0, len(entries))
	for i := range entries {
		e := &entries[i]
		id, ok := result[e.Offset]
		if !ok {
			return nil, fmt.Errorf("%w: unresolved entry at offset %d", plumbing.ErrObjectCorrupt, e.Offset)
		}
		idxEntries = append(idxEntries, idxfile.Entry{ID: id, Offset: e.Offset, CRC32: e.CRC32})
	}

	_ = trailer
	trace.Packfile.Printf("packfile: indexed %d object(s)", len(idxEntries))
	return idxfile.NewMemoryIndex(idxEntries), nil
}

// FixThinPack implements spec.md §4.2 step 6 on disk: every REF_DELTA entry
// whose base is absent from this pack (a thin pack, as produced by a sender
// that assumes the receiver already holds the base) is fetched via
// opts.External and appended to the end of spill as a new non-delta object;
// the pack header's object count and trailing SHA-1 checksum are then
// rewritten so the pack is no longer thin. size is spill's length before
// any fix is applied (i.e. ScanAndSpill's output, trailer included).
//
// Entries/size/a zero ObjectID are returned unchanged when opts.FixThin is
// false, opts.External is nil, or nothing in entries was thin.
func FixThinPack(spill RandomWriteSpill, size int64, entries []ObjectEntry, opts Options) ([]ObjectEntry, int64, plumbing.ObjectID, error) {
	if !opts.FixThin || opts.External == nil {
		return entries, size, plumbing.ZeroHash, nil
	}

	idToOffset, result, pending, err := resolveEntries(spill, size, entries)
	if err != nil {
		return nil, 0, plumbing.ZeroHash, err
	}
	if len(pending) == 0 {
		return entries, size, plumbing.ZeroHash, nil
	}

	// The old trailer occupies the last plumbing.Size bytes; the first
	// appended object is written over it with WriteAt, and a new trailer
	// follows the last appended object.
	writeOffset := size - plumbing.Size
	resolvedBases := make(map[plumbing.ObjectID]bool, len(pending))

	for _, e := range pending {
		if _, ok := result[e.Offset]; ok {
			continue
		}
		if resolvedBases[e.BaseRef] {
			continue
		}

		obj, err := opts.External.EncodedObject(plumbing.InvalidObject, e.BaseRef)
		if err != nil {
			return nil, 0, plumbing.ZeroHash, fmt.Errorf("%w: thin base %s: %v", plumbing.ErrObjectNotFound, e.BaseRef, err)
		}
		r, err := obj.Reader()
		if err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}
		data, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}

		var hdr bytes.Buffer
		if err := WriteObjectHeader(&hdr, obj.Type(), int64(len(data))); err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}
		var body bytes.Buffer
		zw := zlib.NewWriter(&body)
		if _, err := zw.Write(data); err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}
		if err := zw.Close(); err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}

		crc := crc32.NewIEEE()
		crc.Write(hdr.Bytes())
		crc.Write(body.Bytes())

		if _, err := spill.WriteAt(hdr.Bytes(), writeOffset); err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}
		if _, err := spill.WriteAt(body.Bytes(), writeOffset+int64(hdr.Len())); err != nil {
			return nil, 0, plumbing.ZeroHash, err
		}

		entries = append(entries, ObjectEntry{
			Offset:        writeOffset,
			Type:          obj.Type(),
			Size:          int64(len(data)),
			ContentOffset: writeOffset + int64(hdr.Len()),
			CRC32:         crc.Sum32(),
		})
		idToOffset[e.BaseRef] = writeOffset
		result[writeOffset] = e.BaseRef
		resolvedBases[e.BaseRef] = true

		writeOffset += int64(hdr.Len()) + int64(body.Len())
	}

	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(entries)))
	if _, err := spill.WriteAt(countBuf[:], 8); err != nil {
		return nil, 0, plumbing.ZeroHash, err
	}

	h := sha1cd.New()
	if _, err := io.Copy(h, io.NewSectionReader(spill, 0, writeOffset)); err != nil {
		return nil, 0, plumbing.ZeroHash, err
	}
	trailer, err := plumbing.FromBytes(h.Sum(nil))
	if err != nil {
		return nil, 0, plumbing.ZeroHash, err
	}
	if _, err := spill.WriteAt(trailer[:], writeOffset); err != nil {
		return nil, 0, plumbing.ZeroHash, err
	}

	trace.Packfile.Printf("packfile: fixed thin pack, appended %d base object(s)", len(resolvedBases))
	return entries, writeOffset + plumbing.Size, trailer, nil
}

func inflateFromReaderAt(ra io.ReaderAt, off int64, size int64) ([]byte, error) {
	sr := io.NewSectionReader(ra, off, size-off)
	zr, err := zlib.NewReader(sr)
	if err != nil {
		return nil, fmt.Errorf("%w: zlib header at %d: %v", plumbing.ErrObjectCorrupt, off, err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, fmt.Errorf("%w: inflate at %d: %v", plumbing.ErrObjectCorrupt, off, err)
	}
	return buf.Bytes(), nil
}
