package packfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

// memSpill is a RandomWriteSpill backed by an in-memory buffer, standing in
// for storage/filesystem's TempBuffer in tests.
type memSpill struct {
	buf []byte
}

func newMemSpill(data []byte) *memSpill {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &memSpill{buf: cp}
}

func (m *memSpill) Write(p []byte) (int, error) {
	m.buf = append(m.buf, p...)
	return len(p), nil
}

func (m *memSpill) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(m.buf)) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *memSpill) WriteAt(p []byte, off int64) (int, error) {
	if off+int64(len(p)) > int64(len(m.buf)) {
		grown := make([]byte, off+int64(len(p)))
		copy(grown, m.buf)
		m.buf = grown
	}
	copy(m.buf[off:], p)
	return len(p), nil
}

// fakeExternal resolves bases from an in-memory set, simulating the rest of
// a repository's object store for thin-pack tests.
type fakeExternal struct {
	objs map[plumbing.ObjectID]*plumbing.MemoryObject
}

func newFakeExternal() *fakeExternal {
	return &fakeExternal{objs: make(map[plumbing.ObjectID]*plumbing.MemoryObject)}
}

func (f *fakeExternal) add(typ plumbing.ObjectType, data []byte) plumbing.ObjectID {
	o := plumbing.NewMemoryObject(typ, data)
	f.objs[o.ID()] = o
	return o.ID()
}

func (f *fakeExternal) EncodedObject(_ plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	o, ok := f.objs[id]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	return o, nil
}

func TestBuildIndexResolvesOfsDeltaChain(t *testing.T) {
	base := []byte("hello")
	delta := simpleDelta(len(base), []byte("!"))

	_, offsets := buildPack(t, []rawObj{
		{typ: plumbing.BlobObject, data: base},
		{ofsBack: 1, data: delta},
	})
	deltaObj := rawObj{ofsBack: offsets[1] - offsets[0], data: delta}
	data, _ := buildPack(t, []rawObj{{typ: plumbing.BlobObject, data: base}, deltaObj})

	entries, trailer, err := ScanAndSpill(bytes.NewReader(data), newMemSpill(nil))
	require.NoError(t, err)

	idx, err := BuildIndex(bytes.NewReader(data), int64(len(data)), trailer, entries, Options{})
	require.NoError(t, err)

	baseID := plumbing.ComputeHash(plumbing.BlobObject, base)
	_, err = idx.FindOffset(baseID)
	assert.NoError(t, err)

	wantTarget := plumbing.ComputeHash(plumbing.BlobObject, []byte("hello!"))
	_, err = idx.FindOffset(wantTarget)
	assert.NoError(t, err)
}

func TestBuildIndexResolvesRefDeltaWithinPack(t *testing.T) {
	base := []byte("hello")
	baseID := plumbing.ComputeHash(plumbing.BlobObject, base)
	delta := simpleDelta(len(base), []byte("?"))

	data, _ := buildPack(t, []rawObj{
		{typ: plumbing.BlobObject, data: base},
		{refBase: baseID, data: delta},
	})

	entries, trailer, err := ScanAndSpill(bytes.NewReader(data), newMemSpill(nil))
	require.NoError(t, err)

	idx, err := BuildIndex(bytes.NewReader(data), int64(len(data)), trailer, entries, Options{})
	require.NoError(t, err)

	_, err = idx.FindOffset(baseID)
	assert.NoError(t, err)

	wantTarget := plumbing.ComputeHash(plumbing.BlobObject, []byte("hello?"))
	_, err = idx.FindOffset(wantTarget)
	assert.NoError(t, err)
}

func TestBuildIndexFallsBackToExternalForThinBase(t *testing.T) {
	base := []byte("world")
	ext := newFakeExternal()
	baseID := ext.add(plumbing.BlobObject, base)

	delta := simpleDelta(len(base), []byte("."))
	data, _ := buildPack(t, []rawObj{{refBase: baseID, data: delta}})

	entries, trailer, err := ScanAndSpill(bytes.NewReader(data), newMemSpill(nil))
	require.NoError(t, err)

	idx, err := BuildIndex(bytes.NewReader(data), int64(len(data)), trailer, entries, Options{External: ext})
	require.NoError(t, err)

	wantTarget := plumbing.ComputeHash(plumbing.BlobObject, []byte("world."))
	_, err = idx.FindOffset(wantTarget)
	assert.NoError(t, err, "delta resolved against the externally fetched base should be indexed")

	_, err = idx.FindOffset(baseID)
	assert.Error(t, err, "the external base itself was never appended to this pack")
}

func TestBuildIndexErrorsOnUnresolvedThinBaseWithoutExternal(t *testing.T) {
	missingBase := plumbing.NewHash("2222222222222222222222222222222222222222")
	delta := simpleDelta(5, []byte("!"))
	data, _ := buildPack(t, []rawObj{{refBase: missingBase, data: delta}})

	entries, trailer, err := ScanAndSpill(bytes.NewReader(data), newMemSpill(nil))
	require.NoError(t, err)

	_, err = BuildIndex(bytes.NewReader(data), int64(len(data)), trailer, entries, Options{})
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestFixThinPackAppendsBaseAndRewritesTrailer(t *testing.T) {
	base := []byte("world")
	ext := newFakeExternal()
	baseID := ext.add(plumbing.BlobObject, base)

	delta := simpleDelta(len(base), []byte("."))
	data, _ := buildPack(t, []rawObj{{refBase: baseID, data: delta}})
	origTrailer := plumbing.NewHash(hexTrailer(data))

	spill := newMemSpill(data)
	opts := Options{FixThin: true, External: ext}

	fixedEntries, fixedSize, fixedTrailer, err := FixThinPack(spill, int64(len(data)), mustScan(t, data), opts)
	require.NoError(t, err)

	require.Len(t, fixedEntries, 2, "the appended base must get its own entry")
	assert.Greater(t, fixedSize, int64(len(data)))
	assert.False(t, fixedTrailer.IsZero())
	assert.NotEqual(t, origTrailer, fixedTrailer)

	hdr, err := ReadHeader(bytes.NewReader(spill.buf))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hdr.ObjectsQty, "object count in the rewritten header must include the appended base")

	idx, err := BuildIndex(spill, fixedSize, fixedTrailer, fixedEntries, Options{})
	require.NoError(t, err)

	_, err = idx.FindOffset(baseID)
	assert.NoError(t, err, "the physically appended base must now be indexed")

	wantTarget := plumbing.ComputeHash(plumbing.BlobObject, []byte("world."))
	_, err = idx.FindOffset(wantTarget)
	assert.NoError(t, err)
}

func TestFixThinPackNoOpWhenNotThin(t *testing.T) {
	data, _ := buildPack(t, []rawObj{{typ: plumbing.BlobObject, data: []byte("plain")}})
	entries := mustScan(t, data)

	spill := newMemSpill(data)
	ext := newFakeExternal()

	gotEntries, gotSize, gotTrailer, err := FixThinPack(spill, int64(len(data)), entries, Options{FixThin: true, External: ext})
	require.NoError(t, err)
	assert.Equal(t, entries, gotEntries)
	assert.Equal(t, int64(len(data)), gotSize)
	assert.True(t, gotTrailer.IsZero())
}

func TestFixThinPackNoOpWhenFixThinDisabled(t *testing.T) {
	base := []byte("world")
	ext := newFakeExternal()
	baseID := ext.add(plumbing.BlobObject, base)
	delta := simpleDelta(len(base), []byte("."))
	data, _ := buildPack(t, []rawObj{{refBase: baseID, data: delta}})
	entries := mustScan(t, data)

	spill := newMemSpill(data)
	gotEntries, gotSize, gotTrailer, err := FixThinPack(spill, int64(len(data)), entries, Options{External: ext})
	require.NoError(t, err)
	assert.Equal(t, entries, gotEntries)
	assert.Equal(t, int64(len(data)), gotSize)
	assert.True(t, gotTrailer.IsZero())
}

// mustScan re-derives ObjectEntry records for data, mirroring what
// ScanAndSpill would have produced when the pack was first received.
func mustScan(t *testing.T, data []byte) []ObjectEntry {
	t.Helper()
	entries, _, err := ScanAndSpill(bytes.NewReader(data), newMemSpill(nil))
	require.NoError(t, err)
	return entries
}

// hexTrailer extracts the trailing 20-byte SHA-1 from a built pack as a hex
// string, for comparison against the trailer FixThinPack recomputes.
func hexTrailer(data []byte) string {
	const hexDigits = "0123456789abcdef"
	trailer := data[len(data)-int(plumbing.Size):]
	out := make([]byte, 0, len(trailer)*2)
	for _, b := range trailer {
		out = append(out, hexDigits[b>>4], hexDigits[b&0x0f])
	}
	return string(out)
}
