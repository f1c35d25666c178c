package idxfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func sampleEntries() []Entry {
	return []Entry{
		{ID: plumbing.NewHash("2222222222222222222222222222222222222222"), Offset: 200, CRC32: 0x2},
		{ID: plumbing.NewHash("1111111111111111111111111111111111111111"), Offset: 100, CRC32: 0x1},
		{ID: plumbing.NewHash("3333333333333333333333333333333333333333"), Offset: 300, CRC32: 0x3},
	}
}

func TestMemoryIndexFindOffsetAndCRC32(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())

	off, err := idx.FindOffset(plumbing.NewHash("2222222222222222222222222222222222222222"))
	require.NoError(t, err)
	assert.Equal(t, int64(200), off)

	crc, err := idx.FindCRC32(plumbing.NewHash("2222222222222222222222222222222222222222"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x2), crc)
}

func TestMemoryIndexFindMissing(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())
	_, err := idx.FindOffset(plumbing.NewHash("4444444444444444444444444444444444444444"))
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.False(t, idx.Contains(plumbing.NewHash("4444444444444444444444444444444444444444")))
}

func TestMemoryIndexEntriesAreSorted(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())
	entries := idx.Entries()
	for i := 1; i < len(entries); i++ {
		assert.True(t, entries[i-1].ID.Compare(entries[i].ID) < 0)
	}
	assert.Equal(t, 3, idx.Count())
}

func TestEncodeDecodeV1RoundTrip(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())
	packChecksum := plumbing.NewHash("9999999999999999999999999999999999999999")

	var buf bytes.Buffer
	_, err := NewEncoder(&buf).Encode(idx, VersionV1, packChecksum)
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, idx.Count(), got.Count())

	off, err := got.FindOffset(plumbing.NewHash("1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, int64(100), off)

	// v1 carries no CRC32 data.
	crc, err := got.FindCRC32(plumbing.NewHash("1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0), crc)
}

func TestEncodeDecodeV2RoundTrip(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())
	packChecksum := plumbing.NewHash("9999999999999999999999999999999999999999")

	var buf bytes.Buffer
	_, err := NewEncoder(&buf).Encode(idx, VersionV2, packChecksum)
	require.NoError(t, err)

	assert.Equal(t, Magic[:], buf.Bytes()[:4])

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	crc, err := got.FindCRC32(plumbing.NewHash("3333333333333333333333333333333333333333"))
	require.NoError(t, err)
	assert.Equal(t, uint32(0x3), crc)
}

func TestEncodeDecodeV2LargeOffset(t *testing.T) {
	large := int64(1) << 32
	entries := []Entry{
		{ID: plumbing.NewHash("1111111111111111111111111111111111111111"), Offset: large, CRC32: 0x1},
		{ID: plumbing.NewHash("2222222222222222222222222222222222222222"), Offset: 42, CRC32: 0x2},
	}
	idx := NewMemoryIndex(entries)

	var buf bytes.Buffer
	_, err := NewEncoder(&buf).Encode(idx, VersionV2, plumbing.ZeroHash)
	require.NoError(t, err)

	got, err := Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	off, err := got.FindOffset(plumbing.NewHash("1111111111111111111111111111111111111111"))
	require.NoError(t, err)
	assert.Equal(t, large, off)
}

func TestShouldUseV2Rules(t *testing.T) {
	small := []Entry{{Offset: 100}}
	assert.Equal(t, VersionV1, ShouldUseV2(small, false, VersionV1))
	assert.Equal(t, VersionV2, ShouldUseV2(small, true, VersionV1))

	large := []Entry{{Offset: 1 << 31}}
	assert.Equal(t, VersionV2, ShouldUseV2(large, false, VersionV1))
}

func TestValidateTrailerDetectsCorruption(t *testing.T) {
	idx := NewMemoryIndex(sampleEntries())

	var buf bytes.Buffer
	_, err := NewEncoder(&buf).Encode(idx, VersionV2, plumbing.ZeroHash)
	require.NoError(t, err)

	raw := buf.Bytes()
	require.NoError(t, ValidateTrailer(raw))

	corrupt := append([]byte(nil), raw...)
	corrupt[0] ^= 0xff
	assert.Error(t, ValidateTrailer(corrupt))
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte{0, 1, 2}))
	assert.ErrorIs(t, err, ErrInvalidIndex)
}
