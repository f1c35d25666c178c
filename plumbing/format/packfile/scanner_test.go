package packfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestScannerReadsNonDeltaObjects(t *testing.T) {
	data, offsets := buildPack(t, []rawObj{
		{typ: plumbing.BlobObject, data: []byte("hello")},
		{typ: plumbing.BlobObject, data: []byte("world!!")},
	})

	s, err := NewScanner(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), s.Header().ObjectsQty)

	e1, err := s.NextObject()
	require.NoError(t, err)
	assert.Equal(t, offsets[0], e1.Offset)
	assert.Equal(t, plumbing.BlobObject, e1.Type)
	assert.Equal(t, int64(5), e1.Size)

	e2, err := s.NextObject()
	require.NoError(t, err)
	assert.Equal(t, offsets[1], e2.Offset)
	assert.Equal(t, int64(7), e2.Size)

	_, err = s.NextObject()
	assert.ErrorIs(t, err, io.EOF)

	trailer, err := s.ReadTrailer()
	require.NoError(t, err)
	assert.False(t, trailer.IsZero())
}

func TestScannerReadsRefDeltaEntry(t *testing.T) {
	baseID := plumbing.NewHash("1111111111111111111111111111111111111111")
	delta := simpleDelta(5, []byte("!"))

	data, _ := buildPack(t, []rawObj{
		{refBase: baseID, data: delta},
	})

	s, err := NewScanner(bytes.NewReader(data))
	require.NoError(t, err)

	e, err := s.NextObject()
	require.NoError(t, err)
	assert.Equal(t, plumbing.REFDeltaObject, e.Type)
	assert.Equal(t, baseID, e.BaseRef)
}

func TestScannerReadsOfsDeltaEntry(t *testing.T) {
	delta := simpleDelta(5, []byte("!"))
	baseObj := rawObj{typ: plumbing.BlobObject, data: []byte("hello")}

	// A first pass with a placeholder backward offset tells us the real
	// object offsets (the header is fixed-size, so the base always starts
	// right after it; a second pass fills in the true backward distance).
	_, offsets := buildPack(t, []rawObj{baseObj, {ofsBack: 1, data: delta}})
	deltaObj := rawObj{ofsBack: offsets[1] - offsets[0], data: delta}

	data, offsets2 := buildPack(t, []rawObj{baseObj, deltaObj})

	s, err := NewScanner(bytes.NewReader(data))
	require.NoError(t, err)

	_, err = s.NextObject()
	require.NoError(t, err)

	e2, err := s.NextObject()
	require.NoError(t, err)
	assert.Equal(t, plumbing.OFSDeltaObject, e2.Type)
	assert.Equal(t, offsets2[0], e2.BaseOffset)
}

func TestScannerRejectsCorruptZlibStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, 1))
	require.NoError(t, WriteObjectHeader(&buf, plumbing.BlobObject, 5))
	buf.Write([]byte{0xff, 0xff, 0xff, 0xff})

	s, err := NewScanner(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	_, err = s.NextObject()
	assert.Error(t, err)
}

func TestReadTrailerRejectsMismatch(t *testing.T) {
	data, _ := buildPack(t, []rawObj{{typ: plumbing.BlobObject, data: []byte("hello")}})
	data[len(data)-1] ^= 0xff

	s, err := NewScanner(bytes.NewReader(data))
	require.NoError(t, err)
	_, err = s.NextObject()
	require.NoError(t, err)

	_, err = s.ReadTrailer()
	assert.ErrorIs(t, err, plumbing.ErrObjectCorrupt)
}
