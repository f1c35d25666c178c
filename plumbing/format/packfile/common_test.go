package packfile

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestWriteReadHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHeader(&buf, 42))

	hdr, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), hdr.Version)
	assert.Equal(t, uint32(42), hdr.ObjectsQty)
}

func TestReadHeaderRejectsBadSignature(t *testing.T) {
	buf := bytes.NewBufferString("NOTAPACK\x00\x00\x00\x00")
	_, err := ReadHeader(buf)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestReadHeaderRejectsEmptyStream(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrEmptyPackfile)
}

func TestReadHeaderRejectsUnsupportedVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Signature[:])
	buf.Write([]byte{0, 0, 0, 9})
	buf.Write([]byte{0, 0, 0, 0})
	_, err := ReadHeader(&buf)
	assert.ErrorIs(t, err, ErrUnsupportedVer)
}

func TestObjectHeaderRoundTripSmallSize(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteObjectHeader(&buf, plumbing.BlobObject, 10))

	br := bufio.NewReader(&buf)
	typ, size, err := ReadObjectHeader(br)
	require.NoError(t, err)
	assert.Equal(t, plumbing.BlobObject, typ)
	assert.Equal(t, int64(10), size)
}

func TestObjectHeaderRoundTripLargeSize(t *testing.T) {
	var buf bytes.Buffer
	const want = int64(1) << 40
	require.NoError(t, WriteObjectHeader(&buf, plumbing.TreeObject, want))

	br := bufio.NewReader(&buf)
	typ, size, err := ReadObjectHeader(br)
	require.NoError(t, err)
	assert.Equal(t, plumbing.TreeObject, typ)
	assert.Equal(t, want, size)
}

func TestOffsetDeltaRoundTrip(t *testing.T) {
	for _, want := range []int64{0, 1, 127, 128, 16383, 16384, 1 << 30} {
		var buf bytes.Buffer
		require.NoError(t, WriteOffsetDelta(&buf, want))

		br := bufio.NewReader(&buf)
		got, err := ReadOffsetDelta(br)
		require.NoError(t, err)
		assert.Equal(t, want, got, "offset %d", want)
	}
}
