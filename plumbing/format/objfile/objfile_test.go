package objfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestWriteThenReadRoundTrip(t *testing.T) {
	payload := []byte("hello loose object")

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, int64(len(payload))))
	n, err := w.Write(payload)
	require.NoError(t, err)
	require.Equal(t, len(payload), n)
	require.NoError(t, w.Close())

	wantID := plumbing.ComputeHash(plumbing.BlobObject, payload)
	assert.Equal(t, wantID, w.Hash())

	r, err := NewReader(&buf)
	require.NoError(t, err)
	defer r.Close()

	typ, size := r.Header()
	assert.Equal(t, plumbing.BlobObject, typ)
	assert.Equal(t, int64(len(payload)), size)

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestWriteRejectsOverrunningDeclaredSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, 3))

	_, err := w.Write([]byte("too long"))
	assert.Error(t, err)
}

func TestCloseRejectsShortWrite(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, 5))
	_, err := w.Write([]byte("ab"))
	require.NoError(t, err)

	assert.Error(t, w.Close())
}

func TestWriteHeaderCannotBeCalledTwice(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteHeader(plumbing.BlobObject, 0))
	assert.Error(t, w.WriteHeader(plumbing.BlobObject, 0))
}

func TestNewReaderRejectsNonZlibStream(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte("not zlib data")))
	assert.ErrorIs(t, err, ErrHeader)
}
