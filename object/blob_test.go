package object

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestBlobDecodeReadsSizeAndPayload(t *testing.T) {
	o := plumbing.NewMemoryObject(plumbing.BlobObject, []byte("hello world"))

	var b Blob
	require.NoError(t, b.Decode(o))

	assert.Equal(t, o.ID(), b.ID())
	assert.Equal(t, plumbing.BlobObject, b.Type())
	assert.Equal(t, int64(11), b.Size)

	r, err := b.Reader()
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(got))
}

func TestBlobDecodeRejectsWrongType(t *testing.T) {
	o := plumbing.NewMemoryObject(plumbing.TreeObject, nil)
	var b Blob
	assert.ErrorIs(t, b.Decode(o), ErrUnsupportedObject)
}
