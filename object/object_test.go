package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestGetObjectDispatchesByStoredType(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "payload")
	treeID := putTree(t, s, &Tree{})

	obj, err := GetObject(s, blobID)
	require.NoError(t, err)
	_, ok := obj.(*Blob)
	assert.True(t, ok)

	obj, err = GetObject(s, treeID)
	require.NoError(t, err)
	_, ok = obj.(*Tree)
	assert.True(t, ok)
}

func TestGetObjectNotFound(t *testing.T) {
	s := newTestStorer(t)
	_, err := GetObject(s, plumbing.NewHash("0000000000000000000000000000000000000001"))
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestGetCommitRejectsNonCommit(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "x")
	_, err := GetCommit(s, blobID)
	assert.Error(t, err)
}

func TestGetBlobRejectsNonBlob(t *testing.T) {
	s := newTestStorer(t)
	treeID := putTree(t, s, &Tree{})
	_, err := GetBlob(s, treeID)
	assert.Error(t, err)
}
