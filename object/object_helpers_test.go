package object

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
	"github.com/bluestreak/bgit/storage/memory"
)

// newTestStorer returns an empty object store for tests that need a real
// storer.EncodedObjectStorer (tree/commit/tag traversal).
func newTestStorer(t *testing.T) *memory.Storage {
	t.Helper()
	return memory.NewStorage()
}

func putBlob(t *testing.T, s storer.EncodedObjectStorer, content string) plumbing.ObjectID {
	t.Helper()
	o := s.NewEncodedObject()
	o.SetType(plumbing.BlobObject)
	w, err := o.Writer()
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	id, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}

func putTree(t *testing.T, s storer.EncodedObjectStorer, tr *Tree) plumbing.ObjectID {
	t.Helper()
	o := s.NewEncodedObject()
	o.SetType(plumbing.TreeObject)
	require.NoError(t, tr.Encode(o))
	id, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}

func putCommit(t *testing.T, s storer.EncodedObjectStorer, c *Commit) plumbing.ObjectID {
	t.Helper()
	o := s.NewEncodedObject()
	o.SetType(plumbing.CommitObject)
	require.NoError(t, c.Encode(o))
	id, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}

func putTag(t *testing.T, s storer.EncodedObjectStorer, tg *Tag) plumbing.ObjectID {
	t.Helper()
	o := s.NewEncodedObject()
	o.SetType(plumbing.TagObject)
	require.NoError(t, tg.Encode(o))
	id, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}
