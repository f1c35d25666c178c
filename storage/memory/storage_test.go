package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

func setObject(t *testing.T, s *Storage, typ plumbing.ObjectType, data string) plumbing.ObjectID {
	t.Helper()
	o := plumbing.NewMemoryObject(typ, []byte(data))
	id, err := s.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}

func TestSetAndGetEncodedObject(t *testing.T) {
	s := NewStorage()
	id := setObject(t, s, plumbing.BlobObject, "hello")

	o, err := s.EncodedObject(plumbing.BlobObject, id)
	require.NoError(t, err)
	assert.Equal(t, plumbing.BlobObject, o.Type())
	assert.Equal(t, int64(len("hello")), o.Size())
}

func TestEncodedObjectWrongTypeNotFound(t *testing.T) {
	s := NewStorage()
	id := setObject(t, s, plumbing.BlobObject, "hello")

	_, err := s.EncodedObject(plumbing.TreeObject, id)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestHasEncodedObject(t *testing.T) {
	s := NewStorage()
	id := setObject(t, s, plumbing.BlobObject, "hi")

	assert.NoError(t, s.HasEncodedObject(id))
	assert.ErrorIs(t, s.HasEncodedObject(plumbing.ZeroHash), plumbing.ErrObjectNotFound)
}

func TestIterEncodedObjectsFiltersByType(t *testing.T) {
	s := NewStorage()
	setObject(t, s, plumbing.BlobObject, "a")
	setObject(t, s, plumbing.BlobObject, "b")
	setObject(t, s, plumbing.TreeObject, "c")

	iter, err := s.IterEncodedObjects(plumbing.BlobObject)
	require.NoError(t, err)
	defer iter.Close()

	count := 0
	err = iter.ForEach(func(o plumbing.EncodedObject) error {
		assert.Equal(t, plumbing.BlobObject, o.Type())
		count++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestSetAndGetReference(t *testing.T) {
	s := NewStorage()
	ref := plumbing.NewHashReference("refs/heads/main", plumbing.ZeroHash)
	require.NoError(t, s.SetReference(ref))

	got, err := s.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, ref.Hash(), got.Hash())
}

func TestReferenceNotFound(t *testing.T) {
	s := NewStorage()
	_, err := s.Reference("refs/heads/missing")
	assert.ErrorIs(t, err, storer.ErrReferenceNotFound)
}

func TestCheckAndSetReferenceRejectsStaleOld(t *testing.T) {
	s := NewStorage()
	initial := plumbing.NewHashReference("refs/heads/main", plumbing.ZeroHash)
	require.NoError(t, s.SetReference(initial))

	staleOld := plumbing.NewHashReference("refs/heads/main", plumbing.ObjectID{0x01})
	next := plumbing.NewHashReference("refs/heads/main", plumbing.ObjectID{0x02})
	err := s.CheckAndSetReference(next, staleOld)
	assert.Error(t, err)

	got, err := s.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, initial.Hash(), got.Hash())
}

func TestCheckAndSetReferenceAcceptsMatchingOld(t *testing.T) {
	s := NewStorage()
	initial := plumbing.NewHashReference("refs/heads/main", plumbing.ZeroHash)
	require.NoError(t, s.SetReference(initial))

	next := plumbing.NewHashReference("refs/heads/main", plumbing.ObjectID{0x02})
	require.NoError(t, s.CheckAndSetReference(next, initial))

	got, err := s.Reference("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, next.Hash(), got.Hash())
}

func TestRemoveReference(t *testing.T) {
	s := NewStorage()
	ref := plumbing.NewHashReference("refs/heads/main", plumbing.ZeroHash)
	require.NoError(t, s.SetReference(ref))
	require.NoError(t, s.RemoveReference("refs/heads/main"))

	_, err := s.Reference("refs/heads/main")
	assert.ErrorIs(t, err, storer.ErrReferenceNotFound)
}

func TestIterReferences(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/heads/a", plumbing.ZeroHash)))
	require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/heads/b", plumbing.ZeroHash)))

	iter, err := s.IterReferences()
	require.NoError(t, err)
	defer iter.Close()

	count := 0
	require.NoError(t, iter.ForEach(func(*plumbing.Reference) error {
		count++
		return nil
	}))
	assert.Equal(t, 2, count)
}

func TestCountLooseRefs(t *testing.T) {
	s := NewStorage()
	require.NoError(t, s.SetReference(plumbing.NewHashReference("refs/heads/a", plumbing.ZeroHash)))
	n, err := s.CountLooseRefs()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
