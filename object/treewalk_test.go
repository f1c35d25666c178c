package object

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/filemode"
)

func TestTreeWalkerMergesSingleTreeInOrder(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "x")

	tr := &Tree{Entries: []TreeEntry{
		{Name: "b", Mode: filemode.Regular, Hash: blobID},
		{Name: "a", Mode: filemode.Regular, Hash: blobID},
	}}

	w := NewTreeWalker(s, []*Tree{tr}, false)
	name, matches, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, "a", name)
	assert.True(t, matches[0].Matched())

	name, _, err = w.Next()
	require.NoError(t, err)
	assert.Equal(t, "b", name)

	_, matches, err = w.Next()
	require.NoError(t, err)
	assert.Nil(t, matches)
}

// TestTreeWalkerDirectoryFileCollision is the regression test for the D/F
// lookahead bug: one tree has a file named "foo", another has a directory
// of the same plain name. Both must be reported together in the same
// iteration rather than the directory's cursor stalling one step behind.
func TestTreeWalkerDirectoryFileCollision(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "file contents")

	innerBlobID := putBlob(t, s, "nested contents")
	subtree := &Tree{Entries: []TreeEntry{{Name: "nested", Mode: filemode.Regular, Hash: innerBlobID}}}
	subtreeID := putTree(t, s, subtree)

	fileTree := &Tree{Entries: []TreeEntry{
		{Name: "foo", Mode: filemode.Regular, Hash: blobID},
		{Name: "zzz", Mode: filemode.Regular, Hash: blobID},
	}}
	dirTree := &Tree{Entries: []TreeEntry{
		{Name: "foo", Mode: filemode.Dir, Hash: subtreeID},
	}}

	w := NewTreeWalker(s, []*Tree{fileTree, dirTree}, false)

	name, matches, err := w.Next()
	require.NoError(t, err)
	require.Equal(t, "foo", name)
	require.True(t, matches[0].Matched(), "the file-tree cursor must match on the same iteration as the dir-tree cursor")
	require.True(t, matches[1].Matched())
	assert.True(t, matches[0].Mode.IsFile())
	assert.True(t, matches[1].Mode.IsDir())

	name, matches, err = w.Next()
	require.NoError(t, err)
	assert.Equal(t, "zzz", name)
	assert.True(t, matches[0].Matched())
	assert.False(t, matches[1].Matched(), "second tree has no \"zzz\" entry")

	_, matches, err = w.Next()
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestTreeWalkerRecursesIntoAgreedSubtrees(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "x")

	inner := &Tree{Entries: []TreeEntry{{Name: "file.txt", Mode: filemode.Regular, Hash: blobID}}}
	innerID := putTree(t, s, inner)
	root := &Tree{Entries: []TreeEntry{{Name: "dir", Mode: filemode.Dir, Hash: innerID}}}

	w := NewTreeWalker(s, []*Tree{root}, true)
	name, matches, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, "file.txt", name)
	assert.True(t, matches[0].Matched())
}

func TestTreeWalkerEnterSubtreeManual(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "x")
	inner := &Tree{Entries: []TreeEntry{{Name: "file.txt", Mode: filemode.Regular, Hash: blobID}}}
	innerID := putTree(t, s, inner)
	root := &Tree{Entries: []TreeEntry{{Name: "dir", Mode: filemode.Dir, Hash: innerID}}}

	w := NewTreeWalker(s, []*Tree{root}, false)
	name, _, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, "dir", name)

	require.NoError(t, w.EnterSubtree())
	name, matches, err := w.Next()
	require.NoError(t, err)
	assert.Equal(t, "file.txt", name)
	assert.True(t, matches[0].Matched())
}

func TestPathFilterGroupMatchesExactAndPrefix(t *testing.T) {
	g := NewPathFilterGroup([]string{"a/b", "c.txt"})

	ok, err := g.Check("c.txt", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Check("a", true)
	require.NoError(t, err)
	assert.True(t, ok, "a directory containing a wanted path must be descended into")

	ok, err = g.Check("a/b/c", false)
	require.NoError(t, err)
	assert.True(t, ok, "a file under a wanted directory prefix matches")

	_, err = g.Check("z", false)
	assert.ErrorIs(t, err, plumbing.ErrStopWalk, "past every target in sort order, the walk should stop")
}

func TestPathFilterGroupTrimsTrailingSlash(t *testing.T) {
	g := NewPathFilterGroup([]string{"dir/"})
	ok, err := g.Check("dir", true)
	require.NoError(t, err)
	assert.True(t, ok)
}

type boolFilter bool

func (b boolFilter) Check(string, bool) (bool, error) { return bool(b), nil }

func TestAndOrNotFilters(t *testing.T) {
	ok, err := And(boolFilter(true), boolFilter(false)).Check("x", false)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Or(boolFilter(true), boolFilter(false)).Check("x", false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Not(boolFilter(true)).Check("x", false)
	require.NoError(t, err)
	assert.False(t, ok)
}
