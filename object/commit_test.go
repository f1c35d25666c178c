package object

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func testSig(when time.Time) Signature {
	return Signature{Name: "tester", Email: "tester@example.com", When: when}
}

func TestCommitEncodeDecodeRoundTrip(t *testing.T) {
	s := newTestStorer(t)
	treeID := putTree(t, s, &Tree{})

	root := &Commit{
		Author:    testSig(time.Unix(1700000000, 0)),
		Committer: testSig(time.Unix(1700000100, 0)),
		Message:   "initial commit\n",
		TreeHash:  treeID,
	}
	rootID := putCommit(t, s, root)

	second := &Commit{
		Author:       testSig(time.Unix(1700000200, 0)),
		Committer:    testSig(time.Unix(1700000200, 0)),
		Message:      "second\n\nwith a body\n",
		TreeHash:     treeID,
		ParentHashes: []plumbing.ObjectID{rootID},
	}
	secondID := putCommit(t, s, second)

	got, err := GetCommit(s, secondID)
	require.NoError(t, err)
	assert.Equal(t, secondID, got.ID())
	assert.Equal(t, "second\n\nwith a body\n", got.Message)
	assert.Equal(t, treeID, got.TreeHash)
	assert.Equal(t, 1, got.NumParents())

	parent, err := got.Parent(0)
	require.NoError(t, err)
	assert.Equal(t, rootID, parent.ID())
	assert.Equal(t, "initial commit\n", parent.Message)
}

func TestCommitDecodeRejectsWrongType(t *testing.T) {
	o := plumbing.NewMemoryObject(plumbing.BlobObject, nil)
	var c Commit
	assert.ErrorIs(t, c.Decode(o), ErrUnsupportedObject)
}

func TestCommitDecodeMalformedHeader(t *testing.T) {
	o := plumbing.NewMemoryObject(plumbing.CommitObject, []byte("notaheaderline\n\nmsg\n"))
	var c Commit
	assert.ErrorIs(t, c.Decode(o), ErrMalformedObject)
}

func TestCommitParentOutOfRange(t *testing.T) {
	c := &Commit{}
	_, err := c.Parent(0)
	assert.ErrorIs(t, err, plumbing.ErrObjectNotFound)
}

func TestCommitIterForEach(t *testing.T) {
	s := newTestStorer(t)
	treeID := putTree(t, s, &Tree{})

	p1 := &Commit{Author: testSig(time.Unix(1, 0)), Committer: testSig(time.Unix(1, 0)), Message: "p1\n", TreeHash: treeID}
	p1ID := putCommit(t, s, p1)
	p2 := &Commit{Author: testSig(time.Unix(2, 0)), Committer: testSig(time.Unix(2, 0)), Message: "p2\n", TreeHash: treeID}
	p2ID := putCommit(t, s, p2)

	merge := &Commit{
		Author: testSig(time.Unix(3, 0)), Committer: testSig(time.Unix(3, 0)),
		Message: "merge\n", TreeHash: treeID,
		ParentHashes: []plumbing.ObjectID{p1ID, p2ID},
	}
	mergeID := putCommit(t, s, merge)

	got, err := GetCommit(s, mergeID)
	require.NoError(t, err)

	var seen []string
	require.NoError(t, got.Parents().ForEach(func(c *Commit) error {
		seen = append(seen, c.Message)
		return nil
	}))
	assert.Equal(t, []string{"p1\n", "p2\n"}, seen)
}

func TestCommitIterNextExhausted(t *testing.T) {
	it := &CommitIter{}
	_, err := it.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCommitEncodePreservesSignature(t *testing.T) {
	c := &Commit{
		Author:       testSig(time.Unix(1, 0)),
		Committer:    testSig(time.Unix(1, 0)),
		Message:      "signed\n",
		TreeHash:     plumbing.ZeroHash,
		PGPSignature: "-----BEGIN PGP SIGNATURE-----\nAAAA\nBBBB\n-----END PGP SIGNATURE-----\n",
	}

	o := plumbing.NewMemoryObject(plumbing.CommitObject, nil)
	require.NoError(t, c.Encode(o))

	var got Commit
	require.NoError(t, got.Decode(o))
	assert.Equal(t, c.PGPSignature, got.PGPSignature)
}
