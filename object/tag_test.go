package object

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/plumbing"
)

func TestTagEncodeDecodeRoundTripToCommit(t *testing.T) {
	s := newTestStorer(t)
	treeID := putTree(t, s, &Tree{})
	commit := &Commit{Author: testSig(time.Unix(1, 0)), Committer: testSig(time.Unix(1, 0)), Message: "m\n", TreeHash: treeID}
	commitID := putCommit(t, s, commit)

	tg := &Tag{
		Name:       "v1.0.0",
		Tagger:     testSig(time.Unix(2, 0)),
		Message:    "release\n",
		TargetType: plumbing.CommitObject,
		Target:     commitID,
	}
	tagID := putTag(t, s, tg)

	got, err := GetTag(s, tagID)
	require.NoError(t, err)
	assert.Equal(t, "v1.0.0", got.Name)
	assert.Equal(t, "release\n", got.Message)
	assert.Equal(t, commitID, got.Target)

	resolved, err := got.Commit()
	require.NoError(t, err)
	assert.Equal(t, commitID, resolved.ID())
}

func TestTagWrongTargetAccessorErrors(t *testing.T) {
	tg := &Tag{TargetType: plumbing.BlobObject}
	_, err := tg.Commit()
	assert.ErrorIs(t, err, ErrUnsupportedObject)

	_, err = tg.Tree()
	assert.ErrorIs(t, err, ErrUnsupportedObject)

	tg2 := &Tag{TargetType: plumbing.CommitObject}
	_, err = tg2.Blob()
	assert.ErrorIs(t, err, ErrUnsupportedObject)
}

func TestTagDecodeRejectsWrongType(t *testing.T) {
	o := plumbing.NewMemoryObject(plumbing.BlobObject, nil)
	var tg Tag
	assert.ErrorIs(t, tg.Decode(o), ErrUnsupportedObject)
}

func TestTagObjectResolvesThroughNestedTags(t *testing.T) {
	s := newTestStorer(t)
	blobID := putBlob(t, s, "x")

	inner := &Tag{Name: "inner", Tagger: testSig(time.Unix(1, 0)), Message: "m\n", TargetType: plumbing.BlobObject, Target: blobID}
	innerID := putTag(t, s, inner)

	outer := &Tag{Name: "outer", Tagger: testSig(time.Unix(2, 0)), Message: "m\n", TargetType: plumbing.TagObject, Target: innerID}
	outerID := putTag(t, s, outer)

	got, err := GetTag(s, outerID)
	require.NoError(t, err)

	obj, err := got.Object()
	require.NoError(t, err)
	innerTag, ok := obj.(*Tag)
	require.True(t, ok)
	assert.Equal(t, "inner", innerTag.Name)
}
