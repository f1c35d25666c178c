package revwalk

import (
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluestreak/bgit/object"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
	"github.com/bluestreak/bgit/storage/memory"
)

func commitAt(t *testing.T, store storer.EncodedObjectStorer, when time.Time, parents ...plumbing.ObjectID) plumbing.ObjectID {
	t.Helper()

	sig := object.Signature{Name: "tester", Email: "tester@example.com", When: when}
	c := &object.Commit{
		Author:       sig,
		Committer:    sig,
		Message:      "msg",
		TreeHash:     plumbing.ZeroHash,
		ParentHashes: parents,
	}

	o := store.NewEncodedObject()
	o.SetType(plumbing.CommitObject)
	require.NoError(t, c.Encode(o))

	id, err := store.SetEncodedObject(o)
	require.NoError(t, err)
	return id
}

// linearHistory builds n commits, each parented on the previous, oldest
// first, returning ids oldest-to-newest.
func linearHistory(t *testing.T, store storer.EncodedObjectStorer, n int) []plumbing.ObjectID {
	t.Helper()
	base := time.Unix(1_700_000_000, 0)
	ids := make([]plumbing.ObjectID, 0, n)
	var parent []plumbing.ObjectID
	for i := 0; i < n; i++ {
		id := commitAt(t, store, base.Add(time.Duration(i)*time.Minute), parent...)
		ids = append(ids, id)
		parent = []plumbing.ObjectID{id}
	}
	return ids
}

func collect(t *testing.T, w *RevWalk) []plumbing.ObjectID {
	t.Helper()
	var out []plumbing.ObjectID
	for {
		c, err := w.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, c.ID)
	}
	return out
}

func TestWalkLinearHistoryNewestFirst(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 3)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[2]))

	got := collect(t, w)
	assert.Equal(t, []plumbing.ObjectID{ids[2], ids[1], ids[0]}, got)
}

func TestWalkStopsAtUninteresting(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 3)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[2]))
	require.NoError(t, w.MarkUninteresting(ids[0]))

	got := collect(t, w)
	assert.Equal(t, []plumbing.ObjectID{ids[2], ids[1]}, got)
}

func TestWalkReverseYieldsOldestFirst(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 3)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[2]))
	w.SetReverse(true)

	got := collect(t, w)
	assert.Equal(t, []plumbing.ObjectID{ids[0], ids[1], ids[2]}, got)
}

func TestWalkBoundaryReemitsAdjacentUninteresting(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 3)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[2]))
	require.NoError(t, w.MarkUninteresting(ids[0]))
	w.SetBoundary(true)

	got := collect(t, w)
	assert.Contains(t, got, ids[0])
}

func TestMarkStartAfterWalkStartedErrors(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 1)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[0]))
	_, err := w.Next()
	require.ErrorIs(t, err, io.EOF)

	assert.Error(t, w.MarkStart(ids[0]))
}

func TestForEachStopsOnErrStop(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 3)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[2]))

	var seen []plumbing.ObjectID
	err := w.ForEach(func(c *RevCommit) error {
		seen = append(seen, c.ID)
		if len(seen) == 1 {
			return storer.ErrStop
		}
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, seen, 1)
}

func TestCommitReturnsDecodedCommit(t *testing.T) {
	store := memory.NewStorage()
	ids := linearHistory(t, store, 1)

	w := NewRevWalk(store)
	require.NoError(t, w.MarkStart(ids[0]))
	rc, err := w.Next()
	require.NoError(t, err)

	c, err := w.Commit(rc)
	require.NoError(t, err)
	assert.Equal(t, "msg", c.Message)
}
