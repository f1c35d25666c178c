package revwalk

import (
	"io"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// MergeBase finds common ancestors of tips (spec.md §9 Open Question 2):
// each tip is given a dedicated walker flag, propagated to every ancestor
// by the ordinary carry-flag mechanism pendingGenerator already implements,
// and a commit carrying every tip's flag is a merge base. Candidates pop in
// commit-time-descending order, so the first one found has no
// already-emitted descendant also qualifying; with all set, every
// candidate is collected instead of stopping at the first.
func MergeBase(store storer.EncodedObjectStorer, tips []plumbing.ObjectID, all bool) ([]plumbing.ObjectID, error) {
	if len(tips) < 2 {
		return nil, nil
	}

	w := NewRevWalk(store)

	tipFlags := make([]RevFlag, len(tips))
	var combined RevFlagSet
	for i := range tips {
		f, err := w.NewFlag()
		if err != nil {
			return nil, err
		}
		tipFlags[i] = f
		w.CarryFlag(f)
		combined = combined.Add(f)
	}

	for i, t := range tips {
		c, err := w.markCommit(t, false)
		if err != nil {
			return nil, err
		}
		c.Flags = c.Flags.Add(tipFlags[i])
		w.starts = append(w.starts, w.arenaIndexOf(c))
	}

	var bases []plumbing.ObjectID
	for {
		c, err := w.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if c.Flags.HasAll(combined) {
			bases = append(bases, c.ID)
			if !all {
				break
			}
		}
	}
	return bases, nil
}
