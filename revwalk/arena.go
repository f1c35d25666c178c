package revwalk

import (
	"github.com/bluestreak/bgit/object"
	"github.com/bluestreak/bgit/plumbing"
)

// RevCommit is a lightweight handle into the walker's arena (spec.md §9
// "RevCommit graph ownership"): parent links are arena indices, not
// pointers, so the whole graph is a set of flat slices with no cycles for
// the garbage collector to chase.
type RevCommit struct {
	ID         plumbing.ObjectID
	TreeHash   plumbing.ObjectID
	CommitTime int64
	ParentIdx  []int
	Flags      RevFlagSet

	// raw is populated only when a filter or the caller needs the full
	// message/author — parsing that eagerly for every commit in a large
	// walk would defeat the point of a lazy generator pipeline.
	raw *object.Commit
}

// RevObjectArena owns every RevCommit touched by one RevWalk. Commits are
// never freed individually; the arena is dropped as a whole when the walk
// ends (spec.md §9: "the arena lives exactly as long as the walker").
type RevObjectArena struct {
	commits []*RevCommit
	index   map[plumbing.ObjectID]int
}

func newRevObjectArena() *RevObjectArena {
	return &RevObjectArena{index: make(map[plumbing.ObjectID]int)}
}

// lookupOrCreate returns the arena index for id, creating an unparsed stub
// if this is the first time id has been referenced.
func (a *RevObjectArena) lookupOrCreate(id plumbing.ObjectID) int {
	if idx, ok := a.index[id]; ok {
		return idx
	}
	idx := len(a.commits)
	a.commits = append(a.commits, &RevCommit{ID: id})
	a.index[id] = idx
	return idx
}

func (a *RevObjectArena) get(idx int) *RevCommit { return a.commits[idx] }

func (a *RevObjectArena) indexOf(id plumbing.ObjectID) (int, bool) {
	idx, ok := a.index[id]
	return idx, ok
}
