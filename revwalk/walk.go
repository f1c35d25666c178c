// Package revwalk implements the pull-driven generator pipeline described
// in spec.md §4.3: a RevWalk seeds one or more start commits, marks some
// branches as already-known ("uninteresting"), and yields the remaining
// ancestry through an assembled chain of generator stages.
package revwalk

import (
	"fmt"
	"io"

	"github.com/bluestreak/bgit/internal/trace"
	"github.com/bluestreak/bgit/object"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// RevWalk walks the commit graph reachable from one or more start points.
// It is not safe for concurrent use; clone the underlying filters if you
// need independent walks over the same filter configuration.
type RevWalk struct {
	store storer.EncodedObjectStorer
	arena *RevObjectArena
	flags *flagAllocator

	filter     RevFilter
	treeFilter object.TreeFilter

	sortTopo     bool
	sortReverse  bool
	delayRewrite bool
	boundary     bool

	carryMask    RevFlagSet
	boundaryQueue []*RevCommit

	starts []int
	built  generator
}

// NewRevWalk creates a walker reading objects from store.
func NewRevWalk(store storer.EncodedObjectStorer) *RevWalk {
	return &RevWalk{
		store: store,
		arena: newRevObjectArena(),
		flags: newFlagAllocator(),
	}
}

// NewFlag allocates a user flag for carrying auxiliary state through the
// walk (e.g. merge-base tip markers); see spec.md §9 "RevFlag allocation".
func (w *RevWalk) NewFlag() (RevFlag, error) { return w.flags.NewFlag() }

// CarryFlag adds f to the set of flags pendingGenerator propagates from a
// commit to its parents as it expands the graph.
func (w *RevWalk) CarryFlag(f RevFlag) { w.carryMask = w.carryMask.Add(f) }

// SetFilter installs a RevFilter applied to every non-uninteresting commit
// before it is emitted.
func (w *RevWalk) SetFilter(f RevFilter) { w.filter = f }

// SetTreeFilter restricts path-history rewriting (spec.md §4.3
// "Path-rewriting") to the paths filter accepts. A nil filter disables
// rewriting entirely.
func (w *RevWalk) SetTreeFilter(filter object.TreeFilter) { w.treeFilter = filter }

// SetTopoSort requests TOPO_KEEP_DATE_ORDER-style ordering: no commit is
// emitted before all of its children in the walked set.
func (w *RevWalk) SetTopoSort(v bool) { w.sortTopo = v }

// SetReverse requests insertion-order reversal as the final stage.
func (w *RevWalk) SetReverse(v bool) { w.sortReverse = v }

// SetDelayRewriteToEnd defers REWRITE-tagged commits to the end of the
// stream instead of eliding them inline; meaningful only when a tree
// filter is set.
func (w *RevWalk) SetDelayRewriteToEnd(v bool) { w.delayRewrite = v }

// SetBoundary requests that uninteresting commits directly adjacent to the
// interesting set be re-emitted (flagged UNINTERESTING) once the walk would
// otherwise end (spec.md §4.3 "Boundary").
func (w *RevWalk) SetBoundary(v bool) { w.boundary = v }

// ensureParsed fully decodes c's underlying commit object exactly once,
// resolving its parents into arena indices.
func (w *RevWalk) ensureParsed(c *RevCommit) error {
	if c.Flags.Has(flagParsed) {
		return nil
	}
	raw, err := object.GetCommit(w.store, c.ID)
	if err != nil {
		return fmt.Errorf("revwalk: parsing %s: %w", c.ID, err)
	}
	c.raw = raw
	c.TreeHash = raw.TreeHash
	c.CommitTime = raw.Committer.When.Unix()
	c.ParentIdx = make([]int, len(raw.ParentHashes))
	for i, ph := range raw.ParentHashes {
		c.ParentIdx[i] = w.arena.lookupOrCreate(ph)
	}
	c.Flags = c.Flags.Add(flagParsed)
	return nil
}

func (w *RevWalk) arenaIndexOf(c *RevCommit) int {
	idx, ok := w.arena.indexOf(c.ID)
	if !ok {
		// c was constructed outside the arena (should not happen); fall
		// back to registering it so callers keyed on index still work.
		return w.arena.lookupOrCreate(c.ID)
	}
	return idx
}

func (w *RevWalk) addBoundary(c *RevCommit) {
	w.boundaryQueue = append(w.boundaryQueue, c)
}

// markUninterestingUp floods UNINTERESTING up through idx's already-SEEN
// ancestors: pendingGenerator calls this when it discovers, after the fact,
// that a commit it already queued from one child should have been marked
// uninteresting by another (spec.md §4.3 "Uninteresting propagation").
func (w *RevWalk) markUninterestingUp(idx int) {
	c := w.arena.get(idx)
	if c.Flags.Has(flagUninteresting) {
		return
	}
	c.Flags = c.Flags.Add(flagUninteresting)
	for _, pidx := range c.ParentIdx {
		p := w.arena.get(pidx)
		if p.Flags.Has(flagSeen) {
			w.markUninterestingUp(pidx)
		}
	}
}

func (w *RevWalk) markCommit(id plumbing.ObjectID, uninteresting bool) (*RevCommit, error) {
	idx := w.arena.lookupOrCreate(id)
	c := w.arena.get(idx)
	if err := w.ensureParsed(c); err != nil {
		return nil, err
	}
	if !c.Flags.Has(flagSeen) {
		c.Flags = c.Flags.Add(flagSeen)
	}
	if uninteresting {
		c.Flags = c.Flags.Add(flagUninteresting)
	}
	return c, nil
}

// MarkStart adds id as a tip to walk ancestry from.
func (w *RevWalk) MarkStart(id plumbing.ObjectID) error {
	if w.built != nil {
		return fmt.Errorf("revwalk: MarkStart after walk has started")
	}
	c, err := w.markCommit(id, false)
	if err != nil {
		return err
	}
	w.starts = append(w.starts, w.arenaIndexOf(c))
	return nil
}

// MarkUninteresting adds id (and transitively its ancestry) to the set the
// walk should exclude from its output, per spec.md's UNINTERESTING
// propagation.
func (w *RevWalk) MarkUninteresting(id plumbing.ObjectID) error {
	if w.built != nil {
		return fmt.Errorf("revwalk: MarkUninteresting after walk has started")
	}
	c, err := w.markCommit(id, true)
	if err != nil {
		return err
	}
	w.starts = append(w.starts, w.arenaIndexOf(c))
	return nil
}

func (w *RevWalk) build() generator {
	pg := newPendingGenerator(w)
	for _, idx := range w.starts {
		pg.push(w.arena.get(idx))
	}

	var g generator = pg

	if w.treeFilter != nil {
		g = &rewriteTreeFilter{w: w, inner: g, filter: w.treeFilter}
		if w.delayRewrite {
			g = &delayRewriteToEnd{inner: g}
		} else {
			g = &rewriteGenerator{inner: g}
		}
	}

	if w.boundary {
		g = &boundaryGenerator{w: w, inner: g}
	}

	if w.sortTopo {
		g = &topoSortGenerator{w: w, inner: g}
	}

	if w.sortReverse {
		g = &reverseGenerator{inner: g}
	}

	trace.Revwalk.Printf("revwalk: built pipeline for %d start(s), topo=%v reverse=%v boundary=%v", len(w.starts), w.sortTopo, w.sortReverse, w.boundary)
	return g
}

// Next returns the next commit in the walk's delivery order, or io.EOF once
// exhausted.
func (w *RevWalk) Next() (*RevCommit, error) {
	if w.built == nil {
		w.built = w.build()
	}
	return w.built.next()
}

// ForEach calls cb for every commit the walk yields, stopping early (without
// error) if cb returns storer.ErrStop.
func (w *RevWalk) ForEach(cb func(*RevCommit) error) error {
	for {
		c, err := w.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(c); err != nil {
			if err == storer.ErrStop {
				return nil
			}
			return err
		}
	}
}

// Commit returns the fully-decoded object.Commit backing c, parsing it if
// this has not happened yet.
func (w *RevWalk) Commit(c *RevCommit) (*object.Commit, error) {
	if err := w.ensureParsed(c); err != nil {
		return nil, err
	}
	return c.raw, nil
}
