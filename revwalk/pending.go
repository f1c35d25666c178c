package revwalk

import (
	"container/heap"
	"io"

	"github.com/bluestreak/bgit/plumbing"
)

// generator is the pull interface every pipeline stage implements; next
// returns io.EOF once exhausted (spec.md §4.3's StopWalk collapses onto
// plain EOF at this layer — RevFilter's own ErrStopWalk is translated to
// EOF by whichever stage calls the filter).
type generator interface {
	next() (*RevCommit, error)
}

// commitHeap is a max-heap on CommitTime, giving SORT_COMMIT_TIME_DESC.
type commitHeap []*RevCommit

func (h commitHeap) Len() int            { return len(h) }
func (h commitHeap) Less(i, j int) bool  { return h[i].CommitTime > h[j].CommitTime }
func (h commitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *commitHeap) Push(x interface{}) { *h = append(*h, x.(*RevCommit)) }
func (h *commitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// pendingGenerator is the innermost stage of every walk (spec.md §4.3
// "Pending generator"): a priority queue keyed by descending commit time,
// propagating UNINTERESTING and carry flags as it expands parents.
type pendingGenerator struct {
	w    *RevWalk
	heap commitHeap

	// OverScan is the clock-skew tolerance: once every queued commit is
	// UNINTERESTING, this many additional pops are allowed before StopWalk,
	// to absorb back-dated ancestors (spec.md §9 Open Question 1).
	OverScan int

	uninterestingStreak int
}

func newPendingGenerator(w *RevWalk) *pendingGenerator {
	return &pendingGenerator{w: w, OverScan: 5}
}

func (g *pendingGenerator) push(c *RevCommit) {
	heap.Push(&g.heap, c)
}

func (g *pendingGenerator) allUninteresting() bool {
	for _, c := range g.heap {
		if !c.Flags.Has(flagUninteresting) {
			return false
		}
	}
	return true
}

func (g *pendingGenerator) next() (*RevCommit, error) {
	for {
		if g.heap.Len() == 0 {
			return nil, io.EOF
		}

		c := heap.Pop(&g.heap).(*RevCommit)

		if err := g.w.ensureParsed(c); err != nil {
			return nil, err
		}

		for _, pidx := range c.ParentIdx {
			p := g.w.arena.get(pidx)
			if !p.Flags.Has(flagSeen) {
				p.Flags = p.Flags.Add(flagSeen)
				if err := g.w.ensureParsed(p); err != nil {
					return nil, err
				}
				if c.Flags.Has(flagUninteresting) {
					p.Flags = p.Flags.Add(flagUninteresting)
				}
				p.Flags = p.Flags.AddSet(c.Flags & g.w.carryMask)
				g.push(p)
			} else {
				p.Flags = p.Flags.AddSet(c.Flags & g.w.carryMask)
				if c.Flags.Has(flagUninteresting) && !p.Flags.Has(flagUninteresting) {
					g.w.markUninterestingUp(pidx)
				}
			}
			if !c.Flags.Has(flagUninteresting) {
				// p was pulled behind an interesting child: a boundary
				// commit if it turns out to be uninteresting.
				p.Flags = p.Flags.Add(flagTempMark)
			}
		}

		if c.Flags.Has(flagUninteresting) {
			if g.allUninteresting() {
				g.uninterestingStreak++
				if g.uninterestingStreak > g.OverScan {
					return nil, io.EOF
				}
			} else {
				g.uninterestingStreak = 0
			}
			if !g.w.boundary || !c.Flags.Has(flagTempMark) {
				continue
			}
			g.w.addBoundary(c)
			continue
		}
		g.uninterestingStreak = 0

		if g.w.filter != nil {
			ok, err := g.w.filter.Match(c)
			if err == plumbing.ErrStopWalk {
				return nil, io.EOF
			}
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}

		return c, nil
	}
}
