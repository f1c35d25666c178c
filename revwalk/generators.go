package revwalk

import "io"

// boundaryGenerator re-emits, once the inner stage is drained, every
// uninteresting commit that pendingGenerator pulled directly behind an
// interesting child (spec.md §4.3 "Boundary").
type boundaryGenerator struct {
	w       *RevWalk
	inner   generator
	pos     int
	drained bool
}

func (g *boundaryGenerator) next() (*RevCommit, error) {
	if !g.drained {
		c, err := g.inner.next()
		if err == nil {
			return c, nil
		}
		if err != io.EOF {
			return nil, err
		}
		g.drained = true
	}

	if g.pos >= len(g.w.boundaryQueue) {
		return nil, io.EOF
	}
	c := g.w.boundaryQueue[g.pos]
	g.pos++
	return c, nil
}

// topoSortGenerator drains its input fully, then emits commits in
// dependency order: a commit is only emitted once every commit in the
// drained set that names it as a parent has already been emitted (spec.md
// §4.3 "Topological sort"). Relative time order is preserved among commits
// the dependency graph does not constrain, since the initial ready queue is
// built in the input's own (time-descending) order.
type topoSortGenerator struct {
	w     *RevWalk
	inner generator

	initialized bool
	emitted     []*RevCommit
	pos         int
}

func (g *topoSortGenerator) ensureInit() error {
	if g.initialized {
		return nil
	}
	g.initialized = true

	var all []*RevCommit
	setIndex := make(map[int]int) // arena idx -> position in all

	for {
		c, err := g.inner.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		setIndex[g.w.arenaIndexOf(c)] = len(all)
		all = append(all, c)
	}

	indegree := make([]int, len(all))
	parentsInSet := make([][]int, len(all))
	for i, c := range all {
		for _, pidx := range c.ParentIdx {
			if j, ok := setIndex[pidx]; ok {
				indegree[j]++
				parentsInSet[i] = append(parentsInSet[i], j)
			}
		}
	}

	var ready []int
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}

	emittedFlag := make([]bool, len(all))
	var out []*RevCommit
	for p := 0; p < len(ready); p++ {
		i := ready[p]
		if emittedFlag[i] {
			continue
		}
		emittedFlag[i] = true
		out = append(out, all[i])
		for _, j := range parentsInSet[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
	}

	g.emitted = out
	return nil
}

func (g *topoSortGenerator) next() (*RevCommit, error) {
	if err := g.ensureInit(); err != nil {
		return nil, err
	}
	if g.pos >= len(g.emitted) {
		return nil, io.EOF
	}
	c := g.emitted[g.pos]
	g.pos++
	return c, nil
}

// delayRewriteToEnd holds every REWRITE-tagged commit that would otherwise
// be elided inline, draining non-rewrite commits first and the rewritten
// ones after — so a later TopoSort or Reverse stage never has to reason
// about a commit disappearing mid-stream.
type delayRewriteToEnd struct {
	inner generator

	initialized bool
	kept        []*RevCommit
	elided      []*RevCommit
	pos         int
}

func (g *delayRewriteToEnd) ensureInit() error {
	if g.initialized {
		return nil
	}
	g.initialized = true
	for {
		c, err := g.inner.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if c.Flags.Has(flagRewrite) {
			g.elided = append(g.elided, c)
		} else {
			g.kept = append(g.kept, c)
		}
	}
	g.kept = append(g.kept, g.elided...)
	return nil
}

func (g *delayRewriteToEnd) next() (*RevCommit, error) {
	if err := g.ensureInit(); err != nil {
		return nil, err
	}
	if g.pos >= len(g.kept) {
		return nil, io.EOF
	}
	c := g.kept[g.pos]
	g.pos++
	return c, nil
}

// reverseGenerator spools its entire input, then emits in reverse insertion
// order (spec.md §4.3 "Reverse").
type reverseGenerator struct {
	inner       generator
	initialized bool
	stack       []*RevCommit
}

func (g *reverseGenerator) ensureInit() error {
	if g.initialized {
		return nil
	}
	g.initialized = true
	for {
		c, err := g.inner.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		g.stack = append(g.stack, c)
	}
}

func (g *reverseGenerator) next() (*RevCommit, error) {
	if err := g.ensureInit(); err != nil {
		return nil, err
	}
	if len(g.stack) == 0 {
		return nil, io.EOF
	}
	c := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	return c, nil
}
