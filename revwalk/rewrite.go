package revwalk

import (
	"io"

	"github.com/bluestreak/bgit/object"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// rewriteTreeFilter diffs each commit's tree against every parent's tree
// under the caller's TreeFilter, tagging REWRITE commits and collapsing a
// merge's parent list to the one parent it is identical to (spec.md §4.3
// "Path-rewriting").
type rewriteTreeFilter struct {
	w      *RevWalk
	inner  generator
	filter object.TreeFilter
}

func (g *rewriteTreeFilter) next() (*RevCommit, error) {
	c, err := g.inner.next()
	if err != nil {
		return nil, err
	}

	if len(c.ParentIdx) == 0 {
		return c, nil
	}

	tree, err := g.commitTree(c)
	if err != nil {
		return nil, err
	}

	var unchanged []int
	for _, pidx := range c.ParentIdx {
		p := g.w.arena.get(pidx)
		if err := g.w.ensureParsed(p); err != nil {
			return nil, err
		}
		ptree, err := g.commitTree(p)
		if err != nil {
			return nil, err
		}

		same, err := treesEqualUnder(g.w.store, g.filter, tree, ptree, "")
		if err != nil {
			return nil, err
		}
		if same {
			unchanged = append(unchanged, pidx)
		}
	}

	if len(unchanged) > 0 {
		c.Flags = c.Flags.Add(flagRewrite)
		c.ParentIdx = unchanged[:1]
	}

	return c, nil
}

func (g *RevWalk) commitTreeOf(c *RevCommit) (*object.Tree, error) {
	return object.GetTree(g.store, c.TreeHash)
}

func (g *rewriteTreeFilter) commitTree(c *RevCommit) (*object.Tree, error) {
	return g.w.commitTreeOf(c)
}

// treesEqualUnder reports whether a and b are identical once restricted to
// paths the filter accepts: the tree-walker merge (C8) visits both trees in
// lockstep, and any path where exactly one side matches, or both match with
// different mode/hash, is a difference.
func treesEqualUnder(s storer.EncodedObjectStorer, filter object.TreeFilter, a, b *object.Tree, prefix string) (bool, error) {
	tw := object.NewTreeWalker(s, []*object.Tree{a, b}, false)
	for {
		name, entries, err := tw.Next()
		if err == io.EOF {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if entries == nil {
			// TreeWalker signals end of input with a nil match slice.
			return true, nil
		}

		path := name
		if prefix != "" {
			path = prefix + "/" + name
		}

		ea, eb := entries[0], entries[1]
		isDir := (ea.Matched() && ea.Mode.IsDir()) || (eb.Matched() && eb.Mode.IsDir())

		if filter != nil {
			ok, ferr := filter.Check(path, isDir)
			if ferr == plumbing.ErrStopWalk {
				return true, nil
			}
			if ferr != nil {
				return false, ferr
			}
			if !ok {
				continue
			}
		}

		if ea.Matched() != eb.Matched() {
			return false, nil
		}
		if !ea.Matched() {
			continue
		}
		if ea.Mode != eb.Mode {
			return false, nil
		}
		if ea.Mode.IsDir() {
			if ea.Hash == eb.Hash {
				continue
			}
			at, err := object.GetTree(s, ea.Hash)
			if err != nil {
				return false, err
			}
			bt, err := object.GetTree(s, eb.Hash)
			if err != nil {
				return false, err
			}
			same, err := treesEqualUnder(s, filter, at, bt, path)
			if err != nil || !same {
				return false, err
			}
			continue
		}
		if ea.Hash != eb.Hash {
			return false, nil
		}
	}
}

// rewriteGenerator elides REWRITE-tagged commits from the stream (spec.md
// §4.3). The ParentIdx of a commit already emitted is not updated, so an
// emitted child can still name an elided parent.
type rewriteGenerator struct {
	inner generator
}

func (g *rewriteGenerator) next() (*RevCommit, error) {
	for {
		c, err := g.inner.next()
		if err != nil {
			return nil, err
		}
		if !c.Flags.Has(flagRewrite) {
			return c, nil
		}
		// Elided: the next pull from inner will surface its retained parent
		// in due course, already reparented by rewriteTreeFilter above.
	}
}
