package object

import (
	"strings"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/filemode"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// TreeEntryMatch is one tree's view of the current merged position: either a
// match (Mode/Hash valid) or a miss (Mode == filemode.Empty).
type TreeEntryMatch struct {
	Mode filemode.FileMode
	Hash plumbing.ObjectID
}

// Matched reports whether this tree had an entry at the current position.
func (m TreeEntryMatch) Matched() bool { return m.Mode != filemode.Empty }

// treeCursor walks a single Tree's sorted entries, exposing a one-entry
// lookahead so the N-way merge can compare without consuming.
type treeCursor struct {
	entries []TreeEntry
	pos     int
}

func newTreeCursor(t *Tree) *treeCursor {
	return &treeCursor{entries: t.Entries}
}

func (c *treeCursor) peek() (TreeEntry, bool) {
	if c.pos >= len(c.entries) {
		return TreeEntry{}, false
	}
	return c.entries[c.pos], true
}

// peekNext looks one entry beyond the current position. The D/F lookahead
// in step compares current positions only and does not call it.
func (c *treeCursor) peekNext() (TreeEntry, bool) {
	if c.pos+1 >= len(c.entries) {
		return TreeEntry{}, false
	}
	return c.entries[c.pos+1], true
}

func (c *treeCursor) advance() { c.pos++ }

// sortKey renders name as it compares in tree order: directories compare as
// if suffixed with "/" (spec.md §4.4 "Entry comparison").
func sortKey(name string, mode filemode.FileMode) string {
	if mode.IsDir() {
		return name + "/"
	}
	return name
}

// TreeWalker performs the N-way merge described in spec.md §4.4: one
// iteration produces the lexicographically smallest current name across all
// cursors, with every cursor reporting whether it had a match.
type TreeWalker struct {
	s       storer.EncodedObjectStorer
	cursors []*treeCursor
	recurse bool
	name    string
	current []TreeEntryMatch
}

// NewTreeWalker builds a walker over the given trees' roots. If recurse is
// true, Next automatically descends into directories that every cursor
// agrees are directories; otherwise the caller must call EnterSubtree.
func NewTreeWalker(s storer.EncodedObjectStorer, trees []*Tree, recurse bool) *TreeWalker {
	cursors := make([]*treeCursor, len(trees))
	for i, t := range trees {
		if t == nil {
			cursors[i] = &treeCursor{}
			continue
		}
		cursors[i] = newTreeCursor(t)
	}
	return &TreeWalker{s: s, cursors: cursors, recurse: recurse, current: make([]TreeEntryMatch, len(trees))}
}

// Next advances to the next merged position, returning the shared name and
// each tree's match. End of input is signalled by a nil error together with
// an empty name and a nil match slice.
func (w *TreeWalker) Next() (string, []TreeEntryMatch, error) {
	name, done, err := w.step()
	if err != nil || done {
		return "", nil, err
	}

	if w.recurse && w.isSubtree() {
		if err := w.EnterSubtree(); err != nil {
			return "", nil, err
		}
		return w.Next()
	}

	return name, w.current, nil
}

func (w *TreeWalker) step() (string, bool, error) {
	minName := ""
	haveMin := false

	for _, c := range w.cursors {
		e, ok := c.peek()
		if !ok {
			continue
		}
		k := sortKey(e.Name, e.Mode)
		if !haveMin || k < minName {
			minName = k
			haveMin = true
		}
	}
	if !haveMin {
		return "", true, nil
	}

	// D/F lookahead: if the minimum name belongs to a file on some cursor,
	// but another cursor has the same plain name as a directory at its
	// *current* position (not yet advanced past), prefer the directory's
	// sort key so both entries land in the same iteration.
	plainName := strings.TrimSuffix(minName, "/")
	forceDir := false
	for _, c := range w.cursors {
		e, ok := c.peek()
		if !ok {
			continue
		}
		if e.Name == plainName && e.Mode.IsDir() {
			forceDir = true
			break
		}
	}
	if forceDir {
		minName = plainName + "/"
	}

	w.name = plainName
	for i, c := range w.cursors {
		e, ok := c.peek()
		matches := ok && (e.Name == plainName) && (forceDir || sortKey(e.Name, e.Mode) == minName)
		if matches {
			w.current[i] = TreeEntryMatch{Mode: e.Mode, Hash: e.Hash}
			c.advance()
		} else {
			w.current[i] = TreeEntryMatch{}
		}
	}

	return w.name, false, nil
}

// Name returns the name matched by the most recent Next call.
func (w *TreeWalker) Name() string { return w.name }

// isSubtree reports whether every matching cursor at the current position
// agrees the entry is a directory.
func (w *TreeWalker) isSubtree() bool {
	any := false
	for _, m := range w.current {
		if !m.Matched() {
			continue
		}
		any = true
		if !m.Mode.IsDir() {
			return false
		}
	}
	return any
}

// EnterSubtree replaces every matching directory cursor with a cursor over
// that subtree's own entries, for manual (non-recursing) callers.
func (w *TreeWalker) EnterSubtree() error {
	for i, m := range w.current {
		if !m.Matched() || !m.Mode.IsDir() {
			continue
		}
		t, err := GetTree(w.s, m.Hash)
		if err != nil {
			return err
		}
		w.cursors[i] = newTreeCursor(t)
	}
	return nil
}

// TreeFilter decides whether a path (and everything beneath it) is of
// interest. Returning plumbing.ErrStopWalk from Check signals that no
// further path in the walk's lexicographic order can possibly match.
type TreeFilter interface {
	Check(path string, isDir bool) (bool, error)
}

type andFilter struct{ a, b TreeFilter }

func (f andFilter) Check(path string, isDir bool) (bool, error) {
	ok, err := f.a.Check(path, isDir)
	if err != nil || !ok {
		return false, err
	}
	return f.b.Check(path, isDir)
}

// And composes two filters, short-circuiting on the first rejection.
func And(a, b TreeFilter) TreeFilter { return andFilter{a, b} }

type orFilter struct{ a, b TreeFilter }

func (f orFilter) Check(path string, isDir bool) (bool, error) {
	ok, err := f.a.Check(path, isDir)
	if err != nil || ok {
		return ok, err
	}
	return f.b.Check(path, isDir)
}

// Or composes two filters, passing if either accepts.
func Or(a, b TreeFilter) TreeFilter { return orFilter{a, b} }

type notFilter struct{ f TreeFilter }

func (f notFilter) Check(path string, isDir bool) (bool, error) {
	ok, err := f.f.Check(path, isDir)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Not negates a filter.
func Not(f TreeFilter) TreeFilter { return notFilter{f} }

// PathFilterGroup matches a fixed set of root-relative paths (files or
// directory prefixes), raising plumbing.ErrStopWalk once the walk's current
// path sorts lexicographically past every target (spec.md §4.4).
type PathFilterGroup struct {
	paths []string
}

// NewPathFilterGroup builds a group from paths, trimming any trailing slash
// (spec.md: "do not permit a trailing slash").
func NewPathFilterGroup(paths []string) *PathFilterGroup {
	trimmed := make([]string, len(paths))
	for i, p := range paths {
		trimmed[i] = strings.TrimSuffix(p, "/")
	}
	return &PathFilterGroup{paths: trimmed}
}

func (g *PathFilterGroup) Check(path string, isDir bool) (bool, error) {
	pastAll := true
	for _, target := range g.paths {
		switch {
		case path == target:
			return true, nil
		case isDir && strings.HasPrefix(target, path+"/"):
			return true, nil
		case !isDir && strings.HasPrefix(path, target+"/"):
			return true, nil
		}
		if path <= target || strings.HasPrefix(path, target) {
			pastAll = false
		}
	}
	if pastAll {
		return false, plumbing.ErrStopWalk
	}
	return false, nil
}
