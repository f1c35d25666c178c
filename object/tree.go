package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/filemode"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// TreeEntry is a single name/mode/id record inside a tree object.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.ObjectID
}

// Tree is the canonical-form decode of a tree object: a flat, sorted list of
// entries, each naming either a blob, another tree, or a submodule commit.
type Tree struct {
	Hash    plumbing.ObjectID
	Entries []TreeEntry

	s storer.EncodedObjectStorer
}

func (t *Tree) ID() plumbing.ObjectID     { return t.Hash }
func (t *Tree) Type() plumbing.ObjectType { return plumbing.TreeObject }

// Decode parses o's payload into t.
func (t *Tree) Decode(o plumbing.EncodedObject) error {
	if o.Type() != plumbing.TreeObject {
		return fmt.Errorf("%w: %s", ErrUnsupportedObject, o.Type())
	}

	t.Hash = o.ID()
	t.Entries = t.Entries[:0]

	r, err := o.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	br := bufio.NewReader(r)
	for {
		modeAndName, err := br.ReadString(0)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: tree entry header: %v", ErrMalformedObject, err)
		}
		modeAndName = modeAndName[:len(modeAndName)-1] // drop the NUL

		sp := bytes.IndexByte([]byte(modeAndName), ' ')
		if sp == -1 {
			return fmt.Errorf("%w: tree entry %q", ErrMalformedObject, modeAndName)
		}

		mode, err := filemode.New(modeAndName[:sp])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedObject, err)
		}
		name := modeAndName[sp+1:]

		var idBuf [plumbing.Size]byte
		if _, err := io.ReadFull(br, idBuf[:]); err != nil {
			return fmt.Errorf("%w: tree entry id: %v", ErrMalformedObject, err)
		}
		id, err := plumbing.FromBytes(idBuf[:])
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedObject, err)
		}

		t.Entries = append(t.Entries, TreeEntry{Name: name, Mode: mode, Hash: id})
	}

	return nil
}

// Encode serializes t back into o's writer in canonical, name-sorted form.
func (t *Tree) Encode(o plumbing.EncodedObject) error {
	entries := make([]TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	sort.Slice(entries, func(i, j int) bool {
		return treeEntryLess(entries[i], entries[j])
	})

	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	bw := bufio.NewWriter(w)
	for _, e := range entries {
		bw.Write(e.Mode.Bytes())
		bw.WriteByte(' ')
		bw.WriteString(e.Name)
		bw.WriteByte(0)
		bw.Write(e.Hash[:])
	}
	return bw.Flush()
}

// treeEntryLess implements Git's tree sort order: entries compare as if a
// trailing "/" were appended to directory names, so "foo" sorts after
// "foo-bar" but before "foo/bar".
func treeEntryLess(a, b TreeEntry) bool {
	an, bn := a.Name, b.Name
	if a.Mode.IsDir() {
		an += "/"
	}
	if b.Mode.IsDir() {
		bn += "/"
	}
	return an < bn
}

// File looks up a single blob by path, descending through subtrees.
func (t *Tree) File(path string) (*Blob, plumbing.ObjectID, error) {
	entry, err := t.findPath(path)
	if err != nil {
		return nil, plumbing.ZeroHash, err
	}
	if entry.Mode.IsDir() {
		return nil, plumbing.ZeroHash, fmt.Errorf("%w: %s is a directory", plumbing.ErrObjectNotFound, path)
	}
	b, err := GetBlob(t.s, entry.Hash)
	return b, entry.Hash, err
}

// Subtree looks up a subtree by path.
func (t *Tree) Subtree(path string) (*Tree, error) {
	entry, err := t.findPath(path)
	if err != nil {
		return nil, err
	}
	if !entry.Mode.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a tree", plumbing.ErrObjectNotFound, path)
	}
	return GetTree(t.s, entry.Hash)
}

func (t *Tree) findPath(path string) (TreeEntry, error) {
	cur := t
	var last TreeEntry
	segs := splitPath(path)
	for i, seg := range segs {
		e, ok := cur.entry(seg)
		if !ok {
			return TreeEntry{}, fmt.Errorf("%w: %s", plumbing.ErrObjectNotFound, path)
		}
		last = e
		if i < len(segs)-1 {
			next, err := GetTree(cur.s, e.Hash)
			if err != nil {
				return TreeEntry{}, err
			}
			cur = next
		}
	}
	return last, nil
}

func (t *Tree) entry(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

func splitPath(p string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(p); i++ {
		if i == len(p) || p[i] == '/' {
			if i > start {
				out = append(out, p[start:i])
			}
			start = i + 1
		}
	}
	return out
}
