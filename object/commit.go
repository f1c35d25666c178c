package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// Commit is the canonical-form decode of a commit object (spec.md §4.4):
// the working tree it records, its parents, authorship and message.
type Commit struct {
	Hash         plumbing.ObjectID
	Author       Signature
	Committer    Signature
	Message      string
	TreeHash     plumbing.ObjectID
	ParentHashes []plumbing.ObjectID
	PGPSignature string

	s storer.EncodedObjectStorer
}

// ID returns the commit's own hash.
func (c *Commit) ID() plumbing.ObjectID { return c.Hash }

// Type always reports plumbing.CommitObject.
func (c *Commit) Type() plumbing.ObjectType { return plumbing.CommitObject }

// Tree fetches and decodes the commit's recorded tree.
func (c *Commit) Tree() (*Tree, error) {
	return GetTree(c.s, c.TreeHash)
}

// NumParents returns how many parents this commit has (0 for a root commit,
// 2+ for a merge).
func (c *Commit) NumParents() int { return len(c.ParentHashes) }

// Parent fetches and decodes the i-th parent.
func (c *Commit) Parent(i int) (*Commit, error) {
	if i < 0 || i >= len(c.ParentHashes) {
		return nil, plumbing.ErrObjectNotFound
	}
	return GetCommit(c.s, c.ParentHashes[i])
}

// Parents returns an iterator over every parent commit, in header order.
func (c *Commit) Parents() *CommitIter {
	return &CommitIter{s: c.s, hashes: c.ParentHashes}
}

// CommitIter walks a fixed, pre-materialized list of commit hashes (used for
// a single commit's parents; the richer history walk lives in package
// revwalk).
type CommitIter struct {
	s      storer.EncodedObjectStorer
	hashes []plumbing.ObjectID
	pos    int
}

// Next returns the next commit, or io.EOF once exhausted.
func (i *CommitIter) Next() (*Commit, error) {
	if i.pos >= len(i.hashes) {
		return nil, io.EOF
	}
	h := i.hashes[i.pos]
	i.pos++
	return GetCommit(i.s, h)
}

// ForEach calls cb for every remaining commit, stopping early without error
// if cb returns storer.ErrStop.
func (i *CommitIter) ForEach(cb func(*Commit) error) error {
	for {
		c, err := i.Next()
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

// Close discards the iterator's remaining state.
func (i *CommitIter) Close() { i.pos = len(i.hashes) }

// Decode parses o's payload into c, failing with ErrUnsupportedObject if o
// is not a commit.
func (c *Commit) Decode(o plumbing.EncodedObject) error {
	if o.Type() != plumbing.CommitObject {
		return fmt.Errorf("%w: %s", ErrUnsupportedObject, o.Type())
	}

	c.Hash = o.ID()

	r, err := o.Reader()
	if err != nil {
		return err
	}
	defer r.Close()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pendingKey string
	var pendingVal bytes.Buffer
	flush := func() error {
		if pendingKey == "" {
			return nil
		}
		if err := c.setHeader(pendingKey, pendingVal.Bytes()); err != nil {
			return err
		}
		pendingKey = ""
		pendingVal.Reset()
		return nil
	}

	inBody := false
	var body bytes.Buffer

	for sc.Scan() {
		line := sc.Bytes()

		if inBody {
			body.Write(line)
			body.WriteByte('\n')
			continue
		}

		if len(line) == 0 {
			if err := flush(); err != nil {
				return err
			}
			inBody = true
			continue
		}

		if len(line) > 0 && line[0] == ' ' && pendingKey != "" {
			pendingVal.WriteByte('\n')
			pendingVal.Write(bytes.TrimPrefix(line, []byte(" ")))
			continue
		}

		if err := flush(); err != nil {
			return err
		}

		sp := bytes.IndexByte(line, ' ')
		if sp == -1 {
			return fmt.Errorf("%w: commit header %q", ErrMalformedObject, line)
		}
		pendingKey = string(line[:sp])
		pendingVal.Write(line[sp+1:])
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if err := flush(); err != nil {
		return err
	}

	c.Message = body.String()
	return nil
}

func (c *Commit) setHeader(key string, val []byte) error {
	switch key {
	case "tree":
		h, err := plumbing.FromHex(string(val))
		if err != nil {
			return fmt.Errorf("%w: tree hash: %v", ErrMalformedObject, err)
		}
		c.TreeHash = h
	case "parent":
		h, err := plumbing.FromHex(string(val))
		if err != nil {
			return fmt.Errorf("%w: parent hash: %v", ErrMalformedObject, err)
		}
		c.ParentHashes = append(c.ParentHashes, h)
	case "author":
		c.Author.Decode(val)
	case "committer":
		c.Committer.Decode(val)
	case "gpgsig":
		c.PGPSignature = string(val) + "\n"
	default:
		// mergetag and other extension headers are preserved nowhere; spec.md
		// does not ask for them to round-trip.
	}
	return nil
}

// Encode serializes c back into o's writer in canonical form.
func (c *Commit) Encode(o plumbing.EncodedObject) error {
	o.SetSize(0) // computed by the writer on Close
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "tree %s\n", c.TreeHash)
	for _, p := range c.ParentHashes {
		fmt.Fprintf(bw, "parent %s\n", p)
	}

	bw.WriteString("author ")
	c.Author.Encode(bw)
	bw.WriteByte('\n')

	bw.WriteString("committer ")
	c.Committer.Encode(bw)
	bw.WriteByte('\n')

	if c.PGPSignature != "" {
		bw.WriteString("gpgsig ")
		bw.WriteString(strings.ReplaceAll(strings.TrimRight(c.PGPSignature, "\n"), "\n", "\n "))
		bw.WriteByte('\n')
	}

	bw.WriteByte('\n')
	bw.WriteString(c.Message)

	return bw.Flush()
}

// String renders a short, `git log`-like summary.
func (c *Commit) String() string {
	return fmt.Sprintf("commit %s\nAuthor: %s\n\n%s", c.Hash, c.Author.String(), c.Message)
}
