package object

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// Tag is the canonical-form decode of an annotated tag object: a name, the
// object it points at, a tagger, a message, and an optional signature.
type Tag struct {
	Hash         plumbing.ObjectID
	Name         string
	Tagger       Signature
	Message      string
	TargetType   plumbing.ObjectType
	Target       plumbing.ObjectID
	PGPSignature string

	s storer.EncodedObjectStorer
}

func (t *Tag) ID() plumbing.ObjectID     { return t.Hash }
func (t *Tag) Type() plumbing.ObjectType { return plumbing.TagObject }

// Commit resolves the tag's target as a commit, failing if it points
// elsewhere.
func (t *Tag) Commit() (*Commit, error) {
	if t.TargetType != plumbing.CommitObject {
		return nil, fmt.Errorf("%w: tag target is %s", ErrUnsupportedObject, t.TargetType)
	}
	return GetCommit(t.s, t.Target)
}

// Tree resolves the tag's target as a tree.
func (t *Tag) Tree() (*Tree, error) {
	if t.TargetType != plumbing.TreeObject {
		return nil, fmt.Errorf("%w: tag target is %s", ErrUnsupportedObject, t.TargetType)
	}
	return GetTree(t.s, t.Target)
}

// Blob resolves the tag's target as a blob.
func (t *Tag) Blob() (*Blob, error) {
	if t.TargetType != plumbing.BlobObject {
		return nil, fmt.Errorf("%w: tag target is %s", ErrUnsupportedObject, t.TargetType)
	}
	return GetBlob(t.s, t.Target)
}

// Object resolves the tag's target to whichever concrete kind it is,
// including another tag (for a chain of nested tags).
func (t *Tag) Object() (Object, error) {
	return GetObject(t.s, t.Target)
}

// Decode parses o's payload into t.
func (t *Tag) Decode(o plumbing.EncodedObject) error {
	if o.Type() != plumbing.TagObject {
		return fmt.Errorf("%w: %s", ErrUnsupportedObject, o.Type())
	}

	t.Hash = o.ID()

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
		if err := t.setHeader(pendingKey, pendingVal.Bytes()); err != nil {
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
			return fmt.Errorf("%w: tag header %q", ErrMalformedObject, line)
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

	t.Message = body.String()
	return nil
}

func (t *Tag) setHeader(key string, val []byte) error {
	switch key {
	case "object":
		h, err := plumbing.FromHex(string(val))
		if err != nil {
			return fmt.Errorf("%w: object hash: %v", ErrMalformedObject, err)
		}
		t.Target = h
	case "type":
		ty, err := plumbing.ParseObjectType(string(val))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformedObject, err)
		}
		t.TargetType = ty
	case "tag":
		t.Name = string(val)
	case "tagger":
		t.Tagger.Decode(val)
	case "gpgsig":
		t.PGPSignature = string(val) + "\n"
	}
	return nil
}

// Encode serializes t back into o's writer in canonical form.
func (t *Tag) Encode(o plumbing.EncodedObject) error {
	w, err := o.Writer()
	if err != nil {
		return err
	}
	defer w.Close()

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "object %s\n", t.Target)
	fmt.Fprintf(bw, "type %s\n", t.TargetType)
	fmt.Fprintf(bw, "tag %s\n", t.Name)

	bw.WriteString("tagger ")
	t.Tagger.Encode(bw)
	bw.WriteByte('\n')

	if t.PGPSignature != "" {
		bw.WriteString("gpgsig ")
		bw.WriteString(strings.ReplaceAll(strings.TrimRight(t.PGPSignature, "\n"), "\n", "\n "))
		bw.WriteByte('\n')
	}

	bw.WriteByte('\n')
	bw.WriteString(t.Message)

	return bw.Flush()
}
