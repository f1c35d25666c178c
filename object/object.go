// Package object decodes the three structured object kinds (commit, tree,
// tag — blob is opaque) from their canonical byte layout (spec.md §4.4),
// and implements the tree walker (C8) over them.
package object

import (
	"errors"
	"fmt"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// ErrUnsupportedObject is returned when Decode is handed an EncodedObject of
// the wrong type for the receiver.
var ErrUnsupportedObject = errors.New("object: unsupported object type")

// ErrMalformedObject covers any canonical-form parse failure beyond a type
// mismatch: missing header lines, bad hash hex, bad timestamps.
var ErrMalformedObject = errors.New("object: malformed")

// Object is the common contract every decoded object kind satisfies.
type Object interface {
	ID() plumbing.ObjectID
	Type() plumbing.ObjectType
	Decode(plumbing.EncodedObject) error
}

// GetObject fetches and decodes id as whichever concrete kind its stored
// type turns out to be.
func GetObject(s storer.EncodedObjectStorer, id plumbing.ObjectID) (Object, error) {
	eo, err := s.EncodedObject(plumbing.InvalidObject, id)
	if err != nil {
		return nil, err
	}

	switch eo.Type() {
	case plumbing.CommitObject:
		c := &Commit{s: s}
		return c, c.Decode(eo)
	case plumbing.TreeObject:
		t := &Tree{s: s}
		return t, t.Decode(eo)
	case plumbing.TagObject:
		t := &Tag{s: s}
		return t, t.Decode(eo)
	case plumbing.BlobObject:
		b := &Blob{}
		return b, b.Decode(eo)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedObject, eo.Type())
	}
}

// GetCommit fetches and decodes id, failing if it is not a commit.
func GetCommit(s storer.EncodedObjectStorer, id plumbing.ObjectID) (*Commit, error) {
	eo, err := s.EncodedObject(plumbing.CommitObject, id)
	if err != nil {
		return nil, err
	}
	c := &Commit{s: s}
	return c, c.Decode(eo)
}

// GetTree fetches and decodes id, failing if it is not a tree.
func GetTree(s storer.EncodedObjectStorer, id plumbing.ObjectID) (*Tree, error) {
	eo, err := s.EncodedObject(plumbing.TreeObject, id)
	if err != nil {
		return nil, err
	}
	t := &Tree{s: s}
	return t, t.Decode(eo)
}

// GetTag fetches and decodes id, failing if it is not a tag.
func GetTag(s storer.EncodedObjectStorer, id plumbing.ObjectID) (*Tag, error) {
	eo, err := s.EncodedObject(plumbing.TagObject, id)
	if err != nil {
		return nil, err
	}
	t := &Tag{s: s}
	return t, t.Decode(eo)
}

// GetBlob fetches and decodes id, failing if it is not a blob.
func GetBlob(s storer.EncodedObjectStorer, id plumbing.ObjectID) (*Blob, error) {
	eo, err := s.EncodedObject(plumbing.BlobObject, id)
	if err != nil {
		return nil, err
	}
	b := &Blob{}
	return b, b.Decode(eo)
}
