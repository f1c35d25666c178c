// Package storer defines the storage-facing interfaces that the repository
// façade (C6), the ref store (C7) and the revision walker (C10) are built
// against, so that plumbing/object and revwalk never depend directly on
// storage/filesystem.
package storer

import (
	"errors"
	"io"

	"github.com/bluestreak/bgit/plumbing"
)

// ErrStop is a sentinel a ForEach callback may return to halt iteration
// early without it being treated as a failure.
var ErrStop = errors.New("stop iteration")

// EncodedObjectStorer is the read/write contract over the object database
// (C1–C6 combined): the façade other packages are handed.
type EncodedObjectStorer interface {
	NewEncodedObject() plumbing.EncodedObject
	SetEncodedObject(plumbing.EncodedObject) (plumbing.ObjectID, error)
	EncodedObject(plumbing.ObjectType, plumbing.ObjectID) (plumbing.EncodedObject, error)
	HasEncodedObject(plumbing.ObjectID) error
	EncodedObjectSize(plumbing.ObjectID) (int64, error)
	IterEncodedObjects(plumbing.ObjectType) (EncodedObjectIter, error)
}

// EncodedObjectIter enumerates objects, most often of a single type.
type EncodedObjectIter interface {
	Next() (plumbing.EncodedObject, error)
	ForEach(func(plumbing.EncodedObject) error) error
	Close()
}

// ReferenceStorer is the ref-store contract (C7).
type ReferenceStorer interface {
	SetReference(*plumbing.Reference) error
	// CheckAndSetReference sets new only if the ref currently holds old's
	// value (or old is nil, meaning "must not already exist" is not
	// enforced - matching §4.5's update protocol).
	CheckAndSetReference(new, old *plumbing.Reference) error
	Reference(plumbing.ReferenceName) (*plumbing.Reference, error)
	IterReferences() (ReferenceIter, error)
	RemoveReference(plumbing.ReferenceName) error
	CountLooseRefs() (int, error)
	PackRefs() error
}

// ReferenceIter enumerates references.
type ReferenceIter interface {
	Next() (*plumbing.Reference, error)
	ForEach(func(*plumbing.Reference) error) error
	Close()
}

// ResolveReference follows a possibly-symbolic reference to its final hash
// reference, bounded to avoid an infinite cycle (spec.md §4.5: "bounded
// depth (default 5)").
func ResolveReference(s ReferenceStorer, name plumbing.ReferenceName) (*plumbing.Reference, error) {
	const maxDepth = 5

	reference, err := s.Reference(name)
	if err != nil {
		return nil, err
	}

	for i := 0; i < maxDepth; i++ {
		if reference.Type() != plumbing.SymbolicReference {
			return reference, nil
		}

		reference, err = s.Reference(reference.Target())
		if err != nil {
			return nil, err
		}
	}

	return nil, ErrReferenceCycle
}

// ErrReferenceCycle is returned when resolving a symbolic reference exceeds
// the bounded depth.
var ErrReferenceCycle = errors.New("reference cycle or depth exceeded")

// ErrReferenceNotFound is returned when the requested reference name is not
// present in the store.
var ErrReferenceNotFound = errors.New("reference not found")

// sliceReferenceIter is a minimal ReferenceIter over an in-memory slice.
type sliceReferenceIter struct {
	series []*plumbing.Reference
	pos    int
}

func NewReferenceSliceIter(series []*plumbing.Reference) ReferenceIter {
	return &sliceReferenceIter{series: series}
}

func (i *sliceReferenceIter) Next() (*plumbing.Reference, error) {
	if i.pos >= len(i.series) {
		return nil, io.EOF
	}
	r := i.series[i.pos]
	i.pos++
	return r, nil
}

func (i *sliceReferenceIter) ForEach(cb func(*plumbing.Reference) error) error {
	for {
		r, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(r); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *sliceReferenceIter) Close() { i.pos = len(i.series) }

// sliceObjectIter is a minimal EncodedObjectIter over an in-memory slice,
// used by implementations that have already materialized their object set.
type sliceObjectIter struct {
	series []plumbing.EncodedObject
	pos    int
}

func NewEncodedObjectSliceIter(series []plumbing.EncodedObject) EncodedObjectIter {
	return &sliceObjectIter{series: series}
}

func (i *sliceObjectIter) Next() (plumbing.EncodedObject, error) {
	if i.pos >= len(i.series) {
		return nil, io.EOF
	}
	o := i.series[i.pos]
	i.pos++
	return o, nil
}

func (i *sliceObjectIter) ForEach(cb func(plumbing.EncodedObject) error) error {
	for {
		o, err := i.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := cb(o); err != nil {
			if err == ErrStop {
				return nil
			}
			return err
		}
	}
}

func (i *sliceObjectIter) Close() { i.pos = len(i.series) }
