// Package memory implements an in-process storer.EncodedObjectStorer and
// storer.ReferenceStorer, grounded on the teacher's storage/filesystem
// object/reference pair (storage/filesystem/object.go,
// storage/filesystem/reference.go) but backed by plain maps instead of a
// dotgit layout — used by tests across the module and by callers that want
// a throwaway object database (e.g. building a commit in memory before
// writing it to a real repository).
package memory

import (
	"fmt"
	"io"
	"sync"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
)

// Storage is a map-backed object and reference store. The zero value is not
// usable; construct with NewStorage.
type Storage struct {
	mu      sync.RWMutex
	objects map[plumbing.ObjectID]plumbing.EncodedObject
	refs    map[plumbing.ReferenceName]*plumbing.Reference
}

// NewStorage returns an empty Storage.
func NewStorage() *Storage {
	return &Storage{
		objects: make(map[plumbing.ObjectID]plumbing.EncodedObject),
		refs:    make(map[plumbing.ReferenceName]*plumbing.Reference),
	}
}

func (s *Storage) NewEncodedObject() plumbing.EncodedObject {
	return &plumbing.MemoryObject{}
}

func (s *Storage) SetEncodedObject(o plumbing.EncodedObject) (plumbing.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := o.Reader()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer r.Close()

	buf, err := io.ReadAll(r)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	mo := plumbing.NewMemoryObject(o.Type(), buf)
	s.objects[mo.ID()] = mo
	return mo.ID(), nil
}

func (s *Storage) EncodedObject(t plumbing.ObjectType, id plumbing.ObjectID) (plumbing.EncodedObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[id]
	if !ok {
		return nil, plumbing.ErrObjectNotFound
	}
	if t != plumbing.InvalidObject && o.Type() != t {
		return nil, plumbing.ErrObjectNotFound
	}
	return o, nil
}

func (s *Storage) HasEncodedObject(id plumbing.ObjectID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.objects[id]; !ok {
		return plumbing.ErrObjectNotFound
	}
	return nil
}

func (s *Storage) EncodedObjectSize(id plumbing.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.objects[id]
	if !ok {
		return 0, plumbing.ErrObjectNotFound
	}
	return o.Size(), nil
}

func (s *Storage) IterEncodedObjects(t plumbing.ObjectType) (storer.EncodedObjectIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var objs []plumbing.EncodedObject
	for _, o := range s.objects {
		if t == plumbing.InvalidObject || o.Type() == t {
			objs = append(objs, o)
		}
	}
	return storer.NewEncodedObjectSliceIter(objs), nil
}

func (s *Storage) SetReference(r *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[r.Name()] = r
	return nil
}

// CheckAndSetReference sets new only if the stored value for new.Name()
// currently equals old (by hash/target), matching the compare-and-swap
// semantics spec.md §4.5 describes for the filesystem ref store's lock
// protocol.
func (s *Storage) CheckAndSetReference(new, old *plumbing.Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old != nil {
		cur := s.refs[new.Name()]
		if !referenceEqual(cur, old) {
			return fmt.Errorf("memory: reference %s changed since last read", new.Name())
		}
	}
	s.refs[new.Name()] = new
	return nil
}

func referenceEqual(a, b *plumbing.Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && a.Hash() == b.Hash() && a.Target() == b.Target()
}

func (s *Storage) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.refs[name]
	if !ok {
		return nil, storer.ErrReferenceNotFound
	}
	return r, nil
}

func (s *Storage) IterReferences() (storer.ReferenceIter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]*plumbing.Reference, 0, len(s.refs))
	for _, r := range s.refs {
		refs = append(refs, r)
	}
	return storer.NewReferenceSliceIter(refs), nil
}

func (s *Storage) RemoveReference(name plumbing.ReferenceName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refs, name)
	return nil
}

func (s *Storage) CountLooseRefs() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.refs), nil
}

// PackRefs is a no-op: a map has no loose/packed distinction to collapse.
func (s *Storage) PackRefs() error { return nil }
