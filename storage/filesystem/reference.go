package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	billy "github.com/go-git/go-billy/v5"

	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
	"github.com/bluestreak/bgit/revwalk"
)

// UpdateResult classifies the outcome of a reference update (spec.md §4.5
// "Update protocol").
type UpdateResult int

const (
	UpdateNew UpdateResult = iota
	UpdateFastForward
	UpdateForced
	UpdateRejected
	UpdateLockFailure
	UpdateIOFailure
	UpdateNoChange
)

func (r UpdateResult) String() string {
	switch r {
	case UpdateNew:
		return "new"
	case UpdateFastForward:
		return "fast-forward"
	case UpdateForced:
		return "forced"
	case UpdateRejected:
		return "rejected"
	case UpdateLockFailure:
		return "lock-failure"
	case UpdateIOFailure:
		return "io-failure"
	case UpdateNoChange:
		return "no-change"
	default:
		return "unknown"
	}
}

// ReferenceStorage is the ref store (C7): loose refs under refs/, a single
// HEAD symref at the root, and a packed-refs fallback, all visible through
// one merged view (loose wins on conflict).
type ReferenceStorage struct {
	fs      billy.Filesystem
	objects *ObjectStorage

	mu sync.Mutex
}

// NewReferenceStorage opens the ref store rooted at fs, using objects to
// resolve ancestry for fast-forward detection during updates.
func NewReferenceStorage(fs billy.Filesystem, objects *ObjectStorage) *ReferenceStorage {
	return &ReferenceStorage{fs: fs, objects: objects}
}

// SetReference writes ref unconditionally (storer.ReferenceStorer).
func (s *ReferenceStorage) SetReference(ref *plumbing.Reference) error {
	_, err := s.writeLocked(ref, nil, true)
	return err
}

// CheckAndSetReference implements storer.ReferenceStorer's compare-and-swap
// contract: if old is non-nil, the update is rejected unless the ref
// currently matches old exactly.
func (s *ReferenceStorage) CheckAndSetReference(ref, old *plumbing.Reference) error {
	res, err := s.writeLocked(ref, old, false)
	if err != nil {
		return err
	}
	if res == UpdateRejected || res == UpdateLockFailure {
		return fmt.Errorf("filesystem: update %s: %s", ref.Name(), res)
	}
	return nil
}

// UpdateReference applies the full update protocol from spec.md §4.5,
// classifying the result. oldID may be plumbing.ZeroHash to mean "no
// existing value expected" and is ignored entirely when force is true.
func (s *ReferenceStorage) UpdateReference(name plumbing.ReferenceName, oldID, newID plumbing.ObjectID, force bool) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.Reference(name)
	currentExists := err == nil

	if currentExists && current.Hash() == newID {
		return UpdateNoChange, nil
	}

	if currentExists && !force {
		if current.Hash() != oldID {
			return UpdateLockFailure, nil
		}
	}

	fastForward := false
	if currentExists && !force {
		isAncestor, aerr := s.isAncestor(current.Hash(), newID)
		if aerr != nil {
			return UpdateIOFailure, aerr
		}
		if !isAncestor {
			return UpdateRejected, nil
		}
		fastForward = true
	}

	lock, err := acquireLock(s.fs, refFilePath(name))
	if err != nil {
		return UpdateLockFailure, nil
	}

	if _, werr := fmt.Fprintf(lock, "%s\n", newID); werr != nil {
		_ = lock.Rollback()
		return UpdateIOFailure, werr
	}
	if err := s.fs.MkdirAll(dirOf(refFilePath(name)), 0o755); err != nil {
		_ = lock.Rollback()
		return UpdateIOFailure, err
	}
	if err := lock.Commit(); err != nil {
		return UpdateIOFailure, err
	}

	switch {
	case !currentExists:
		return UpdateNew, nil
	case force:
		return UpdateForced, nil
	case fastForward:
		return UpdateFastForward, nil
	default:
		return UpdateForced, nil
	}
}

// isAncestor reports whether old is reachable from new's ancestry — a
// fast-forward is possible exactly when this holds (spec.md §4.5).
func (s *ReferenceStorage) isAncestor(old, new plumbing.ObjectID) (bool, error) {
	if old == new {
		return true, nil
	}
	w := revwalk.NewRevWalk(s.objects)
	if err := w.MarkStart(new); err != nil {
		return false, err
	}
	for {
		c, err := w.Next()
		if err == io.EOF {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if c.ID == old {
			return true, nil
		}
	}
}

// writeLocked is the shared body behind SetReference/CheckAndSetReference:
// acquire the ref's lock, optionally verify old, write, commit.
func (s *ReferenceStorage) writeLocked(ref, old *plumbing.Reference, skipCheck bool) (UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !skipCheck && old != nil {
		current, err := s.referenceLocked(ref.Name())
		if err != nil || !referenceEqual(current, old) {
			return UpdateRejected, nil
		}
	}

	lock, err := acquireLock(s.fs, refFilePath(ref.Name()))
	if err != nil {
		return UpdateLockFailure, err
	}

	content := referenceContent(ref)
	if _, err := lock.Write([]byte(content)); err != nil {
		_ = lock.Rollback()
		return UpdateIOFailure, err
	}
	if err := s.fs.MkdirAll(dirOf(refFilePath(ref.Name())), 0o755); err != nil {
		_ = lock.Rollback()
		return UpdateIOFailure, err
	}
	if err := lock.Commit(); err != nil {
		return UpdateIOFailure, err
	}
	return UpdateNew, nil
}

func referenceContent(ref *plumbing.Reference) string {
	if ref.Type() == plumbing.SymbolicReference {
		return fmt.Sprintf("ref: %s\n", ref.Target())
	}
	return fmt.Sprintf("%s\n", ref.Hash())
}

func referenceEqual(a, b *plumbing.Reference) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Type() == b.Type() && a.Hash() == b.Hash() && a.Target() == b.Target()
}

// Reference resolves name against the merged loose/packed-refs view.
func (s *ReferenceStorage) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.referenceLocked(name)
}

func (s *ReferenceStorage) referenceLocked(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	if ref, err := s.readLoose(name); err == nil {
		return ref, nil
	}

	packed, err := s.readPackedRefs()
	if err != nil {
		return nil, err
	}
	if ref, ok := packed[name]; ok {
		return ref, nil
	}
	return nil, storer.ErrReferenceNotFound
}

func (s *ReferenceStorage) readLoose(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	f, err := s.fs.Open(refFilePath(name))
	if err != nil {
		return nil, storer.ErrReferenceNotFound
	}
	defer f.Close()

	buf, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return parseReferenceLine(name, strings.TrimSpace(string(buf)))
}

func parseReferenceLine(name plumbing.ReferenceName, line string) (*plumbing.Reference, error) {
	if strings.HasPrefix(line, "ref: ") {
		target := plumbing.ReferenceName(strings.TrimSpace(strings.TrimPrefix(line, "ref: ")))
		return plumbing.NewSymbolicReference(name, target), nil
	}
	id, err := plumbing.FromHex(line)
	if err != nil {
		return nil, fmt.Errorf("filesystem: malformed reference %s: %v", name, err)
	}
	return plumbing.NewHashReference(name, id), nil
}

func (s *ReferenceStorage) readPackedRefs() (map[plumbing.ReferenceName]*plumbing.Reference, error) {
	f, err := s.fs.Open(packedRefsPath)
	if err != nil {
		return map[plumbing.ReferenceName]*plumbing.Reference{}, nil
	}
	defer f.Close()

	refs := make(map[plumbing.ReferenceName]*plumbing.Reference)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "^") {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		id, err := plumbing.FromHex(parts[0])
		if err != nil {
			continue
		}
		name := plumbing.ReferenceName(parts[1])
		refs[name] = plumbing.NewHashReference(name, id)
	}
	return refs, sc.Err()
}

// IterReferences enumerates the merged loose/packed view.
func (s *ReferenceStorage) IterReferences() (storer.ReferenceIter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[plumbing.ReferenceName]*plumbing.Reference)
	packed, err := s.readPackedRefs()
	if err != nil {
		return nil, err
	}
	for name, ref := range packed {
		merged[name] = ref
	}

	for _, name := range []plumbing.ReferenceName{plumbing.HEAD} {
		if ref, err := s.readLoose(name); err == nil {
			merged[name] = ref
		}
	}
	if err := s.walkLooseRefs("refs", merged); err != nil {
		return nil, err
	}

	refs := make([]*plumbing.Reference, 0, len(merged))
	for _, ref := range merged {
		refs = append(refs, ref)
	}
	return storer.NewReferenceSliceIter(refs), nil
}

func (s *ReferenceStorage) walkLooseRefs(dir string, out map[plumbing.ReferenceName]*plumbing.Reference) error {
	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		full := dir + "/" + e.Name()
		if e.IsDir() {
			if err := s.walkLooseRefs(full, out); err != nil {
				return err
			}
			continue
		}
		name := plumbing.ReferenceName(full)
		if ref, err := s.readLoose(name); err == nil {
			out[name] = ref
		}
	}
	return nil
}

func (s *ReferenceStorage) RemoveReference(name plumbing.ReferenceName) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fs.Remove(refFilePath(name))
}

func (s *ReferenceStorage) CountLooseRefs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[plumbing.ReferenceName]*plumbing.Reference)
	if err := s.walkLooseRefs("refs", out); err != nil {
		return 0, err
	}
	return len(out), nil
}

// PackRefs folds every loose ref into packed-refs, matching git's own
// space-reclaiming maintenance step (spec.md §4.5).
func (s *ReferenceStorage) PackRefs() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	loose := make(map[plumbing.ReferenceName]*plumbing.Reference)
	if err := s.walkLooseRefs("refs", loose); err != nil {
		return err
	}
	if len(loose) == 0 {
		return nil
	}

	packed, err := s.readPackedRefs()
	if err != nil {
		return err
	}
	for name, ref := range loose {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		packed[name] = ref
	}

	lock, err := acquireLock(s.fs, packedRefsPath)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(lock)
	fmt.Fprintln(w, "# pack-refs with: peeled fully-peeled sorted")
	for name, ref := range packed {
		fmt.Fprintf(w, "%s %s\n", ref.Hash(), name)
	}
	if err := w.Flush(); err != nil {
		_ = lock.Rollback()
		return err
	}
	if err := lock.Commit(); err != nil {
		return err
	}

	for name := range loose {
		_ = s.fs.Remove(refFilePath(name))
	}
	return nil
}
