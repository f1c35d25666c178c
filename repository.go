// Package bgit ties the object database (C1-C6), ref store (C7), tree
// walker (C8), object canonical-form parser (C11), and revision walker
// (C10) together behind one Repository façade.
package bgit

import (
	"fmt"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/ProtonMail/go-crypto/openpgp"

	"github.com/bluestreak/bgit/config"
	"github.com/bluestreak/bgit/internal/revision"
	"github.com/bluestreak/bgit/object"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/storer"
	"github.com/bluestreak/bgit/revwalk"
	"github.com/bluestreak/bgit/storage/filesystem"
)

// Repository is the top-level façade (C6): object lookup across loose dirs
// and packs, ref resolution (including abbreviated hashes and the small
// "~N"/"^N"/"^{type}" revision syntax), and the entry points for walking
// history and trees.
type Repository struct {
	fs      billy.Filesystem
	Objects *filesystem.ObjectStorage
	Refs    *filesystem.ReferenceStorage
}

// Open opens an existing repository rooted at a bare git directory (i.e.
// the directory containing objects/ and refs/ directly, not a working
// tree's .git subdirectory).
func Open(path string) (*Repository, error) {
	return OpenFS(osfs.New(path))
}

// OpenFS opens a repository against an arbitrary go-billy filesystem.
func OpenFS(fs billy.Filesystem) (*Repository, error) {
	objects, err := filesystem.NewObjectStorage(fs)
	if err != nil {
		return nil, err
	}
	refs := filesystem.NewReferenceStorage(fs, objects)
	return &Repository{fs: fs, Objects: objects, Refs: refs}, nil
}

// Init creates the minimal directory skeleton (objects/, refs/heads,
// refs/tags, HEAD pointing at refs/heads/master) and opens it.
func Init(path string) (*Repository, error) {
	fs := osfs.New(path)
	for _, dir := range []string{"objects/pack", "refs/heads", "refs/tags"} {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	repo, err := OpenFS(fs)
	if err != nil {
		return nil, err
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.Master)
	if err := repo.Refs.SetReference(head); err != nil {
		return nil, err
	}

	cfg := config.NewConfig()
	cfg.Core.IsBare = true
	b, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	f, err := fs.Create("config")
	if err != nil {
		return nil, err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	return repo, nil
}

// ResolveRevision resolves a ref name, (possibly abbreviated) hash, or one
// of those followed by "~N"/"^N"/"^{type}" operators, into a concrete
// object id (spec.md's "revision expressions", SPEC_FULL.md supplement 3).
func (r *Repository) ResolveRevision(rev string) (plumbing.ObjectID, error) {
	expr, err := revision.Parse(rev)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	id, err := r.resolveBase(expr.Base)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	for _, op := range expr.Ops {
		id, err = r.applyOp(id, op)
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return id, nil
}

func (r *Repository) resolveBase(base string) (plumbing.ObjectID, error) {
	if id, err := plumbing.FromHex(base); err == nil {
		return id, nil
	}

	if ref, err := storer.ResolveReference(r.Refs, plumbing.ReferenceName(base)); err == nil {
		return ref.Hash(), nil
	}
	for _, prefix := range []string{"refs/heads/", "refs/tags/", "refs/remotes/", "refs/"} {
		if ref, err := storer.ResolveReference(r.Refs, plumbing.ReferenceName(prefix+base)); err == nil {
			return ref.Hash(), nil
		}
	}

	if abbr, err := plumbing.ParseAbbreviatedID(base); err == nil {
		return r.resolveAbbreviated(abbr)
	}

	return plumbing.ZeroHash, fmt.Errorf("%w: %q", plumbing.ErrObjectNotFound, base)
}

// resolveAbbreviated scans every object for a unique prefix match,
// returning ErrNotSupported if more than one candidate matches (spec.md's
// ObjectId model: "admits an abbreviated form", ambiguity is a caller-
// visible outcome, not silently picking one).
func (r *Repository) resolveAbbreviated(abbr plumbing.AbbreviatedID) (plumbing.ObjectID, error) {
	var found plumbing.ObjectID
	count := 0

	for _, t := range []plumbing.ObjectType{plumbing.CommitObject, plumbing.TreeObject, plumbing.BlobObject, plumbing.TagObject} {
		iter, err := r.Objects.IterEncodedObjects(t)
		if err != nil {
			continue
		}
		err = iter.ForEach(func(o plumbing.EncodedObject) error {
			if o.ID().HasPrefix(abbr) {
				found = o.ID()
				count++
				if count > 1 {
					return storer.ErrStop
				}
			}
			return nil
		})
		iter.Close()
		if err != nil {
			return plumbing.ZeroHash, err
		}
	}

	switch count {
	case 0:
		return plumbing.ZeroHash, fmt.Errorf("%w: abbreviated id %s", plumbing.ErrObjectNotFound, abbr)
	case 1:
		return found, nil
	default:
		return plumbing.ZeroHash, fmt.Errorf("%w: abbreviated id %s is ambiguous", plumbing.ErrNotSupported, abbr)
	}
}

func (r *Repository) applyOp(id plumbing.ObjectID, op revision.Op) (plumbing.ObjectID, error) {
	switch op.Kind {
	case revision.OpParent:
		cur := id
		for i := 0; i < op.N; i++ {
			c, err := object.GetCommit(r.Objects, cur)
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if c.NumParents() == 0 {
				return plumbing.ZeroHash, fmt.Errorf("%w: %s has no parent", plumbing.ErrObjectNotFound, cur)
			}
			cur = c.ParentHashes[0]
		}
		return cur, nil

	case revision.OpNthParent:
		if op.N == 0 {
			return id, nil
		}
		c, err := object.GetCommit(r.Objects, id)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if op.N > c.NumParents() {
			return plumbing.ZeroHash, fmt.Errorf("%w: %s has no parent #%d", plumbing.ErrObjectNotFound, id, op.N)
		}
		return c.ParentHashes[op.N-1], nil

	case revision.OpPeel:
		return r.peel(id, op.Type)
	}
	return id, fmt.Errorf("revision: unknown operator")
}

func (r *Repository) peel(id plumbing.ObjectID, want string) (plumbing.ObjectID, error) {
	for {
		o, err := object.GetObject(r.Objects, id)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if want == "" {
			if tag, ok := o.(*object.Tag); ok {
				id = tag.Target
				continue
			}
			return id, nil
		}
		switch want {
		case "commit":
			if o.Type() == plumbing.CommitObject {
				return id, nil
			}
		case "tree":
			if o.Type() == plumbing.TreeObject {
				return id, nil
			}
			if c, ok := o.(*object.Commit); ok {
				return c.TreeHash, nil
			}
		case "tag":
			if o.Type() == plumbing.TagObject {
				return id, nil
			}
		case "blob":
			if o.Type() == plumbing.BlobObject {
				return id, nil
			}
		}
		if tag, ok := o.(*object.Tag); ok {
			id = tag.Target
			continue
		}
		return plumbing.ZeroHash, fmt.Errorf("%w: %s cannot be peeled to %s", plumbing.ErrInvalidType, id, want)
	}
}

// Walk returns a RevWalk over this repository's objects, ready for
// MarkStart/MarkUninteresting.
func (r *Repository) Walk() *revwalk.RevWalk {
	return revwalk.NewRevWalk(r.Objects)
}

// Close releases any memory-mapped pack files this repository opened.
func (r *Repository) Close() error {
	return r.Objects.Close()
}

// Config reads this repository's local config file, layered over the
// global and system scopes the way git itself resolves core.*/user.*/etc
// (spec.md §6).
func (r *Repository) Config() (*config.Config, error) {
	local, err := config.ReadLocalConfig(r.fs)
	if err != nil {
		return nil, err
	}
	global, err := config.LoadConfig(config.GlobalScope)
	if err != nil {
		return nil, err
	}
	system, err := config.LoadConfig(config.SystemScope)
	if err != nil {
		return nil, err
	}
	return config.Merge(system, global, local)
}

// VerifyCommit checks c's PGP signature against keyRing (SPEC_FULL.md
// supplement 1).
func (r *Repository) VerifyCommit(c *object.Commit, keyRing openpgp.EntityList) (*openpgp.Entity, error) {
	return object.VerifyPGP(c, keyRing)
}

// VerifyTag checks t's PGP signature against keyRing.
func (r *Repository) VerifyTag(t *object.Tag, keyRing openpgp.EntityList) (*openpgp.Entity, error) {
	return object.VerifyPGP(t, keyRing)
}

// UpdateReference applies the full C7 update protocol to name.
func (r *Repository) UpdateReference(name plumbing.ReferenceName, oldID, newID plumbing.ObjectID, force bool) (filesystem.UpdateResult, error) {
	return r.Refs.UpdateReference(name, oldID, newID, force)
}

// WriteSymref points name at target (e.g. moving HEAD to a new branch).
func (r *Repository) WriteSymref(name, target plumbing.ReferenceName) error {
	return r.Refs.SetReference(plumbing.NewSymbolicReference(name, target))
}
