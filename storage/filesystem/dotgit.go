// Package filesystem implements the on-disk object database (C6), pack
// storage (C9), and ref store (C7) against a go-billy filesystem, grounded
// on the teacher's storage/filesystem package and its internal/dotgit path
// layout.
package filesystem

import (
	"os"
	"path"
	"sort"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/bluestreak/bgit/plumbing"
)

const (
	objectsPath    = "objects"
	packPath       = "objects/pack"
	packedRefsPath = "packed-refs"
)

// looseObjectPath returns "objects/ab/cdef..." for id.
func looseObjectPath(id plumbing.ObjectID) string {
	hex := id.String()
	return path.Join(objectsPath, hex[:2], hex[2:])
}

// packFilePath/indexFilePath return the canonical names for a pack
// identified by its trailer hash.
func packFilePath(name string) string { return path.Join(packPath, "pack-"+name+".pack") }
func indexFilePath(name string) string { return path.Join(packPath, "pack-"+name+".idx") }

// listPackNames returns the base names (without "pack-"/extension) of every
// pack present under objects/pack.
func listPackNames(fs billy.Filesystem) ([]string, error) {
	entries, err := fs.ReadDir(packPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, e := range entries {
		n := e.Name()
		if !strings.HasPrefix(n, "pack-") || !strings.HasSuffix(n, ".pack") {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(n, "pack-"), ".pack")
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// listLooseObjects walks the two-level objects/ fanout, returning every
// loose object id present.
func listLooseObjects(fs billy.Filesystem) ([]plumbing.ObjectID, error) {
	dirs, err := fs.ReadDir(objectsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []plumbing.ObjectID
	for _, d := range dirs {
		if !d.IsDir() || len(d.Name()) != 2 {
			continue
		}
		sub, err := fs.ReadDir(path.Join(objectsPath, d.Name()))
		if err != nil {
			continue
		}
		for _, f := range sub {
			if f.IsDir() || len(f.Name()) != 38 {
				continue
			}
			id, err := plumbing.FromHex(d.Name() + f.Name())
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// refFilePath maps a reference name to its loose-ref file path: HEAD lives
// at the root, everything else nests under its own name (which already
// starts with "refs/").
func refFilePath(name plumbing.ReferenceName) string {
	return path.Clean(string(name))
}
