package filesystem

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/bluestreak/bgit/internal/trace"
	"github.com/bluestreak/bgit/plumbing"
	"github.com/bluestreak/bgit/plumbing/format/idxfile"
	"github.com/bluestreak/bgit/plumbing/format/packfile"
)

const infoPacksPath = "objects/info/packs"

// WritePack ingests a full pack stream (spec.md §4.2 "Indexing a pack"): it
// is spilled to a temp file while being scanned, resolved into a sorted
// index, and both files are committed into objects/pack/ under their
// final, content-derived names (C9 steps 1-7) before the pack becomes
// visible to lookups. opts.External defaults to this storage itself, so a
// thin pack's REF_DELTA bases can be satisfied from already-stored loose
// objects or other packs.
func (s *ObjectStorage) WritePack(r io.Reader, opts packfile.Options) (plumbing.ObjectID, error) {
	if opts.External == nil {
		opts.External = s
	}
	opts.FixThin = true

	spill, err := newTempBuffer(s.fs, objectsPath)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	entries, trailer, err := packfile.ScanAndSpill(r, spill)
	if err != nil {
		_ = spill.discard()
		return plumbing.ZeroHash, err
	}

	size, err := spill.size()
	if err != nil {
		_ = spill.discard()
		return plumbing.ZeroHash, err
	}

	fixedEntries, fixedSize, fixedTrailer, err := packfile.FixThinPack(spill, size, entries, opts)
	if err != nil {
		_ = spill.discard()
		return plumbing.ZeroHash, err
	}
	entries = fixedEntries
	if fixedTrailer != plumbing.ZeroHash {
		trailer = fixedTrailer
		_ = fixedSize // size is re-derived from finalize's Stat below
	}

	name := trailer.String()
	packFile, packSize, err := spill.finalize(packFilePath(name))
	if err != nil {
		return plumbing.ZeroHash, err
	}

	idx, err := packfile.BuildIndex(packFile, packSize, trailer, entries, opts)
	if err != nil {
		_ = packFile.Close()
		return plumbing.ZeroHash, err
	}

	version := opts.DefaultVersion
	if version == 0 {
		version = idxfile.ShouldUseV2(idx.Entries(), opts.WantCRC32, idxfile.VersionV1)
	}

	if err := s.writeIndexFile(name, idx, version, trailer); err != nil {
		_ = packFile.Close()
		return plumbing.ZeroHash, err
	}
	if err := packFile.Close(); err != nil {
		return plumbing.ZeroHash, err
	}

	// openPackSource takes s.mu itself when mmap succeeds, so it must run
	// before this storage's own lock is held.
	source := s.openPackSource(packFilePath(name), packSize)

	s.mu.Lock()
	s.indexes[trailer] = idx
	s.window.Register(packFilePath(name), source)
	s.packs[trailer] = packfile.NewPack(packFilePath(name), packSize, idx, s.window, s)
	s.packList = append([]plumbing.ObjectID{trailer}, s.packList...)
	s.mu.Unlock()

	if err := s.writeInfoPacks(); err != nil {
		return plumbing.ZeroHash, err
	}

	trace.Storage.Printf("storage: wrote pack %s (%d object(s), %d bytes)", name, len(entries), packSize)
	return trailer, nil
}

func (s *ObjectStorage) writeIndexFile(name string, idx *idxfile.MemoryIndex, version idxfile.Version, trailer plumbing.ObjectID) error {
	buf, err := newTempBuffer(s.fs, objectsPath)
	if err != nil {
		return err
	}
	if _, err := idxfile.NewEncoder(buf.file).Encode(idx, version, trailer); err != nil {
		_ = buf.discard()
		return err
	}
	f, _, err := buf.finalize(indexFilePath(name))
	if err != nil {
		return err
	}
	return f.Close()
}

// writeInfoPacks regenerates objects/info/packs, git's plain-text listing
// of every pack present, in descending order of pack name (spec.md §6
// on-disk layout; folded
// into the indexer's commit step per SPEC_FULL.md supplement 2).
func (s *ObjectStorage) writeInfoPacks() error {
	s.mu.RLock()
	names := make([]string, 0, len(s.packList))
	for _, id := range s.packList {
		names = append(names, id.String())
	}
	s.mu.RUnlock()

	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	if err := s.fs.MkdirAll("objects/info", 0o755); err != nil {
		return err
	}

	lock, err := acquireLock(s.fs, infoPacksPath)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(lock)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "P pack-%s.pack\n", name); err != nil {
			_ = lock.Rollback()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = lock.Rollback()
		return err
	}
	return lock.Commit()
}
