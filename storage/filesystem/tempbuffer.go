package filesystem

import (
	"io"

	billy "github.com/go-git/go-billy/v5"
)

// tempBuffer is a random-access scratch file used as the packfile indexer's
// Spill sink (C13 "Random-access temp buffer"): packfile.ScanAndSpill
// writes the incoming pack stream through it while scanning, then
// packfile.BuildIndex reads it back by offset to resolve deltas, all
// without holding the whole pack in memory.
type tempBuffer struct {
	fs   billy.Filesystem
	file billy.File
}

// newTempBuffer creates a uniquely-named file under dir, in the billy
// temp-file convention the teacher's writers.go uses.
func newTempBuffer(fs billy.Filesystem, dir string) (*tempBuffer, error) {
	f, err := fs.TempFile(dir, "incoming-")
	if err != nil {
		return nil, err
	}
	return &tempBuffer{fs: fs, file: f}, nil
}

func (t *tempBuffer) Write(p []byte) (int, error) { return t.file.Write(p) }

func (t *tempBuffer) ReadAt(p []byte, off int64) (int, error) { return t.file.ReadAt(p, off) }

// WriteAt writes p at off, overwriting or extending the file, then restores
// the file position it found (packfile.FixThinPack writes the appended thin
// bases, the rewritten header object count and the new trailer through it).
func (t *tempBuffer) WriteAt(p []byte, off int64) (int, error) {
	cur, err := t.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	if _, err := t.file.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := t.file.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := t.file.Seek(cur, io.SeekStart); err != nil {
		return n, err
	}
	return n, nil
}

// size reports the number of bytes written so far, i.e. the current file
// position (tempBuffer is only ever written sequentially except through
// WriteAt, which restores position, so after a WriteAt past the end this no
// longer equals the file length).
func (t *tempBuffer) size() (int64, error) {
	return t.file.Seek(0, io.SeekCurrent)
}

// finalize renames the temp file into its permanent pack path and returns
// a fresh read-only handle plus the final size.
func (t *tempBuffer) finalize(finalPath string) (billy.File, int64, error) {
	if err := t.file.Close(); err != nil {
		return nil, 0, err
	}
	if err := t.fs.Rename(t.file.Name(), finalPath); err != nil {
		return nil, 0, err
	}
	f, err := t.fs.Open(finalPath)
	if err != nil {
		return nil, 0, err
	}
	info, err := t.fs.Stat(finalPath)
	if err != nil {
		return nil, 0, err
	}
	return f, info.Size(), nil
}

// discard removes the temp file without installing it anywhere, used when
// indexing fails partway through.
func (t *tempBuffer) discard() error {
	name := t.file.Name()
	_ = t.file.Close()
	return t.fs.Remove(name)
}
