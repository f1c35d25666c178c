package filesystem

import (
	"fmt"
	"os"

	billy "github.com/go-git/go-billy/v5"

	"github.com/bluestreak/bgit/plumbing"
)

// fileLock is the C12 scoped acquisition of "name.lock": create it
// exclusively, write through it, then either commit (atomic rename over
// name) or roll back (remove the lock file). Dropping it without either
// leaves the lock file in place; nothing removes it automatically (spec.md
// §4.5 "Lock file").
type fileLock struct {
	fs        billy.Filesystem
	path      string
	lockPath  string
	file      billy.File
	committed bool
	closed    bool
}

// acquireLock creates path+".lock" exclusively, failing with
// plumbing.ErrLockFailure if another writer already holds it.
func acquireLock(fs billy.Filesystem, path string) (*fileLock, error) {
	lockPath := path + ".lock"

	f, err := fs.OpenFile(lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", plumbing.ErrLockFailure, lockPath, err)
	}
	return &fileLock{fs: fs, path: path, lockPath: lockPath, file: f}, nil
}

func (l *fileLock) Write(p []byte) (int, error) { return l.file.Write(p) }

// Commit flushes and atomically renames the lock file over the real path.
func (l *fileLock) Commit() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.closed = true
	if err := l.fs.Rename(l.lockPath, l.path); err != nil {
		return err
	}
	l.committed = true
	return nil
}

// Rollback discards the lock file without touching the real path.
func (l *fileLock) Rollback() error {
	if !l.closed {
		_ = l.file.Close()
		l.closed = true
	}
	if l.committed {
		return nil
	}
	return l.fs.Remove(l.lockPath)
}
