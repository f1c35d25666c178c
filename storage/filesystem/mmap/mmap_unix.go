//go:build darwin || linux

// Package mmap memory-maps a pack or index file for read-only access,
// letting the window cache slice directly into the kernel's page cache
// instead of copying bytes on every window miss.
package mmap

import (
	"errors"

	billy "github.com/go-git/go-billy/v5"
	"golang.org/x/sys/unix"
)

// ErrNoFileDescriptor is returned when f's concrete type doesn't expose the
// underlying OS file descriptor mmap needs (e.g. an in-memory billy.File).
var ErrNoFileDescriptor = errors.New("mmap: file does not expose a descriptor")

// osFd is satisfied by *os.File itself, as returned by go-billy's osfs.
type osFd interface {
	Fd() uintptr
}

// billyFd is satisfied by billy.File implementations that know whether they
// have a descriptor to hand out (an in-memory filesystem's File does not).
type billyFd interface {
	Fd() (uintptr, bool)
}

func fileDescriptor(f billy.File) (uintptr, bool) {
	if bf, ok := f.(billyFd); ok {
		return bf.Fd()
	}
	if of, ok := f.(osFd); ok {
		return of.Fd(), true
	}
	return 0, false
}

// Map memory-maps the whole of f, sized to length. The returned cleanup
// unmaps the region and closes f; callers must not use the returned slice
// afterward.
func Map(f billy.File, length int64) ([]byte, func() error, error) {
	fd, ok := fileDescriptor(f)
	if !ok {
		return nil, nil, ErrNoFileDescriptor
	}

	data, err := unix.Mmap(int(fd), 0, int(length), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error {
		return errors.Join(unix.Munmap(data), f.Close())
	}
	return data, cleanup, nil
}
