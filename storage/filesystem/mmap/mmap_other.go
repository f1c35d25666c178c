//go:build !darwin && !linux

package mmap

import (
	"errors"

	billy "github.com/go-git/go-billy/v5"
)

// ErrUnsupported is returned on platforms without an mmap syscall wired up.
var ErrUnsupported = errors.New("mmap: unsupported on this platform")

// Map always fails on non-unix platforms; callers fall back to a heap read.
func Map(f billy.File, length int64) ([]byte, func() error, error) {
	return nil, nil, ErrUnsupported
}
