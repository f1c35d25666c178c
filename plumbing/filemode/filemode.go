// Package filemode defines the small, fixed set of octal modes a tree entry
// may carry.
package filemode

import (
	"fmt"
	"strconv"
)

// FileMode is one of the handful of octal modes Git stores for a tree
// entry. Unlike a POSIX os.FileMode it is not a general permission bitmask:
// only the values below are legal in a canonical tree.
type FileMode uint32

const (
	Empty      FileMode = 0
	Dir        FileMode = 0040000
	Regular    FileMode = 0100644
	Deprecated FileMode = 0100664
	Executable FileMode = 0100755
	Symlink    FileMode = 0120000
	Submodule  FileMode = 0160000
)

// New parses the octal-ASCII mode bytes found in a tree entry.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("malformed mode %q: %w", s, err)
	}
	m := FileMode(n)
	if !m.Valid() {
		return 0, fmt.Errorf("out-of-range mode %o", n)
	}
	return m, nil
}

// Valid reports whether m is one of the modes Git's tree format allows.
func (m FileMode) Valid() bool {
	switch m {
	case Dir, Regular, Deprecated, Executable, Symlink, Submodule:
		return true
	default:
		return false
	}
}

// IsDir reports whether m denotes a subtree.
func (m FileMode) IsDir() bool { return m == Dir }

// IsFile reports whether m denotes a blob (regular, deprecated-regular or
// executable).
func (m FileMode) IsFile() bool {
	switch m {
	case Regular, Deprecated, Executable:
		return true
	default:
		return false
	}
}

func (m FileMode) String() string {
	return fmt.Sprintf("%06o", uint32(m))
}

// Bytes returns the octal-ASCII encoding used in a tree entry (no leading
// zero padding, matching Git's own writer).
func (m FileMode) Bytes() []byte {
	return []byte(strconv.FormatUint(uint64(m), 8))
}
