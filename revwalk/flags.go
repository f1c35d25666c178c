// Package revwalk implements the pull-driven generator pipeline described in
// spec.md §4.3: a configurable enumeration of the commit graph reachable
// from a set of interesting tips and not from a set of uninteresting ones.
package revwalk

import "fmt"

// RevFlag is a single per-commit bit. Up to 32 fit in a RevFlagSet; the
// walker reserves the low six for its own bookkeeping (spec.md §9).
type RevFlag uint32

// RevFlagSet is a bitwise union of RevFlag values.
type RevFlagSet uint32

// The six reserved walker flags (spec.md §3 "WalkerFlags").
const (
	flagParsed RevFlag = 1 << iota
	flagSeen
	flagUninteresting
	flagRewrite
	flagTopoDelay
	flagTempMark

	firstUserFlag = flagTempMark << 1
	maxUserFlags  = 7
)

// Has reports whether f is set in s.
func (s RevFlagSet) Has(f RevFlag) bool { return s&RevFlagSet(f) != 0 }

// HasAll reports whether every flag in other is set in s.
func (s RevFlagSet) HasAll(other RevFlagSet) bool { return s&other == other }

// HasAny reports whether any flag in other is set in s.
func (s RevFlagSet) HasAny(other RevFlagSet) bool { return s&other != 0 }

// Add returns s with f set.
func (s RevFlagSet) Add(f RevFlag) RevFlagSet { return s | RevFlagSet(f) }

// AddSet returns the union of s and other.
func (s RevFlagSet) AddSet(other RevFlagSet) RevFlagSet { return s | other }

// Remove returns s with f cleared.
func (s RevFlagSet) Remove(f RevFlag) RevFlagSet { return s &^ RevFlagSet(f) }

// flagAllocator hands out the seven user-allocatable flags (spec.md §9).
type flagAllocator struct {
	next RevFlag
}

func newFlagAllocator() *flagAllocator {
	return &flagAllocator{next: firstUserFlag}
}

// NewFlag allocates a fresh application flag, used for carry-flags and for
// the merge-base filter's per-tip start markers. It fails once the 7-flag
// budget (spec.md §9) is exhausted.
func (a *flagAllocator) NewFlag() (RevFlag, error) {
	if a.next == 0 || a.next > firstUserFlag<<(maxUserFlags-1) {
		return 0, fmt.Errorf("revwalk: out of application flags (max %d)", maxUserFlags)
	}
	f := a.next
	a.next <<= 1
	return f, nil
}
