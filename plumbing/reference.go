package plumbing

import (
	"fmt"
	"strings"
)

// ReferenceName is the full name of a reference, e.g. "refs/heads/main" or
// the special name "HEAD".
type ReferenceName string

const (
	HEAD   ReferenceName = "HEAD"
	Master ReferenceName = "refs/heads/master"
)

// IsBranch reports whether n lives under refs/heads/.
func (n ReferenceName) IsBranch() bool { return strings.HasPrefix(string(n), "refs/heads/") }

// IsTag reports whether n lives under refs/tags/.
func (n ReferenceName) IsTag() bool { return strings.HasPrefix(string(n), "refs/tags/") }

// IsRemote reports whether n lives under refs/remotes/.
func (n ReferenceName) IsRemote() bool { return strings.HasPrefix(string(n), "refs/remotes/") }

// IsNote reports whether n lives under refs/notes/.
func (n ReferenceName) IsNote() bool { return strings.HasPrefix(string(n), "refs/notes/") }

// Short returns the ref name without its leading refs/heads/, refs/tags/,
// refs/remotes/ namespace; HEAD is returned as-is.
func (n ReferenceName) Short() string {
	s := string(n)
	for _, prefix := range []string{"refs/heads/", "refs/tags/", "refs/remotes/", "refs/"} {
		if strings.HasPrefix(s, prefix) {
			return strings.TrimPrefix(s, prefix)
		}
	}
	return s
}

func (n ReferenceName) String() string { return string(n) }

// ReferenceType distinguishes a hash reference from a symbolic one, or the
// absence of either (invalid).
type ReferenceType int8

const (
	InvalidReference ReferenceType = iota
	HashReference
	SymbolicReference
)

// Reference is a named pointer: either directly at an ObjectID (a "hash
// reference") or at another reference name (a "symbolic reference", e.g.
// HEAD pointing at refs/heads/main). A Reference whose Hash is the zero
// hash and whose Type is HashReference represents an "unborn" branch.
type Reference struct {
	typ    ReferenceType
	name   ReferenceName
	hash   ObjectID
	target ReferenceName
}

// NewHashReference builds a reference that points directly at an object.
func NewHashReference(name ReferenceName, hash ObjectID) *Reference {
	return &Reference{typ: HashReference, name: name, hash: hash}
}

// NewSymbolicReference builds a reference that points at another reference
// name.
func NewSymbolicReference(name, target ReferenceName) *Reference {
	return &Reference{typ: SymbolicReference, name: name, target: target}
}

func (r *Reference) Type() ReferenceType  { return r.typ }
func (r *Reference) Name() ReferenceName  { return r.name }
func (r *Reference) Hash() ObjectID       { return r.hash }
func (r *Reference) Target() ReferenceName { return r.target }

// IsUnborn reports whether this hash reference names no object yet (a
// freshly initialized branch before the first commit).
func (r *Reference) IsUnborn() bool {
	return r.typ == HashReference && r.hash.IsZero()
}

func (r *Reference) String() string {
	switch r.typ {
	case HashReference:
		return fmt.Sprintf("%s %s", r.hash, r.name)
	case SymbolicReference:
		return fmt.Sprintf("ref: %s %s", r.target, r.name)
	default:
		return "<invalid reference>"
	}
}
