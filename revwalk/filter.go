package revwalk

import (
	"regexp"
	"strings"
)

// RevFilter decides whether a fully-parsed commit should be emitted.
// Returning plumbing.ErrStopWalk from Match signals that no further commit,
// in the walk's delivery order, could possibly match (spec.md §4.3
// "Cancellation / bounded work"); the walker stops cleanly rather than
// surfacing it as an error.
type RevFilter interface {
	Match(c *RevCommit) (bool, error)
	// Clone returns an independent copy, since a RevFilter may carry
	// per-match state (e.g. a compiled regexp is safe to share, but a
	// counting filter would not be) and is documented as clone()able but
	// not thread-safe (spec.md §4.3).
	Clone() RevFilter
}

type andRevFilter struct{ a, b RevFilter }

func (f andRevFilter) Match(c *RevCommit) (bool, error) {
	ok, err := f.a.Match(c)
	if err != nil || !ok {
		return false, err
	}
	return f.b.Match(c)
}
func (f andRevFilter) Clone() RevFilter { return andRevFilter{f.a.Clone(), f.b.Clone()} }

// AndFilter requires both a and b to match.
func AndFilter(a, b RevFilter) RevFilter { return andRevFilter{a, b} }

type orRevFilter struct{ a, b RevFilter }

func (f orRevFilter) Match(c *RevCommit) (bool, error) {
	ok, err := f.a.Match(c)
	if err != nil || ok {
		return ok, err
	}
	return f.b.Match(c)
}
func (f orRevFilter) Clone() RevFilter { return orRevFilter{f.a.Clone(), f.b.Clone()} }

// OrFilter requires either a or b to match.
func OrFilter(a, b RevFilter) RevFilter { return orRevFilter{a, b} }

type notRevFilter struct{ f RevFilter }

func (f notRevFilter) Match(c *RevCommit) (bool, error) {
	ok, err := f.f.Match(c)
	if err != nil {
		return false, err
	}
	return !ok, nil
}
func (f notRevFilter) Clone() RevFilter { return notRevFilter{f.f.Clone()} }

// NotFilter negates f.
func NotFilter(f RevFilter) RevFilter { return notRevFilter{f} }

// fieldFilter matches a regular expression against one of the three raw
// header fields a commit carries, working over the already-decoded string
// form (object.Commit.Decode preserves the raw bytes as-is, so this stays
// faithful to "raw (undecoded) bytes" in spirit without re-parsing).
type fieldFilter struct {
	re   *regexp.Regexp
	kind fieldKind
}

type fieldKind int

const (
	fieldAuthor fieldKind = iota
	fieldCommitter
	fieldMessage
)

func (f fieldFilter) Match(c *RevCommit) (bool, error) {
	var s string
	switch f.kind {
	case fieldAuthor:
		s = c.raw.Author.String()
	case fieldCommitter:
		s = c.raw.Committer.String()
	default:
		s = c.raw.Message
	}
	return f.re.MatchString(s), nil
}

func (f fieldFilter) Clone() RevFilter { return fieldFilter{re: f.re.Copy(), kind: f.kind} }

// AuthorFilter matches commits whose author line matches pattern.
func AuthorFilter(pattern string) (RevFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return fieldFilter{re: re, kind: fieldAuthor}, nil
}

// CommitterFilter matches commits whose committer line matches pattern.
func CommitterFilter(pattern string) (RevFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return fieldFilter{re: re, kind: fieldCommitter}, nil
}

// MessageFilter matches commits whose message matches pattern.
func MessageFilter(pattern string) (RevFilter, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return fieldFilter{re: re, kind: fieldMessage}, nil
}

// substringFilter is the plain, non-regex cousin of fieldFilter, for the
// common "contains" case without paying for regexp compilation.
type substringFilter struct {
	needle string
	kind   fieldKind
}

func (f substringFilter) Match(c *RevCommit) (bool, error) {
	var s string
	switch f.kind {
	case fieldAuthor:
		s = c.raw.Author.String()
	case fieldCommitter:
		s = c.raw.Committer.String()
	default:
		s = c.raw.Message
	}
	return strings.Contains(s, f.needle), nil
}

func (f substringFilter) Clone() RevFilter { return f }

// MessageSubstringFilter matches commits whose message contains needle.
func MessageSubstringFilter(needle string) RevFilter {
	return substringFilter{needle: needle, kind: fieldMessage}
}
