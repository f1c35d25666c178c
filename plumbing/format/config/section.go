package config

import "strings"

// Section is a top-level config section such as "core" or "remote". Section
// names are matched case-insensitively, matching git's own rule.
type Section struct {
	Name        string
	Options     Options
	Subsections Subsections
}

// Sections is an ordered list of Section.
type Sections []*Section

// IsName reports whether name names this section, case-insensitively.
func (s *Section) IsName(name string) bool {
	return strings.EqualFold(s.Name, name)
}

// Subsection returns the named subsection, creating it if absent.
// Subsection names are matched case-sensitively.
func (s *Section) Subsection(name string) *Subsection {
	for _, sub := range s.Subsections {
		if sub.IsName(name) {
			return sub
		}
	}
	sub := &Subsection{Name: name}
	s.Subsections = append(s.Subsections, sub)
	return sub
}

// HasSubsection reports whether name has already been created under s.
func (s *Section) HasSubsection(name string) bool {
	for _, sub := range s.Subsections {
		if sub.IsName(name) {
			return true
		}
	}
	return false
}

// RemoveSubsection drops name from s, if present.
func (s *Section) RemoveSubsection(name string) *Section {
	kept := Subsections{}
	for _, sub := range s.Subsections {
		if !sub.IsName(name) {
			kept = append(kept, sub)
		}
	}
	s.Subsections = kept
	return s
}

// AddOption appends a new key/value pair, keeping any existing one with the
// same key.
func (s *Section) AddOption(key, value string) *Section {
	s.Options = append(s.Options, &Option{Key: key, Value: value})
	return s
}

// SetOption replaces every existing value for key with values, preserving
// the position of the first match (or appending if key is new).
func (s *Section) SetOption(key string, values ...string) *Section {
	s.Options = setOption(s.Options, key, values)
	return s
}

// RemoveOption drops every Option matching key.
func (s *Section) RemoveOption(key string) *Section {
	s.Options = removeOption(s.Options, key)
	return s
}

// Subsection is a named subsection of a Section, e.g. remote "origin".
// Subsection names are matched case-sensitively.
type Subsection struct {
	Name    string
	Options Options
}

// Subsections is an ordered list of Subsection.
type Subsections []*Subsection

func (s *Subsection) IsName(name string) bool { return s.Name == name }

func (s *Subsection) AddOption(key, value string) *Subsection {
	s.Options = append(s.Options, &Option{Key: key, Value: value})
	return s
}

func (s *Subsection) SetOption(key string, values ...string) *Subsection {
	s.Options = setOption(s.Options, key, values)
	return s
}

func (s *Subsection) RemoveOption(key string) *Subsection {
	s.Options = removeOption(s.Options, key)
	return s
}

func setOption(opts Options, key string, values []string) Options {
	kept := opts[:0:0]
	placed := false
	for _, o := range opts {
		if o.Key != key {
			kept = append(kept, o)
			continue
		}
		if !placed {
			for _, v := range values {
				kept = append(kept, &Option{Key: key, Value: v})
			}
			placed = true
		}
	}
	if !placed {
		for _, v := range values {
			kept = append(kept, &Option{Key: key, Value: v})
		}
	}
	return kept
}

func removeOption(opts Options, key string) Options {
	kept := opts[:0:0]
	for _, o := range opts {
		if o.Key != key {
			kept = append(kept, o)
		}
	}
	return kept
}
