// Package config implements the ini-like git-config file format (sections,
// subsections, options), independent of what any particular key means --
// that mapping lives in the config package above this one.
package config

// NoSubsection is passed to Config.AddOption/SetOption/GetOption in place of
// a subsection name when none applies.
const NoSubsection = ""

// Config holds every section parsed from (or destined for) a single
// git-config file.
type Config struct {
	Sections Sections
}

// New returns an empty Config.
func New() *Config {
	return &Config{}
}

// Section returns the named section, creating it if absent.
func (c *Config) Section(name string) *Section {
	for _, s := range c.Sections {
		if s.IsName(name) {
			return s
		}
	}
	s := &Section{Name: name}
	c.Sections = append(c.Sections, s)
	return s
}

// HasSection reports whether name has already been created.
func (c *Config) HasSection(name string) bool {
	for _, s := range c.Sections {
		if s.IsName(name) {
			return true
		}
	}
	return false
}

// RemoveSection drops name, if present.
func (c *Config) RemoveSection(name string) *Config {
	kept := Sections{}
	for _, s := range c.Sections {
		if !s.IsName(name) {
			kept = append(kept, s)
		}
	}
	c.Sections = kept
	return c
}

// AddOption appends key=value under section[.subsection].
func (c *Config) AddOption(section, subsection, key, value string) *Config {
	if subsection == NoSubsection {
		c.Section(section).AddOption(key, value)
	} else {
		c.Section(section).Subsection(subsection).AddOption(key, value)
	}
	return c
}

// SetOption replaces every value of key under section[.subsection].
func (c *Config) SetOption(section, subsection, key string, values ...string) *Config {
	if subsection == NoSubsection {
		c.Section(section).SetOption(key, values...)
	} else {
		c.Section(section).Subsection(subsection).SetOption(key, values...)
	}
	return c
}

// GetOption returns the last value of key under section[.subsection], or ""
// if unset. git config's "last one wins" rule applies.
func (c *Config) GetOption(section, subsection, key string) string {
	if subsection == NoSubsection {
		return c.Section(section).Options.Get(key)
	}
	return c.Section(section).Subsection(subsection).Options.Get(key)
}
