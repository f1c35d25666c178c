package config

import (
	"fmt"
	"io"
	"strings"
)

// Encoder writes a Config back out in git-config's ini-like format.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an Encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w}
}

// Encode serializes cfg, one "[section]"/"[section \"sub\"]" header per
// section/subsection followed by its "key = value" lines.
func (e *Encoder) Encode(cfg *Config) error {
	for _, s := range cfg.Sections {
		if len(s.Options) > 0 {
			if err := e.encodeHeader(s.Name, ""); err != nil {
				return err
			}
			if err := e.encodeOptions(s.Options); err != nil {
				return err
			}
		}
		for _, sub := range s.Subsections {
			if err := e.encodeHeader(s.Name, sub.Name); err != nil {
				return err
			}
			if err := e.encodeOptions(sub.Options); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Encoder) encodeHeader(section, subsection string) error {
	if subsection == "" {
		_, err := fmt.Fprintf(e.w, "[%s]\n", section)
		return err
	}
	escaped := strings.ReplaceAll(strings.ReplaceAll(subsection, `\`, `\\`), `"`, `\"`)
	_, err := fmt.Fprintf(e.w, "[%s \"%s\"]\n", section, escaped)
	return err
}

func (e *Encoder) encodeOptions(opts Options) error {
	for _, o := range opts {
		if _, err := fmt.Fprintf(e.w, "\t%s = %s\n", o.Key, o.Value); err != nil {
			return err
		}
	}
	return nil
}
