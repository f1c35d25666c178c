package config

import (
	"io"

	"github.com/go-git/gcfg/v2"
)

// Decoder reads and decodes a git-config file from an input stream.
type Decoder struct {
	io.Reader
}

// NewDecoder returns a Decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r}
}

// Decode reads the whole config from its input and stores it in cfg. It
// relies on gcfg's callback decoding mode rather than gcfg's own struct
// tags, since a git-config file's section/key set is open-ended.
func (d *Decoder) Decode(cfg *Config) error {
	cb := func(section, subsection, key, value string, _ bool) error {
		if subsection == "" && key == "" {
			cfg.Section(section)
			return nil
		}
		if subsection != "" && key == "" {
			cfg.Section(section).Subsection(subsection)
			return nil
		}
		cfg.AddOption(section, subsection, key, value)
		return nil
	}
	return gcfg.ReadWithCallback(d, cb)
}
