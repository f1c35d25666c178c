// Package config recognizes the subset of git's own config file format
// (core.*, user.*, gpg.*, pack.*, init.*, extensions.*) this engine reads,
// layered across system/global/local scope the way git itself does.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"dario.cat/mergo"
	billy "github.com/go-git/go-billy/v5"

	format "github.com/bluestreak/bgit/plumbing/format/config"
)

// Scope identifies where a Config came from, mirroring git's own
// system/global/local precedence (local wins, then global, then system).
type Scope int

const (
	LocalScope Scope = iota
	GlobalScope
	SystemScope
)

var ErrInvalid = errors.New("config: invalid key in pack or extensions section")

const (
	coreSection       = "core"
	userSection       = "user"
	authorSection     = "author"
	committerSection  = "committer"
	gpgSection        = "gpg"
	packSection       = "pack"
	initSection       = "init"
	extensionsSection = "extensions"

	bareKey                    = "bare"
	worktreeKey                = "worktree"
	commentCharKey             = "commentChar"
	repositoryFormatVersionKey = "repositoryformatversion"
	autoCRLFKey                = "autocrlf"
	fileModeKey                = "filemode"
	windowKey                  = "window"
	nameKey                    = "name"
	emailKey                   = "email"
	formatKey                  = "format"
	allowedSignersFileKey      = "allowedSignersFile"
	defaultBranchKey           = "defaultBranch"
	objectFormatKey            = "objectformat"

	// DefaultPackWindow is the number of previous objects considered for
	// delta compression, the same default as the git command.
	DefaultPackWindow = uint(10)
	// DefaultFileMode mirrors git's default of honoring the executable bit.
	DefaultFileMode = true
)

// Config is the parsed, typed view of a git-config file (spec.md §6
// "Configuration surface").
type Config struct {
	Core struct {
		IsBare                  bool
		Worktree                string
		CommentChar             string
		RepositoryFormatVersion format.RepositoryFormatVersion
		AutoCRLF                string
		FileMode                bool
	}

	User struct {
		Name  string
		Email string
	}

	Author struct {
		Name  string
		Email string
	}

	Committer struct {
		Name  string
		Email string
	}

	GPG struct {
		Format string
		SSH    struct {
			AllowedSignersFile string
		}
	}

	Pack struct {
		Window uint
	}

	Init struct {
		DefaultBranch string
	}

	Extensions struct {
		ObjectFormat format.ObjectFormat
	}

	// Raw preserves every section/key this type doesn't model explicitly,
	// so a round-tripped config doesn't silently drop unrecognized data.
	Raw *format.Config
}

// NewConfig returns an empty Config with the documented defaults applied.
func NewConfig() *Config {
	c := &Config{Raw: format.New()}
	c.Core.FileMode = DefaultFileMode
	c.Pack.Window = DefaultPackWindow
	return c
}

// ReadConfig parses a git-config file from r.
func ReadConfig(r io.Reader) (*Config, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	c := NewConfig()
	if err := c.Unmarshal(b); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadConfig loads the config file for the given non-local scope, returning
// an empty Config if none exists. LocalScope has no fixed path -- callers
// read it from the repository's own filesystem via ReadConfig.
func LoadConfig(scope Scope) (*Config, error) {
	if scope == LocalScope {
		return nil, fmt.Errorf("config: LocalScope must be read from the repository filesystem")
	}

	for _, file := range Paths(scope) {
		f, err := os.Open(file)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		defer f.Close()
		return ReadConfig(f)
	}
	return NewConfig(), nil
}

// Paths returns the config file search path for a given scope.
func Paths(scope Scope) []string {
	var files []string
	switch scope {
	case GlobalScope:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			files = append(files, filepath.Join(xdg, "git/config"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			files = append(files,
				filepath.Join(home, ".gitconfig"),
				filepath.Join(home, ".config/git/config"),
			)
		}
	case SystemScope:
		files = append(files, "/etc/gitconfig")
	}
	return files
}

// ReadLocalConfig reads the local-scope config file ("config", relative to
// fs's root, i.e. the bare repository root) if present.
func ReadLocalConfig(fs billy.Filesystem) (*Config, error) {
	f, err := fs.Open("config")
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, err
	}
	defer f.Close()
	return ReadConfig(f)
}

// Merge layers local over global over system, matching git's own
// last-writer-wins precedence across scopes. Later arguments win; a nil or
// zero-valued field never overrides an already-set one, since
// mergo.WithOverride copies only non-empty source fields.
func Merge(system, global, local *Config) (*Config, error) {
	final := NewConfig()
	for _, c := range []*Config{system, global, local} {
		if c == nil {
			continue
		}
		if err := mergo.Merge(final, c, mergo.WithOverride); err != nil {
			return nil, err
		}
	}
	return final, nil
}

// Unmarshal decodes b into c, overwriting any previously-set fields.
func (c *Config) Unmarshal(b []byte) error {
	r := bytes.NewBuffer(b)
	c.Raw = format.New()
	if err := format.NewDecoder(r).Decode(c.Raw); err != nil {
		return err
	}

	c.unmarshalCore()
	c.unmarshalExtensions()
	c.unmarshalUser()
	c.unmarshalGPG()
	c.unmarshalInit()
	return c.unmarshalPack()
}

func (c *Config) unmarshalCore() {
	s := c.Raw.Section(coreSection)
	c.Core.IsBare = s.Options.Get(bareKey) == "true"
	c.Core.Worktree = s.Options.Get(worktreeKey)
	c.Core.CommentChar = s.Options.Get(commentCharKey)
	c.Core.AutoCRLF = s.Options.Get(autoCRLFKey)
	c.Core.FileMode = s.Options.Get(fileModeKey) != "false"
	if s.Options.Get(repositoryFormatVersionKey) == string(format.Version1) {
		c.Core.RepositoryFormatVersion = format.Version1
	}
}

func (c *Config) unmarshalExtensions() {
	s := c.Raw.Section(extensionsSection)
	c.Extensions.ObjectFormat = format.ObjectFormat(s.Options.Get(objectFormatKey))
}

func (c *Config) unmarshalUser() {
	s := c.Raw.Section(userSection)
	c.User.Name = s.Options.Get(nameKey)
	c.User.Email = s.Options.Get(emailKey)

	s = c.Raw.Section(authorSection)
	c.Author.Name = s.Options.Get(nameKey)
	c.Author.Email = s.Options.Get(emailKey)

	s = c.Raw.Section(committerSection)
	c.Committer.Name = s.Options.Get(nameKey)
	c.Committer.Email = s.Options.Get(emailKey)
}

func (c *Config) unmarshalGPG() {
	s := c.Raw.Section(gpgSection)
	c.GPG.Format = s.Options.Get(formatKey)
	if s.HasSubsection("ssh") {
		c.GPG.SSH.AllowedSignersFile = s.Subsection("ssh").Options.Get(allowedSignersFileKey)
	}
}

func (c *Config) unmarshalPack() error {
	s := c.Raw.Section(packSection)
	window := s.Options.Get(windowKey)
	if window == "" {
		c.Pack.Window = DefaultPackWindow
		return nil
	}
	n, err := strconv.ParseUint(window, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: pack.window: %v", ErrInvalid, err)
	}
	c.Pack.Window = uint(n)
	return nil
}

func (c *Config) unmarshalInit() {
	c.Init.DefaultBranch = c.Raw.Section(initSection).Options.Get(defaultBranchKey)
}

// Marshal encodes c back into git-config format.
func (c *Config) Marshal() ([]byte, error) {
	c.marshalCore()
	c.marshalExtensions()
	c.marshalUser()
	c.marshalGPG()
	c.marshalPack()
	c.marshalInit()

	buf := bytes.NewBuffer(nil)
	if err := format.NewEncoder(buf).Encode(c.Raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) marshalCore() {
	s := c.Raw.Section(coreSection)
	s.SetOption(bareKey, fmt.Sprintf("%t", c.Core.IsBare))
	if c.Core.RepositoryFormatVersion != "" {
		s.SetOption(repositoryFormatVersionKey, string(c.Core.RepositoryFormatVersion))
	}
	if c.Core.Worktree != "" {
		s.SetOption(worktreeKey, c.Core.Worktree)
	}
	if c.Core.AutoCRLF != "" {
		s.SetOption(autoCRLFKey, c.Core.AutoCRLF)
	}
	s.SetOption(fileModeKey, fmt.Sprintf("%t", c.Core.FileMode))
}

func (c *Config) marshalExtensions() {
	if c.Core.RepositoryFormatVersion == format.Version1 && c.Extensions.ObjectFormat != format.UnsetObjectFormat {
		c.Raw.Section(extensionsSection).SetOption(objectFormatKey, string(c.Extensions.ObjectFormat))
	}
}

func (c *Config) marshalUser() {
	s := c.Raw.Section(userSection)
	if c.User.Name != "" {
		s.SetOption(nameKey, c.User.Name)
	}
	if c.User.Email != "" {
		s.SetOption(emailKey, c.User.Email)
	}

	s = c.Raw.Section(authorSection)
	if c.Author.Name != "" {
		s.SetOption(nameKey, c.Author.Name)
	}
	if c.Author.Email != "" {
		s.SetOption(emailKey, c.Author.Email)
	}

	s = c.Raw.Section(committerSection)
	if c.Committer.Name != "" {
		s.SetOption(nameKey, c.Committer.Name)
	}
	if c.Committer.Email != "" {
		s.SetOption(emailKey, c.Committer.Email)
	}
}

func (c *Config) marshalGPG() {
	s := c.Raw.Section(gpgSection)
	if c.GPG.Format != "" {
		s.SetOption(formatKey, c.GPG.Format)
	}
	if c.GPG.SSH.AllowedSignersFile != "" {
		s.Subsection("ssh").SetOption(allowedSignersFileKey, c.GPG.SSH.AllowedSignersFile)
	}
}

func (c *Config) marshalPack() {
	s := c.Raw.Section(packSection)
	if c.Pack.Window != DefaultPackWindow {
		s.SetOption(windowKey, fmt.Sprintf("%d", c.Pack.Window))
	}
}

func (c *Config) marshalInit() {
	if c.Init.DefaultBranch != "" {
		c.Raw.Section(initSection).SetOption(defaultBranchKey, c.Init.DefaultBranch)
	}
}
