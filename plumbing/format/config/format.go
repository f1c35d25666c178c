package config

// RepositoryFormatVersion is the value of core.repositoryformatversion, per
// https://git-scm.com/docs/repository-version.
type RepositoryFormatVersion string

const (
	// Version0 is the original format: no extensions.* keys are honored.
	Version0 RepositoryFormatVersion = "0"
	// Version1 additionally requires every known extensions.* key to be
	// understood before the repository may be used.
	Version1 RepositoryFormatVersion = "1"

	DefaultRepositoryFormatVersion = Version0
)

// ObjectFormat names the hash algorithm a repository's objects are
// addressed with.
type ObjectFormat string

const (
	UnsetObjectFormat ObjectFormat = ""
	SHA1              ObjectFormat = "sha1"
	SHA256            ObjectFormat = "sha256"

	DefaultObjectFormat = SHA1
)

func (f ObjectFormat) String() string { return string(f) }
