package plumbing

import "errors"

// The error taxonomy from spec.md §7. Every subsystem wraps one of these
// sentinels with fmt.Errorf("...: %w", ...) so callers can use errors.Is to
// classify a failure regardless of which component produced it.
var (
	// ErrObjectNotFound is returned when a required id is not present in
	// any loose directory or pack (taxonomy: MissingObject).
	ErrObjectNotFound = errors.New("object not found")

	// ErrInvalidType is returned when the caller asked for a type the
	// stored object does not have (taxonomy: IncorrectObjectType).
	ErrInvalidType = errors.New("invalid object type")

	// ErrObjectCorrupt is returned for malformed bytes: bad headers,
	// truncated inflate streams, hash mismatches, out-of-range modes,
	// unsorted/duplicate tree entries, invalid identities (taxonomy:
	// CorruptObject).
	ErrObjectCorrupt = errors.New("corrupt object")

	// ErrPackProtocol is returned for pack stream violations encountered
	// while indexing (taxonomy: PackProtocolError).
	ErrPackProtocol = errors.New("pack protocol error")

	// ErrStopWalk is a control-flow signal from a RevFilter meaning "no
	// further commits can match". It is caught by the revision walker and
	// never surfaces to callers of RevWalk.Next.
	ErrStopWalk = errors.New("stop walk")

	// ErrLockFailure indicates another process or goroutine holds the
	// .lock file for the path being updated (taxonomy: LockFailure).
	ErrLockFailure = errors.New("lock file already held")

	// ErrNotSupported indicates a repository feature this implementation
	// cannot read, e.g. an unrecognized pack index version (taxonomy:
	// NotSupported).
	ErrNotSupported = errors.New("not supported")
)
