// errors.go defines the error taxonomy callers program against.
//
// The taxonomy distinguishes "your commit did not apply, retry with fresh
// state" (ErrCommitConflict) from "the table is in an unsupported or
// corrupt state, do not retry" (ErrMalformedAction, ErrCorruptCheckpoint,
// ErrUnsupportedProtocol). Transient store failures are retried inside the
// log store boundary and surface only after retry bounds are exhausted.
package deltalog

import (
	"errors"

	"github.com/lakeyard/deltalog/action"
	"github.com/lakeyard/deltalog/logstore"
)

var (
	// ErrMalformedAction indicates an unparseable or invalid log record.
	// The log is corrupt at that version; the error is surfaced
	// immediately and never silently skipped.
	ErrMalformedAction = action.ErrMalformed

	// ErrVersionNotFound indicates the requested version does not exist
	// in the log, e.g. the table has no commits yet or the target exceeds
	// the newest version.
	ErrVersionNotFound = errors.New("deltalog: version not found")

	// ErrLogGap indicates the commit sequence needed to reach the target
	// version has a hole, typically because retention cleanup removed
	// history that a missing or stale checkpoint still required.
	ErrLogGap = errors.New("deltalog: log gap")

	// ErrCorruptCheckpoint indicates a checkpoint that cannot be used:
	// frame corruption, a checksum mismatch, or two valid checkpoint
	// encodings claiming the same version.
	ErrCorruptCheckpoint = errors.New("deltalog: corrupt checkpoint")

	// ErrUnsupportedProtocol indicates the table requires newer protocol
	// features than this implementation supports. Always fatal; state is
	// never partially honored.
	ErrUnsupportedProtocol = errors.New("deltalog: unsupported protocol")

	// ErrCommitConflict indicates an optimistic-concurrency collision
	// that was not resolvable within the retry bound. The caller may
	// re-read the table and retry at the application level.
	ErrCommitConflict = errors.New("deltalog: commit conflict")

	// ErrAlreadyExists is the log store's conditional-write failure,
	// re-exported for callers implementing their own store backends.
	ErrAlreadyExists = logstore.ErrAlreadyExists
)
