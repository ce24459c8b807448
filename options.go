// options.go configures a Table. Defaults are applied by Open; a nil
// *Options means all defaults.
package deltalog

import (
	"time"

	"github.com/lakeyard/deltalog/internal/compression"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/logstore"
)

// Logger is an alias for the logging.Logger interface.
// Implement it to route deltalog's log output into your own logger.
type Logger = logging.Logger

// Version identifies one atomic, totally ordered log entry.
type Version = logstore.Version

// InvalidVersion is the sentinel for "no version".
const InvalidVersion = logstore.InvalidVersion

// CheckpointCompression selects the codec for checkpoint part payloads.
// Commit files are never compressed.
type CheckpointCompression uint8

const (
	// CompressSnappy compresses checkpoint parts with Snappy. Default.
	CompressSnappy CheckpointCompression = iota
	// CompressNone stores checkpoint parts uncompressed.
	CompressNone
	// CompressLZ4 compresses checkpoint parts with LZ4.
	CompressLZ4
	// CompressZstd compresses checkpoint parts with Zstandard.
	CompressZstd
)

// codec maps the public enum to the internal codec byte.
func (c CheckpointCompression) codec() compression.Type {
	switch c {
	case CompressNone:
		return compression.None
	case CompressLZ4:
		return compression.LZ4
	case CompressZstd:
		return compression.Zstd
	default:
		return compression.Snappy
	}
}

// Options configures a Table.
type Options struct {
	// Logger receives operational log output. Defaults to a WARN-level
	// stderr logger. Use logging.Discard via your own wrapper to
	// silence it.
	Logger Logger

	// CheckpointCompression selects the checkpoint part codec.
	CheckpointCompression CheckpointCompression

	// CheckpointMaxActionsPerPart splits checkpoints into multiple parts
	// when the action count exceeds it. Defaults to 50000.
	CheckpointMaxActionsPerPart int

	// MaxCommitAttempts bounds the optimistic-commit retry loop,
	// counting the first attempt. Defaults to 15.
	MaxCommitAttempts int

	// CommitBackoffBase is the backoff before the second commit attempt;
	// it doubles per attempt with jitter. Defaults to 20ms.
	CommitBackoffBase time.Duration

	// CommitBackoffMax caps the commit backoff. Defaults to 2s.
	CommitBackoffMax time.Duration

	// IORetry bounds the transparent retry of transient store failures
	// on reads, listings, and pointer writes. Zero values take the
	// logstore defaults.
	IORetry logstore.RetryOptions

	// SnapshotCacheSize is the number of resolved snapshots kept in the
	// per-table LRU cache, keyed by version. Cache entries are derived,
	// disposable views; eviction only costs recomputation. Defaults to
	// 32. Negative disables caching.
	SnapshotCacheSize int
}

// DefaultOptions returns the default options.
func DefaultOptions() *Options {
	return &Options{
		CheckpointCompression:       CompressSnappy,
		CheckpointMaxActionsPerPart: 50000,
		MaxCommitAttempts:           15,
		CommitBackoffBase:           20 * time.Millisecond,
		CommitBackoffMax:            2 * time.Second,
		IORetry:                     logstore.DefaultRetryOptions(),
		SnapshotCacheSize:           32,
	}
}

// withDefaults returns a sanitized copy with zero values filled in.
func (o *Options) withDefaults() Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	def := DefaultOptions()
	out.Logger = logging.OrDefault(out.Logger)
	if out.CheckpointMaxActionsPerPart <= 0 {
		out.CheckpointMaxActionsPerPart = def.CheckpointMaxActionsPerPart
	}
	if out.MaxCommitAttempts <= 0 {
		out.MaxCommitAttempts = def.MaxCommitAttempts
	}
	if out.CommitBackoffBase <= 0 {
		out.CommitBackoffBase = def.CommitBackoffBase
	}
	if out.CommitBackoffMax <= 0 {
		out.CommitBackoffMax = def.CommitBackoffMax
	}
	if out.IORetry.MaxAttempts == 0 {
		out.IORetry = def.IORetry
	}
	if out.SnapshotCacheSize == 0 {
		out.SnapshotCacheSize = def.SnapshotCacheSize
	}
	return out
}
