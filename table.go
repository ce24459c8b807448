// table.go is the public entry point: open a table, read snapshots, commit
// changes, write checkpoints, reclaim history.
package deltalog

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/lakeyard/deltalog/action"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/internal/vfs"
	"github.com/lakeyard/deltalog/logstore"
)

// Table is a handle to one table's transaction log.
//
// Concurrency: all methods are safe for concurrent use. A Table holds no
// locks and no authoritative state; the log store is the single source of
// truth, and every writer coordinates through it. Multiple Table handles
// on the same log, in the same process or not, behave like one.
type Table struct {
	store logstore.Store
	opts  Options

	// cache holds resolved snapshots by version. Snapshots are immutable,
	// so a cached entry never goes stale; eviction only costs replay.
	cache *lru.Cache[Version, *Snapshot]
}

// Open opens the table rooted at tableRoot on the local filesystem,
// creating the log directory if needed. Opening never reads the log; a
// handle to an empty table is valid and Create makes the first commit.
func Open(tableRoot string, opts *Options) (*Table, error) {
	o := (opts).withDefaults()
	fileStore, err := logstore.NewFileStore(vfs.Default(), tableRoot)
	if err != nil {
		return nil, err
	}
	return newTable(logstore.NewRetrying(fileStore, o.IORetry), o)
}

// OpenStore opens a table on a caller-provided log store, e.g. an object
// storage backend with conditional writes. The store is used as given;
// wrap it with logstore.NewRetrying if transient-failure retries are
// wanted.
func OpenStore(store logstore.Store, opts *Options) (*Table, error) {
	return newTable(store, (opts).withDefaults())
}

func newTable(store logstore.Store, o Options) (*Table, error) {
	t := &Table{store: store, opts: o}
	if o.SnapshotCacheSize > 0 {
		cache, err := lru.New[Version, *Snapshot](o.SnapshotCacheSize)
		if err != nil {
			return nil, err
		}
		t.cache = cache
	}
	return t, nil
}

// Create makes the table's first commit (version 0) from the given
// metadata, plus a protocol record and any extra actions. Fails with
// ErrCommitConflict if the table already has a version 0.
func (t *Table) Create(ctx context.Context, meta *action.Metadata, extra ...action.Action) (*Snapshot, error) {
	if meta == nil {
		return nil, fmt.Errorf("%w: create requires table metadata", ErrMalformedAction)
	}
	acts := make([]action.Action, 0, len(extra)+2)
	acts = append(acts, &action.Protocol{MinReaderVersion: 1, MinWriterVersion: 2}, meta)
	acts = append(acts, extra...)
	snap, err := commit(ctx, t.store, emptySnapshot(), Operation{Name: "CREATE TABLE"}, acts, &t.opts)
	if err != nil {
		return nil, err
	}
	t.cacheAdd(snap)
	return snap, nil
}

// Snapshot returns the latest snapshot.
func (t *Table) Snapshot(ctx context.Context) (*Snapshot, error) {
	return t.loadSnapshot(ctx, InvalidVersion)
}

// SnapshotAt returns the snapshot at version v. Fails with
// ErrVersionNotFound if v was never committed, and with ErrLogGap if the
// history needed to reconstruct it has been cleaned up.
func (t *Table) SnapshotAt(ctx context.Context, v Version) (*Snapshot, error) {
	if v < 0 {
		return nil, fmt.Errorf("%w: negative version %d", ErrVersionNotFound, v)
	}
	return t.loadSnapshot(ctx, v)
}

// Version returns the latest committed version.
func (t *Table) Version(ctx context.Context) (Version, error) {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return InvalidVersion, err
	}
	return snap.Version(), nil
}

// Commit atomically applies actions on top of base and returns the
// resulting snapshot. base fixes the read set: conflict detection compares
// the actions against every commit that landed after base.Version().
//
// On ErrCommitConflict the actions were not applied; the caller should
// re-read the table, re-derive its actions, and try again.
func (t *Table) Commit(ctx context.Context, base *Snapshot, op Operation, actions ...action.Action) (*Snapshot, error) {
	if base == nil {
		return nil, fmt.Errorf("deltalog: commit requires a base snapshot")
	}
	snap, err := commit(ctx, t.store, base, op, actions, &t.opts)
	if err != nil {
		return nil, err
	}
	t.cacheAdd(snap)
	return snap, nil
}

// CreateCheckpoint materializes the latest snapshot as a checkpoint and
// returns its version. Re-running at an already checkpointed version is a
// no-op.
func (t *Table) CreateCheckpoint(ctx context.Context) (Version, error) {
	snap, err := t.Snapshot(ctx)
	if err != nil {
		return InvalidVersion, err
	}
	if err := writeCheckpoint(ctx, t.store, snap, &t.opts, t.opts.Logger); err != nil {
		return InvalidVersion, err
	}
	return snap.Version(), nil
}

// CleanupMetadata deletes log objects made redundant by a checkpoint at or
// below keep. Versions at or after that checkpoint stay reconstructible;
// older versions become unavailable to SnapshotAt. Returns the number of
// objects deleted.
func (t *Table) CleanupMetadata(ctx context.Context, keep Version) (int, error) {
	return cleanupMetadata(ctx, t.store, keep, t.opts.Logger)
}

// HistoryEntry is one commit's provenance.
type HistoryEntry struct {
	// Version is the commit's version.
	Version Version

	// Info is the commit's commitInfo record, or nil if the commit carried
	// none.
	Info action.CommitInfo
}

// History returns commit provenance newest first, at most limit entries
// (all available if limit <= 0). Only commits still present in the log are
// returned; history before the cleanup horizon is gone.
func (t *Table) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	versions, err := logstore.ListCommitVersions(ctx, t.store, InvalidVersion)
	if err != nil {
		return nil, err
	}
	var out []HistoryEntry
	for i := len(versions) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		v := versions[i]
		data, err := logstore.ReadCommit(ctx, t.store, v)
		if err != nil {
			if errors.Is(err, logstore.ErrNotFound) {
				break // raced retention cleanup; older commits are gone too
			}
			return nil, err
		}
		acts, err := action.DecodeAll(data)
		if err != nil {
			return nil, err
		}
		entry := HistoryEntry{Version: v}
		for _, a := range acts {
			if ci, ok := a.(action.CommitInfo); ok {
				entry.Info = ci
				break
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// loadSnapshot resolves and replays the snapshot at target (latest when
// target is InvalidVersion), reusing cached snapshots where possible.
func (t *Table) loadSnapshot(ctx context.Context, target Version) (*Snapshot, error) {
	seg, err := resolveSegment(ctx, t.store, target, t.opts.Logger)
	if err != nil {
		return nil, err
	}
	if s, ok := t.cacheGet(seg.Version); ok {
		return s, nil
	}

	// Replay incrementally from the newest cached snapshot the segment
	// covers; fall back to the checkpoint, then to the full history.
	base := emptySnapshot()
	for v := seg.Version - 1; v > seg.CheckpointVersion; v-- {
		if s, ok := t.cacheGet(v); ok {
			base = s.clone()
			break
		}
	}
	if base.version == InvalidVersion && seg.CheckpointVersion != InvalidVersion {
		acts, err := readCheckpointActions(ctx, t.store, seg.CheckpointFiles)
		if err != nil {
			return nil, err
		}
		if err := applyAll(base, acts); err != nil {
			return nil, err
		}
		base.version = seg.CheckpointVersion
	}

	for _, v := range seg.Commits {
		if v <= base.version {
			continue
		}
		data, err := logstore.ReadCommit(ctx, t.store, v)
		if err != nil {
			if errors.Is(err, logstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: commit %d disappeared during replay", ErrLogGap, v)
			}
			return nil, err
		}
		acts, err := action.DecodeAll(data)
		if err != nil {
			return nil, fmt.Errorf("commit %d: %w", v, err)
		}
		if err := applyAll(base, acts); err != nil {
			return nil, fmt.Errorf("commit %d: %w", v, err)
		}
		base.version = v
	}
	base.version = seg.Version

	t.cacheAdd(base)
	t.opts.Logger.Debugf(logging.NSReplay+"materialized snapshot at version %d (%d live files)", base.version, len(base.files))
	return base, nil
}

func (t *Table) cacheGet(v Version) (*Snapshot, bool) {
	if t.cache == nil || v == InvalidVersion {
		return nil, false
	}
	return t.cache.Get(v)
}

func (t *Table) cacheAdd(s *Snapshot) {
	if t.cache == nil || s == nil || s.version == InvalidVersion {
		return
	}
	t.cache.Add(s.version, s)
}
