// segment.go resolves which log files must be read to reconstruct a
// snapshot: the newest usable checkpoint at or below the target version,
// plus the trailing commit files, without reading commit contents.
//
// The _last_checkpoint pointer is consulted as a hint and never trusted
// blindly: resolution always verifies against a directory listing, so a
// stale, corrupt, or missing pointer can slow a read but never corrupt it.
package deltalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lakeyard/deltalog/internal/checksum"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/logstore"
)

// Segment is the minimal set of checkpoint and commit files needed to
// reconstruct the snapshot at Version.
//
// Invariant: replaying CheckpointFiles (if any) followed by Commits in
// ascending order yields a state equivalent to replaying the full history
// from version 0.
type Segment struct {
	// Version is the snapshot version this segment reconstructs.
	Version Version

	// CheckpointVersion is the version of the checkpoint replay starts
	// from, or InvalidVersion when replaying from the beginning.
	CheckpointVersion Version

	// CheckpointFiles are the checkpoint parts, ordered by part number.
	// Empty when CheckpointVersion is InvalidVersion.
	CheckpointFiles []logstore.CheckpointFile

	// Commits are the commit versions in (CheckpointVersion, Version],
	// ascending and contiguous.
	Commits []Version
}

// checkpointPointer is the JSON document stored under _last_checkpoint.
// The checksum covers the canonical pointer fields; a mismatch means the
// pointer is ignored, not that the table is unreadable.
type checkpointPointer struct {
	Version     Version `json:"version"`
	Size        int64   `json:"size"`
	Parts       *int    `json:"parts,omitempty"`
	SizeInBytes int64   `json:"sizeInBytes,omitempty"`
	Checksum    string  `json:"checksum,omitempty"`
}

func (p *checkpointPointer) numParts() int {
	if p.Parts == nil {
		return 1
	}
	return *p.Parts
}

// computeChecksum hashes the canonical pointer fields.
func (p *checkpointPointer) computeChecksum() string {
	return checksum.Hex(fmt.Appendf(nil, "%d:%d:%d:%d", p.Version, p.Size, p.numParts(), p.SizeInBytes))
}

// readCheckpointPointer reads and validates _last_checkpoint. Returns nil
// when the pointer is absent, unparseable, or fails its checksum; callers
// fall back to listing.
func readCheckpointPointer(ctx context.Context, store logstore.Store, lg Logger) *checkpointPointer {
	data, err := store.Read(ctx, logstore.LastCheckpointName)
	if err != nil {
		return nil
	}
	var p checkpointPointer
	if err := json.Unmarshal(data, &p); err != nil {
		lg.Warnf(logging.NSSegment+"ignoring unparseable _last_checkpoint: %v", err)
		return nil
	}
	if p.Version < 0 {
		lg.Warnf(logging.NSSegment + "ignoring _last_checkpoint with negative version")
		return nil
	}
	if p.Checksum != "" && p.Checksum != p.computeChecksum() {
		lg.Warnf(logging.NSSegment+"ignoring _last_checkpoint with bad checksum at version %d", p.Version)
		return nil
	}
	return &p
}

// writeCheckpointPointer publishes the pointer with a fresh checksum.
func writeCheckpointPointer(ctx context.Context, store logstore.Store, p *checkpointPointer) error {
	p.Checksum = p.computeChecksum()
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return store.Put(ctx, logstore.LastCheckpointName, data)
}

// logListing is the parsed view of one directory listing.
type logListing struct {
	commits     []Version                            // ascending
	checkpoints map[Version][][]logstore.CheckpointFile // complete instances per version
	maxCommit   Version
	maxComplete Version // highest version with a complete checkpoint instance
}

// listLog lists the store once and groups the names. Checkpoint instances
// are only reported when complete: a single-part file, or all N parts of
// an N-part set.
func listLog(ctx context.Context, store logstore.Store) (*logListing, error) {
	names, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	l := &logListing{
		checkpoints: make(map[Version][][]logstore.CheckpointFile),
		maxCommit:   InvalidVersion,
		maxComplete: InvalidVersion,
	}

	// partSets[version][parts] collects multi-part pieces.
	partSets := make(map[Version]map[int][]logstore.CheckpointFile)
	for _, name := range names {
		if v, ok := logstore.ParseCommitName(name); ok {
			l.commits = append(l.commits, v)
			l.maxCommit = v
			continue
		}
		cf, ok := logstore.ParseCheckpointName(name)
		if !ok {
			continue
		}
		if cf.Parts == 1 {
			l.checkpoints[cf.Version] = append(l.checkpoints[cf.Version], []logstore.CheckpointFile{cf})
			continue
		}
		if partSets[cf.Version] == nil {
			partSets[cf.Version] = make(map[int][]logstore.CheckpointFile)
		}
		partSets[cf.Version][cf.Parts] = append(partSets[cf.Version][cf.Parts], cf)
	}
	for v, sets := range partSets {
		for parts, files := range sets {
			if len(files) != parts {
				continue // incomplete multi-part set
			}
			// Listing order is lexical, which orders parts numerically.
			l.checkpoints[v] = append(l.checkpoints[v], files)
		}
	}
	for v := range l.checkpoints {
		if v > l.maxComplete {
			l.maxComplete = v
		}
	}
	return l, nil
}

// resolveSegment computes the Segment for target, or for the latest
// version when target is InvalidVersion.
func resolveSegment(ctx context.Context, store logstore.Store, target Version, lg Logger) (*Segment, error) {
	listing, err := listLog(ctx, store)
	if err != nil {
		return nil, err
	}

	if target == InvalidVersion {
		target = listing.maxCommit
		if listing.maxComplete > target {
			target = listing.maxComplete
		}
		if target == InvalidVersion {
			return nil, fmt.Errorf("%w: log is empty", ErrVersionNotFound)
		}
	} else if target > listing.maxCommit && target > listing.maxComplete {
		return nil, fmt.Errorf("%w: requested version %d, newest available is %d",
			ErrVersionNotFound, target, max(listing.maxCommit, listing.maxComplete))
	}

	// Opportunistic pointer read; purely a hint, validated below like any
	// listed checkpoint.
	if p := readCheckpointPointer(ctx, store, lg); p != nil {
		if _, ok := listing.checkpoints[p.Version]; !ok {
			lg.Warnf(logging.NSSegment+"_last_checkpoint names version %d but no complete checkpoint is listed", p.Version)
		}
	}

	cpVersion, cpFiles, sawCorrupt, err := selectCheckpoint(ctx, store, listing, target, lg)
	if err != nil {
		return nil, err
	}

	commits, err := trailingCommits(listing.commits, cpVersion, target)
	if err != nil {
		if sawCorrupt != nil {
			// The gap would have been covered by the checkpoint that
			// turned out to be corrupt; report the root cause.
			return nil, fmt.Errorf("%w: full replay impossible: %v", ErrCorruptCheckpoint, err)
		}
		return nil, err
	}

	return &Segment{
		Version:           target,
		CheckpointVersion: cpVersion,
		CheckpointFiles:   cpFiles,
		Commits:           commits,
	}, nil
}

// selectCheckpoint picks the highest usable checkpoint at or below target.
// Instances are probed (frames read and verified) before being trusted;
// a corrupt checkpoint is skipped with a warning so replay can fall back
// to older checkpoints or the full commit history. Two valid instances at
// one version is an unrecoverable ambiguity, reported as
// ErrCorruptCheckpoint.
//
// sawCorrupt records whether a corrupt checkpoint was skipped, for error
// attribution when the fallback replay turns out to be impossible.
func selectCheckpoint(ctx context.Context, store logstore.Store, listing *logListing, target Version, lg Logger) (v Version, files []logstore.CheckpointFile, sawCorrupt, err error) {
	var versions []Version
	for v := range listing.checkpoints {
		if v <= target {
			versions = append(versions, v)
		}
	}
	// Highest first.
	sort.Slice(versions, func(i, j int) bool { return versions[i] > versions[j] })

	for _, v := range versions {
		var valid [][]logstore.CheckpointFile
		for _, files := range listing.checkpoints[v] {
			if perr := probeCheckpoint(ctx, store, files); perr != nil {
				lg.Warnf(logging.NSSegment+"checkpoint at version %d failed validation: %v", v, perr)
				sawCorrupt = perr
				continue
			}
			valid = append(valid, files)
		}
		switch len(valid) {
		case 0:
			continue
		case 1:
			return v, valid[0], sawCorrupt, nil
		default:
			// A corrupt write left two valid checkpoint encodings
			// claiming the same version; neither can be preferred.
			return InvalidVersion, nil, nil,
				fmt.Errorf("%w: %d valid checkpoint instances claim version %d", ErrCorruptCheckpoint, len(valid), v)
		}
	}
	return InvalidVersion, nil, sawCorrupt, nil
}

// trailingCommits returns the contiguous commit versions in (after,
// target], verifying the chain has no gaps.
func trailingCommits(commits []Version, after, target Version) ([]Version, error) {
	var out []Version
	expect := after + 1
	for _, v := range commits {
		if v <= after {
			continue
		}
		if v > target {
			break
		}
		if v != expect {
			return nil, fmt.Errorf("%w: missing commit version %d (next present is %d)", ErrLogGap, expect, v)
		}
		out = append(out, v)
		expect++
	}
	if expect <= target {
		return nil, fmt.Errorf("%w: missing commit version %d through %d", ErrLogGap, expect, target)
	}
	return out, nil
}
