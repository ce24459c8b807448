// checkpoint.go writes and reads checkpoints: materialized snapshots that
// bound replay cost and allow old commit files to be reclaimed.
//
// Each checkpoint part is a framed object:
//
//	magic "DLC1" (4) | codec (1) | compressed NDJSON actions | xxh3-64 LE (8)
//
// The checksum trailer covers the compressed payload. Any framing defect
// surfaces as ErrCorruptCheckpoint; readers then fall back to an older
// checkpoint or the full commit history.
package deltalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/lakeyard/deltalog/action"
	"github.com/lakeyard/deltalog/internal/checksum"
	"github.com/lakeyard/deltalog/internal/compression"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/logstore"
)

var checkpointMagic = [4]byte{'D', 'L', 'C', '1'}

const frameHeaderLen = 5 // magic + codec byte

// encodeCheckpointFrame frames one part's action payload.
func encodeCheckpointFrame(codec compression.Type, payload []byte) ([]byte, error) {
	compressed, err := compression.Compress(codec, payload)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, frameHeaderLen+len(compressed)+checksum.Size)
	out = append(out, checkpointMagic[:]...)
	out = append(out, byte(codec))
	out = append(out, compressed...)
	return checksum.Append(out, compressed), nil
}

// decodeCheckpointFrame verifies and unwraps one part, returning the NDJSON
// action payload.
func decodeCheckpointFrame(data []byte) ([]byte, error) {
	if len(data) < frameHeaderLen+checksum.Size {
		return nil, fmt.Errorf("%w: frame too short (%d bytes)", ErrCorruptCheckpoint, len(data))
	}
	if !bytes.Equal(data[:len(checkpointMagic)], checkpointMagic[:]) {
		return nil, fmt.Errorf("%w: bad magic", ErrCorruptCheckpoint)
	}
	codec := compression.Type(data[4])
	if !codec.IsSupported() {
		return nil, fmt.Errorf("%w: unknown codec 0x%02x", ErrCorruptCheckpoint, data[4])
	}
	compressed := data[frameHeaderLen : len(data)-checksum.Size]
	if !checksum.Verify(compressed, data[len(data)-checksum.Size:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptCheckpoint)
	}
	payload, err := compression.Decompress(codec, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress (%s): %v", ErrCorruptCheckpoint, codec, err)
	}
	return payload, nil
}

// readCheckpointActions reads and decodes all parts of one checkpoint
// instance, in part order. Decode failures inside a valid frame still mean
// the checkpoint is unusable, so they also wrap ErrCorruptCheckpoint.
func readCheckpointActions(ctx context.Context, store logstore.Store, files []logstore.CheckpointFile) ([]action.Action, error) {
	var actions []action.Action
	for _, cf := range files {
		data, err := store.Read(ctx, cf.Name)
		if err != nil {
			if errors.Is(err, logstore.ErrNotFound) {
				return nil, fmt.Errorf("%w: part %s vanished after listing", ErrCorruptCheckpoint, cf.Name)
			}
			return nil, err
		}
		payload, err := decodeCheckpointFrame(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", cf.Name, err)
		}
		acts, err := action.DecodeAll(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCheckpoint, cf.Name, err)
		}
		actions = append(actions, acts...)
	}
	return actions, nil
}

// probeCheckpoint validates a checkpoint instance end to end without
// keeping its contents. Used by segment resolution before committing to a
// replay plan.
func probeCheckpoint(ctx context.Context, store logstore.Store, files []logstore.CheckpointFile) error {
	_, err := readCheckpointActions(ctx, store, files)
	return err
}

// writeCheckpoint materializes snap as a checkpoint and publishes the
// pointer. Parts are written with PutIfAbsent, so a re-run after a crash or
// a concurrent checkpointer at the same version is a harmless no-op: the
// first complete write wins and later writers converge on it.
func writeCheckpoint(ctx context.Context, store logstore.Store, snap *Snapshot, opts *Options, lg Logger) error {
	if snap.version == InvalidVersion {
		return fmt.Errorf("deltalog: cannot checkpoint a table with no commits")
	}
	acts := snap.allActions()
	numActions := int64(len(acts))

	maxPer := opts.CheckpointMaxActionsPerPart
	var chunks [][]action.Action
	for len(acts) > maxPer {
		chunks = append(chunks, acts[:maxPer])
		acts = acts[maxPer:]
	}
	chunks = append(chunks, acts)

	parts := len(chunks)
	var totalBytes int64
	for i, chunk := range chunks {
		payload, err := action.EncodeAll(chunk)
		if err != nil {
			return err
		}
		frame, err := encodeCheckpointFrame(opts.CheckpointCompression.codec(), payload)
		if err != nil {
			return err
		}
		name := logstore.CheckpointName(snap.version)
		if parts > 1 {
			name = logstore.MultipartCheckpointName(snap.version, i+1, parts)
		}
		totalBytes += int64(len(frame))
		if err := store.PutIfAbsent(ctx, name, frame); err != nil {
			if errors.Is(err, logstore.ErrAlreadyExists) {
				lg.Infof(logging.NSCheckpoint+"part %s already exists, keeping it", name)
				continue
			}
			return err
		}
	}

	p := &checkpointPointer{
		Version:     snap.version,
		Size:        numActions,
		SizeInBytes: totalBytes,
	}
	if parts > 1 {
		p.Parts = &parts
	}
	if err := writeCheckpointPointer(ctx, store, p); err != nil {
		// The checkpoint itself is durable and discoverable by listing;
		// the pointer is only an optimization.
		lg.Warnf(logging.NSCheckpoint+"checkpoint at version %d written but pointer update failed: %v", snap.version, err)
		return err
	}
	lg.Infof(logging.NSCheckpoint+"wrote checkpoint at version %d (%d parts, %d bytes)", snap.version, parts, totalBytes)
	return nil
}

// cleanupMetadata deletes commit files and checkpoint objects that are no
// longer needed to reconstruct any version at or after the reference
// checkpoint: the newest complete checkpoint at or below keep. Objects at
// or past the reference are never touched, so every surviving version
// remains reconstructible. Returns the number of objects deleted.
//
// With no complete checkpoint at or below keep nothing is deleted; history
// before a version is only reclaimable once that history has been
// materialized.
func cleanupMetadata(ctx context.Context, store logstore.Store, keep Version, lg Logger) (int, error) {
	listing, err := listLog(ctx, store)
	if err != nil {
		return 0, err
	}
	ref := InvalidVersion
	for v := range listing.checkpoints {
		if v <= keep && v > ref {
			ref = v
		}
	}
	if ref == InvalidVersion {
		lg.Infof(logging.NSCheckpoint+"cleanup skipped: no complete checkpoint at or below version %d", keep)
		return 0, nil
	}

	// Re-list raw names: incomplete multi-part leftovers below the
	// reference are garbage too, and listLog filters them out.
	names, err := store.List(ctx, "")
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, name := range names {
		var v Version
		if cv, ok := logstore.ParseCommitName(name); ok {
			v = cv
		} else if cf, ok := logstore.ParseCheckpointName(name); ok {
			v = cf.Version
		} else {
			continue
		}
		if v >= ref {
			continue
		}
		if err := store.Delete(ctx, name); err != nil {
			if errors.Is(err, logstore.ErrNotFound) {
				continue // concurrent cleanup got there first
			}
			return deleted, err
		}
		deleted++
	}
	if deleted > 0 {
		lg.Infof(logging.NSCheckpoint+"cleanup removed %d objects below version %d", deleted, ref)
	}
	return deleted, nil
}
