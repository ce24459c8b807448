package deltalog

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/lakeyard/deltalog/action"
	"github.com/lakeyard/deltalog/internal/compression"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/logstore"
)

func TestCheckpointFrameRoundTrip(t *testing.T) {
	payload := []byte(`{"add":{"path":"a","partitionValues":{},"size":1,"modificationTime":0,"dataChange":true}}` + "\n")
	for _, codec := range []compression.Type{compression.None, compression.Snappy, compression.LZ4, compression.Zstd} {
		t.Run(codec.String(), func(t *testing.T) {
			frame, err := encodeCheckpointFrame(codec, payload)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := decodeCheckpointFrame(frame)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if string(got) != string(payload) {
				t.Errorf("round trip changed payload: %q", got)
			}
		})
	}
}

func TestCheckpointFrameRejectsCorruption(t *testing.T) {
	frame, err := encodeCheckpointFrame(compression.Snappy, []byte("payload bytes to protect"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string][]byte{
		"bad magic":     append([]byte("XXXX"), frame[4:]...),
		"unknown codec": append(append([]byte{}, frame[:4]...), append([]byte{0x7f}, frame[5:]...)...),
		"too short":     frame[:frameHeaderLen+3],
	}
	// Flip one payload bit; the checksum trailer must catch it.
	flipped := append([]byte{}, frame...)
	flipped[frameHeaderLen] ^= 0x01
	cases["checksum mismatch"] = flipped

	for name, data := range cases {
		if _, err := decodeCheckpointFrame(data); !errors.Is(err, ErrCorruptCheckpoint) {
			t.Errorf("%s: decode = %v, want ErrCorruptCheckpoint", name, err)
		}
	}
}

func TestWriteCheckpointAndReadBack(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	seedCommits(t, store, 4)
	seedCheckpoint(t, store, 3)

	files := []logstore.CheckpointFile{{Name: logstore.CheckpointName(3), Version: 3, Part: 1, Parts: 1}}
	acts, err := readCheckpointActions(ctx, store, files)
	if err != nil {
		t.Fatalf("readCheckpointActions: %v", err)
	}

	// Replaying the checkpoint alone must equal replaying the full
	// history it compacted.
	fromCheckpoint := emptySnapshot()
	if err := applyAll(fromCheckpoint, acts); err != nil {
		t.Fatalf("applyAll(checkpoint): %v", err)
	}
	fromHistory := emptySnapshot()
	for v := Version(0); v <= 3; v++ {
		data, err := logstore.ReadCommit(ctx, store, v)
		if err != nil {
			t.Fatalf("ReadCommit(%d): %v", v, err)
		}
		commitActs, err := action.DecodeAll(data)
		if err != nil {
			t.Fatalf("DecodeAll(%d): %v", v, err)
		}
		if err := applyAll(fromHistory, commitActs); err != nil {
			t.Fatalf("applyAll(%d): %v", v, err)
		}
	}
	if !reflect.DeepEqual(fromCheckpoint.Files(), fromHistory.Files()) {
		t.Errorf("checkpoint state diverges from history: %v vs %v",
			fromCheckpoint.Files(), fromHistory.Files())
	}
	if fromCheckpoint.Metadata() == nil || fromCheckpoint.Protocol() == nil {
		t.Errorf("checkpoint dropped metadata or protocol")
	}

	// The pointer must be published and verifiable.
	p := readCheckpointPointer(ctx, store, logging.Discard)
	if p == nil || p.Version != 3 {
		t.Errorf("pointer = %+v, want version 3", p)
	}
}

func TestWriteCheckpointMultipart(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()

	s := emptySnapshot()
	s.version = 7
	acts := []action.Action{
		&action.Protocol{MinReaderVersion: 1, MinWriterVersion: 2},
		action.NewMetadata(`{"type":"struct","fields":[]}`, nil),
	}
	for _, path := range []string{"a", "b", "c", "d", "e"} {
		acts = append(acts, mkAdd(path))
	}
	if err := applyAll(s, acts); err != nil {
		t.Fatalf("applyAll: %v", err)
	}

	opts := DefaultOptions().withDefaults()
	opts.CheckpointMaxActionsPerPart = 3 // 7 actions -> 3 parts
	if err := writeCheckpoint(ctx, store, s, &opts, logging.Discard); err != nil {
		t.Fatalf("writeCheckpoint: %v", err)
	}

	for part := 1; part <= 3; part++ {
		name := logstore.MultipartCheckpointName(7, part, 3)
		if _, err := store.Read(ctx, name); err != nil {
			t.Errorf("part %s missing: %v", name, err)
		}
	}
	p := readCheckpointPointer(ctx, store, logging.Discard)
	if p == nil || p.numParts() != 3 || p.Size != 7 {
		t.Fatalf("pointer = %+v, want 3 parts and 7 actions", p)
	}

	// All parts together must carry the complete state.
	seg, err := resolveSegment(ctx, store, InvalidVersion, logging.Discard)
	if err != nil {
		t.Fatalf("resolveSegment: %v", err)
	}
	got, err := readCheckpointActions(ctx, store, seg.CheckpointFiles)
	if err != nil {
		t.Fatalf("readCheckpointActions: %v", err)
	}
	if len(got) != 7 {
		t.Errorf("read %d actions, want 7", len(got))
	}
}

func TestWriteCheckpointIdempotent(t *testing.T) {
	store := logstore.NewMemory()
	seedCommits(t, store, 3)
	seedCheckpoint(t, store, 2)

	before := store.Len()
	seedCheckpoint(t, store, 2) // re-run at the same version
	if store.Len() != before {
		t.Errorf("repeat checkpoint changed object count: %d -> %d", before, store.Len())
	}
}

func TestCleanupMetadata(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	seedCommits(t, store, 6)
	seedCheckpoint(t, store, 3)

	deleted, err := cleanupMetadata(ctx, store, 5, logging.Discard)
	if err != nil {
		t.Fatalf("cleanupMetadata: %v", err)
	}
	if deleted != 3 { // commits 0, 1, 2
		t.Errorf("deleted = %d, want 3", deleted)
	}

	// Everything at or after the reference checkpoint must survive.
	for v := Version(3); v <= 5; v++ {
		if _, err := logstore.ReadCommit(ctx, store, v); err != nil {
			t.Errorf("commit %d deleted: %v", v, err)
		}
	}
	if _, err := store.Read(ctx, logstore.CheckpointName(3)); err != nil {
		t.Errorf("reference checkpoint deleted: %v", err)
	}

	// Versions at or past the checkpoint stay reconstructible.
	seg, err := resolveSegment(ctx, store, 4, logging.Discard)
	if err != nil {
		t.Fatalf("resolveSegment(4) after cleanup: %v", err)
	}
	if seg.CheckpointVersion != 3 {
		t.Errorf("seg = %+v", seg)
	}

	// Versions before it are gone.
	if _, err := resolveSegment(ctx, store, 1, logging.Discard); !errors.Is(err, ErrLogGap) {
		t.Errorf("resolveSegment(1) = %v, want ErrLogGap", err)
	}
}

func TestCleanupWithoutCheckpointIsNoop(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	seedCommits(t, store, 4)

	deleted, err := cleanupMetadata(ctx, store, 3, logging.Discard)
	if err != nil {
		t.Fatalf("cleanupMetadata: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0 without a checkpoint", deleted)
	}
	if store.Len() != 4 {
		t.Errorf("objects = %d, want 4", store.Len())
	}
}

func TestCleanupRemovesStaleCheckpointLeftovers(t *testing.T) {
	ctx := context.Background()
	store := logstore.NewMemory()
	seedCommits(t, store, 6)
	seedCheckpoint(t, store, 2)
	seedCheckpoint(t, store, 4)
	// An abandoned multi-part piece below the reference.
	frame, err := encodeCheckpointFrame(compression.None, nil)
	if err != nil {
		t.Fatalf("encodeCheckpointFrame: %v", err)
	}
	if err := store.PutIfAbsent(ctx, logstore.MultipartCheckpointName(1, 1, 2), frame); err != nil {
		t.Fatalf("PutIfAbsent: %v", err)
	}

	if _, err := cleanupMetadata(ctx, store, 5, logging.Discard); err != nil {
		t.Fatalf("cleanupMetadata: %v", err)
	}
	if _, err := store.Read(ctx, logstore.CheckpointName(2)); !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("old checkpoint survived cleanup")
	}
	if _, err := store.Read(ctx, logstore.MultipartCheckpointName(1, 1, 2)); !errors.Is(err, logstore.ErrNotFound) {
		t.Errorf("abandoned part survived cleanup")
	}
	if _, err := store.Read(ctx, logstore.CheckpointName(4)); err != nil {
		t.Errorf("reference checkpoint deleted: %v", err)
	}
}
