package logstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/lakeyard/deltalog/internal/vfs"
)

// stores returns the implementations under test.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	fileStore, err := NewFileStore(vfs.Default(), t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	memFileStore, err := NewFileStore(vfs.NewMemFS(), "/table")
	if err != nil {
		t.Fatalf("NewFileStore(mem): %v", err)
	}
	return map[string]Store{
		"file":    fileStore,
		"memvfs":  memFileStore,
		"memory":  NewMemory(),
	}
}

func TestReadAfterPutIfAbsent(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			payload := []byte(`{"commitInfo":{"operation":"WRITE"}}` + "\n")
			if err := s.PutIfAbsent(ctx, CommitName(0), payload); err != nil {
				t.Fatalf("PutIfAbsent: %v", err)
			}
			got, err := s.Read(ctx, CommitName(0))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != string(payload) {
				t.Errorf("Read = %q, want %q", got, payload)
			}
		})
	}
}

func TestReadNotFound(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Read(ctx, CommitName(7)); !errors.Is(err, ErrNotFound) {
				t.Errorf("Read(absent) = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestPutIfAbsentConflict(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutIfAbsent(ctx, CommitName(1), []byte("winner")); err != nil {
				t.Fatalf("first PutIfAbsent: %v", err)
			}
			err := s.PutIfAbsent(ctx, CommitName(1), []byte("loser"))
			if !errors.Is(err, ErrAlreadyExists) {
				t.Fatalf("second PutIfAbsent = %v, want ErrAlreadyExists", err)
			}
			got, err := s.Read(ctx, CommitName(1))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != "winner" {
				t.Errorf("loser overwrote winner: %q", got)
			}
		})
	}
}

func TestPutIfAbsentConcurrentWriters(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			const writers = 12
			var wg sync.WaitGroup
			var successes int32
			var mu sync.Mutex
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					err := s.PutIfAbsent(ctx, CommitName(5), fmt.Appendf(nil, "w%d", i))
					switch {
					case err == nil:
						mu.Lock()
						successes++
						mu.Unlock()
					case errors.Is(err, ErrAlreadyExists):
					default:
						t.Errorf("writer %d: %v", i, err)
					}
				}()
			}
			wg.Wait()
			if successes != 1 {
				t.Errorf("successes = %d, want exactly 1", successes)
			}
		})
	}
}

func TestPutOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, LastCheckpointName, []byte("v1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := s.Put(ctx, LastCheckpointName, []byte("v2")); err != nil {
				t.Fatalf("Put overwrite: %v", err)
			}
			got, err := s.Read(ctx, LastCheckpointName)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if string(got) != "v2" {
				t.Errorf("Read = %q, want v2", got)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.PutIfAbsent(ctx, CommitName(0), []byte("x")); err != nil {
				t.Fatalf("PutIfAbsent: %v", err)
			}
			if err := s.Delete(ctx, CommitName(0)); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := s.Read(ctx, CommitName(0)); !errors.Is(err, ErrNotFound) {
				t.Errorf("Read after delete = %v, want ErrNotFound", err)
			}
			if err := s.Delete(ctx, CommitName(0)); !errors.Is(err, ErrNotFound) {
				t.Errorf("double delete = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestListPrefixAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, v := range []Version{2, 0, 1} {
				if err := s.PutIfAbsent(ctx, CommitName(v), []byte("x")); err != nil {
					t.Fatalf("PutIfAbsent(%d): %v", v, err)
				}
			}
			if err := s.Put(ctx, LastCheckpointName, []byte("{}")); err != nil {
				t.Fatalf("Put pointer: %v", err)
			}

			names, err := s.List(ctx, "")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(names) != 4 {
				t.Fatalf("List = %v, want 4 names", names)
			}
			for i := 1; i < len(names); i++ {
				if names[i-1] >= names[i] {
					t.Errorf("List not ascending: %v", names)
				}
			}

			commits, err := s.List(ctx, "00000000000000000001")
			if err != nil {
				t.Fatalf("List(prefix): %v", err)
			}
			if len(commits) != 1 || commits[0] != CommitName(1) {
				t.Errorf("List(prefix) = %v", commits)
			}
		})
	}
}

func TestListCommitVersions(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, v := range []Version{0, 1, 2, 3} {
				if err := WriteCommitIfAbsent(ctx, s, v, []byte("x")); err != nil {
					t.Fatalf("WriteCommitIfAbsent(%d): %v", v, err)
				}
			}
			// Checkpoint and pointer files must be skipped.
			if err := s.Put(ctx, CheckpointName(2), []byte("cp")); err != nil {
				t.Fatalf("Put checkpoint: %v", err)
			}
			if err := s.Put(ctx, LastCheckpointName, []byte("{}")); err != nil {
				t.Fatalf("Put pointer: %v", err)
			}

			all, err := ListCommitVersions(ctx, s, InvalidVersion)
			if err != nil {
				t.Fatalf("ListCommitVersions: %v", err)
			}
			if len(all) != 4 || all[0] != 0 || all[3] != 3 {
				t.Errorf("ListCommitVersions(all) = %v", all)
			}

			after, err := ListCommitVersions(ctx, s, 1)
			if err != nil {
				t.Fatalf("ListCommitVersions(after 1): %v", err)
			}
			if len(after) != 2 || after[0] != 2 || after[1] != 3 {
				t.Errorf("ListCommitVersions(after 1) = %v", after)
			}
		})
	}
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.List(ctx, ""); !errors.Is(err, context.Canceled) {
				t.Errorf("List = %v, want context.Canceled", err)
			}
			if _, err := s.Read(ctx, CommitName(0)); !errors.Is(err, context.Canceled) {
				t.Errorf("Read = %v, want context.Canceled", err)
			}
		})
	}
}
