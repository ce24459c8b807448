package vfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// filesystems returns the implementations under test. OS filesystems are
// rooted in a fresh temp dir per test.
func filesystems(t *testing.T) map[string]struct {
	fs   FS
	root string
} {
	t.Helper()
	return map[string]struct {
		fs   FS
		root string
	}{
		"os":  {Default(), t.TempDir()},
		"mem": {NewMemFS(), "/table"},
	}
}

func TestReadWriteFile(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(tc.root, "_delta_log")
			if err := tc.fs.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
			file := filepath.Join(dir, "00000000000000000000.json")
			want := []byte(`{"commitInfo":{}}` + "\n")
			if err := tc.fs.WriteFile(file, want); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got, err := tc.fs.ReadFile(file)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != string(want) {
				t.Errorf("ReadFile = %q, want %q", got, want)
			}
		})
	}
}

func TestReadFileNotExist(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			_, err := tc.fs.ReadFile(filepath.Join(tc.root, "missing.json"))
			if !errors.Is(err, os.ErrNotExist) {
				t.Errorf("ReadFile(missing) = %v, want ErrNotExist", err)
			}
		})
	}
}

func TestWriteFileExclusive(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			if err := tc.fs.MkdirAll(tc.root, 0755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
			file := filepath.Join(tc.root, "00000000000000000001.json")
			if err := tc.fs.WriteFileExclusive(file, []byte("first")); err != nil {
				t.Fatalf("first WriteFileExclusive: %v", err)
			}
			err := tc.fs.WriteFileExclusive(file, []byte("second"))
			if !errors.Is(err, os.ErrExist) {
				t.Fatalf("second WriteFileExclusive = %v, want ErrExist", err)
			}
			// Loser must not clobber the winner's bytes.
			got, err := tc.fs.ReadFile(file)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != "first" {
				t.Errorf("content = %q, want %q", got, "first")
			}
		})
	}
}

func TestWriteFileExclusiveRace(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			if err := tc.fs.MkdirAll(tc.root, 0755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
			file := filepath.Join(tc.root, "00000000000000000002.json")

			const writers = 16
			var wg sync.WaitGroup
			wins := make(chan int, writers)
			for i := range writers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					payload := fmt.Appendf(nil, "writer-%d", i)
					if err := tc.fs.WriteFileExclusive(file, payload); err == nil {
						wins <- i
					} else if !errors.Is(err, os.ErrExist) {
						t.Errorf("writer %d: unexpected error %v", i, err)
					}
				}()
			}
			wg.Wait()
			close(wins)

			var winners []int
			for w := range wins {
				winners = append(winners, w)
			}
			if len(winners) != 1 {
				t.Fatalf("winners = %v, want exactly one", winners)
			}
			got, err := tc.fs.ReadFile(file)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			want := fmt.Sprintf("writer-%d", winners[0])
			if string(got) != want {
				t.Errorf("content = %q, want %q", got, want)
			}
		})
	}
}

func TestListDirSorted(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(tc.root, "_delta_log")
			if err := tc.fs.MkdirAll(dir, 0755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
			for _, f := range []string{"00000000000000000002.json", "00000000000000000000.json", "00000000000000000001.json"} {
				if err := tc.fs.WriteFile(filepath.Join(dir, f), []byte("x")); err != nil {
					t.Fatalf("WriteFile(%s): %v", f, err)
				}
			}
			names, err := tc.fs.ListDir(dir)
			if err != nil {
				t.Fatalf("ListDir: %v", err)
			}
			want := []string{"00000000000000000000.json", "00000000000000000001.json", "00000000000000000002.json"}
			if len(names) != len(want) {
				t.Fatalf("ListDir = %v, want %v", names, want)
			}
			for i := range want {
				if names[i] != want[i] {
					t.Errorf("ListDir[%d] = %q, want %q", i, names[i], want[i])
				}
			}
		})
	}
}

func TestListDirMissing(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			names, err := tc.fs.ListDir(filepath.Join(tc.root, "no-such-dir"))
			if err != nil {
				t.Fatalf("ListDir(missing) = %v, want nil error", err)
			}
			if len(names) != 0 {
				t.Errorf("ListDir(missing) = %v, want empty", names)
			}
		})
	}
}

func TestRemove(t *testing.T) {
	for name, tc := range filesystems(t) {
		t.Run(name, func(t *testing.T) {
			if err := tc.fs.MkdirAll(tc.root, 0755); err != nil {
				t.Fatalf("MkdirAll: %v", err)
			}
			file := filepath.Join(tc.root, "stale.json")
			if err := tc.fs.WriteFile(file, []byte("x")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if err := tc.fs.Remove(file); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if tc.fs.Exists(file) {
				t.Error("file still exists after Remove")
			}
		})
	}
}

func TestNoTempFilesLeftBehind(t *testing.T) {
	root := t.TempDir()
	fs := Default()
	file := filepath.Join(root, "00000000000000000000.json")
	if err := fs.WriteFileExclusive(file, []byte("a")); err != nil {
		t.Fatalf("WriteFileExclusive: %v", err)
	}
	// Losing attempt also must clean up its temp file.
	if err := fs.WriteFileExclusive(file, []byte("b")); !errors.Is(err, os.ErrExist) {
		t.Fatalf("want ErrExist, got %v", err)
	}
	names, err := fs.ListDir(root)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(names) != 1 || names[0] != "00000000000000000000.json" {
		t.Errorf("leftover files: %v", names)
	}
}
