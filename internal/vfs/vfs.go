// Package vfs provides a virtual filesystem abstraction layer.
//
// This allows deltalog to:
// - Use the real OS filesystem in production
// - Use a memory filesystem for testing
//
// The interface is whole-file: log records and checkpoint parts are small,
// written once, and never modified in place, so streaming file handles are
// not needed. The one non-obvious operation is WriteFileExclusive, which
// provides the atomic "create only if absent" primitive the commit protocol
// depends on.
package vfs

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FS is the filesystem interface backing the file log store.
//
// Concurrency: implementations must be safe for concurrent use; multiple
// writer processes (or goroutines in tests) race WriteFileExclusive on the
// same name.
type FS interface {
	// MkdirAll creates a directory and all parent directories.
	MkdirAll(path string, perm os.FileMode) error

	// ReadFile reads the entire named file.
	// Returns an error satisfying errors.Is(err, os.ErrNotExist) if absent.
	ReadFile(name string) ([]byte, error)

	// WriteFile writes data to the named file, replacing any previous
	// content. The replacement is atomic: readers observe either the old
	// content or the new content, never a partial write.
	WriteFile(name string, data []byte) error

	// WriteFileExclusive writes data to the named file only if the file
	// does not already exist.
	//
	// Contract: the operation is atomic. No reader ever observes partial
	// bytes under the final name, and when multiple writers race, exactly
	// one succeeds; the rest fail with an error satisfying
	// errors.Is(err, os.ErrExist).
	WriteFileExclusive(name string, data []byte) error

	// Remove deletes a file.
	Remove(name string) error

	// ListDir lists file names (not full paths) in a directory, sorted
	// ascending. Returns an empty slice for a missing directory.
	ListDir(path string) ([]string, error)

	// Exists returns true if the file or directory exists.
	Exists(name string) bool
}

// osFS implements FS using the OS filesystem.
type osFS struct{}

// Default returns the default OS filesystem.
func Default() FS {
	return &osFS{}
}

func (fs *osFS) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (fs *osFS) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// WriteFile writes to a temp file in the same directory and renames it over
// the destination. Rename within a directory is atomic on POSIX filesystems.
func (fs *osFS) WriteFile(name string, data []byte) error {
	tmp, err := writeTemp(name, data)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, name); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return syncDir(filepath.Dir(name))
}

// WriteFileExclusive writes to a temp file in the same directory, then
// hard-links it to the destination. Link fails with EEXIST if the name is
// already taken, which gives the atomic claim without a window where readers
// could observe partial bytes under the final name.
func (fs *osFS) WriteFileExclusive(name string, data []byte) error {
	tmp, err := writeTemp(name, data)
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp) }()

	if err := os.Link(tmp, name); err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("vfs: %s: %w", name, os.ErrExist)
		}
		return err
	}
	return syncDir(filepath.Dir(name))
}

func (fs *osFS) Remove(name string) error {
	return os.Remove(name)
}

func (fs *osFS) ListDir(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (fs *osFS) Exists(name string) bool {
	_, err := os.Stat(name)
	return err == nil
}

// writeTemp writes data to a freshly created temp file next to name and
// syncs it. Returns the temp path.
func writeTemp(name string, data []byte) (string, error) {
	dir := filepath.Dir(name)
	f, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(name)+"-")
	if err != nil {
		return "", err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return "", err
	}
	return tmp, nil
}

// syncDir syncs a directory so that a completed link or rename is durable.
func syncDir(path string) error {
	d, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = d.Close() }()
	// Sync on a directory is not supported on some platforms; durability is
	// best-effort there, matching os.Rename-based loggers generally.
	_ = d.Sync()
	return nil
}
