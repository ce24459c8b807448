package vfs

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
)

// MemFS is an in-memory FS for tests. It is safe for concurrent use.
// Paths are slash-separated; there is no working directory.
type MemFS struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

// NewMemFS creates an empty in-memory filesystem.
func NewMemFS() *MemFS {
	return &MemFS{
		files: make(map[string][]byte),
		dirs:  map[string]bool{".": true, "/": true},
	}
}

// MkdirAll implements FS.
func (fs *MemFS) MkdirAll(dir string, perm os.FileMode) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.mkdirAllLocked(dir)
	return nil
}

func (fs *MemFS) mkdirAllLocked(dir string) {
	dir = path.Clean(dir)
	for dir != "." && dir != "/" {
		fs.dirs[dir] = true
		dir = path.Dir(dir)
	}
}

// ReadFile implements FS.
func (fs *MemFS) ReadFile(name string) ([]byte, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.files[path.Clean(name)]
	if !ok {
		return nil, fmt.Errorf("memfs: %s: %w", name, os.ErrNotExist)
	}
	return bytes.Clone(data), nil
}

// WriteFile implements FS.
func (fs *MemFS) WriteFile(name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = path.Clean(name)
	fs.mkdirAllLocked(path.Dir(name))
	fs.files[name] = bytes.Clone(data)
	return nil
}

// WriteFileExclusive implements FS. The check-and-insert runs under one
// lock acquisition, so racing writers serialize and exactly one wins.
func (fs *MemFS) WriteFileExclusive(name string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = path.Clean(name)
	if _, ok := fs.files[name]; ok {
		return fmt.Errorf("memfs: %s: %w", name, os.ErrExist)
	}
	fs.mkdirAllLocked(path.Dir(name))
	fs.files[name] = bytes.Clone(data)
	return nil
}

// Remove implements FS.
func (fs *MemFS) Remove(name string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = path.Clean(name)
	if _, ok := fs.files[name]; !ok {
		return fmt.Errorf("memfs: %s: %w", name, os.ErrNotExist)
	}
	delete(fs.files, name)
	return nil
}

// ListDir implements FS.
func (fs *MemFS) ListDir(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dir = path.Clean(dir)
	prefix := dir + "/"
	if dir == "." || dir == "/" {
		prefix = ""
	}
	var names []string
	for name := range fs.files {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if rest == "" || strings.Contains(rest, "/") {
			continue // not a direct child
		}
		names = append(names, rest)
	}
	sort.Strings(names)
	return names, nil
}

// Exists implements FS.
func (fs *MemFS) Exists(name string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	name = path.Clean(name)
	if _, ok := fs.files[name]; ok {
		return true
	}
	return fs.dirs[name]
}
