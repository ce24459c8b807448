// file.go implements Store against a local filesystem.
//
// The log lives under <table root>/_delta_log/. Atomicity of PutIfAbsent
// comes from the vfs WriteFileExclusive contract (temp file plus hard link,
// which fails with EEXIST when the name is taken).
//
// A local filesystem gives the if-absent guarantee only within one host.
// Multi-host deployments need a backend whose conditional writes span
// hosts (object storage preconditions or an external coordination table).
package logstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/lakeyard/deltalog/internal/vfs"
)

// LogDirName is the directory under the table root holding the log.
const LogDirName = "_delta_log"

// FileStore is a Store backed by a directory on a vfs filesystem.
type FileStore struct {
	fs     vfs.FS
	logDir string
}

// NewFileStore creates a Store rooted at tableRoot, creating the log
// directory if needed.
func NewFileStore(fs vfs.FS, tableRoot string) (*FileStore, error) {
	logDir := filepath.Join(tableRoot, LogDirName)
	if err := fs.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{fs: fs, logDir: logDir}, nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := s.fs.ListDir(s.logDir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, ".") {
			continue // temp files from in-flight exclusive writes
		}
		if prefix == "" || strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	return out, nil
}

// Read implements Store.
func (s *FileStore) Read(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.fs.ReadFile(filepath.Join(s.logDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put implements Store.
func (s *FileStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fs.WriteFile(filepath.Join(s.logDir, name), data)
}

// PutIfAbsent implements Store.
func (s *FileStore) PutIfAbsent(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fs.WriteFileExclusive(filepath.Join(s.logDir, name), data)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.fs.Remove(filepath.Join(s.logDir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}
