// Package logstore defines the append-only, versioned byte store the
// transaction log lives in, and provides local implementations.
//
// The interface is the protocol's single trust anchor: PutIfAbsent must be
// atomic — no reader ever observes partial bytes, and when writers race on
// a name, at most one writer's bytes become the permanent content. Every
// correctness property of the optimistic commit protocol reduces to this
// one guarantee, which is why the store is a capability interface swappable
// per backend (local filesystem, object storage with preconditions, a
// coordination table) without touching replay logic.
//
// The namespace is flat: commit files, checkpoint parts, and the
// _last_checkpoint pointer are all objects under the table's log directory,
// named per naming.go.
package logstore

import (
	"context"
	"errors"
)

// Version identifies one atomic, totally ordered log entry. Versions are
// non-negative, monotonic, and contiguous within a table's history.
type Version int64

// InvalidVersion is the sentinel for "no version".
const InvalidVersion Version = -1

// Errors returned by Store implementations.
var (
	// ErrNotFound indicates the named object does not exist.
	ErrNotFound = errors.New("logstore: not found")

	// ErrAlreadyExists indicates PutIfAbsent lost the race: the name is
	// already taken by another writer's bytes.
	ErrAlreadyExists = errors.New("logstore: already exists")
)

// Store is the byte store backing a table's transaction log.
//
// Concurrency: all methods are safe for concurrent use. List results may be
// stale; callers must tolerate staleness and re-check on conflict.
//
// Cancellation: implementations should honor ctx on blocking I/O, but once
// PutIfAbsent has started its write, its outcome (success or
// ErrAlreadyExists) must be resolved and reported rather than abandoned.
type Store interface {
	// List returns object names starting with prefix, sorted ascending.
	// Commit file names sort lexically in version order by construction.
	List(ctx context.Context, prefix string) ([]string, error)

	// Read returns the full content of the named object.
	// Fails with ErrNotFound if absent.
	Read(ctx context.Context, name string) ([]byte, error)

	// Put writes the named object, replacing any previous content
	// atomically. Used only for objects whose content is self-validating
	// and advisory (the _last_checkpoint pointer).
	Put(ctx context.Context, name string, data []byte) error

	// PutIfAbsent writes the named object only if it does not exist.
	// Fails with ErrAlreadyExists if the name is taken. This is the only
	// primitive commits are published through.
	PutIfAbsent(ctx context.Context, name string, data []byte) error

	// Delete removes the named object. Used for retention cleanup.
	// Deleting an absent object fails with ErrNotFound.
	Delete(ctx context.Context, name string) error
}

// ListCommitVersions returns the commit versions present in the store that
// are strictly greater than after, ascending. Pass InvalidVersion to list
// from the beginning. Non-commit objects in the namespace are skipped.
func ListCommitVersions(ctx context.Context, s Store, after Version) ([]Version, error) {
	names, err := s.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var versions []Version
	for _, name := range names {
		v, ok := ParseCommitName(name)
		if !ok || v <= after {
			continue
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// ReadCommit returns the raw bytes of the commit file for version v.
func ReadCommit(ctx context.Context, s Store, v Version) ([]byte, error) {
	return s.Read(ctx, CommitName(v))
}

// WriteCommitIfAbsent publishes the commit file for version v. Fails with
// ErrAlreadyExists if another writer published v first.
func WriteCommitIfAbsent(ctx context.Context, s Store, v Version, data []byte) error {
	return s.PutIfAbsent(ctx, CommitName(v), data)
}
