// snapshot.go defines the materialized, immutable table state at a version.
package deltalog

import (
	"sort"

	"github.com/lakeyard/deltalog/action"
)

// Snapshot is the materialized table state at a specific version: the live
// file set, current metadata and protocol, per-application transaction
// versions, and domain metadata.
//
// A Snapshot is immutable; a mutation always produces a new Snapshot at
// version+1 via Table.Commit, never an in-place edit. Multiple Snapshots at
// different versions may be held concurrently by different readers — this
// is the basis of snapshot isolation.
//
// Accessors returning pointers or maps expose shared state; callers must
// treat it as read-only.
type Snapshot struct {
	version  Version
	files    map[string]*action.Add
	metadata *action.Metadata
	protocol *action.Protocol
	txns     map[string]*action.Txn
	domains  map[string]*action.DomainMetadata
}

// Version returns the version this snapshot represents.
func (s *Snapshot) Version() Version {
	return s.version
}

// NumFiles returns the number of live data files.
func (s *Snapshot) NumFiles() int {
	return len(s.files)
}

// File returns the live Add record for path, if present.
func (s *Snapshot) File(path string) (*action.Add, bool) {
	a, ok := s.files[path]
	return a, ok
}

// Files returns the live Add records sorted by path. The stable order makes
// replay output reproducible byte for byte.
func (s *Snapshot) Files() []*action.Add {
	out := make([]*action.Add, 0, len(s.files))
	for _, a := range s.files {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Metadata returns the authoritative table metadata, or nil before the
// first metadata record.
func (s *Snapshot) Metadata() *action.Metadata {
	return s.metadata
}

// Protocol returns the authoritative protocol record, or nil before the
// first protocol record.
func (s *Snapshot) Protocol() *action.Protocol {
	return s.protocol
}

// TxnVersion returns the latest version recorded for an external
// application, for idempotent-write deduplication. The second result is
// false when the application has no record.
func (s *Snapshot) TxnVersion(appID string) (int64, bool) {
	t, ok := s.txns[appID]
	if !ok {
		return 0, false
	}
	return t.Version, true
}

// Domain returns the domain metadata for domain, if present and not
// tombstoned.
func (s *Snapshot) Domain(domain string) (*action.DomainMetadata, bool) {
	d, ok := s.domains[domain]
	return d, ok
}

// Domains returns the live domain names, sorted.
func (s *Snapshot) Domains() []string {
	out := make([]string, 0, len(s.domains))
	for d := range s.domains {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// allActions returns the snapshot's complete state as actions in a
// deterministic order: protocol, metadata, txns, domain metadata, then
// adds sorted by path. This is exactly the content of a checkpoint.
func (s *Snapshot) allActions() []action.Action {
	out := make([]action.Action, 0, len(s.files)+len(s.txns)+len(s.domains)+2)
	if s.protocol != nil {
		out = append(out, s.protocol)
	}
	if s.metadata != nil {
		out = append(out, s.metadata)
	}
	appIDs := make([]string, 0, len(s.txns))
	for id := range s.txns {
		appIDs = append(appIDs, id)
	}
	sort.Strings(appIDs)
	for _, id := range appIDs {
		out = append(out, s.txns[id])
	}
	for _, d := range s.Domains() {
		out = append(out, s.domains[d])
	}
	for _, a := range s.Files() {
		out = append(out, a)
	}
	return out
}

// clone returns a deep-enough copy for incremental replay: fresh maps, the
// same immutable action records.
func (s *Snapshot) clone() *Snapshot {
	out := &Snapshot{
		version:  s.version,
		files:    make(map[string]*action.Add, len(s.files)),
		metadata: s.metadata,
		protocol: s.protocol,
		txns:     make(map[string]*action.Txn, len(s.txns)),
		domains:  make(map[string]*action.DomainMetadata, len(s.domains)),
	}
	for k, v := range s.files {
		out.files[k] = v
	}
	for k, v := range s.txns {
		out.txns[k] = v
	}
	for k, v := range s.domains {
		out.domains[k] = v
	}
	return out
}

// emptySnapshot is the state of a table with no commits. Its version is
// InvalidVersion; the first commit produces version 0.
func emptySnapshot() *Snapshot {
	return &Snapshot{
		version: InvalidVersion,
		files:   make(map[string]*action.Add),
		txns:    make(map[string]*action.Txn),
		domains: make(map[string]*action.DomainMetadata),
	}
}
