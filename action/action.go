// Package action defines the typed records of the transaction log.
//
// Every commit file is a sequence of actions, one JSON object per line, each
// object carrying exactly one key naming the action kind. The set of kinds is
// closed: replay logic switches over the concrete types below and treats an
// unknown kind as corruption rather than extending the hierarchy.
//
// Actions are immutable once constructed. The file path is the natural key
// for Add and Remove; replay resolves both with last-write-wins semantics.
//
// Field names and JSON shapes are load-bearing for interoperability with
// other implementations of the protocol and must be preserved bit-exactly.
package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ErrMalformed is the sentinel error wrapped by all parse and validation
// failures. A malformed record means the log is corrupt at that version;
// it is surfaced immediately and never silently skipped.
var ErrMalformed = errors.New("action: malformed action")

// Kind identifies an action variant. Kind values are the JSON object keys
// used on the wire.
type Kind string

// The closed set of action kinds.
const (
	KindAdd            Kind = "add"
	KindRemove         Kind = "remove"
	KindMetadata       Kind = "metaData"
	KindProtocol       Kind = "protocol"
	KindCommitInfo     Kind = "commitInfo"
	KindTxn            Kind = "txn"
	KindDomainMetadata Kind = "domainMetadata"
	KindCDC            Kind = "cdc"
)

// Action is one typed record in the transaction log.
//
// The interface is sealed by the unexported kind method; only the variants
// in this package implement it.
type Action interface {
	// Kind returns the action's wire name.
	Kind() Kind

	// Validate checks the action's required fields. Violations wrap
	// ErrMalformed.
	Validate() error

	kind() Kind
}

// Add records that a data file is part of the table.
type Add struct {
	// Path is the file's location, relative to the table root. Non-empty.
	Path string `json:"path"`

	// PartitionValues maps partition column names to string-encoded values.
	PartitionValues map[string]string `json:"partitionValues"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// ModificationTime is the file's creation time, in epoch milliseconds.
	ModificationTime int64 `json:"modificationTime"`

	// DataChange is false when the file rewrites data already present in
	// the table (compaction), true when it introduces new data.
	DataChange bool `json:"dataChange"`

	// Stats holds per-file statistics as a JSON document, if collected.
	Stats string `json:"stats,omitempty"`

	// Tags holds implementation-defined file metadata.
	Tags map[string]string `json:"tags,omitempty"`
}

// Kind implements Action.
func (a *Add) Kind() Kind { return KindAdd }

func (a *Add) kind() Kind { return KindAdd }

// Validate implements Action.
func (a *Add) Validate() error {
	if a.Path == "" {
		return fmt.Errorf("%w: add.path must be non-empty", ErrMalformed)
	}
	if a.Size < 0 {
		return fmt.Errorf("%w: add.size must be non-negative, got %d", ErrMalformed, a.Size)
	}
	return nil
}

// Remove records that a data file is no longer part of the table. The path
// remains as a tombstone until retention cleanup.
type Remove struct {
	// Path is the file's location, relative to the table root. Non-empty.
	Path string `json:"path"`

	// DeletionTimestamp is when the file was removed, in epoch milliseconds.
	DeletionTimestamp *int64 `json:"deletionTimestamp,omitempty"`

	// DataChange is false when the removal is part of a rewrite that keeps
	// the logical data intact (compaction).
	DataChange bool `json:"dataChange"`

	// ExtendedFileMetadata is true when PartitionValues and Size are set.
	ExtendedFileMetadata bool `json:"extendedFileMetadata,omitempty"`

	// PartitionValues maps partition column names to string-encoded values.
	PartitionValues map[string]string `json:"partitionValues,omitempty"`

	// Size is the removed file's size in bytes.
	Size *int64 `json:"size,omitempty"`
}

// Kind implements Action.
func (r *Remove) Kind() Kind { return KindRemove }

func (r *Remove) kind() Kind { return KindRemove }

// Validate implements Action.
func (r *Remove) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("%w: remove.path must be non-empty", ErrMalformed)
	}
	return nil
}

// Format describes the encoding of the table's data files.
type Format struct {
	// Provider names the data file encoding, e.g. "parquet".
	Provider string `json:"provider"`

	// Options holds provider-specific settings.
	Options map[string]string `json:"options,omitempty"`
}

// Metadata holds the table's schema and configuration. The latest metadata
// record in replay order is authoritative for the whole table.
type Metadata struct {
	// ID uniquely identifies the table across renames and moves.
	ID string `json:"id"`

	// Name is the user-facing table name, if any.
	Name string `json:"name,omitempty"`

	// Description is the user-facing table description, if any.
	Description string `json:"description,omitempty"`

	// Format describes the data file encoding.
	Format Format `json:"format"`

	// SchemaString is the table schema as a JSON document. The schema is
	// carried opaquely; interpreting it belongs to query-engine adapters.
	SchemaString string `json:"schemaString"`

	// PartitionColumns lists the columns the table is partitioned by.
	PartitionColumns []string `json:"partitionColumns"`

	// Configuration holds table properties.
	Configuration map[string]string `json:"configuration,omitempty"`

	// CreatedTime is when the table was created, in epoch milliseconds.
	CreatedTime *int64 `json:"createdTime,omitempty"`
}

// NewMetadata creates a Metadata with a fresh table ID and parquet format.
func NewMetadata(schemaString string, partitionColumns []string) *Metadata {
	now := time.Now().UnixMilli()
	return &Metadata{
		ID:               uuid.NewString(),
		Format:           Format{Provider: "parquet"},
		SchemaString:     schemaString,
		PartitionColumns: partitionColumns,
		CreatedTime:      &now,
	}
}

// Kind implements Action.
func (m *Metadata) Kind() Kind { return KindMetadata }

func (m *Metadata) kind() Kind { return KindMetadata }

// Validate implements Action.
func (m *Metadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: metaData.id must be non-empty", ErrMalformed)
	}
	if m.SchemaString != "" && !json.Valid([]byte(m.SchemaString)) {
		return fmt.Errorf("%w: metaData.schemaString is not valid JSON", ErrMalformed)
	}
	return nil
}

// Supported protocol ceiling for this implementation.
const (
	// SupportedReaderVersion is the highest min_reader_version this
	// implementation can honor.
	SupportedReaderVersion = 3

	// SupportedWriterVersion is the highest min_writer_version this
	// implementation can honor.
	SupportedWriterVersion = 7
)

// Protocol records the minimum feature-support level required of readers
// and writers. The latest protocol record in replay order is authoritative.
type Protocol struct {
	// MinReaderVersion is the minimum protocol version a reader must
	// implement. Positive.
	MinReaderVersion int `json:"minReaderVersion"`

	// MinWriterVersion is the minimum protocol version a writer must
	// implement. Positive.
	MinWriterVersion int `json:"minWriterVersion"`

	// ReaderFeatures names table features readers must support, for
	// MinReaderVersion >= 3.
	ReaderFeatures []string `json:"readerFeatures,omitempty"`

	// WriterFeatures names table features writers must support, for
	// MinWriterVersion >= 7.
	WriterFeatures []string `json:"writerFeatures,omitempty"`
}

// Kind implements Action.
func (p *Protocol) Kind() Kind { return KindProtocol }

func (p *Protocol) kind() Kind { return KindProtocol }

// Validate implements Action.
func (p *Protocol) Validate() error {
	if p.MinReaderVersion < 1 {
		return fmt.Errorf("%w: protocol.minReaderVersion must be positive, got %d", ErrMalformed, p.MinReaderVersion)
	}
	if p.MinWriterVersion < 1 {
		return fmt.Errorf("%w: protocol.minWriterVersion must be positive, got %d", ErrMalformed, p.MinWriterVersion)
	}
	return nil
}

// CommitInfo carries provenance for a commit: operation name, parameters,
// timestamp, and arbitrary engine-specific fields. It is informational;
// replay ignores it and conflict detection never triggers on it.
//
// Numbers decode as json.Number so that re-serialization preserves the
// original text and the round-trip law holds.
type CommitInfo map[string]any

// NewCommitInfo creates a CommitInfo for the named operation.
func NewCommitInfo(operation string, parameters map[string]string) CommitInfo {
	ci := CommitInfo{
		"timestamp": json.Number(strconv.FormatInt(time.Now().UnixMilli(), 10)),
		"operation": operation,
	}
	if len(parameters) > 0 {
		params := make(map[string]any, len(parameters))
		for k, v := range parameters {
			params[k] = v
		}
		ci["operationParameters"] = params
	}
	return ci
}

// Kind implements Action.
func (c CommitInfo) Kind() Kind { return KindCommitInfo }

func (c CommitInfo) kind() Kind { return KindCommitInfo }

// Validate implements Action. CommitInfo is free-form; any object is valid.
func (c CommitInfo) Validate() error { return nil }

// UnmarshalJSON decodes with json.Number preserved at every depth.
func (c *CommitInfo) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytesReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*c = m
	return nil
}

// Txn records the latest version written by an external application,
// enabling idempotent writes: a writer that finds its app_id already at or
// past its intended version skips the duplicate commit.
type Txn struct {
	// AppID identifies the external writer. Non-empty.
	AppID string `json:"appId"`

	// Version is the application's own monotonically increasing version.
	Version int64 `json:"version"`

	// LastUpdated is when the record was written, in epoch milliseconds.
	LastUpdated *int64 `json:"lastUpdated,omitempty"`
}

// Kind implements Action.
func (t *Txn) Kind() Kind { return KindTxn }

func (t *Txn) kind() Kind { return KindTxn }

// Validate implements Action.
func (t *Txn) Validate() error {
	if t.AppID == "" {
		return fmt.Errorf("%w: txn.appId must be non-empty", ErrMalformed)
	}
	if t.Version < 0 {
		return fmt.Errorf("%w: txn.version must be non-negative, got %d", ErrMalformed, t.Version)
	}
	return nil
}

// DomainMetadata holds configuration owned by a named domain, e.g. a
// clustering implementation. The latest record per domain wins; a removed
// tombstone drops the domain from the materialized state.
type DomainMetadata struct {
	// Domain names the owner. Non-empty.
	Domain string `json:"domain"`

	// Configuration is an opaque string interpreted by the domain.
	Configuration string `json:"configuration"`

	// Removed marks the domain's metadata as deleted.
	Removed bool `json:"removed"`
}

// Kind implements Action.
func (d *DomainMetadata) Kind() Kind { return KindDomainMetadata }

func (d *DomainMetadata) kind() Kind { return KindDomainMetadata }

// Validate implements Action.
func (d *DomainMetadata) Validate() error {
	if d.Domain == "" {
		return fmt.Errorf("%w: domainMetadata.domain must be non-empty", ErrMalformed)
	}
	return nil
}

// CDC records a change-data file. Replay ignores CDC records for the live
// file set; the codec round-trips them so rewritten logs stay complete.
type CDC struct {
	// Path is the change file's location, relative to the table root.
	Path string `json:"path"`

	// PartitionValues maps partition column names to string-encoded values.
	PartitionValues map[string]string `json:"partitionValues"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`

	// DataChange is always false for CDC files.
	DataChange bool `json:"dataChange"`
}

// Kind implements Action.
func (c *CDC) Kind() Kind { return KindCDC }

func (c *CDC) kind() Kind { return KindCDC }

// Validate implements Action.
func (c *CDC) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: cdc.path must be non-empty", ErrMalformed)
	}
	return nil
}
