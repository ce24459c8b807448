// replay.go folds the ordered action sequence of a log segment into a
// Snapshot.
//
// Replay is a pure fold: identical inputs always produce an identical
// Snapshot. The rules, in replay order (checkpoint first, then commits in
// strictly ascending version order, actions in file order within a
// version):
//
//   - Add inserts or overwrites the entry for its path.
//   - Remove deletes the entry for its path; removing an absent path is
//     not an error (a checkpoint compaction may have dropped it already).
//   - Metadata and Protocol are last-write-wins across the whole segment.
//   - Txn records are last-write-wins per appId.
//   - DomainMetadata is last-write-wins per domain; a removed tombstone
//     drops the domain.
//   - CommitInfo and CDC records do not affect state.
//
// A Protocol record whose minReaderVersion exceeds this implementation's
// ceiling fails the whole replay with ErrUnsupportedProtocol; no partial
// snapshot is ever returned.
package deltalog

import (
	"fmt"

	"github.com/lakeyard/deltalog/action"
)

// applyAction folds one action into the mutable state. The caller owns the
// ordering guarantees.
func applyAction(s *Snapshot, a action.Action) error {
	switch act := a.(type) {
	case *action.Add:
		s.files[act.Path] = act

	case *action.Remove:
		// Idempotent tombstone semantics.
		delete(s.files, act.Path)

	case *action.Metadata:
		s.metadata = act

	case *action.Protocol:
		if act.MinReaderVersion > action.SupportedReaderVersion {
			return fmt.Errorf("%w: table requires reader version %d, this implementation supports up to %d",
				ErrUnsupportedProtocol, act.MinReaderVersion, action.SupportedReaderVersion)
		}
		s.protocol = act

	case *action.Txn:
		s.txns[act.AppID] = act

	case *action.DomainMetadata:
		if act.Removed {
			delete(s.domains, act.Domain)
		} else {
			s.domains[act.Domain] = act
		}

	case action.CommitInfo, *action.CDC:
		// Informational; no effect on materialized state.

	default:
		return fmt.Errorf("%w: unhandled action kind %q", ErrMalformedAction, a.Kind())
	}
	return nil
}

// applyAll folds actions in file order.
func applyAll(s *Snapshot, actions []action.Action) error {
	for _, a := range actions {
		if err := applyAction(s, a); err != nil {
			return err
		}
	}
	return nil
}

// advanceSnapshot produces the snapshot at version to by applying one
// commit's actions on top of base. base is not modified. Versions must be
// consecutive: replay out of order is a correctness bug, not a performance
// one.
func advanceSnapshot(base *Snapshot, to Version, actions []action.Action) (*Snapshot, error) {
	if to != base.version+1 {
		return nil, fmt.Errorf("deltalog: advance from version %d to %d is not consecutive", base.version, to)
	}
	next := base.clone()
	if err := applyAll(next, actions); err != nil {
		return nil, err
	}
	next.version = to
	return next, nil
}
