// commit.go implements the optimistic commit protocol.
//
// A writer prepares actions against a base snapshot, then claims version
// base+1 with an atomic write-if-absent. Losing the race is not an error by
// itself: the loser reads the winning commit, checks its own actions
// against it, and either fails with ErrCommitConflict (a real logical
// conflict) or rebases onto the winner and retries at the next version.
// Retries are bounded and backed off with jitter so herds of writers
// spread out.
package deltalog

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/lakeyard/deltalog/action"
	"github.com/lakeyard/deltalog/internal/logging"
	"github.com/lakeyard/deltalog/logstore"
)

// Operation describes what a commit logically does. The name and
// parameters are recorded in the commit's provenance; BlindAppend relaxes
// conflict detection.
type Operation struct {
	// Name is the operation name recorded in commitInfo, e.g. "WRITE",
	// "DELETE", "MERGE".
	Name string

	// Parameters are operation parameters recorded in commitInfo.
	Parameters map[string]string

	// BlindAppend declares that the commit only appends new files and its
	// actions were chosen without reading table state. Blind appends
	// tolerate concurrent removals and metadata changes that would
	// invalidate a read-dependent commit.
	BlindAppend bool
}

// engineInfo identifies this writer in commitInfo records.
const engineInfo = "deltalog"

// commit runs the optimistic commit loop and returns the snapshot that
// includes the committed actions.
func commit(ctx context.Context, store logstore.Store, base *Snapshot, op Operation, actions []action.Action, opts *Options) (*Snapshot, error) {
	lg := opts.Logger

	if p := base.Protocol(); p != nil && p.MinWriterVersion > action.SupportedWriterVersion {
		return nil, fmt.Errorf("%w: table requires writer version %d, this implementation supports up to %d",
			ErrUnsupportedProtocol, p.MinWriterVersion, action.SupportedWriterVersion)
	}
	for _, a := range actions {
		if err := a.Validate(); err != nil {
			return nil, err
		}
		// A protocol upgrade past our own ceiling would publish a commit
		// we can no longer read back.
		if p, ok := a.(*action.Protocol); ok {
			if p.MinReaderVersion > action.SupportedReaderVersion || p.MinWriterVersion > action.SupportedWriterVersion {
				return nil, fmt.Errorf("%w: cannot upgrade table past reader %d / writer %d",
					ErrUnsupportedProtocol, action.SupportedReaderVersion, action.SupportedWriterVersion)
			}
		}
	}

	full := withCommitInfo(op, actions)
	data, err := action.EncodeAll(full)
	if err != nil {
		return nil, err
	}

	cur := base
	for attempt := 1; attempt <= opts.MaxCommitAttempts; attempt++ {
		target := cur.Version() + 1
		err := logstore.WriteCommitIfAbsent(ctx, store, target, data)
		if err == nil {
			lg.Debugf(logging.NSCommit+"committed version %d (%q, attempt %d)", target, op.Name, attempt)
			return advanceSnapshot(cur, target, full)
		}
		if !errors.Is(err, logstore.ErrAlreadyExists) {
			return nil, err
		}

		// Lost the race at target. Read the winner and decide whether a
		// rebase is sound.
		winnerData, rerr := logstore.ReadCommit(ctx, store, target)
		if rerr != nil {
			return nil, fmt.Errorf("deltalog: version %d exists but cannot be read: %w", target, rerr)
		}
		winner, derr := action.DecodeAll(winnerData)
		if derr != nil {
			return nil, derr
		}
		if cerr := checkConflict(op, actions, winner, target); cerr != nil {
			return nil, cerr
		}
		cur, err = advanceSnapshot(cur, target, winner)
		if err != nil {
			return nil, err
		}
		lg.Debugf(logging.NSCommit+"lost race at version %d, rebasing (attempt %d/%d)", target, attempt, opts.MaxCommitAttempts)

		if err := commitBackoff(ctx, attempt, opts); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrCommitConflict, opts.MaxCommitAttempts)
}

// withCommitInfo prepends a provenance record unless the caller supplied
// one.
func withCommitInfo(op Operation, actions []action.Action) []action.Action {
	for _, a := range actions {
		if a.Kind() == action.KindCommitInfo {
			return actions
		}
	}
	ci := action.NewCommitInfo(op.Name, op.Parameters)
	ci["engineInfo"] = engineInfo
	ci["txnId"] = uuid.NewString()
	if op.BlindAppend {
		ci["isBlindAppend"] = true
	}
	out := make([]action.Action, 0, len(actions)+1)
	out = append(out, ci)
	return append(out, actions...)
}

// checkConflict decides whether mine can be rebased past winner, the
// commit that claimed version v first. A nil result means the two commits
// are logically independent and retrying at the next version is safe.
//
// Txn and commitInfo records never conflict: txn is last-write-wins by
// construction and commitInfo is informational.
func checkConflict(op Operation, mine, winner []action.Action, v Version) error {
	winAdds := make(map[string]bool)
	winRemoves := make(map[string]bool)
	winDomains := make(map[string]bool)
	winMetadata := false
	winProtocol := false
	for _, a := range winner {
		switch act := a.(type) {
		case *action.Add:
			winAdds[act.Path] = true
		case *action.Remove:
			winRemoves[act.Path] = true
		case *action.Metadata:
			winMetadata = true
		case *action.Protocol:
			winProtocol = true
		case *action.DomainMetadata:
			winDomains[act.Domain] = true
		}
	}

	if winProtocol {
		return fmt.Errorf("%w: protocol changed by concurrent commit %d", ErrCommitConflict, v)
	}

	mineMetadata := false
	for _, a := range mine {
		switch act := a.(type) {
		case *action.Add:
			if winAdds[act.Path] || winRemoves[act.Path] {
				return fmt.Errorf("%w: file %q touched by concurrent commit %d", ErrCommitConflict, act.Path, v)
			}
		case *action.Remove:
			if winAdds[act.Path] || winRemoves[act.Path] {
				return fmt.Errorf("%w: file %q touched by concurrent commit %d", ErrCommitConflict, act.Path, v)
			}
		case *action.Metadata:
			mineMetadata = true
		case *action.DomainMetadata:
			if winDomains[act.Domain] {
				return fmt.Errorf("%w: domain %q changed by concurrent commit %d", ErrCommitConflict, act.Domain, v)
			}
		}
	}

	if winMetadata {
		// A read-dependent commit may have planned against schema or
		// configuration that no longer holds. Conservative whole-table
		// rule: any concurrent metadata change invalidates it.
		if !op.BlindAppend || mineMetadata {
			return fmt.Errorf("%w: metadata changed by concurrent commit %d", ErrCommitConflict, v)
		}
	}

	if len(winRemoves) > 0 && !op.BlindAppend {
		// The winner deleted files this commit's reads may have depended
		// on. Only declared blind appends are exempt.
		return fmt.Errorf("%w: files removed by concurrent commit %d", ErrCommitConflict, v)
	}
	return nil
}

// commitBackoff sleeps before the next attempt: exponential in attempt,
// capped, with jitter in [d/2, d]. Honors cancellation.
func commitBackoff(ctx context.Context, attempt int, opts *Options) error {
	d := opts.CommitBackoffBase
	for i := 1; i < attempt && d < opts.CommitBackoffMax; i++ {
		d *= 2
	}
	if d > opts.CommitBackoffMax {
		d = opts.CommitBackoffMax
	}
	d = d/2 + rand.N(d/2+1)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
