// json.go implements the wire codec for actions.
//
// Each action serializes to a single-line JSON object with exactly one key,
// the action kind, e.g.:
//
//	{"add":{"path":"part-00000.parquet","size":1024,"dataChange":true}}
//
// A commit file is the newline-joined serialization of its actions in the
// order they were staged. Serialization is the strict inverse of parsing:
// Decode(Encode(a)) is structurally equal to a for every variant.
package action

import (
	"bytes"
	"encoding/json"
	"fmt"
)

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// Encode serializes a single action to one JSON line, without a trailing
// newline. The action is validated first.
func Encode(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("%w: nil action", ErrMalformed)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	wrapper := map[Kind]Action{a.Kind(): a}
	data, err := json.Marshal(wrapper)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return data, nil
}

// Decode parses a single log line into an Action.
//
// Failure modes, all wrapping ErrMalformed:
//   - the line is not a JSON object
//   - the object has zero keys or more than one key (an object that is
//     simultaneously, say, an add and a remove is corrupt)
//   - the key names an unknown action kind
//   - the value's fields fail type checks or validation
//
// Unknown fields inside a known action are ignored for forward
// compatibility with newer writers.
func Decode(line []byte) (Action, error) {
	var wrapper map[Kind]json.RawMessage
	if err := json.Unmarshal(line, &wrapper); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if len(wrapper) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one action key, got %d", ErrMalformed, len(wrapper))
	}

	var kind Kind
	var raw json.RawMessage
	for k, v := range wrapper {
		kind, raw = k, v
	}

	// CommitInfo is a map type, not a struct; decode it directly so its
	// json.Number handling applies.
	if kind == KindCommitInfo {
		var ci CommitInfo
		if err := ci.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("%w: decoding %s: %v", ErrMalformed, kind, err)
		}
		return ci, nil
	}

	var a Action
	switch kind {
	case KindAdd:
		a = &Add{}
	case KindRemove:
		a = &Remove{}
	case KindMetadata:
		a = &Metadata{}
	case KindProtocol:
		a = &Protocol{}
	case KindTxn:
		a = &Txn{}
	case KindDomainMetadata:
		a = &DomainMetadata{}
	case KindCDC:
		a = &CDC{}
	default:
		return nil, fmt.Errorf("%w: unknown action kind %q", ErrMalformed, kind)
	}

	if err := json.Unmarshal(raw, a); err != nil {
		return nil, fmt.Errorf("%w: decoding %s: %v", ErrMalformed, kind, err)
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// EncodeAll serializes actions in order, one per line, with a trailing
// newline. This is the exact byte content of a commit file.
func EncodeAll(actions []Action) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range actions {
		line, err := Encode(a)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// DecodeAll parses a whole commit file, preserving action order. Blank
// lines are not tolerated: a commit file with an empty interior line is
// corrupt.
func DecodeAll(data []byte) ([]Action, error) {
	var actions []Action
	for lineNo, line := range bytes.Split(data, []byte{'\n'}) {
		if len(line) == 0 {
			// Only the final newline may produce an empty slice.
			if lineNo == bytes.Count(data, []byte{'\n'}) {
				break
			}
			return nil, fmt.Errorf("%w: empty line %d in commit file", ErrMalformed, lineNo+1)
		}
		a, err := Decode(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo+1, err)
		}
		actions = append(actions, a)
	}
	return actions, nil
}
