// naming.go maps log versions to object names.
//
// The fixed-width zero-padded prefix makes lexical name order equal version
// order, so a sorted listing of the log directory is already the commit
// sequence. The widths (20 digits for versions, 10 for checkpoint part
// numbers) are protocol constants shared by every implementation.
package logstore

import (
	"fmt"
	"strconv"
	"strings"
)

// LastCheckpointName is the name of the checkpoint pointer file.
const LastCheckpointName = "_last_checkpoint"

const (
	commitSuffix      = ".json"
	versionWidth      = 20
	partWidth         = 10
	commitNamePattern = "%020d.json"
	singlePartName    = "%020d.checkpoint.json"
	multiPartName     = "%020d.checkpoint.%010d.%010d.json"
)

// CommitName returns the object name for version v, e.g. version 42 →
// "00000000000000000042.json".
func CommitName(v Version) string {
	return fmt.Sprintf(commitNamePattern, v)
}

// ParseCommitName parses a commit object name. Returns false for names that
// are not commit files (checkpoints, the pointer, temp files).
func ParseCommitName(name string) (Version, bool) {
	base, found := strings.CutSuffix(name, commitSuffix)
	if !found || len(base) != versionWidth || strings.Contains(base, ".") {
		return InvalidVersion, false
	}
	v, err := strconv.ParseInt(base, 10, 64)
	if err != nil || v < 0 {
		return InvalidVersion, false
	}
	return Version(v), true
}

// CheckpointName returns the object name of a single-part checkpoint for
// version v, e.g. "00000000000000000010.checkpoint.json".
func CheckpointName(v Version) string {
	return fmt.Sprintf(singlePartName, v)
}

// MultipartCheckpointName returns the object name of part part (1-based) of
// a checkpoint split into parts pieces, e.g.
// "00000000000000000010.checkpoint.0000000001.0000000003.json".
func MultipartCheckpointName(v Version, part, parts int) string {
	return fmt.Sprintf(multiPartName, v, part, parts)
}

// CheckpointFile identifies one checkpoint object by version and part.
// Part and Parts are 1 for a single-part checkpoint.
type CheckpointFile struct {
	Name    string
	Version Version
	Part    int
	Parts   int
}

// ParseCheckpointName parses a checkpoint object name, single- or
// multi-part. Returns false for anything else.
func ParseCheckpointName(name string) (CheckpointFile, bool) {
	base, found := strings.CutSuffix(name, commitSuffix)
	if !found {
		return CheckpointFile{}, false
	}
	fields := strings.Split(base, ".")
	if len(fields) < 2 || fields[1] != "checkpoint" {
		return CheckpointFile{}, false
	}
	if len(fields[0]) != versionWidth {
		return CheckpointFile{}, false
	}
	v, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil || v < 0 {
		return CheckpointFile{}, false
	}

	cf := CheckpointFile{Name: name, Version: Version(v), Part: 1, Parts: 1}
	switch len(fields) {
	case 2:
		return cf, true
	case 4:
		if len(fields[2]) != partWidth || len(fields[3]) != partWidth {
			return CheckpointFile{}, false
		}
		part, err := strconv.Atoi(fields[2])
		if err != nil || part < 1 {
			return CheckpointFile{}, false
		}
		parts, err := strconv.Atoi(fields[3])
		if err != nil || parts < part {
			return CheckpointFile{}, false
		}
		cf.Part, cf.Parts = part, parts
		return cf, true
	default:
		return CheckpointFile{}, false
	}
}
