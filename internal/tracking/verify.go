package tracking

import (
	"errors"
	"fmt"
	"os"
)

// Status describes how a recorded link compares with the filesystem.
type Status string

const (
	// StatusOK means source and target exist and share the same inode.
	StatusOK Status = "ok"
	// StatusMissingSource means the source file no longer exists.
	StatusMissingSource Status = "missing-source"
	// StatusMissingTarget means the target file no longer exists.
	StatusMissingTarget Status = "missing-target"
	// StatusDiverged means both exist but are different files.
	StatusDiverged Status = "diverged"
	// StatusError means the files could not be inspected.
	StatusError Status = "error"
)

// Finding is the verification result for one record.
type Finding struct {
	Record LinkRecord
	Status Status
	Err    error
}

// Verify checks every record against the filesystem. Records are never
// modified; stale entries are reported, not pruned.
func (s *Store) Verify() []Finding {
	records := s.Records()
	findings := make([]Finding, 0, len(records))
	for _, record := range records {
		findings = append(findings, VerifyRecord(record))
	}
	return findings
}

// VerifyRecord compares one record's source and target.
func VerifyRecord(record LinkRecord) Finding {
	finding := Finding{Record: record}

	sourceInfo, err := os.Stat(record.SourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			finding.Status = StatusMissingSource
			return finding
		}
		finding.Status = StatusError
		finding.Err = fmt.Errorf("failed to stat source: %w", err)
		return finding
	}

	targetInfo, err := os.Stat(record.TargetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			finding.Status = StatusMissingTarget
			return finding
		}
		finding.Status = StatusError
		finding.Err = fmt.Errorf("failed to stat target: %w", err)
		return finding
	}

	if os.SameFile(sourceInfo, targetInfo) {
		finding.Status = StatusOK
	} else {
		finding.Status = StatusDiverged
	}
	return finding
}

// CountByStatus tallies findings per status.
func CountByStatus(findings []Finding) map[Status]int {
	counts := make(map[Status]int)
	for _, f := range findings {
		counts[f.Status]++
	}
	return counts
}
