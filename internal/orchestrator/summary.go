package orchestrator

import (
	"time"
)

// RunSummary contains statistics aggregated over all libraries of a run.
type RunSummary struct {
	Total           int // files expected across libraries
	Processed       int
	Linked          int
	AlreadyLinked   int
	Skipped         int
	Unprocessed     int
	FailedLibraries int // libraries that aborted before or during traversal
	Duration        time.Duration
}

// GenerateSummary totals the per-library stats of a run.
func GenerateSummary(s *Summary) *RunSummary {
	if s == nil {
		return &RunSummary{}
	}

	totals := &RunSummary{Duration: s.Duration}
	for _, r := range s.Results {
		if r.Error != nil || r.Stats == nil {
			totals.FailedLibraries++
			continue
		}
		totals.Total += r.Stats.TotalFiles
		totals.Processed += r.Stats.ProcessedFiles
		totals.Linked += r.Stats.Linked
		totals.AlreadyLinked += r.Stats.AlreadyLinked
		totals.Skipped += r.Stats.Skipped
		totals.Unprocessed += len(r.Stats.Unprocessed)
	}
	return totals
}
