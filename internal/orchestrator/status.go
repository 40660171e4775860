package orchestrator

import (
	"sort"

	"medialink/internal/config"
	"medialink/internal/logging"
	"medialink/internal/mirror"
)

// PlannedLink is one file of a status preview.
type PlannedLink struct {
	Source string
	Target string
	Rule   string
	Err    error
}

// LibraryStatus contains the preview for one library.
type LibraryStatus struct {
	Library   config.Library
	ByOutcome map[mirror.Outcome][]PlannedLink
	Stats     *mirror.RunStats
	Error     error
}

// Pending returns the number of files a run would link.
func (s *LibraryStatus) Pending() int {
	return len(s.ByOutcome[mirror.Linked])
}

// StatusResult contains the status analysis results.
type StatusResult struct {
	Libraries    []*LibraryStatus
	TotalPending int
}

// Status previews what a run would do without creating directories, links
// or tracking records. The tracking store is not opened, so Status works
// while another run holds its lock.
func (o *Orchestrator) Status(names []string) (*StatusResult, error) {
	libs, err := o.config.SelectLibraries(names)
	if err != nil {
		return nil, err
	}

	result := &StatusResult{}
	for _, lib := range libs {
		status := &LibraryStatus{
			Library:   lib,
			ByOutcome: make(map[mirror.Outcome][]PlannedLink),
		}

		reporter := mirror.ReporterFuncs{OnFile: func(e mirror.Event) {
			status.ByOutcome[e.Outcome] = append(status.ByOutcome[e.Outcome], PlannedLink{
				Source: e.Source,
				Target: e.Target,
				Rule:   e.Rule,
				Err:    e.Err,
			})
		}}

		logger, _ := logging.WithRunID(o.logger.With().Str("library", lib.Name).Logger())
		stats, err := o.engine(lib, &logger, reporter, true).Mirror(lib.Source, lib.Target, nil)
		if err != nil {
			status.Error = err
		}
		status.Stats = stats

		for _, links := range status.ByOutcome {
			sort.Slice(links, func(i, j int) bool { return links[i].Source < links[j].Source })
		}

		result.Libraries = append(result.Libraries, status)
		result.TotalPending += status.Pending()
	}

	return result, nil
}
