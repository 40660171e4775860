package orchestrator

import (
	"errors"
	"os"

	"medialink/internal/config"
	"medialink/internal/tracking"
)

// VerifyResult holds the verification findings for one library.
type VerifyResult struct {
	Library      config.Library
	TrackingFile string
	Findings     []tracking.Finding
	Counts       map[tracking.Status]int
	Error        error
}

// Problems returns the number of records that are not intact.
func (r *VerifyResult) Problems() int {
	n := 0
	for status, count := range r.Counts {
		if status != tracking.StatusOK {
			n += count
		}
	}
	return n
}

// Verify checks every recorded link of the named libraries against the
// filesystem. Records are reported, never pruned.
func (o *Orchestrator) Verify(names []string) ([]*VerifyResult, error) {
	libs, err := o.config.SelectLibraries(names)
	if err != nil {
		return nil, err
	}

	results := make([]*VerifyResult, 0, len(libs))
	for _, lib := range libs {
		result := &VerifyResult{
			Library:      lib,
			TrackingFile: o.config.TrackingFileFor(lib),
		}
		results = append(results, result)

		if _, err := os.Stat(result.TrackingFile); errors.Is(err, os.ErrNotExist) {
			// Never run: nothing recorded, and nothing to create.
			result.Counts = tracking.CountByStatus(nil)
			o.logger.Info().Str("library", lib.Name).Msg("No tracking store yet")
			continue
		}

		lock := o.libraryLock(lib.Name)
		lock.Lock()
		store, err := tracking.Open(result.TrackingFile)
		if err != nil {
			lock.Unlock()
			result.Error = err
			continue
		}
		result.Findings = store.Verify()
		store.Close()
		lock.Unlock()

		result.Counts = tracking.CountByStatus(result.Findings)
		o.logger.Info().
			Str("library", lib.Name).
			Int("records", len(result.Findings)).
			Int("problems", result.Problems()).
			Msg("Verified tracking store")
	}
	return results, nil
}
