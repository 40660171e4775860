package mirror

import (
	"errors"
	"fmt"
	"time"
)

// ErrTargetInsideSource is wrapped by a RootUnavailableError when the target
// root lies within the source tree.
var ErrTargetInsideSource = errors.New("target is inside source")

// RootUnavailableError is returned when a root cannot be used. It is fatal
// and happens before any file is touched.
type RootUnavailableError struct {
	Role string // "source" or "target"
	Path string
	Err  error
}

func (e *RootUnavailableError) Error() string {
	return fmt.Sprintf("%s root unavailable: %s: %v", e.Role, e.Path, e.Err)
}

func (e *RootUnavailableError) Unwrap() error {
	return e.Err
}

// Outcome is the terminal state of one file.
type Outcome string

const (
	Skipped       Outcome = "skipped"
	Linked        Outcome = "linked"
	AlreadyLinked Outcome = "already-linked"
	Failed        Outcome = "failed"
)

// RunStats accumulates the results of one Mirror call.
type RunStats struct {
	TotalFiles     int // files expected to be processed, temporary files excluded
	ProcessedFiles int // Linked + AlreadyLinked
	Linked         int
	AlreadyLinked  int
	Skipped        int
	Unprocessed    []string // sources (or directories) that failed
	StartTime      time.Time
	Elapsed        time.Duration
}

// HasErrors returns true if any file or directory could not be processed.
func (s *RunStats) HasErrors() bool {
	return len(s.Unprocessed) > 0
}

// Percent returns the share of processed files, 0 when there is nothing to do.
func (s *RunStats) Percent() float64 {
	if s.TotalFiles == 0 {
		return 0
	}
	return float64(s.ProcessedFiles) / float64(s.TotalFiles) * 100
}

// Remaining estimates the time left given the elapsed time and the
// completion percentage: elapsed * (100/percent - 1). It is 0 when percent
// is not positive.
func Remaining(elapsed time.Duration, percent float64) time.Duration {
	if percent <= 0 || percent >= 100 {
		return 0
	}
	return time.Duration(float64(elapsed) * (100/percent - 1))
}

// Progress is reported after each processed file.
type Progress struct {
	Processed int
	Total     int
	Percent   float64
	Elapsed   time.Duration
	Remaining time.Duration
}

// Event describes what happened to one source file.
type Event struct {
	Source    string
	Target    string // empty when no destination was computed
	Outcome   Outcome
	Rule      string // normalizer rule, "passthrough" for featurettes
	Err       error
	Directory bool // failure concerns a directory, not a file
}

// Reporter receives progress and per-file events.
type Reporter interface {
	Progress(p Progress)
	File(e Event)
}

type nopReporter struct{}

func (nopReporter) Progress(Progress) {}
func (nopReporter) File(Event)        {}

// ReporterFuncs adapts plain functions to Reporter. Nil fields are ignored.
type ReporterFuncs struct {
	OnProgress func(Progress)
	OnFile     func(Event)
}

func (r ReporterFuncs) Progress(p Progress) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

func (r ReporterFuncs) File(e Event) {
	if r.OnFile != nil {
		r.OnFile(e)
	}
}
