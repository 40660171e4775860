// Package orchestrator coordinates the mirror workflow for medialink.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medialink/internal/config"
	"medialink/internal/linker"
	"medialink/internal/logging"
	"medialink/internal/mirror"
	"medialink/internal/tracking"
)

// Options configures an Orchestrator.
type Options struct {
	DryRun   bool
	Reporter mirror.Reporter
	Linker   linker.Linker // nil means hardlinks
	Logger   *zerolog.Logger
}

// Result represents the outcome of mirroring one library.
type Result struct {
	Library      config.Library
	TrackingFile string
	RunID        string
	Stats        *mirror.RunStats // nil when Error is set
	Error        error            // fatal for this library: bad root, locked or corrupt store
}

// Failed reports whether the library could not be mirrored, or mirrored with
// unprocessed files.
func (r Result) Failed() bool {
	return r.Error != nil || (r.Stats != nil && r.Stats.HasErrors())
}

// Summary represents the overall results of a run.
type Summary struct {
	Results  []Result
	Duration time.Duration
	DryRun   bool
}

// Orchestrator runs the mirror engine for configured libraries.
type Orchestrator struct {
	config *config.Configuration
	opts   Options
	logger zerolog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator creates a new Orchestrator with the given configuration.
func NewOrchestrator(cfg *config.Configuration, opts Options) *Orchestrator {
	logger := logging.Logger("orchestrator")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Orchestrator{
		config: cfg,
		opts:   opts,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// NewOrchestratorFromPath creates a new Orchestrator by loading configuration from a file.
func NewOrchestratorFromPath(configPath string, opts Options) (*Orchestrator, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return NewOrchestrator(cfg, opts), nil
}

// Config returns the configuration in use.
func (o *Orchestrator) Config() *config.Configuration {
	return o.config
}

// Run mirrors the named libraries, or all of them when names is empty.
// A fatal error in one library is recorded in its Result and the remaining
// libraries still run. Only an unknown library name is returned as an error.
func (o *Orchestrator) Run(names []string) (*Summary, error) {
	libs, err := o.config.SelectLibraries(names)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	summary := &Summary{DryRun: o.opts.DryRun}
	for _, lib := range libs {
		summary.Results = append(summary.Results, o.RunLibrary(lib))
	}
	summary.Duration = time.Since(start)
	return summary, nil
}

// RunLibrary mirrors one library. Calls for the same library are serialized.
func (o *Orchestrator) RunLibrary(lib config.Library) Result {
	lock := o.libraryLock(lib.Name)
	lock.Lock()
	defer lock.Unlock()

	logger, runID := logging.WithRunID(o.logger.With().Str("library", lib.Name).Logger())
	result := Result{
		Library:      lib,
		TrackingFile: o.config.TrackingFileFor(lib),
		RunID:        runID,
	}

	logger.Info().
		Str("source", lib.Source).
		Str("target", lib.Target).
		Str("tracking", result.TrackingFile).
		Bool("dry_run", o.opts.DryRun).
		Msg("Starting library")

	// Unusable roots abort before the tracking file or the target is created.
	check := o.engine(lib, &logger, nil, true)
	if _, _, err := check.ResolveRoots(lib.Source, lib.Target); err != nil {
		logger.Error().Err(err).Msg("Library aborted")
		result.Error = err
		return result
	}

	var recorder mirror.Recorder
	if !o.opts.DryRun {
		store, err := tracking.Open(result.TrackingFile)
		if err != nil {
			logger.Error().Err(err).Msg("Cannot open tracking store")
			result.Error = err
			return result
		}
		defer store.Close()
		recorder = store
	}

	engine := o.engine(lib, &logger, o.opts.Reporter, o.opts.DryRun)
	stats, err := engine.Mirror(lib.Source, lib.Target, recorder)
	if err != nil {
		logger.Error().Err(err).Msg("Library aborted")
		result.Error = err
		return result
	}
	result.Stats = stats
	return result
}

func (o *Orchestrator) engine(lib config.Library, logger *zerolog.Logger, reporter mirror.Reporter, dryRun bool) *mirror.Engine {
	engineLogger := logger.With().Str("component", "mirror").Logger()
	return mirror.New(mirror.Options{
		PassthroughDirs: o.config.PassthroughDirectories,
		SymlinkPolicy:   o.config.SymlinkPolicy,
		Exclude:         o.config.Exclude,
		DryRun:          dryRun,
		Reporter:        reporter,
		Linker:          o.opts.Linker,
		Logger:          &engineLogger,
	})
}

func (o *Orchestrator) libraryLock(name string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[name] = lock
	}
	return lock
}

// HasErrors returns true if any library failed or left files unprocessed.
func (s *Summary) HasErrors() bool {
	for _, r := range s.Results {
		if r.Failed() {
			return true
		}
	}
	return false
}

// PrintSummary returns a one-line summary across all libraries.
func (s *Summary) PrintSummary() string {
	totals := GenerateSummary(s)
	return fmt.Sprintf("Processed %d/%d files in %d libraries: %d linked, %d already linked, %d unprocessed, %d failed libraries",
		totals.Processed, totals.Total, len(s.Results), totals.Linked, totals.AlreadyLinked, totals.Unprocessed, totals.FailedLibraries)
}
