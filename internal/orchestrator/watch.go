package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"

	"medialink/internal/config"
	"medialink/internal/watcher"
)

// Watch mirrors the named libraries once, then re-runs a library whenever
// its source tree changes, until ctx is cancelled. onResult, if non-nil,
// receives every library result; it may be called from several goroutines.
func (o *Orchestrator) Watch(ctx context.Context, names []string, onResult func(Result)) (*watcher.Summary, error) {
	libs, err := o.config.SelectLibraries(names)
	if err != nil {
		return nil, err
	}

	report := func(r Result) {
		if onResult != nil {
			onResult(r)
		}
	}

	byRoot := make(map[string]config.Library, len(libs))
	roots := make([]string, 0, len(libs))
	for _, lib := range libs {
		report(o.RunLibrary(lib))

		abs, err := filepath.Abs(lib.Source)
		if err != nil {
			return nil, err
		}
		byRoot[abs] = lib
		roots = append(roots, abs)
	}

	handler := func(root string) error {
		lib, ok := byRoot[root]
		if !ok {
			return fmt.Errorf("no library for %s", root)
		}
		result := o.RunLibrary(lib)
		report(result)
		if result.Error != nil {
			return result.Error
		}
		if result.Failed() {
			return fmt.Errorf("%d files unprocessed", len(result.Stats.Unprocessed))
		}
		return nil
	}

	logger := o.logger.With().Str("component", "watcher").Logger()
	w := watcher.New(o.watchConfig(), handler, &logger)
	if err := w.Start(roots); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	<-ctx.Done()
	summary := w.Stop()
	o.logger.Info().
		Int("runs", summary.Runs).
		Int("failures", summary.Failures).
		Dur("duration", summary.Duration).
		Msg("Watch stopped")
	return summary, nil
}

// watchConfig builds the watcher settings. Scan exclusions also suppress
// events, on top of the configured or default ignore patterns.
func (o *Orchestrator) watchConfig() *watcher.Config {
	cfg := watcher.DefaultConfig()
	if w := o.config.Watch; w != nil {
		cfg.DebounceSeconds = w.DebounceSeconds
		if len(w.IgnorePatterns) > 0 {
			cfg.IgnorePatterns = append([]string(nil), w.IgnorePatterns...)
		}
	}
	cfg.IgnorePatterns = append(cfg.IgnorePatterns, o.config.Exclude...)
	return cfg
}
