// Package watcher re-runs the mirror when library sources change.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"medialink/internal/logging"
	"medialink/internal/scanner"
)

// Config contains watcher settings.
type Config struct {
	DebounceSeconds   int      // quiet period before a re-run (default: 5)
	StableThresholdMs int      // file size stability threshold in milliseconds (default: 1000, 0 disables)
	IgnorePatterns    []string // gitignore-style patterns whose events never trigger a re-run
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceSeconds:   5,
		StableThresholdMs: 1000,
		IgnorePatterns:    DefaultIgnorePatterns(),
	}
}

// Summary contains stats from the watch session.
type Summary struct {
	Runs          int
	Failures      int
	EventsIgnored int
	Duration      time.Duration
}

// Handler re-processes one watched root. Calls for the same root may
// overlap when changes arrive during a slow run.
type Handler func(root string) error

// Watcher monitors source trees recursively and calls the handler for a
// root once its events have settled.
type Watcher struct {
	config    *Config
	handler   Handler
	logger    zerolog.Logger
	fsWatcher *fsnotify.Watcher
	filter    *FileFilter
	debouncer *Debouncer
	stability *StabilityChecker
	roots     []string

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inflight  sync.WaitGroup
	startTime time.Time

	mu       sync.Mutex
	running  bool
	runs     int
	failures int
	ignored  int
}

// New creates a new Watcher. If cfg is nil, DefaultConfig is used.
func New(cfg *Config, handler Handler, logger *zerolog.Logger) *Watcher {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	l := logging.Logger("watcher")
	if logger != nil {
		l = *logger
	}

	w := &Watcher{
		config:    cfg,
		handler:   handler,
		logger:    l,
		filter:    NewFileFilter(cfg.IgnorePatterns),
		stability: NewStabilityChecker(time.Duration(cfg.StableThresholdMs) * time.Millisecond),
	}
	w.debouncer = NewDebouncer(time.Duration(cfg.DebounceSeconds)*time.Second, w.settled)
	return w
}

// Start begins watching the given roots and every directory below them.
// The watcher runs until Stop is called.
func (w *Watcher) Start(roots []string) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fsw

	w.roots = w.roots[:0]
	for _, root := range roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			fsw.Close()
			return err
		}
		if err := fsw.Add(abs); err != nil {
			fsw.Close()
			return err
		}
		w.roots = append(w.roots, abs)
		w.addTree(abs, abs)
	}

	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.startTime = time.Now()
	w.mu.Lock()
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.processEvents()

	w.logger.Info().Strs("roots", w.roots).Dur("debounce", w.debouncer.Delay()).Msg("Watching for changes")
	return nil
}

// Stop shuts down the watcher, waits for an in-flight handler call and
// returns a summary of the session. Pending re-runs are dropped.
func (w *Watcher) Stop() *Summary {
	w.mu.Lock()
	wasRunning := w.running
	w.running = false
	w.mu.Unlock()

	if wasRunning {
		w.cancel()
		w.fsWatcher.Close()
		w.wg.Wait()
		w.debouncer.CancelAll()
		w.inflight.Wait()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	summary := &Summary{
		Runs:          w.runs,
		Failures:      w.failures,
		EventsIgnored: w.ignored,
	}
	if !w.startTime.IsZero() {
		summary.Duration = time.Since(w.startTime)
	}
	return summary
}

// addTree watches every directory below dir that the filter does not exclude.
func (w *Watcher) addTree(root, dir string) {
	opts := scanner.ScanOptions{
		SymlinkPolicy: scanner.SymlinkPolicySkip,
		Exclude:       w.filter.Patterns(),
	}
	err := scanner.Walk(dir, opts, func(entry scanner.Entry, err error) error {
		if err != nil || !entry.IsDir {
			return nil
		}
		if w.filter.ShouldIgnore(root, entry.Path, true) {
			return fs.SkipDir
		}
		if err := w.fsWatcher.Add(entry.Path); err != nil {
			w.logger.Warn().Err(err).Str("directory", entry.Path).Msg("Cannot watch directory")
		}
		return nil
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("directory", dir).Msg("Cannot watch tree")
	}
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watch error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	// Removing a source never changes the mirror, and renames arrive as a
	// Create for the new name.
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	root := w.rootFor(event.Name)
	if root == "" {
		return
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.filter.ShouldIgnore(root, event.Name, isDir) {
		w.mu.Lock()
		w.ignored++
		w.mu.Unlock()
		w.logger.Trace().Str("path", event.Name).Msg("Ignoring event")
		return
	}

	if isDir && event.Has(fsnotify.Create) {
		if err := w.fsWatcher.Add(event.Name); err != nil {
			w.logger.Warn().Err(err).Str("directory", event.Name).Msg("Cannot watch directory")
		}
		w.addTree(root, event.Name)
	}

	w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Change detected")
	w.debouncer.Add(root, event.Name)
}

// settled is the debounce callback: it waits for the changed files to stop
// growing, then runs the handler for root.
func (w *Watcher) settled(root string, paths []string) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	for _, path := range paths {
		err := w.stability.WaitForStable(w.ctx, path)
		if errors.Is(err, ErrFileUnstable) {
			w.logger.Info().Str("path", path).Msg("File still changing, postponing run")
			w.debouncer.Add(root, path)
			return
		}
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn().Err(err).Str("path", path).Msg("Cannot check file stability")
		}
	}

	var err error
	if w.handler != nil {
		err = w.handler(root)
	}

	w.mu.Lock()
	w.runs++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error().Err(err).Str("root", root).Msg("Re-run failed")
	}
}

// rootFor returns the watched root containing path, or "" if none does.
func (w *Watcher) rootFor(path string) string {
	for _, root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root
		}
	}
	return ""
}

// Config returns the current watcher configuration.
func (w *Watcher) Config() *Config {
	return w.config
}

// Roots returns the absolute roots being watched.
func (w *Watcher) Roots() []string {
	return append([]string(nil), w.roots...)
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
