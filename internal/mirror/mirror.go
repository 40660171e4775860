// Package mirror recreates a source media tree inside a target tree using
// hardlinks, normalizing filenames on the way.
//
// A run walks the source once to count files and once to link them. Every
// directory is recreated with its original name; every file is linked under
// its canonical name unless it sits below a passthrough directory such as
// "Featurettes". A destination that already exists is treated as done, which
// makes repeated runs idempotent.
package mirror

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medialink/internal/linker"
	"medialink/internal/logging"
	"medialink/internal/normalizer"
	"medialink/internal/scanner"
)

// RulePassthrough marks events for files whose name was kept verbatim.
const RulePassthrough = "passthrough"

// DefaultPassthroughDirs lists directory names whose contents keep their names.
var DefaultPassthroughDirs = []string{"Featurettes"}

// Recorder persists a source to target mapping once a link exists.
// *tracking.Store satisfies it.
type Recorder interface {
	Record(source, target string) error
}

// Options configures an Engine.
type Options struct {
	PassthroughDirs []string // case-insensitive directory names; nil means DefaultPassthroughDirs
	SymlinkPolicy   string   // scanner policy, "follow" when empty
	Exclude         []string // gitignore-style patterns relative to the source root
	DryRun          bool     // compute outcomes without touching the target or the store
	Reporter        Reporter
	Normalizer      *normalizer.Normalizer
	Linker          linker.Linker
	Logger          *zerolog.Logger
}

// Engine mirrors one source tree into one target tree per call.
type Engine struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New creates an Engine, filling unset options with defaults.
func New(opts Options) *Engine {
	if opts.PassthroughDirs == nil {
		opts.PassthroughDirs = DefaultPassthroughDirs
	}
	if opts.SymlinkPolicy == "" {
		opts.SymlinkPolicy = scanner.SymlinkPolicyFollow
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Normalizer == nil {
		opts.Normalizer = normalizer.New()
	}
	if opts.Linker == nil {
		opts.Linker = linker.HardLinker{}
	}
	logger := logging.Logger("mirror")
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Engine{opts: opts, logger: logger, now: time.Now}
}

// Options returns the effective options.
func (e *Engine) Options() Options {
	return e.opts
}

// run holds the state of one Mirror call.
type run struct {
	*Engine
	source  string
	target  string
	store   Recorder
	stats   *RunStats
	claimed map[string]bool

	// rootPassthrough is set when the source root itself lies in a
	// passthrough directory, e.g. "/media/Show/Featurettes".
	rootPassthrough bool
}

// Mirror links every file under source into target and records new links
// in store. store may be nil in dry-run mode.
//
// Per-file problems never abort the run: the affected path is appended to
// RunStats.Unprocessed. Only unusable roots are returned as errors.
func (e *Engine) Mirror(source, target string, store Recorder) (*RunStats, error) {
	if store == nil && !e.opts.DryRun {
		return nil, errors.New("mirror: a tracking store is required")
	}

	src, dst, err := e.ResolveRoots(source, target)
	if err != nil {
		return nil, err
	}

	r := &run{
		Engine:  e,
		source:  src,
		target:  dst,
		store:   store,
		stats:   &RunStats{StartTime: e.now()},
		claimed: make(map[string]bool),
	}
	r.rootPassthrough = r.anyPassthrough(src)

	scanOpts := scanner.ScanOptions{
		SymlinkPolicy: e.opts.SymlinkPolicy,
		Exclude:       e.opts.Exclude,
	}

	total, err := scanner.Count(src, scanOpts, func(entry scanner.Entry) bool {
		return !normalizer.IsTemporary(entry.Name)
	})
	if err != nil {
		return nil, &RootUnavailableError{Role: "source", Path: src, Err: err}
	}
	r.stats.TotalFiles = total
	e.logger.Info().Int("total", total).Str("source", src).Msgf("Found %d files to process", total)

	if err := scanner.Walk(src, scanOpts, r.visit); err != nil {
		return nil, &RootUnavailableError{Role: "source", Path: src, Err: err}
	}

	r.stats.Elapsed = e.now().Sub(r.stats.StartTime)
	e.logger.Info().
		Int("processed", r.stats.ProcessedFiles).
		Int("total", r.stats.TotalFiles).
		Int("linked", r.stats.Linked).
		Int("already_linked", r.stats.AlreadyLinked).
		Int("skipped", r.stats.Skipped).
		Int("unprocessed", len(r.stats.Unprocessed)).
		Dur("elapsed", r.stats.Elapsed).
		Bool("dry_run", e.opts.DryRun).
		Msg("Mirror completed")
	return r.stats, nil
}

// ResolveRoots returns the absolute, symlink-free source and target roots.
// The source must be a directory and the target must lie outside it. Outside
// dry-run mode the target is created if missing. Failures are
// *RootUnavailableError.
func (e *Engine) ResolveRoots(source, target string) (string, string, error) {
	src, err := filepath.Abs(source)
	if err != nil {
		return "", "", &RootUnavailableError{Role: "source", Path: source, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(src); err == nil {
		src = resolved
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", "", &RootUnavailableError{Role: "source", Path: src, Err: err}
	}
	if !info.IsDir() {
		return "", "", &RootUnavailableError{Role: "source", Path: src, Err: errors.New("not a directory")}
	}

	dst, err := filepath.Abs(target)
	if err != nil {
		return "", "", &RootUnavailableError{Role: "target", Path: target, Err: err}
	}
	if resolved, err := filepath.EvalSymlinks(dst); err == nil {
		dst = resolved
	}
	if Within(src, dst) {
		return "", "", &RootUnavailableError{Role: "target", Path: dst, Err: ErrTargetInsideSource}
	}

	if e.opts.DryRun {
		if info, err := os.Stat(dst); err == nil && !info.IsDir() {
			return "", "", &RootUnavailableError{Role: "target", Path: dst, Err: errors.New("not a directory")}
		}
		return src, dst, nil
	}
	if err := linker.EnsureDir(dst); err != nil {
		return "", "", &RootUnavailableError{Role: "target", Path: dst, Err: err}
	}
	return src, dst, nil
}

// Within reports whether path equals root or lies below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func (r *run) visit(entry scanner.Entry, err error) error {
	if err != nil {
		r.fail(Event{Source: entry.Path, Directory: entry.IsDir, Err: err})
		return nil
	}
	if entry.IsDir {
		return r.visitDir(entry)
	}
	r.visitFile(entry)
	return nil
}

func (r *run) visitDir(entry scanner.Entry) error {
	targetDir := filepath.Join(r.target, entry.Rel)
	if !r.opts.DryRun {
		if err := linker.EnsureDir(targetDir); err != nil {
			r.fail(Event{Source: entry.Path, Target: targetDir, Directory: true, Err: err})
			return fs.SkipDir
		}
	}
	if r.isPassthrough(entry.Name) {
		r.logger.Info().Str("directory", entry.Path).Msg("Processed featurette directory")
	}
	return nil
}

func (r *run) visitFile(entry scanner.Entry) {
	if normalizer.IsTemporary(entry.Name) {
		r.skip(entry, "temporary file")
		return
	}

	name, rule := entry.Name, RulePassthrough
	if !r.underPassthrough(entry.Rel) {
		result := r.opts.Normalizer.Normalize(entry.Name)
		if result.Skip {
			r.skip(entry, "skipped by rule "+string(result.Rule))
			return
		}
		if !result.Matched() {
			r.logger.Info().Str("file", entry.Path).Msg("No naming rule matched, keeping original name")
		}
		name, rule = result.Name, string(result.Rule)
	}

	dest := filepath.Join(r.target, filepath.Dir(entry.Rel), name)
	event := Event{Source: entry.Path, Target: dest, Rule: rule}

	exists, err := linker.Exists(dest)
	if err != nil {
		event.Err = err
		r.fail(event)
		return
	}

	switch {
	case exists || r.claimed[dest]:
		event.Outcome = AlreadyLinked
		r.stats.AlreadyLinked++
		r.logger.Debug().Str("file", entry.Path).Str("target", dest).Msg("Already linked")
	case r.opts.DryRun:
		event.Outcome = Linked
		r.stats.Linked++
	default:
		if err := r.opts.Linker.Link(entry.Path, dest); err != nil {
			event.Err = err
			r.fail(event)
			return
		}
		if err := r.store.Record(entry.Path, dest); err != nil {
			// The link exists but is not tracked; the next run sees the
			// destination and counts it as already linked.
			event.Err = fmt.Errorf("record link: %w", err)
			r.fail(event)
			return
		}
		event.Outcome = Linked
		r.stats.Linked++
		r.logger.Debug().Str("file", entry.Path).Str("target", dest).Str("rule", rule).Msg("Linked")
	}
	r.claimed[dest] = true

	r.stats.ProcessedFiles++
	r.opts.Reporter.File(event)
	r.progress()
}

func (r *run) skip(entry scanner.Entry, reason string) {
	r.stats.Skipped++
	r.logger.Debug().Str("file", entry.Path).Str("reason", reason).Msg("Skipping file")
	r.opts.Reporter.File(Event{Source: entry.Path, Outcome: Skipped})
}

func (r *run) fail(event Event) {
	event.Outcome = Failed
	r.stats.Unprocessed = append(r.stats.Unprocessed, event.Source)
	r.logger.Error().Err(event.Err).Str("path", event.Source).Bool("directory", event.Directory).Msg("Failed to process")
	r.opts.Reporter.File(event)
}

func (r *run) progress() {
	elapsed := r.now().Sub(r.stats.StartTime)
	percent := r.stats.Percent()
	r.opts.Reporter.Progress(Progress{
		Processed: r.stats.ProcessedFiles,
		Total:     r.stats.TotalFiles,
		Percent:   percent,
		Elapsed:   elapsed,
		Remaining: Remaining(elapsed, percent),
	})
}

func (r *run) isPassthrough(name string) bool {
	for _, dir := range r.opts.PassthroughDirs {
		if strings.EqualFold(dir, name) {
			return true
		}
	}
	return false
}

// underPassthrough reports whether the file at rel, relative to the source
// root, has a passthrough directory among its ancestors, the root's own
// path components included.
func (r *run) underPassthrough(rel string) bool {
	if r.rootPassthrough {
		return true
	}
	dir := filepath.Dir(rel)
	if dir == "." {
		return false
	}
	return r.anyPassthrough(dir)
}

func (r *run) anyPassthrough(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part != "" && r.isPassthrough(part) {
			return true
		}
	}
	return false
}
