package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recorder is a Handler that records the roots it was called with.
type recorder struct {
	mu    sync.Mutex
	roots []string
	err   error
}

func (r *recorder) handle(root string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roots = append(r.roots, root)
	return r.err
}

func (r *recorder) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.roots...)
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func startWatcher(t *testing.T, cfg *Config, handler Handler, roots ...string) *Watcher {
	t.Helper()
	logger := zerolog.Nop()
	w := New(cfg, handler, &logger)
	if err := w.Start(roots); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}
	return w
}

// fastConfig disables the debounce delay and stability wait.
func fastConfig(patterns ...string) *Config {
	return &Config{IgnorePatterns: patterns}
}

func TestWatcher_NewFile_TriggersRun(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, fastConfig(), rec.handle, root)
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(root, "Show.S01E01.mkv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) >= 1 }) {
		t.Fatal("handler was not called")
	}
	abs, _ := filepath.Abs(root)
	if got := rec.calls()[0]; got != abs {
		t.Errorf("handler root = %s, want %s", got, abs)
	}
}

func TestWatcher_NestedDirectories(t *testing.T) {
	root := t.TempDir()
	existing := filepath.Join(root, "Show", "Season 1")
	if err := os.MkdirAll(existing, 0755); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := startWatcher(t, fastConfig(), rec.handle, root)
	defer w.Stop()

	// A directory present at start is watched.
	if err := os.WriteFile(filepath.Join(existing, "e1.mkv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) >= 1 }) {
		t.Fatal("event in existing subdirectory was missed")
	}

	// A directory created later is watched too.
	created := filepath.Join(root, "Movie")
	if err := os.Mkdir(created, 0755); err != nil {
		t.Fatal(err)
	}
	before := len(rec.calls())
	if !waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) > before }) {
		t.Fatal("directory creation did not trigger a run")
	}
	before = len(rec.calls())
	if err := os.WriteFile(filepath.Join(created, "m.mkv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) > before }) {
		t.Fatal("event in new subdirectory was missed")
	}
}

func TestWatcher_IgnoredFiles(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, fastConfig("*.part", "*.nfo"), rec.handle, root)

	for _, name := range []string{"movie.part", "info.nfo", ".a1b2c3d4.parts"} {
		if err := os.WriteFile(filepath.Join(root, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	time.Sleep(200 * time.Millisecond)
	summary := w.Stop()

	if calls := rec.calls(); len(calls) != 0 {
		t.Errorf("ignored files triggered %d runs", len(calls))
	}
	if summary.EventsIgnored < 3 {
		t.Errorf("EventsIgnored = %d, want at least 3", summary.EventsIgnored)
	}
}

func TestWatcher_DebounceCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	w := New(fastConfig(), rec.handle, nil)
	w.logger = zerolog.Nop()
	w.debouncer = NewDebouncer(150*time.Millisecond, w.settled)
	if err := w.Start([]string{root}); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	for i := 0; i < 5; i++ {
		name := filepath.Join(root, "Show.S01E0"+string(rune('1'+i))+".mkv")
		if err := os.WriteFile(name, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	time.Sleep(400 * time.Millisecond)
	if calls := rec.calls(); len(calls) != 1 {
		t.Errorf("expected one coalesced run, got %d", len(calls))
	}
}

func TestWatcher_MultipleRoots(t *testing.T) {
	movies := t.TempDir()
	shows := t.TempDir()
	rec := &recorder{}
	w := startWatcher(t, fastConfig(), rec.handle, movies, shows)
	defer w.Stop()

	if len(w.Roots()) != 2 {
		t.Fatalf("expected 2 roots, got %v", w.Roots())
	}

	if err := os.WriteFile(filepath.Join(shows, "e.mkv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) >= 1 }) {
		t.Fatal("handler was not called")
	}
	abs, _ := filepath.Abs(shows)
	for _, root := range rec.calls() {
		if root != abs {
			t.Errorf("unexpected root %s", root)
		}
	}
}

func TestWatcher_SummaryCountsFailures(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{err: os.ErrPermission}
	w := startWatcher(t, fastConfig(), rec.handle, root)

	if err := os.WriteFile(filepath.Join(root, "a.mkv"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	waitFor(t, 2*time.Second, func() bool { return len(rec.calls()) >= 1 })

	summary := w.Stop()
	if summary.Runs < 1 || summary.Failures != summary.Runs {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.Duration <= 0 {
		t.Error("expected a positive duration")
	}
}

func TestWatcher_StartStop(t *testing.T) {
	w := startWatcher(t, nil, nil, t.TempDir())
	if !w.IsRunning() {
		t.Error("watcher should be running after Start")
	}

	w.Stop()
	if w.IsRunning() {
		t.Error("watcher should not be running after Stop")
	}
	// A second Stop is harmless.
	w.Stop()
}

func TestWatcher_StartWithMissingDirectory(t *testing.T) {
	logger := zerolog.Nop()
	w := New(nil, nil, &logger)
	if err := w.Start([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		w.Stop()
		t.Error("expected error for missing directory")
	}
}

func TestWatcher_DefaultConfig(t *testing.T) {
	w := New(nil, nil, nil)
	cfg := w.Config()
	if cfg.DebounceSeconds != 5 || cfg.StableThresholdMs != 1000 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.IgnorePatterns) == 0 {
		t.Error("default config should have ignore patterns")
	}
}
