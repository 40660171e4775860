package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"medialink/internal/config"
)

func TestWatchRunsOnStartAndOnChange(t *testing.T) {
	cfg := setupLibraries(t, map[string][]string{
		"shows": {"Show/Show.S01E01.mkv"},
	})
	cfg.Watch = &config.WatchConfig{DebounceSeconds: 0}

	var mu sync.Mutex
	var results []Result
	onResult := func(r Result) {
		mu.Lock()
		results = append(results, r)
		mu.Unlock()
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(results)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	o := NewOrchestrator(cfg, quietOptions(Options{}))
	go func() {
		defer close(done)
		summary, err := o.Watch(ctx, []string{"shows"}, onResult)
		if err != nil {
			t.Errorf("Watch() error: %v", err)
			return
		}
		if summary.Runs < 1 {
			t.Errorf("expected at least one re-run, got %+v", summary)
		}
	}()

	deadline := time.Now().Add(5 * time.Second)
	for count() < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if count() < 1 {
		t.Fatal("initial run did not happen")
	}
	// Give the watcher time to register before changing the source.
	time.Sleep(200 * time.Millisecond)

	shows := cfg.Libraries[1]
	if err := os.WriteFile(filepath.Join(shows.Source, "Show", "Show.S01E02.mkv"), []byte("e2"), 0644); err != nil {
		t.Fatal(err)
	}

	linked := filepath.Join(shows.Target, "Show", "Show S01E02.mkv")
	deadline = time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(linked); err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if _, err := os.Stat(linked); err != nil {
		t.Fatalf("new episode was not mirrored: %v", err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	if count() < 2 {
		t.Errorf("expected initial and re-run results, got %d", count())
	}
}

func TestWatchUnknownLibrary(t *testing.T) {
	cfg := setupLibraries(t, nil)
	o := NewOrchestrator(cfg, quietOptions(Options{}))
	if _, err := o.Watch(context.Background(), []string{"music"}, nil); err == nil {
		t.Error("expected error for unknown library")
	}
}

func TestWatchConfig(t *testing.T) {
	cfg := setupLibraries(t, nil)
	cfg.Exclude = []string{"*.nfo"}
	cfg.Watch = &config.WatchConfig{DebounceSeconds: 3}

	wc := NewOrchestrator(cfg, quietOptions(Options{})).watchConfig()
	if wc.DebounceSeconds != 3 {
		t.Errorf("DebounceSeconds = %d, want 3", wc.DebounceSeconds)
	}
	last := wc.IgnorePatterns[len(wc.IgnorePatterns)-1]
	if last != "*.nfo" || len(wc.IgnorePatterns) < 2 {
		t.Errorf("expected defaults plus scan exclusions, got %v", wc.IgnorePatterns)
	}

	cfg.Watch.IgnorePatterns = []string{"*.part"}
	wc = NewOrchestrator(cfg, quietOptions(Options{})).watchConfig()
	if len(wc.IgnorePatterns) != 2 || wc.IgnorePatterns[0] != "*.part" {
		t.Errorf("configured patterns should replace defaults, got %v", wc.IgnorePatterns)
	}
}
