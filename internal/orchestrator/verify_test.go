package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"medialink/internal/tracking"
)

func TestVerifyAfterRun(t *testing.T) {
	cfg := setupLibraries(t, map[string][]string{
		"movies": {"Dune.2021.mkv", "Heat.1995.mkv"},
	})
	o := NewOrchestrator(cfg, quietOptions(Options{}))

	if _, err := o.Run([]string{"movies"}); err != nil {
		t.Fatal(err)
	}

	// Break one link by replacing the target with a copy.
	movies := cfg.Libraries[0]
	broken := filepath.Join(movies.Target, "Heat (1995).mkv")
	if err := os.Remove(broken); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(broken, []byte("copy"), 0644); err != nil {
		t.Fatal(err)
	}

	results, err := o.Verify([]string{"movies"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}

	r := results[0]
	if r.Error != nil {
		t.Fatalf("unexpected error: %v", r.Error)
	}
	if r.Counts[tracking.StatusOK] != 1 || r.Counts[tracking.StatusDiverged] != 1 {
		t.Errorf("unexpected counts: %v", r.Counts)
	}
	if r.Problems() != 1 {
		t.Errorf("Problems() = %d, want 1", r.Problems())
	}
}

func TestVerifyLockedStore(t *testing.T) {
	cfg := setupLibraries(t, nil)
	store, err := tracking.Open(cfg.TrackingFileFor(cfg.Libraries[0]))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	results, err := NewOrchestrator(cfg, quietOptions(Options{})).Verify([]string{"movies"})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Error == nil {
		t.Error("expected a lock error")
	}
}

func TestVerifyNeverRunLibrary(t *testing.T) {
	cfg := setupLibraries(t, map[string][]string{
		"movies": {"Heat.1995.mkv"},
	})

	results, err := NewOrchestrator(cfg, quietOptions(Options{})).Verify([]string{"movies"})
	if err != nil {
		t.Fatal(err)
	}
	r := results[0]
	if r.Error != nil || len(r.Findings) != 0 || r.Problems() != 0 {
		t.Errorf("expected an empty result, got %+v", r)
	}
	if _, err := os.Stat(r.TrackingFile); !os.IsNotExist(err) {
		t.Errorf("verify must not create the tracking file, stat err: %v", err)
	}
}
