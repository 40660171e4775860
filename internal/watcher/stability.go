package watcher

import (
	"context"
	"errors"
	"os"
	"time"
)

// ErrFileUnstable is returned when a file keeps growing past the timeout.
var ErrFileUnstable = errors.New("file did not stabilize within timeout")

// StabilityChecker waits for a file's size to stop changing, so that a
// download still being written is not linked half-way.
type StabilityChecker struct {
	threshold time.Duration // time the size must remain unchanged
	timeout   time.Duration
	interval  time.Duration
}

// NewStabilityChecker creates a StabilityChecker with the given threshold,
// a 30 second timeout and a polling interval of threshold/4 (at least 50ms).
func NewStabilityChecker(threshold time.Duration) *StabilityChecker {
	interval := threshold / 4
	if interval < 50*time.Millisecond {
		interval = 50 * time.Millisecond
	}
	return &StabilityChecker{
		threshold: threshold,
		timeout:   30 * time.Second,
		interval:  interval,
	}
}

// NewStabilityCheckerWithOptions creates a StabilityChecker with custom timeout and interval.
func NewStabilityCheckerWithOptions(threshold, timeout, interval time.Duration) *StabilityChecker {
	return &StabilityChecker{
		threshold: threshold,
		timeout:   timeout,
		interval:  interval,
	}
}

// WaitForStable blocks until the size of path has been unchanged for the
// threshold. A path that no longer exists, or is a directory, is
// considered settled and returns nil at once.
func (s *StabilityChecker) WaitForStable(ctx context.Context, path string) error {
	if s.threshold <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lastSize, settled, err := s.size(path)
	if settled || err != nil {
		return err
	}
	lastChange := time.Now()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrFileUnstable
			}
			return ctx.Err()
		case <-ticker.C:
			size, settled, err := s.size(path)
			if settled || err != nil {
				return err
			}
			if size != lastSize {
				lastSize = size
				lastChange = time.Now()
			} else if time.Since(lastChange) >= s.threshold {
				return nil
			}
		}
	}
}

func (s *StabilityChecker) size(path string) (size int64, settled bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, true, nil
		}
		return 0, false, err
	}
	if info.IsDir() {
		return 0, true, nil
	}
	return info.Size(), false, nil
}

// Threshold returns the configured stability threshold.
func (s *StabilityChecker) Threshold() time.Duration {
	return s.threshold
}
