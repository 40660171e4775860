// Package tracking persists the record of hardlinks created by medialink.
//
// The store is a flat JSON object mapping absolute source paths to absolute
// target paths. Every Record rewrites the whole file so that an interrupted
// run leaves a consistent, resumable record.
package tracking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
)

var (
	// ErrStoreLocked is returned by Open when another process owns the store.
	ErrStoreLocked = errors.New("tracking store is locked by another process")
	// ErrStoreClosed is returned by Record after Close.
	ErrStoreClosed = errors.New("tracking store is closed")
)

// CorruptStoreError is returned when an existing tracking file cannot be parsed.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt tracking store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error {
	return e.Err
}

// LinkRecord is one completed hardlink.
type LinkRecord struct {
	SourcePath string
	TargetPath string
}

// Store is an open tracking file. It holds an exclusive lock on
// "<path>.lock" until Close is called.
type Store struct {
	mu      sync.Mutex
	path    string
	lock    *flock.Flock
	entries map[string]string
	closed  bool
}

// Open loads the tracking file at path, creating it as "{}" (and any parent
// directories) if it does not exist yet.
func Open(path string) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tracking store path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create tracking directory: %w", err)
	}

	lock := flock.New(absPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire tracking store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrStoreLocked, absPath)
	}

	entries, exists, err := load(absPath)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	store := &Store{
		path:    absPath,
		lock:    lock,
		entries: entries,
	}

	if !exists {
		if err := store.flush(); err != nil {
			lock.Unlock()
			return nil, err
		}
	}

	return store, nil
}

// load reads and parses the tracking file. A missing or zero-length file
// yields an empty mapping.
func load(path string) (map[string]string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), false, nil
		}
		return nil, false, fmt.Errorf("failed to read tracking store: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return make(map[string]string), true, nil
	}

	var entries map[string]string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, true, &CorruptStoreError{Path: path, Err: err}
	}
	if entries == nil {
		entries = make(map[string]string)
	}
	return entries, true, nil
}

// Record maps source to target and writes the full mapping to disk before
// returning. On write failure the in-memory mapping is rolled back.
func (s *Store) Record(source, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	previous, existed := s.entries[source]
	s.entries[source] = target

	if err := s.flush(); err != nil {
		if existed {
			s.entries[source] = previous
		} else {
			delete(s.entries, source)
		}
		return err
	}
	return nil
}

// flush replaces the tracking file atomically: the mapping is written to a
// temporary file in the same directory, synced, and renamed over the target.
func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode tracking store: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary tracking file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write tracking store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync tracking store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close tracking store: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set tracking store permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace tracking store: %w", err)
	}
	return nil
}

// Target returns the recorded target for source.
func (s *Store) Target(source string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.entries[source]
	return target, ok
}

// Len returns the number of recorded links.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Records returns all recorded links sorted by source path.
func (s *Store) Records() []LinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]LinkRecord, 0, len(s.entries))
	for source, target := range s.entries {
		records = append(records, LinkRecord{SourcePath: source, TargetPath: target})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].SourcePath < records[j].SourcePath
	})
	return records
}

// Path returns the absolute path of the tracking file.
func (s *Store) Path() string {
	return s.path
}

// Close releases the store lock. It is safe to call more than once.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.lock.Unlock(); err != nil {
		return fmt.Errorf("failed to release tracking store lock: %w", err)
	}
	return nil
}
