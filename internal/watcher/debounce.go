package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer delays a callback until activity for a key settles.
// Rapid events for the same key are coalesced: the timer restarts on every
// Add and the callback receives every path collected since the last firing.
type Debouncer struct {
	delay    time.Duration
	pending  map[string]*batch
	callback func(key string, paths []string)
	mu       sync.Mutex
}

type batch struct {
	timer *time.Timer
	gen   uint64 // bumped on every Add; only the latest timer may fire
	paths map[string]struct{}
}

// NewDebouncer creates a new Debouncer with the specified delay and callback.
func NewDebouncer(delay time.Duration, callback func(key string, paths []string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		pending:  make(map[string]*batch),
		callback: callback,
	}
}

// Add records path under key and (re)starts the key's timer.
func (d *Debouncer) Add(key, path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	b, exists := d.pending[key]
	if exists {
		b.timer.Stop()
	} else {
		b = &batch{paths: make(map[string]struct{})}
		d.pending[key] = b
	}
	if path != "" {
		b.paths[path] = struct{}{}
	}

	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(d.delay, func() { d.fire(key, b, gen) })
}

func (d *Debouncer) fire(key string, b *batch, gen uint64) {
	d.mu.Lock()
	// Cancelled, already fired, or superseded by a later Add whose timer
	// Stop came too late.
	if d.pending[key] != b || b.gen != gen {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	paths := make([]string, 0, len(b.paths))
	for p := range b.paths {
		paths = append(paths, p)
	}
	d.mu.Unlock()

	sort.Strings(paths)
	if d.callback != nil {
		d.callback(key, paths)
	}
}

// Cancel drops the pending batch for key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if b, exists := d.pending[key]; exists {
		b.timer.Stop()
		delete(d.pending, key)
	}
}

// CancelAll drops every pending batch. Used during shutdown.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, b := range d.pending {
		b.timer.Stop()
		delete(d.pending, key)
	}
}

// PendingCount returns the number of keys waiting to fire.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// IsPending returns true if key has a batch waiting to fire.
func (d *Debouncer) IsPending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, exists := d.pending[key]
	return exists
}

// Delay returns the configured debounce delay.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
