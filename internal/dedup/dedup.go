// Package dedup guarantees at-most-one order per signal under the
// at-least-once delivery of the messaging layer.
package dedup

import (
	"sync"
	"time"
)

// DefaultWindow is the retention window for seen signal IDs. Redelivery
// beyond the window is assumed impossible; the bound trades perfect
// idempotency for bounded memory.
const DefaultWindow = 24 * time.Hour

// Deduplicator tracks processed signal identifiers within a retention
// window.
type Deduplicator struct {
	mu        sync.Mutex
	window    time.Duration
	seen      map[string]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// New creates a deduplicator. A non-positive window falls back to
// DefaultWindow.
func New(window time.Duration) *Deduplicator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Deduplicator{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Admit returns true the first time the id is seen within the retention
// window and false on every later call for the same id.
func (d *Deduplicator) Admit(id string) bool {
	if id == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	d.sweep(now)
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = now
	return true
}

// Forget removes an admitted id so a retried delivery can be admitted
// again. Used when the admission's downstream hand-off fails before any
// order is created.
func (d *Deduplicator) Forget(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
}

// Len returns the number of retained ids.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}

// sweep evicts expired entries. Runs at most every window/10 to keep
// Admit cheap. Caller holds the lock.
func (d *Deduplicator) sweep(now time.Time) {
	if now.Sub(d.lastSweep) < d.window/10 {
		return
	}
	d.lastSweep = now
	cutoff := now.Add(-d.window)
	for id, seenAt := range d.seen {
		if seenAt.Before(cutoff) {
			delete(d.seen, id)
		}
	}
}
