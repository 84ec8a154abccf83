// Package testutil provides deterministic stand-ins for the wall-clock
// pieces of the transport: a hand-driven tick source and fixed session
// IDs. Both let tests advance the beat clock exactly and compare
// output byte for byte.
package testutil

import (
	"sync"
	"time"
)

// ManualTicker is a hand-driven tick source. Tests call Tick to
// advance the beat clock one tick at a time; the configured interval
// is recorded but never waited on.
//
// Thread-safety: all methods are safe for concurrent use.
type ManualTicker struct {
	mu       sync.Mutex
	ch       chan time.Time
	running  bool
	interval time.Duration
}

// NewManualTicker creates a stopped manual ticker.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Start records the interval and marks the ticker running. No ticks
// fire until Tick is called.
func (t *ManualTicker) Start(interval time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = true
	t.interval = interval
}

// Stop marks the ticker stopped. Pending Tick calls still deliver.
func (t *ManualTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// C returns the tick channel.
func (t *ManualTicker) C() <-chan time.Time {
	return t.ch
}

// Tick delivers n ticks. Each send blocks until the clock consumer
// receives it, so after Tick returns every tick has been picked up.
func (t *ManualTicker) Tick(n int) {
	for i := 0; i < n; i++ {
		t.ch <- time.Time{}
	}
}

// Running reports whether Start has been called without a matching
// Stop.
func (t *ManualTicker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Interval returns the most recently configured tick interval.
func (t *ManualTicker) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}
