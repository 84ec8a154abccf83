package testutil

import "sync"

// FixedSessionGenerator returns predetermined session IDs in order.
// Deterministic session IDs make trace rows and trigger IDs stable, so
// tests can compare them against golden output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedSessionGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewFixedSessionGenerator creates a generator that returns ids in
// order, repeating the last one once the rest are consumed. An empty
// list yields "test-session".
func NewFixedSessionGenerator(ids ...string) *FixedSessionGenerator {
	if len(ids) == 0 {
		ids = []string{"test-session"}
	}
	return &FixedSessionGenerator{ids: ids}
}

// Generate returns the next predetermined session ID.
func (g *FixedSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.ids[g.idx]
	if g.idx < len(g.ids)-1 {
		g.idx++
	}
	return id
}
