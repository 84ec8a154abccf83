package gen

import "sync"

// snapshot is the recorded outcome of one generation run, kept for
// follow-mode replay.
type snapshot struct {
	times         []float64
	sliceIndices  []int
	durationBeats float64
}

// History tracks the most recent generated timeline per bank.
//
// One History instance is shared by all generators of a session so a
// follow-mode bank can replay its leader. Thread-safe: generation may
// run concurrently across sessions.
type History struct {
	mu   sync.Mutex
	last map[string]snapshot
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{last: make(map[string]snapshot)}
}

// record stores the timeline shape for bankID, replacing any previous
// entry.
func (h *History) record(bankID string, times []float64, indices []int, durationBeats float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last[bankID] = snapshot{times: times, sliceIndices: indices, durationBeats: durationBeats}
}

// lookup returns the most recent snapshot for bankID.
func (h *History) lookup(bankID string) (snapshot, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.last[bankID]
	return s, ok
}

// Has reports whether bankID has a recorded timeline.
func (h *History) Has(bankID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.last[bankID]
	return ok
}
