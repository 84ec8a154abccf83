// Package gen turns a slice bank plus generation parameters into an
// ordered trigger event timeline.
//
// Generation is a pure computation: deterministic for a fixed
// (bank, params) including the seed, side-effect free except for
// recording the produced timeline into the follow History. It may run
// concurrently across sessions or be precomputed off the tick path.
package gen

import (
	"math"
	"math/rand/v2"

	"gitlab.com/gomidi/midi/v2"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/event"
)

// Velocity levels for grid-generated events. Slots on a whole-beat
// boundary get the accent.
const (
	velocityAccent = 0.95
	velocityBase   = 0.75
)

// Generator produces timelines and feeds the follow history.
type Generator struct {
	history *History
}

// New creates a Generator. Passing nil creates a private history,
// which disables cross-bank follow; sessions that use follow mode
// share one History across their generators.
func New(history *History) *Generator {
	if history == nil {
		history = NewHistory()
	}
	return &Generator{history: history}
}

// History returns the follow history this generator records into.
func (g *Generator) History() *History {
	return g.history
}

// Generate materializes the event timeline for bank b under params p.
//
// Output invariants, guaranteed by construction:
//   - events are sorted by time ascending, ties broken by slice index
//   - every slice index is within [0, b.SliceCount())
//
// The produced timeline is recorded in the follow history under the
// bank's ID before returning.
func (g *Generator) Generate(b *bank.Bank, p Params) ([]event.TriggerEvent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))

	var events []event.TriggerEvent
	var err error
	switch m := p.Mode.(type) {
	case Sequential:
		events = g.generateSequential(b, p, m.Subdivision)
	case Random:
		events = g.generateRandom(b, p, m.Subdivision, rng)
	case Probability:
		events = g.generateProbability(b, p, m, rng)
	case Euclidean:
		events = g.generateEuclidean(b, p, m)
	case Pattern:
		events = g.generatePattern(b, p, m)
	case Follow:
		events, err = g.generateFollow(b, p, m)
	case Chaos:
		events = g.generateChaos(b, p, m, rng)
	case MIDIMap:
		events = g.generateMIDIMap(b, p, m)
	}
	if err != nil {
		return nil, err
	}

	event.SortTimeline(events)

	times := make([]float64, len(events))
	indices := make([]int, len(events))
	for i, ev := range events {
		times[i] = ev.Time
		indices[i] = ev.SliceIndex
	}
	g.history.record(b.ID(), times, indices, p.DurationBeats)

	return events, nil
}

// gridSlots returns the number of grid slots covering the duration.
func gridSlots(durationBeats float64, subdivision int) int {
	return int(durationBeats*float64(subdivision) + 1e-9)
}

// slotTime returns the beat time of a grid slot.
func slotTime(slot, subdivision int) float64 {
	return float64(slot) / float64(subdivision)
}

// slotVelocity accents slots that land on a whole-beat boundary.
func slotVelocity(slot, subdivision int) float64 {
	if slot%subdivision == 0 {
		return velocityAccent
	}
	return velocityBase
}

func (g *Generator) generateSequential(b *bank.Bank, p Params, subdivision int) []event.TriggerEvent {
	sub := subdivisionOf(subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	events := make([]event.TriggerEvent, 0, slots)
	for slot := 0; slot < slots; slot++ {
		events = append(events, event.TriggerEvent{
			Time:       slotTime(slot, sub),
			SliceIndex: slot % count,
			Velocity:   slotVelocity(slot, sub),
		})
	}
	return events
}

func (g *Generator) generateRandom(b *bank.Bank, p Params, subdivision int, rng *rand.Rand) []event.TriggerEvent {
	sub := subdivisionOf(subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	events := make([]event.TriggerEvent, 0, slots)
	for slot := 0; slot < slots; slot++ {
		events = append(events, event.TriggerEvent{
			Time:       slotTime(slot, sub),
			SliceIndex: rng.IntN(count),
			Velocity:   slotVelocity(slot, sub),
		})
	}
	return events
}

// generateProbability draws per slice in ascending index order at each
// slot; the first successful draw wins and the slot emits at most one
// event. This tie-break is the documented semantics of the mode.
func (g *Generator) generateProbability(b *bank.Bank, p Params, m Probability, rng *rand.Rand) []event.TriggerEvent {
	sub := subdivisionOf(m.Subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	weights := m.Weights
	if len(weights) > count {
		weights = weights[:count]
	}

	var events []event.TriggerEvent
	for slot := 0; slot < slots; slot++ {
		for i, w := range weights {
			if rng.Float64() < w {
				events = append(events, event.TriggerEvent{
					Time:       slotTime(slot, sub),
					SliceIndex: i,
					Velocity:   slotVelocity(slot, sub),
				})
				break
			}
		}
	}
	return events
}

func (g *Generator) generateEuclidean(b *bank.Bank, p Params, m Euclidean) []event.TriggerEvent {
	sub := subdivisionOf(m.Subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	pattern := rotate(bjorklund(m.Hits, m.Steps), m.Rotation)

	var events []event.TriggerEvent
	hit := 0
	for slot := 0; slot < slots; slot++ {
		if !pattern[slot%m.Steps] {
			continue
		}
		events = append(events, event.TriggerEvent{
			Time:       slotTime(slot, sub),
			SliceIndex: hit % count,
			Velocity:   slotVelocity(slot, sub),
		})
		hit++
	}
	return events
}

func (g *Generator) generatePattern(b *bank.Bank, p Params, m Pattern) []event.TriggerEvent {
	sub := subdivisionOf(m.Subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	var events []event.TriggerEvent
	for slot := 0; slot < slots; slot++ {
		step := m.Steps[slot%len(m.Steps)]
		if step < 0 {
			continue // rest
		}
		events = append(events, event.TriggerEvent{
			Time:       slotTime(slot, sub),
			SliceIndex: step % count,
			Velocity:   slotVelocity(slot, sub),
		})
	}
	return events
}

// generateFollow replays the slice-index sequence of the leader bank's
// most recent timeline, shifted by the delay and wrapped modulo the
// local duration, with indices remapped into the local bank by modulo.
func (g *Generator) generateFollow(b *bank.Bank, p Params, m Follow) ([]event.TriggerEvent, error) {
	src, ok := g.history.lookup(m.BankID)
	if !ok {
		return nil, &UnknownFollowSourceError{BankID: m.BankID}
	}
	count := b.SliceCount()

	events := make([]event.TriggerEvent, 0, len(src.times))
	for i, t := range src.times {
		shifted := math.Mod(t+m.DelayBeats, p.DurationBeats)
		if shifted < 0 {
			shifted += p.DurationBeats
		}
		events = append(events, event.TriggerEvent{
			Time:       shifted,
			SliceIndex: src.sliceIndices[i] % count,
			Velocity:   velocityBase,
		})
	}
	return events, nil
}

// Chaos jitter bounds at full amount: velocity swings +/-0.3, pitch
// +/-12 semitones, pan across the full field.
const (
	chaosVelocityRange = 0.3
	chaosPitchRange    = 12.0
)

func (g *Generator) generateChaos(b *bank.Bank, p Params, m Chaos, rng *rand.Rand) []event.TriggerEvent {
	events := g.generateSequential(b, p, m.Subdivision)
	if m.Amount == 0 {
		return events
	}

	for i := range events {
		v := events[i].Velocity + jitter(rng)*chaosVelocityRange*m.Amount
		events[i].Velocity = clamp(v, 0.05, 1)
		events[i].PitchShift = math.Round(jitter(rng) * chaosPitchRange * m.Amount)
		events[i].Pan = clamp(jitter(rng)*m.Amount, -1, 1)
	}
	return events
}

func (g *Generator) generateMIDIMap(b *bank.Bank, p Params, m MIDIMap) []event.TriggerEvent {
	sub := subdivisionOf(m.Subdivision)
	slots := gridSlots(p.DurationBeats, sub)
	count := b.SliceCount()

	notes := noteOns(m.Phrase)
	root := int(m.Root)
	if m.Root == 0 {
		root = lowestKey(notes)
	}

	events := make([]event.TriggerEvent, 0, slots)
	for slot := 0; slot < slots; slot++ {
		note := notes[slot%len(notes)]
		idx := (int(note.key) - root) % count
		if idx < 0 {
			idx += count
		}
		events = append(events, event.TriggerEvent{
			Time:       slotTime(slot, sub),
			SliceIndex: idx,
			Velocity:   float64(note.velocity) / 127,
		})
	}
	return events
}

type noteOn struct {
	key      uint8
	velocity uint8
}

// noteOns extracts note-on messages (velocity > 0) from a captured
// phrase, in phrase order.
func noteOns(phrase []midi.Message) []noteOn {
	var notes []noteOn
	var channel, key, velocity uint8
	for _, msg := range phrase {
		if msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0 {
			notes = append(notes, noteOn{key: key, velocity: velocity})
		}
	}
	return notes
}

func lowestKey(notes []noteOn) int {
	lowest := 127
	for _, n := range notes {
		if int(n.key) < lowest {
			lowest = int(n.key)
		}
	}
	return lowest
}

// jitter returns a uniform draw in [-1, 1).
func jitter(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
