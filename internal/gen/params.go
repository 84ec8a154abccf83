package gen

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
)

// DefaultSubdivision is the grid density (events per beat) used when a
// mode leaves subdivision unset. Four slots per beat is a sixteenth
// grid at 4/4.
const DefaultSubdivision = 4

// Mode is the closed set of generation algorithms. Each variant
// carries only its own parameters; the generator matches exhaustively
// so an unhandled mode is a compile-time error, not a stringly-typed
// dispatch miss.
type Mode interface {
	// kind returns the wire name of the mode, used in errors and the
	// request echo.
	kind() string
}

// Sequential cycles through slice indices 0..N-1 in order at fixed
// subdivision spacing, wrapping.
type Sequential struct {
	Subdivision int
}

func (Sequential) kind() string { return "sequential" }

// Random picks a uniformly random slice index at each grid slot.
type Random struct {
	Subdivision int
}

func (Random) kind() string { return "random" }

// Probability fires slice i at each grid slot independently with
// probability Weights[i]. A slot emits zero or one events: the first
// slice whose draw succeeds, in ascending index order, wins.
type Probability struct {
	Weights     []float64
	Subdivision int
}

func (Probability) kind() string { return "probability" }

// Euclidean distributes Hits onto Steps grid steps (Bjorklund),
// rotated by Rotation steps (taken modulo Steps). Each hit step maps
// to the next slice index in round-robin order.
type Euclidean struct {
	Hits        int
	Steps       int
	Rotation    int
	Subdivision int
}

func (Euclidean) kind() string { return "euclidean" }

// Pattern steps through an explicit slot-to-slice table at fixed
// subdivision spacing, wrapping. A step value of -1 is a rest; other
// values are taken modulo the bank's slice count.
type Pattern struct {
	Steps       []int
	Subdivision int
}

func (Pattern) kind() string { return "pattern" }

// Follow replays the slice-index sequence of another bank's most
// recent generated timeline, offset by DelayBeats and remapped onto
// the local bank's indices by position.
type Follow struct {
	BankID     string
	DelayBeats float64
}

func (Follow) kind() string { return "follow" }

// Chaos applies a bounded random perturbation (velocity, pitch, and
// pan jitter scaled by Amount) on top of a base sequential pattern.
type Chaos struct {
	Amount      float64 // 0.0 .. 1.0
	Subdivision int
}

func (Chaos) kind() string { return "chaos" }

// MIDIMap derives its slot-to-slice table from a captured MIDI phrase:
// each note-on in the phrase, in order, occupies successive grid slots,
// with slice index (key - Root) modulo slice count and velocity taken
// from the note-on velocity. The phrase cycles over the full duration.
//
// When Root is zero the lowest note-on key in the phrase maps to
// slice 0.
type MIDIMap struct {
	Phrase      []midi.Message
	Root        uint8
	Subdivision int
}

func (MIDIMap) kind() string { return "midi_map" }

// Params are the full inputs of one generation run. Generation is
// deterministic for a fixed (bank, params): Seed drives every
// stochastic mode.
type Params struct {
	DurationBeats float64
	BPM           float64
	Seed          uint64
	Mode          Mode
}

// Validate checks the mode-independent parameters plus the invariants
// of the selected mode. Returns InvalidParametersError on the first
// violation.
func (p Params) Validate() error {
	if p.DurationBeats <= 0 {
		return &InvalidParametersError{Field: "duration_beats", Message: fmt.Sprintf("must be positive, got %g", p.DurationBeats)}
	}
	if p.BPM <= 0 {
		return &InvalidParametersError{Field: "bpm", Message: fmt.Sprintf("must be positive, got %g", p.BPM)}
	}
	if p.Mode == nil {
		return &InvalidParametersError{Field: "mode", Message: "mode is required"}
	}

	switch m := p.Mode.(type) {
	case Sequential, Random:
		return nil
	case Probability:
		for i, w := range m.Weights {
			if w < 0 || w > 1 {
				return &InvalidParametersError{Field: "probabilities", Message: fmt.Sprintf("weight[%d] = %g outside [0,1]", i, w)}
			}
		}
		return nil
	case Euclidean:
		if m.Steps == 0 {
			return &InvalidParametersError{Field: "euclidean_steps", Message: "steps must be nonzero"}
		}
		if m.Steps < 0 || m.Hits < 0 {
			return &InvalidParametersError{Field: "euclidean_steps", Message: "hits and steps must be non-negative"}
		}
		if m.Hits > m.Steps {
			return &InvalidParametersError{Field: "euclidean_hits", Message: fmt.Sprintf("hits %d > steps %d", m.Hits, m.Steps)}
		}
		return nil
	case Pattern:
		if len(m.Steps) == 0 {
			return &InvalidParametersError{Field: "pattern", Message: "pattern requires at least one step"}
		}
		return nil
	case Follow:
		if m.BankID == "" {
			return &InvalidParametersError{Field: "follow_bank_id", Message: "follow source bank id is required"}
		}
		return nil
	case Chaos:
		if m.Amount < 0 || m.Amount > 1 {
			return &InvalidParametersError{Field: "chaos_amount", Message: fmt.Sprintf("must be within [0,1], got %g", m.Amount)}
		}
		return nil
	case MIDIMap:
		if countNoteOns(m.Phrase) == 0 {
			return &InvalidParametersError{Field: "midi_phrase", Message: "phrase contains no note-on messages"}
		}
		return nil
	default:
		return &InvalidParametersError{Field: "mode", Message: fmt.Sprintf("unsupported mode %q", p.Mode.kind())}
	}
}

// subdivisionOf normalizes a mode's subdivision field.
func subdivisionOf(n int) int {
	if n <= 0 {
		return DefaultSubdivision
	}
	return n
}

func countNoteOns(phrase []midi.Message) int {
	n := 0
	var channel, key, velocity uint8
	for _, msg := range phrase {
		if msg.GetNoteOn(&channel, &key, &velocity) && velocity > 0 {
			n++
		}
	}
	return n
}
