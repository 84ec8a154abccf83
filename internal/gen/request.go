package gen

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"

	"github.com/waveslice/retrig/internal/event"
)

// Request is the wire shape of a generation request: a flat document
// with a mode discriminator and mode-specific fields. This is the
// boundary the generator exposes to session orchestration.
type Request struct {
	BankID        string  `json:"bank_id,omitempty"`
	DurationBeats float64 `json:"duration_beats,omitempty"`
	BPM           float64 `json:"bpm,omitempty"`
	Seed          uint64  `json:"seed,omitempty"`
	Mode          string  `json:"mode,omitempty"`
	Preset        string  `json:"preset,omitempty"`

	Subdivision       int       `json:"subdivision,omitempty"`
	EuclideanHits     int       `json:"euclidean_hits,omitempty"`
	EuclideanSteps    int       `json:"euclidean_steps,omitempty"`
	EuclideanRotation int       `json:"euclidean_rotation,omitempty"`
	Probabilities     []float64 `json:"probabilities,omitempty"`
	Pattern           []int     `json:"pattern,omitempty"`
	FollowBankID      string    `json:"follow_bank_id,omitempty"`
	FollowDelayBeats  float64   `json:"follow_delay_beats,omitempty"`
	ChaosAmount       float64   `json:"chaos_amount,omitempty"`
	MIDIPhrase        [][]byte  `json:"midi_phrase,omitempty"` // raw MIDI messages
	MIDIRoot          uint8     `json:"midi_root,omitempty"`
}

// Response echoes the resolved request alongside the materialized
// timeline.
type Response struct {
	Events []event.TriggerEvent `json:"events"`
	Params Request              `json:"params"`
}

// Preset is a named parameter bundle. Presets use the same wire shape
// as requests; fields the request leaves unset are filled from the
// preset before parsing.
type Preset = Request

// Resolve merges a preset into the request: explicit request fields
// win, unset fields fall back to the preset. The preset name itself is
// cleared on the result.
func Resolve(req Request, preset Preset) Request {
	out := req
	if out.DurationBeats == 0 {
		out.DurationBeats = preset.DurationBeats
	}
	if out.BPM == 0 {
		out.BPM = preset.BPM
	}
	if out.Seed == 0 {
		out.Seed = preset.Seed
	}
	if out.Mode == "" {
		out.Mode = preset.Mode
	}
	if out.Subdivision == 0 {
		out.Subdivision = preset.Subdivision
	}
	if out.EuclideanHits == 0 {
		out.EuclideanHits = preset.EuclideanHits
	}
	if out.EuclideanSteps == 0 {
		out.EuclideanSteps = preset.EuclideanSteps
	}
	if out.EuclideanRotation == 0 {
		out.EuclideanRotation = preset.EuclideanRotation
	}
	if out.Probabilities == nil {
		out.Probabilities = preset.Probabilities
	}
	if out.Pattern == nil {
		out.Pattern = preset.Pattern
	}
	if out.FollowBankID == "" {
		out.FollowBankID = preset.FollowBankID
	}
	if out.FollowDelayBeats == 0 {
		out.FollowDelayBeats = preset.FollowDelayBeats
	}
	if out.ChaosAmount == 0 {
		out.ChaosAmount = preset.ChaosAmount
	}
	if out.MIDIPhrase == nil {
		out.MIDIPhrase = preset.MIDIPhrase
	}
	if out.MIDIRoot == 0 {
		out.MIDIRoot = preset.MIDIRoot
	}
	out.Preset = ""
	return out
}

// ParseRequest resolves an optional preset and converts the wire
// request into typed Params. Unknown modes and unknown preset names
// are InvalidParameters.
func ParseRequest(req Request, presets map[string]Preset) (Params, error) {
	if req.Preset != "" {
		preset, ok := presets[req.Preset]
		if !ok {
			return Params{}, &InvalidParametersError{Field: "preset", Message: fmt.Sprintf("unknown preset %q", req.Preset)}
		}
		req = Resolve(req, preset)
	}

	p := Params{
		DurationBeats: req.DurationBeats,
		BPM:           req.BPM,
		Seed:          req.Seed,
	}

	switch req.Mode {
	case "sequential":
		p.Mode = Sequential{Subdivision: req.Subdivision}
	case "random":
		p.Mode = Random{Subdivision: req.Subdivision}
	case "probability":
		p.Mode = Probability{Weights: req.Probabilities, Subdivision: req.Subdivision}
	case "euclidean":
		p.Mode = Euclidean{
			Hits:        req.EuclideanHits,
			Steps:       req.EuclideanSteps,
			Rotation:    req.EuclideanRotation,
			Subdivision: req.Subdivision,
		}
	case "pattern":
		p.Mode = Pattern{Steps: req.Pattern, Subdivision: req.Subdivision}
	case "follow":
		p.Mode = Follow{BankID: req.FollowBankID, DelayBeats: req.FollowDelayBeats}
	case "chaos":
		p.Mode = Chaos{Amount: req.ChaosAmount, Subdivision: req.Subdivision}
	case "midi_map":
		phrase := make([]midi.Message, len(req.MIDIPhrase))
		for i, raw := range req.MIDIPhrase {
			phrase[i] = midi.Message(raw)
		}
		p.Mode = MIDIMap{Phrase: phrase, Root: req.MIDIRoot, Subdivision: req.Subdivision}
	case "":
		return Params{}, &InvalidParametersError{Field: "mode", Message: "mode is required"}
	default:
		return Params{}, &InvalidParametersError{Field: "mode", Message: fmt.Sprintf("unknown mode %q", req.Mode)}
	}

	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}
