// Package bank holds the immutable slice bank model: per-analysis data
// describing a source recording's slices and aggregate statistics.
//
// A bank is produced once by an external analysis collaborator and is
// read-only inside the sequencing core. Banks are replaced wholesale,
// never patched in place, so generator runs stay deterministic against
// a fixed snapshot.
package bank

import "fmt"

// Role classifies a source stem.
type Role string

const (
	RoleDrums   Role = "drums"
	RoleBass    Role = "bass"
	RoleVocals  Role = "vocals"
	RoleOther   Role = "other"
	RoleUnknown Role = "unknown"
)

// ParseRole maps a string to a Role. Unrecognized and empty values
// normalize to RoleUnknown rather than failing - role is advisory
// metadata, not a hard parameter.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleDrums, RoleBass, RoleVocals, RoleOther:
		return Role(s)
	default:
		return RoleUnknown
	}
}

// Slice is one bounded audio region of a bank.
//
// Feature values (transient strength, spectral centroid, RMS energy,
// zero-crossing rate, spectral flatness) come from external analysis
// and are opaque to this core beyond ordering and filtering.
type Slice struct {
	Index       int     `json:"index"`
	StartSample int64   `json:"start_sample"`
	EndSample   int64   `json:"end_sample"`
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Duration    float64 `json:"duration"`

	TransientStrength float64 `json:"transient_strength"`
	SpectralCentroid  float64 `json:"spectral_centroid"`
	RMSEnergy         float64 `json:"rms_energy"`
	ZeroCrossingRate  float64 `json:"zero_crossing_rate"`
	SpectralFlatness  float64 `json:"spectral_flatness"`

	// Sample offsets of the nearest zero crossings, used by renderers
	// for click-free trigger boundaries.
	ZeroCrossingStart int64 `json:"zero_crossing_start"`
	ZeroCrossingEnd   int64 `json:"zero_crossing_end"`

	PitchHz  float64 `json:"pitch_hz,omitempty"`
	NoteName string  `json:"note_name,omitempty"`
}

// Aggregates holds per-bank statistics computed by the analysis stage.
type Aggregates struct {
	MeanEnergy     float64 `json:"mean_energy"`
	MaxEnergy      float64 `json:"max_energy"`
	EnergyVariance float64 `json:"energy_variance"`
	SampleRate     int     `json:"sample_rate"`
	TotalDuration  float64 `json:"total_duration"` // seconds
	TotalSamples   int64   `json:"total_samples"`
	BPM            float64 `json:"bpm,omitempty"`
	Key            string  `json:"key,omitempty"`
}

// Bank is an ordered, immutable sequence of slices plus aggregates.
// Identified by an opaque string ID unique within a session.
type Bank struct {
	id     string
	role   Role
	slices []Slice
	agg    Aggregates
}

// New validates the slice sequence and constructs a Bank.
//
// Validation enforces the model invariants: at least one slice, indices
// 0-based and contiguous, sample and time bounds strictly increasing
// within each slice, positive durations, and no overlap between
// consecutive slices. The slices slice is copied to keep the bank
// immutable against caller mutation.
func New(id string, role Role, slices []Slice, agg Aggregates) (*Bank, error) {
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "bank id is required"}
	}
	if len(slices) == 0 {
		return nil, &ValidationError{Field: "slices", Message: "bank requires at least one slice"}
	}
	if agg.SampleRate <= 0 {
		return nil, &ValidationError{Field: "sample_rate", Message: fmt.Sprintf("sample rate must be positive, got %d", agg.SampleRate)}
	}
	if agg.TotalDuration <= 0 {
		return nil, &ValidationError{Field: "total_duration", Message: fmt.Sprintf("total duration must be positive, got %g", agg.TotalDuration)}
	}

	for i, s := range slices {
		if s.Index != i {
			return nil, &ValidationError{
				Field:   "slices",
				Message: fmt.Sprintf("slice at position %d has index %d, indices must be 0-based and contiguous", i, s.Index),
			}
		}
		if s.EndSample <= s.StartSample {
			return nil, &ValidationError{
				Field:   "slices",
				Message: fmt.Sprintf("slice %d: end_sample %d <= start_sample %d", i, s.EndSample, s.StartSample),
			}
		}
		if s.Duration <= 0 || s.EndTime <= s.StartTime {
			return nil, &ValidationError{
				Field:   "slices",
				Message: fmt.Sprintf("slice %d: duration must be positive", i),
			}
		}
		if i > 0 && s.StartTime < slices[i-1].EndTime {
			return nil, &ValidationError{
				Field:   "slices",
				Message: fmt.Sprintf("slice %d overlaps slice %d", i, i-1),
			}
		}
	}

	copied := make([]Slice, len(slices))
	copy(copied, slices)

	return &Bank{id: id, role: role, slices: copied, agg: agg}, nil
}

// ID returns the bank's opaque identifier.
func (b *Bank) ID() string { return b.id }

// Role returns the stem role.
func (b *Bank) Role() Role { return b.role }

// SliceCount returns the number of slices in the bank.
func (b *Bank) SliceCount() int { return len(b.slices) }

// Slice returns the slice at index i.
// Returns IndexOutOfRangeError if i is out of bounds - surfaced, not
// clamped, so generator bugs are visible in tests.
func (b *Bank) Slice(i int) (Slice, error) {
	if i < 0 || i >= len(b.slices) {
		return Slice{}, &IndexOutOfRangeError{Index: i, Count: len(b.slices)}
	}
	return b.slices[i], nil
}

// Aggregates returns the per-bank statistics.
func (b *Bank) Aggregates() Aggregates { return b.agg }

// DurationBeats converts the bank's total duration to beats at bpm.
func (b *Bank) DurationBeats(bpm float64) float64 {
	return b.agg.TotalDuration * bpm / 60
}
