package event

import "sort"

// TriggerEvent is one scheduled playback instruction for a slice.
//
// Events are produced by the sequence generator, may be rewritten exactly
// once by the rule engine immediately before dispatch, and are never
// mutated after dispatch.
//
// Time is in beats and is monotonically non-decreasing within a timeline.
// SliceIndex always references a valid slice in the originating bank -
// the generator clamps into range by construction.
type TriggerEvent struct {
	Time       float64 `json:"time"`
	SliceIndex int     `json:"slice_index"`
	Velocity   float64 `json:"velocity"`

	// Duration in seconds. Nil means play to the natural slice end.
	Duration *float64 `json:"duration,omitempty"`

	// Transform attributes. The engine only describes these; a downstream
	// renderer applies them.
	PitchShift   float64  `json:"pitch_shift,omitempty"` // semitones, signed
	Reverse      bool     `json:"reverse,omitempty"`
	Pan          float64  `json:"pan,omitempty"` // -1.0 .. 1.0
	FilterCutoff *float64 `json:"filter_cutoff,omitempty"`

	// Rule provenance. TriggeredBy is the rule ID, set only when a rule
	// fired on this event.
	TriggeredBy  string `json:"triggered_by,omitempty"`
	RuleModified bool   `json:"rule_modified,omitempty"`
}

// Before reports whether e sorts before other in timeline order:
// ascending time, ties broken by ascending slice index.
func (e TriggerEvent) Before(other TriggerEvent) bool {
	if e.Time != other.Time {
		return e.Time < other.Time
	}
	return e.SliceIndex < other.SliceIndex
}

// SortTimeline sorts events in place into canonical timeline order.
// The sort is stable so equal events keep their generation order.
func SortTimeline(events []TriggerEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})
}

// canonicalMap flattens the event for canonical serialization.
// Optional fields are omitted when unset so two events that marshal to
// the same JSON also hash identically.
func (e TriggerEvent) canonicalMap() map[string]any {
	m := map[string]any{
		"time":        e.Time,
		"slice_index": e.SliceIndex,
		"velocity":    e.Velocity,
	}
	if e.Duration != nil {
		m["duration"] = *e.Duration
	}
	if e.PitchShift != 0 {
		m["pitch_shift"] = e.PitchShift
	}
	if e.Reverse {
		m["reverse"] = true
	}
	if e.Pan != 0 {
		m["pan"] = e.Pan
	}
	if e.FilterCutoff != nil {
		m["filter_cutoff"] = *e.FilterCutoff
	}
	if e.TriggeredBy != "" {
		m["triggered_by"] = e.TriggeredBy
	}
	if e.RuleModified {
		m["rule_modified"] = true
	}
	return m
}
