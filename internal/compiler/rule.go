// Package compiler turns CUE definition files into typed trigger
// rules and generation presets.
//
// Rules and presets are authored declaratively:
//
//	rule "stutter-break": {
//		name:        "Break up long stutters"
//		condition:   "consecutive_plays >= 4"
//		action:      "skip_next"
//		probability: 0.8
//	}
//
//	preset "halftime": {
//		mode:            "euclidean"
//		duration_beats:  8
//		euclidean_hits:  3
//		euclidean_steps: 16
//	}
//
// Compilation happens once at load time; bad grammar never reaches
// evaluation.
package compiler

import (
	"strings"

	"cuelang.org/go/cue"

	"github.com/waveslice/retrig/internal/rules"
)

// CompileRule parses a CUE value into a trigger rule.
//
// The CUE value is the rule struct itself; the rule ID comes from the
// struct label, e.g. `rule "stutter-break": {...}` has ID
// "stutter-break".
func CompileRule(v cue.Value) (*rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	id := labelOf(v)
	if id == "" {
		return nil, &CompileError{Field: "rule", Message: "rule requires a name label", Pos: v.Pos()}
	}

	name, err := optionalString(v, "name", id)
	if err != nil {
		return nil, err
	}

	condition, err := optionalString(v, "condition", "true")
	if err != nil {
		return nil, err
	}

	action, err := requiredString(v, "action")
	if err != nil {
		return nil, err
	}

	probability, err := optionalFloat(v, "probability", 1.0)
	if err != nil {
		return nil, err
	}

	rule, err := rules.NewRule(id, name, condition, action, probability)
	if err != nil {
		return nil, err
	}

	rule.Amount, err = optionalFloat(v, "amount", 0)
	if err != nil {
		return nil, err
	}

	enabledVal := v.LookupPath(cue.ParsePath("enabled"))
	if enabledVal.Exists() {
		enabled, err := enabledVal.Bool()
		if err != nil {
			return nil, &CompileError{Field: "enabled", Message: "must be a boolean", Pos: enabledVal.Pos()}
		}
		rule.Enabled = enabled
	}

	return rule, nil
}

// labelOf extracts the last path selector as an unquoted label.
func labelOf(v cue.Value) string {
	selectors := v.Path().Selectors()
	if len(selectors) == 0 {
		return ""
	}
	return strings.Trim(selectors[len(selectors)-1].String(), `"`)
}

func requiredString(v cue.Value, field string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return "", &CompileError{Field: field, Message: field + " is required", Pos: v.Pos()}
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fieldVal.Pos()}
	}
	return s, nil
}

func optionalString(v cue.Value, field, fallback string) (string, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return fallback, nil
	}
	s, err := fieldVal.String()
	if err != nil {
		return "", &CompileError{Field: field, Message: "must be a string", Pos: fieldVal.Pos()}
	}
	return s, nil
}

func optionalFloat(v cue.Value, field string, fallback float64) (float64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return fallback, nil
	}
	f, err := fieldVal.Float64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be a number", Pos: fieldVal.Pos()}
	}
	return f, nil
}

func optionalInt(v cue.Value, field string) (int, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return 0, nil
	}
	n, err := fieldVal.Int64()
	if err != nil {
		return 0, &CompileError{Field: field, Message: "must be an integer", Pos: fieldVal.Pos()}
	}
	return int(n), nil
}
