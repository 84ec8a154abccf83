package rules

import "fmt"

// Action is the closed set of transforms a rule may apply. Actions are
// parsed at registration; evaluation switches on the enum, never on
// strings.
type Action string

const (
	// ActionSkipNext silently drops the following candidate event from
	// the same source.
	ActionSkipNext Action = "skip_next"
	// ActionReverse sets reverse playback on the event.
	ActionReverse Action = "reverse"
	// ActionPitchUp raises pitch_shift by the rule's amount in semitones.
	ActionPitchUp Action = "pitch_up"
	// ActionPitchDown lowers pitch_shift by the rule's amount in semitones.
	ActionPitchDown Action = "pitch_down"
	// ActionVelocityScale multiplies velocity by the rule's amount.
	ActionVelocityScale Action = "velocity_scale"
	// ActionPanRandom randomizes pan across the stereo field.
	ActionPanRandom Action = "pan_random"
)

// Default amounts when a rule leaves Amount unset.
const (
	DefaultPitchStep     = 1.0 // semitones
	DefaultVelocityScale = 0.5
)

// ParseAction validates an action identifier.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionSkipNext, ActionReverse, ActionPitchUp, ActionPitchDown,
		ActionVelocityScale, ActionPanRandom:
		return a, nil
	default:
		return "", &InvalidRuleError{
			Field:   "action",
			Message: fmt.Sprintf("unknown action %q", s),
		}
	}
}

// Rule is one compiled trigger rule. Rules are user-authored, held in
// an ordered collection; evaluation order is registration order.
type Rule struct {
	ID          string
	Name        string
	Condition   Condition
	Action      Action
	Amount      float64 // action parameter; 0 means the action default
	Probability float64 // 0.0 .. 1.0, gates firing when the condition holds
	Enabled     bool
}

// NewRule parses the condition and action and builds a validated rule.
// Returns InvalidRuleError on bad grammar, a probability outside
// [0,1], or a missing id.
func NewRule(id, name, condition, action string, probability float64) (*Rule, error) {
	if id == "" {
		return nil, &InvalidRuleError{Field: "id", Message: "rule id is required"}
	}
	if probability < 0 || probability > 1 {
		return nil, &InvalidRuleError{
			RuleID:  id,
			Field:   "probability",
			Message: fmt.Sprintf("must be within [0,1], got %g", probability),
		}
	}

	cond, err := ParseCondition(condition)
	if err != nil {
		if ire, ok := err.(*InvalidRuleError); ok {
			ire.RuleID = id
		}
		return nil, err
	}

	act, err := ParseAction(action)
	if err != nil {
		if ire, ok := err.(*InvalidRuleError); ok {
			ire.RuleID = id
		}
		return nil, err
	}

	return &Rule{
		ID:          id,
		Name:        name,
		Condition:   cond,
		Action:      act,
		Probability: probability,
		Enabled:     true,
	}, nil
}

// pitchStep returns the rule's pitch adjustment in semitones.
func (r *Rule) pitchStep() float64 {
	if r.Amount != 0 {
		return r.Amount
	}
	return DefaultPitchStep
}

// velocityFactor returns the rule's velocity multiplier.
func (r *Rule) velocityFactor() float64 {
	if r.Amount != 0 {
		return r.Amount
	}
	return DefaultVelocityScale
}
