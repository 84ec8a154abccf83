package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveslice/retrig/internal/bank"
)

func TestParseCondition_Comparison(t *testing.T) {
	cond, err := ParseCondition("consecutive_plays >= 3")
	require.NoError(t, err)

	assert.True(t, cond.eval(evalContext{consecutivePlays: 3}))
	assert.True(t, cond.eval(evalContext{consecutivePlays: 7}))
	assert.False(t, cond.eval(evalContext{consecutivePlays: 2}))
}

func TestParseCondition_AllOperators(t *testing.T) {
	tests := []struct {
		expr string
		ctx  evalContext
		want bool
	}{
		{"beat < 4", evalContext{beat: 3.5}, true},
		{"beat < 4", evalContext{beat: 4}, false},
		{"beat > 4", evalContext{beat: 4.5}, true},
		{"beat <= 4", evalContext{beat: 4}, true},
		{"beat >= 4", evalContext{beat: 3.9}, false},
		{"slice_index == 2", evalContext{sliceIndex: 2}, true},
		{"slice_index == 2", evalContext{sliceIndex: 3}, false},
		{"velocity > 0.5", evalContext{velocity: 0.8}, true},
		{"total_plays > 10", evalContext{totalPlays: 11}, true},
		{"last_beat >= 1.5", evalContext{lastBeat: 1.5}, true},
	}
	for _, tt := range tests {
		cond, err := ParseCondition(tt.expr)
		require.NoError(t, err, tt.expr)
		assert.Equal(t, tt.want, cond.eval(tt.ctx), tt.expr)
	}
}

func TestParseCondition_Conjunction(t *testing.T) {
	cond, err := ParseCondition("role == drums && consecutive_plays >= 2 && velocity > 0.5")
	require.NoError(t, err)

	assert.True(t, cond.eval(evalContext{role: bank.RoleDrums, consecutivePlays: 2, velocity: 0.9}))
	assert.False(t, cond.eval(evalContext{role: bank.RoleBass, consecutivePlays: 2, velocity: 0.9}))
	assert.False(t, cond.eval(evalContext{role: bank.RoleDrums, consecutivePlays: 1, velocity: 0.9}))
	assert.False(t, cond.eval(evalContext{role: bank.RoleDrums, consecutivePlays: 2, velocity: 0.3}))
}

func TestParseCondition_AlwaysTrue(t *testing.T) {
	for _, expr := range []string{"", "true", "  true  "} {
		cond, err := ParseCondition(expr)
		require.NoError(t, err, "%q", expr)
		assert.True(t, cond.eval(evalContext{}), "%q", expr)
	}
}

func TestParseCondition_RoleEquality(t *testing.T) {
	cond, err := ParseCondition("role == vocals")
	require.NoError(t, err)
	assert.True(t, cond.eval(evalContext{role: bank.RoleVocals}))
	assert.False(t, cond.eval(evalContext{role: bank.RoleDrums}))
}

func TestParseCondition_Errors(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"unknown field", "tempo > 100"},
		{"unknown operator", "beat != 4"},
		{"non-numeric literal", "beat > fast"},
		{"malformed clause", "beat >"},
		{"role with ordering op", "role >= drums"},
		{"unknown role", "role == strings"},
		{"bad clause in conjunction", "beat > 1 && tempo > 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCondition(tt.expr)
			assert.True(t, IsInvalidRule(err), "%q should be rejected", tt.expr)
		})
	}
}

func TestParseAction(t *testing.T) {
	for _, s := range []string{"skip_next", "reverse", "pitch_up", "pitch_down", "velocity_scale", "pan_random"} {
		_, err := ParseAction(s)
		assert.NoError(t, err, s)
	}

	_, err := ParseAction("granulate")
	assert.True(t, IsInvalidRule(err))
}

func TestNewRule_Validation(t *testing.T) {
	_, err := NewRule("", "x", "true", "reverse", 1.0)
	assert.True(t, IsInvalidRule(err), "missing id")

	_, err = NewRule("r", "x", "true", "reverse", 1.5)
	assert.True(t, IsInvalidRule(err), "probability out of range")

	_, err = NewRule("r", "x", "bogus ! expr", "reverse", 1.0)
	assert.True(t, IsInvalidRule(err), "bad condition")

	_, err = NewRule("r", "x", "true", "granulate", 1.0)
	assert.True(t, IsInvalidRule(err), "bad action")

	r, err := NewRule("r", "x", "beat >= 2", "pitch_up", 0.5)
	require.NoError(t, err)
	assert.True(t, r.Enabled, "rules start enabled")
	assert.Equal(t, "beat >= 2", r.Condition.String())
}
