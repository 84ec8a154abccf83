package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/event"
)

func mustRule(t *testing.T, id, condition, action string, probability float64) *Rule {
	t.Helper()
	r, err := NewRule(id, id, condition, action, probability)
	require.NoError(t, err)
	return r
}

func TestEvaluate_NoRules_PassesThrough(t *testing.T) {
	e := NewEngine(WithSeed(1))

	ev, dropped := e.Evaluate("src", event.TriggerEvent{SliceIndex: 2, Velocity: 0.8}, 1.0, bank.RoleDrums)

	assert.False(t, dropped)
	assert.False(t, ev.RuleModified)
	assert.Empty(t, ev.TriggeredBy)
}

func TestEvaluate_CertainRuleAlwaysFires(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{mustRule(t, "rev", "true", "reverse", 1.0)}))

	for i := 0; i < 50; i++ {
		ev, dropped := e.Evaluate("src", event.TriggerEvent{SliceIndex: i % 4, Velocity: 0.8}, float64(i), bank.RoleDrums)
		assert.False(t, dropped)
		assert.True(t, ev.Reverse, "probability 1.0 with true condition must fire on call %d", i)
		assert.True(t, ev.RuleModified)
		assert.Equal(t, "rev", ev.TriggeredBy)
	}
}

func TestEvaluate_ZeroProbabilityNeverFires(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{mustRule(t, "rev", "true", "reverse", 0.0)}))

	for i := 0; i < 50; i++ {
		ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0, Velocity: 0.8}, float64(i), bank.RoleDrums)
		assert.False(t, ev.Reverse)
		assert.False(t, ev.RuleModified)
	}
}

func TestEvaluate_FirstMatchWins(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{
		mustRule(t, "first", "true", "pitch_up", 1.0),
		mustRule(t, "second", "true", "reverse", 1.0),
	}))

	ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0, Velocity: 0.8}, 0, bank.RoleDrums)

	assert.Equal(t, "first", ev.TriggeredBy)
	assert.Equal(t, DefaultPitchStep, ev.PitchShift)
	assert.False(t, ev.Reverse, "evaluation must stop at the first firing rule")
}

func TestEvaluate_DisabledRuleSkipped(t *testing.T) {
	e := NewEngine(WithSeed(1))
	disabled := mustRule(t, "off", "true", "reverse", 1.0)
	disabled.Enabled = false
	require.NoError(t, e.Register([]*Rule{disabled, mustRule(t, "on", "true", "pitch_up", 1.0)}))

	ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0, Velocity: 0.8}, 0, bank.RoleDrums)

	assert.Equal(t, "on", ev.TriggeredBy)
	assert.False(t, ev.Reverse)
}

func TestEvaluate_ConsecutivePlaysTracking(t *testing.T) {
	e := NewEngine(WithSeed(1))

	e.Evaluate("src", event.TriggerEvent{SliceIndex: 3}, 0, bank.RoleDrums)
	assert.Equal(t, 1, e.ConsecutivePlays("src"))

	e.Evaluate("src", event.TriggerEvent{SliceIndex: 3}, 0.25, bank.RoleDrums)
	assert.Equal(t, 2, e.ConsecutivePlays("src"))

	e.Evaluate("src", event.TriggerEvent{SliceIndex: 3}, 0.5, bank.RoleDrums)
	assert.Equal(t, 3, e.ConsecutivePlays("src"))

	e.Evaluate("src", event.TriggerEvent{SliceIndex: 1}, 0.75, bank.RoleDrums)
	assert.Equal(t, 1, e.ConsecutivePlays("src"), "index change resets to 1")

	assert.Equal(t, 4, e.TotalPlays("src"))
}

func TestEvaluate_ContextIsPerSource(t *testing.T) {
	e := NewEngine(WithSeed(1))

	e.Evaluate("a", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
	e.Evaluate("a", event.TriggerEvent{SliceIndex: 0}, 0.5, bank.RoleDrums)
	e.Evaluate("b", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleBass)

	assert.Equal(t, 2, e.ConsecutivePlays("a"))
	assert.Equal(t, 1, e.ConsecutivePlays("b"))
}

func TestEvaluate_ConditionOnConsecutivePlays(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{
		mustRule(t, "stutter-break", "consecutive_plays >= 3", "reverse", 1.0),
	}))

	first, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
	second, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0.25, bank.RoleDrums)
	third, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0.5, bank.RoleDrums)

	assert.False(t, first.Reverse)
	assert.False(t, second.Reverse)
	assert.True(t, third.Reverse, "third consecutive play must trip the rule")
}

func TestEvaluate_RoleCondition(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{
		mustRule(t, "drums-only", "role == drums", "reverse", 1.0),
	}))

	drum, _ := e.Evaluate("d", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
	vox, _ := e.Evaluate("v", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleVocals)

	assert.True(t, drum.Reverse)
	assert.False(t, vox.Reverse)
}

func TestEvaluate_SkipNextDropsFollowingEvent(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{
		mustRule(t, "drop", "slice_index == 1", "skip_next", 1.0),
	}))

	first, dropped := e.Evaluate("src", event.TriggerEvent{SliceIndex: 1}, 0, bank.RoleDrums)
	assert.False(t, dropped)
	assert.True(t, first.RuleModified)
	assert.Equal(t, "drop", first.TriggeredBy)

	_, dropped = e.Evaluate("src", event.TriggerEvent{SliceIndex: 2}, 0.25, bank.RoleDrums)
	assert.True(t, dropped, "event after skip_next firing must be dropped")

	_, dropped = e.Evaluate("src", event.TriggerEvent{SliceIndex: 2}, 0.5, bank.RoleDrums)
	assert.False(t, dropped, "skip applies to exactly one event")
}

func TestEvaluate_SkipDoesNotCountAsPlay(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{
		mustRule(t, "drop", "total_plays == 1", "skip_next", 1.0),
	}))

	e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
	assert.Equal(t, 1, e.TotalPlays("src"))

	_, dropped := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0.25, bank.RoleDrums)
	assert.True(t, dropped)
	assert.Equal(t, 1, e.TotalPlays("src"), "dropped candidate must not count")
}

func TestEvaluate_Actions(t *testing.T) {
	t.Run("pitch_down", func(t *testing.T) {
		e := NewEngine(WithSeed(1))
		r := mustRule(t, "pd", "true", "pitch_down", 1.0)
		r.Amount = 2
		require.NoError(t, e.Register([]*Rule{r}))

		ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
		assert.Equal(t, -2.0, ev.PitchShift)
	})

	t.Run("velocity_scale", func(t *testing.T) {
		e := NewEngine(WithSeed(1))
		r := mustRule(t, "vs", "true", "velocity_scale", 1.0)
		r.Amount = 0.25
		require.NoError(t, e.Register([]*Rule{r}))

		ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0, Velocity: 0.8}, 0, bank.RoleDrums)
		assert.InDelta(t, 0.2, ev.Velocity, 1e-9)
	})

	t.Run("velocity_scale_default", func(t *testing.T) {
		e := NewEngine(WithSeed(1))
		require.NoError(t, e.Register([]*Rule{mustRule(t, "vs", "true", "velocity_scale", 1.0)}))

		ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0, Velocity: 0.8}, 0, bank.RoleDrums)
		assert.InDelta(t, 0.4, ev.Velocity, 1e-9)
	})

	t.Run("pan_random", func(t *testing.T) {
		e := NewEngine(WithSeed(9))
		require.NoError(t, e.Register([]*Rule{mustRule(t, "pr", "true", "pan_random", 1.0)}))

		ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
		assert.GreaterOrEqual(t, ev.Pan, -1.0)
		assert.LessOrEqual(t, ev.Pan, 1.0)
		assert.True(t, ev.RuleModified)
	})
}

func TestEvaluate_DeterministicForSeed(t *testing.T) {
	run := func() []bool {
		e := NewEngine(WithSeed(42))
		r := mustRule(t, "half", "true", "reverse", 0.5)
		require.NoError(t, e.Register([]*Rule{r}))

		var fired []bool
		for i := 0; i < 32; i++ {
			ev, _ := e.Evaluate("src", event.TriggerEvent{SliceIndex: i % 4}, float64(i), bank.RoleDrums)
			fired = append(fired, ev.RuleModified)
		}
		return fired
	}

	assert.Equal(t, run(), run())
}

func TestRegister_DuplicateID(t *testing.T) {
	e := NewEngine(WithSeed(1))
	err := e.Register([]*Rule{
		mustRule(t, "dup", "true", "reverse", 1.0),
		mustRule(t, "dup", "true", "pitch_up", 1.0),
	})
	assert.True(t, IsInvalidRule(err))
}

func TestRegister_NilClears(t *testing.T) {
	e := NewEngine(WithSeed(1))
	require.NoError(t, e.Register([]*Rule{mustRule(t, "r", "true", "reverse", 1.0)}))
	require.NoError(t, e.Register(nil))
	assert.Empty(t, e.Rules())
}

func TestResetContext(t *testing.T) {
	e := NewEngine(WithSeed(1))
	e.Evaluate("src", event.TriggerEvent{SliceIndex: 0}, 0, bank.RoleDrums)
	require.Equal(t, 1, e.TotalPlays("src"))

	e.ResetContext("src")
	assert.Equal(t, 0, e.TotalPlays("src"))
}
