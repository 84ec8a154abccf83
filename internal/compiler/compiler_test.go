package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveslice/retrig/internal/rules"
)

func TestCompileRuleBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: "stutter-break": {
			name:        "Break up long stutters"
			condition:   "consecutive_plays >= 4"
			action:      "skip_next"
			probability: 0.8
		}
	`)
	require.NoError(t, v.Err())

	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."stutter-break"`)))

	require.NoError(t, err)
	assert.Equal(t, "stutter-break", r.ID)
	assert.Equal(t, "Break up long stutters", r.Name)
	assert.Equal(t, "consecutive_plays >= 4", r.Condition.String())
	assert.Equal(t, rules.ActionSkipNext, r.Action)
	assert.InDelta(t, 0.8, r.Probability, 1e-9)
	assert.True(t, r.Enabled)
}

func TestCompileRuleDefaults(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: "always-reverse": {
			action: "reverse"
		}
	`)
	require.NoError(t, v.Err())

	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."always-reverse"`)))

	require.NoError(t, err)
	assert.Equal(t, "always-reverse", r.Name, "name defaults to the label")
	assert.Equal(t, "true", r.Condition.String())
	assert.Equal(t, 1.0, r.Probability)
	assert.Zero(t, r.Amount)
}

func TestCompileRuleAmountAndDisabled(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: "octave-drop": {
			condition: "beat >= 4"
			action:    "pitch_down"
			amount:    12
			enabled:   false
		}
	`)
	require.NoError(t, v.Err())

	r, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."octave-drop"`)))

	require.NoError(t, err)
	assert.Equal(t, 12.0, r.Amount)
	assert.False(t, r.Enabled)
}

func TestCompileRuleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing action", `rule: "r": { condition: "true" }`},
		{"unknown action", `rule: "r": { action: "granulate" }`},
		{"bad condition", `rule: "r": { condition: "tempo > 100", action: "reverse" }`},
		{"probability out of range", `rule: "r": { action: "reverse", probability: 1.5 }`},
		{"non-string action", `rule: "r": { action: 7 }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := cuecontext.New()
			v := ctx.CompileString(tt.src)
			require.NoError(t, v.Err())

			_, err := CompileRule(v.LookupPath(cue.ParsePath(`rule."r"`)))
			assert.Error(t, err)
		})
	}
}

func TestCompilePresetBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		preset: "halftime": {
			mode:            "euclidean"
			duration_beats:  8
			bpm:             140
			euclidean_hits:  3
			euclidean_steps: 16
			subdivision:     4
		}
	`)
	require.NoError(t, v.Err())

	name, p, err := CompilePreset(v.LookupPath(cue.ParsePath(`preset."halftime"`)))

	require.NoError(t, err)
	assert.Equal(t, "halftime", name)
	assert.Equal(t, "euclidean", p.Mode)
	assert.Equal(t, 8.0, p.DurationBeats)
	assert.Equal(t, 140.0, p.BPM)
	assert.Equal(t, 3, p.EuclideanHits)
	assert.Equal(t, 16, p.EuclideanSteps)
	assert.Equal(t, 4, p.Subdivision)
}

func TestCompilePresetLists(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		preset: "sparse": {
			mode:          "probability"
			probabilities: [0.9, 0.2, 0.0, 0.5]
		}
		preset: "four-on-floor": {
			mode:    "pattern"
			pattern: [0, -1, -1, -1, 0, -1, -1, -1]
		}
	`)
	require.NoError(t, v.Err())

	_, sparse, err := CompilePreset(v.LookupPath(cue.ParsePath(`preset."sparse"`)))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.9, 0.2, 0.0, 0.5}, sparse.Probabilities)

	_, floor, err := CompilePreset(v.LookupPath(cue.ParsePath(`preset."four-on-floor"`)))
	require.NoError(t, err)
	assert.Equal(t, []int{0, -1, -1, -1, 0, -1, -1, -1}, floor.Pattern)
}

func TestCompileExtractsRulesAndPresets(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		rule: "first": { action: "reverse" }
		rule: "second": { action: "pitch_up" }

		preset: "basic": {
			mode:           "sequential"
			duration_beats: 4
		}
	`)
	require.NoError(t, v.Err())

	result, err := Compile(v)

	require.NoError(t, err)
	require.Len(t, result.Rules, 2)
	assert.Equal(t, "first", result.Rules[0].ID)
	assert.Equal(t, "second", result.Rules[1].ID)
	require.Contains(t, result.Presets, "basic")
	assert.Equal(t, "sequential", result.Presets["basic"].Mode)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	src := `
rule: "drums-thin": {
	condition:   "role == drums && consecutive_plays >= 3"
	action:      "velocity_scale"
	amount:      0.6
	probability: 0.5
}

preset: "dnb": {
	mode:            "euclidean"
	duration_beats:  8
	bpm:             174
	euclidean_hits:  5
	euclidean_steps: 16
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "defs.cue"), []byte(src), 0o644))

	result, err := LoadDir(dir)

	require.NoError(t, err)
	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Rules, 1)
	assert.Equal(t, "drums-thin", result.Rules[0].ID)
	assert.Equal(t, rules.ActionVelocityScale, result.Rules[0].Action)
	assert.Equal(t, 174.0, result.Presets["dnb"].BPM)
}

func TestLoadDirMissing(t *testing.T) {
	_, err := LoadDir(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestLoadDirEmpty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.Error(t, err)
}
