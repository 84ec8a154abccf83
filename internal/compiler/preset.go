package compiler

import (
	"cuelang.org/go/cue"

	"github.com/waveslice/retrig/internal/gen"
)

// CompilePreset parses a CUE value into a generation preset. The
// preset name comes from the struct label. Fields mirror the wire
// request shape, so a preset can pin any subset of generation
// parameters; requests override whatever the preset leaves pinned.
func CompilePreset(v cue.Value) (string, gen.Preset, error) {
	if err := v.Err(); err != nil {
		return "", gen.Preset{}, formatCUEError(err)
	}

	name := labelOf(v)
	if name == "" {
		return "", gen.Preset{}, &CompileError{Field: "preset", Message: "preset requires a name label", Pos: v.Pos()}
	}

	var p gen.Preset
	var err error

	if p.Mode, err = optionalString(v, "mode", ""); err != nil {
		return "", gen.Preset{}, err
	}
	if p.DurationBeats, err = optionalFloat(v, "duration_beats", 0); err != nil {
		return "", gen.Preset{}, err
	}
	if p.BPM, err = optionalFloat(v, "bpm", 0); err != nil {
		return "", gen.Preset{}, err
	}
	if p.Subdivision, err = optionalInt(v, "subdivision"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.EuclideanHits, err = optionalInt(v, "euclidean_hits"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.EuclideanSteps, err = optionalInt(v, "euclidean_steps"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.EuclideanRotation, err = optionalInt(v, "euclidean_rotation"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.Probabilities, err = optionalFloats(v, "probabilities"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.Pattern, err = optionalInts(v, "pattern"); err != nil {
		return "", gen.Preset{}, err
	}
	if p.FollowBankID, err = optionalString(v, "follow_bank_id", ""); err != nil {
		return "", gen.Preset{}, err
	}
	if p.FollowDelayBeats, err = optionalFloat(v, "follow_delay_beats", 0); err != nil {
		return "", gen.Preset{}, err
	}
	if p.ChaosAmount, err = optionalFloat(v, "chaos_amount", 0); err != nil {
		return "", gen.Preset{}, err
	}

	seed, err := optionalInt(v, "seed")
	if err != nil {
		return "", gen.Preset{}, err
	}
	p.Seed = uint64(seed)

	return name, p, nil
}

func optionalFloats(v cue.Value, field string) ([]float64, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return nil, nil
	}
	iter, err := fieldVal.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of numbers", Pos: fieldVal.Pos()}
	}
	var out []float64
	for iter.Next() {
		f, err := iter.Value().Float64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of numbers", Pos: iter.Value().Pos()}
		}
		out = append(out, f)
	}
	return out, nil
}

func optionalInts(v cue.Value, field string) ([]int, error) {
	fieldVal := v.LookupPath(cue.ParsePath(field))
	if !fieldVal.Exists() {
		return nil, nil
	}
	iter, err := fieldVal.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of integers", Pos: fieldVal.Pos()}
	}
	var out []int
	for iter.Next() {
		n, err := iter.Value().Int64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of integers", Pos: iter.Value().Pos()}
		}
		out = append(out, int(n))
	}
	return out, nil
}
