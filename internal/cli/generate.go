package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waveslice/retrig/internal/bank"
	"github.com/waveslice/retrig/internal/compiler"
	"github.com/waveslice/retrig/internal/event"
	"github.com/waveslice/retrig/internal/gen"
)

// generateOptions holds the flag surface of the generate command.
// It mirrors the generation request wire shape.
type generateOptions struct {
	mode              string
	durationBeats     float64
	bpm               float64
	seed              uint64
	subdivision       int
	euclideanHits     int
	euclideanSteps    int
	euclideanRotation int
	probabilities     []float64
	pattern           []int
	chaosAmount       float64
	preset            string
	rulesDir          string
	outPath           string
}

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate <bank.json>",
		Short: "Generate a trigger timeline from a slice bank",
		Long: `Generate a trigger event timeline from a slice bank JSON file.

The mode and its parameters can be given as flags or named via --preset
(presets are loaded from the --rules-dir CUE files). Explicit flags win
over preset values. Output is the canonical JSON timeline.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "generation mode (sequential|random|probability|euclidean|pattern|follow|chaos|midi_map)")
	cmd.Flags().Float64Var(&opts.durationBeats, "duration-beats", 0, "timeline length in beats")
	cmd.Flags().Float64Var(&opts.bpm, "bpm", 0, "tempo in beats per minute")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "seed for stochastic modes (same seed, same timeline)")
	cmd.Flags().IntVar(&opts.subdivision, "subdivision", 0, "grid slots per beat (default 4)")
	cmd.Flags().IntVar(&opts.euclideanHits, "euclidean-hits", 0, "euclidean mode: hits to distribute")
	cmd.Flags().IntVar(&opts.euclideanSteps, "euclidean-steps", 0, "euclidean mode: steps in the cycle")
	cmd.Flags().IntVar(&opts.euclideanRotation, "euclidean-rotation", 0, "euclidean mode: pattern rotation")
	cmd.Flags().Float64SliceVar(&opts.probabilities, "probabilities", nil, "probability mode: per-slice trigger weights")
	cmd.Flags().IntSliceVar(&opts.pattern, "pattern", nil, "pattern mode: slice index per step, -1 for rest")
	cmd.Flags().Float64Var(&opts.chaosAmount, "chaos-amount", 0, "chaos mode: perturbation amount in [0,1]")
	cmd.Flags().StringVar(&opts.preset, "preset", "", "named preset from the rules directory")
	cmd.Flags().StringVar(&opts.rulesDir, "rules-dir", "", "directory of CUE rule/preset files")
	cmd.Flags().StringVarP(&opts.outPath, "out", "o", "", "write the timeline to a file instead of stdout")

	return cmd
}

func runGenerate(rootOpts *RootOptions, opts *generateOptions, bankPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	b, err := bank.Load(bankPath)
	if err != nil {
		formatter.Error(ErrCodeBankInvalid, fmt.Sprintf("loading bank: %v", err), nil)
		return NewExitError(ExitCommandError, "bank load failed")
	}
	formatter.VerboseLog("Loaded bank %s (%s, %d slices)", b.ID(), b.Role(), b.SliceCount())

	presets := map[string]gen.Preset{}
	if opts.rulesDir != "" {
		loaded, err := compiler.LoadDir(opts.rulesDir)
		if err != nil {
			formatter.Error(ErrCodeCompile, fmt.Sprintf("loading presets: %v", err), nil)
			return NewExitError(ExitCommandError, "preset load failed")
		}
		presets = loaded.Presets
		formatter.VerboseLog("Loaded %d preset(s) from %s", len(presets), opts.rulesDir)
	}

	req := gen.Request{
		BankID:            b.ID(),
		DurationBeats:     opts.durationBeats,
		BPM:               opts.bpm,
		Seed:              opts.seed,
		Mode:              opts.mode,
		Preset:            opts.preset,
		Subdivision:       opts.subdivision,
		EuclideanHits:     opts.euclideanHits,
		EuclideanSteps:    opts.euclideanSteps,
		EuclideanRotation: opts.euclideanRotation,
		Probabilities:     opts.probabilities,
		Pattern:           opts.pattern,
		ChaosAmount:       opts.chaosAmount,
	}

	params, err := gen.ParseRequest(req, presets)
	if err != nil {
		var ipe *gen.InvalidParametersError
		if errors.As(err, &ipe) {
			formatter.Error(ErrCodeInvalidParams, ipe.Error(), map[string]string{"field": ipe.Field})
		} else {
			formatter.Error(ErrCodeGeneric, err.Error(), nil)
		}
		return NewExitError(ExitFailure, "invalid generation parameters")
	}

	events, err := gen.New(gen.NewHistory()).Generate(b, params)
	if err != nil {
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("generation failed: %v", err), nil)
		return NewExitError(ExitFailure, "generation failed")
	}

	timeline, err := event.MarshalCanonical(events)
	if err != nil {
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("encoding timeline: %v", err), nil)
		return NewExitError(ExitFailure, "encoding failed")
	}

	if rootOpts.Verbose {
		if hash, err := event.TimelineHash(events); err == nil {
			formatter.VerboseLog("Generated %d event(s), timeline hash %s", len(events), hash)
		}
	}

	if opts.outPath != "" {
		if err := os.WriteFile(opts.outPath, timeline, 0o644); err != nil {
			formatter.Error(ErrCodeGeneric, fmt.Sprintf("writing %s: %v", opts.outPath, err), nil)
			return NewExitError(ExitCommandError, "write failed")
		}
		return formatter.Success(fmt.Sprintf("wrote %d event(s) to %s", len(events), opts.outPath))
	}

	if rootOpts.Format == "json" {
		return formatter.Success(json.RawMessage(timeline))
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(timeline))
	return nil
}
