package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/waveslice/retrig/internal/compiler"
	"github.com/waveslice/retrig/internal/rules"
)

// ValidationResult is the payload of a successful validation.
type ValidationResult struct {
	Valid   bool     `json:"valid"`
	Rules   []string `json:"rules,omitempty"`
	Presets []string `json:"presets,omitempty"`
	Files   int      `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <rules-dir>",
		Short: "Validate rule and preset definitions",
		Long: `Compile every CUE rule and preset definition under a directory and
report the first grammar or structural error. Nothing is executed;
this is the fast feedback path while authoring rules.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(rootOpts *RootOptions, rulesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	result, err := compiler.LoadDir(rulesDir)
	if err != nil {
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			formatter.Error(ErrCodeCompile, ce.Error(), map[string]string{"field": ce.Field})
		} else {
			var ire *rules.InvalidRuleError
			if errors.As(err, &ire) {
				formatter.Error(ErrCodeCompile, ire.Error(), map[string]string{"rule": ire.RuleID})
			} else {
				formatter.Error(ErrCodeGeneric, err.Error(), nil)
			}
		}
		return NewExitError(ExitFailure, "validation failed")
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, rulesDir)

	out := ValidationResult{Valid: true, Files: result.FileCount}
	for _, r := range result.Rules {
		out.Rules = append(out.Rules, r.ID)
	}
	for name := range result.Presets {
		out.Presets = append(out.Presets, name)
	}
	sort.Strings(out.Presets)

	if rootOpts.Format == "json" {
		return formatter.Success(out)
	}
	return formatter.Success(fmt.Sprintf("valid: %d rule(s), %d preset(s) in %d file(s)",
		len(out.Rules), len(out.Presets), out.Files))
}
