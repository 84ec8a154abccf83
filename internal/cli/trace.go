package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/waveslice/retrig/internal/tracelog"
)

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trace <database> [session]",
		Short: "Inspect the trigger trace log",
		Long: `Read the trigger trace database written during playback.

With only a database path, lists the recorded session IDs. With a
session ID, dumps that session's triggers in dispatch order.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := ""
			if len(args) == 2 {
				session = args[1]
			}
			return runTrace(rootOpts, args[0], session, cmd)
		},
	}
	return cmd
}

func runTrace(rootOpts *RootOptions, dbPath, session string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	if _, err := os.Stat(dbPath); err != nil {
		formatter.Error(ErrCodeNotFound, fmt.Sprintf("trace database not found: %s", dbPath), nil)
		return NewExitError(ExitCommandError, "database not found")
	}

	store, err := tracelog.Open(dbPath)
	if err != nil {
		formatter.Error(ErrCodeTrace, fmt.Sprintf("opening trace database: %v", err), nil)
		return NewExitError(ExitCommandError, "open failed")
	}
	defer store.Close()

	ctx := cmd.Context()

	if session == "" {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			formatter.Error(ErrCodeTrace, fmt.Sprintf("listing sessions: %v", err), nil)
			return NewExitError(ExitFailure, "trace read failed")
		}
		if rootOpts.Format == "json" {
			return formatter.Success(sessions)
		}
		if len(sessions) == 0 {
			return formatter.Success("no sessions recorded")
		}
		for _, id := range sessions {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	}

	records, err := store.ReadSession(ctx, session)
	if err != nil {
		formatter.Error(ErrCodeTrace, fmt.Sprintf("reading session: %v", err), nil)
		return NewExitError(ExitFailure, "trace read failed")
	}
	formatter.VerboseLog("Session %s: %d trigger(s)", session, len(records))

	if rootOpts.Format == "json" {
		return formatter.Success(records)
	}
	if len(records) == 0 {
		return formatter.Success("no triggers recorded for session " + session)
	}
	for _, rec := range records {
		line := fmt.Sprintf("%6d  beat %-8g slice %-3d vel %.2f", rec.Seq, rec.Beat, rec.Event.SliceIndex, rec.Event.Velocity)
		if rec.RuleID != "" {
			line += "  rule " + rec.RuleID
		}
		fmt.Fprintln(cmd.OutOrStdout(), line)
	}
	return nil
}
