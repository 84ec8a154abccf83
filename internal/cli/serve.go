package cli

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/waveslice/retrig/internal/compiler"
	"github.com/waveslice/retrig/internal/config"
	"github.com/waveslice/retrig/internal/rules"
	"github.com/waveslice/retrig/internal/tracelog"
	"github.com/waveslice/retrig/internal/transport"
)

type serveOptions struct {
	configPath string
	listen     string
	rulesDir   string
	database   string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket playback server",
		Long: `Run the playback server. Each websocket connection becomes an
independent session with its own beat clock and rule context.
Dispatched triggers are traced to the configured database.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVar(&opts.listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&opts.rulesDir, "rules-dir", "", "rules directory (overrides config)")
	cmd.Flags().StringVar(&opts.database, "database", "", "trace database path (overrides config)")

	return cmd
}

func runServe(rootOpts *RootOptions, opts *serveOptions, cmd *cobra.Command) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "loading config", err)
		}
		cfg = loaded
	}
	if opts.listen != "" {
		cfg.Listen = opts.listen
	}
	if opts.rulesDir != "" {
		cfg.RulesDir = opts.rulesDir
	}
	if opts.database != "" {
		cfg.Database = opts.database
	}

	level := slog.LevelInfo
	if rootOpts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var ruleSet []*rules.Rule
	if _, err := os.Stat(cfg.RulesDir); err == nil {
		result, err := compiler.LoadDir(cfg.RulesDir)
		if err != nil {
			return WrapExitError(ExitFailure, "compiling rules", err)
		}
		ruleSet = result.Rules
		logger.Info("rules loaded", "dir", cfg.RulesDir, "rules", len(ruleSet), "presets", len(result.Presets))
	} else {
		logger.Info("no rules directory, running without rules", "dir", cfg.RulesDir)
	}

	trace, err := tracelog.Open(cfg.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "opening trace database", err)
	}
	defer trace.Close()

	server := transport.NewServer(
		transport.WithRules(ruleSet),
		transport.WithServerRole(cfg.ParsedRole()),
		transport.WithServerTrace(trace),
		transport.WithServerLogger(logger),
		transport.WithSequencerOptions(transport.WithResolution(cfg.TickResolution)),
	)

	mux := http.NewServeMux()
	mux.Handle("/ws", server)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("listening", "addr", cfg.Listen, "resolution", cfg.TickResolution)
	if err := httpServer.ListenAndServe(); err != nil {
		return WrapExitError(ExitFailure, "server stopped", err)
	}
	return nil
}
