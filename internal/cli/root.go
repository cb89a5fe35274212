package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mycelium-labs/mycelium/internal/branding"
	"github.com/mycelium-labs/mycelium/internal/config"
	"github.com/mycelium-labs/mycelium/internal/logging"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	verbose     bool
	projectFlag string
	globalFlag  bool
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "", "Project directory (default: nearest directory with a .mycelium manifest)")
	rootCmd.PersistentFlags().BoolVar(&globalFlag, "global", false, "Ignore any project and use only the global manifest")
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName(),
	Short: branding.Description(),
	Long: branding.DisplayName() + ` keeps skills, MCP servers, agents, rules, commands, hooks and memory
declared once in a manifest in sync with every installed AI coding tool.

The global manifest lives in ~/.mycelium/manifest.yaml; a project can add or
override items in <project>/.mycelium/manifest.yaml.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.Load()
		return setupLogging(cmd)
	},
}

// setupLogging installs the process-wide logger from config and flags.
func setupLogging(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(config.LogLevel())
	if err != nil {
		return err
	}
	if verbose {
		level = slog.LevelDebug
	}
	format, err := logging.ParseFormat(config.LogFormat())
	if err != nil {
		return err
	}
	slog.SetDefault(logging.New(
		logging.WithLevel(level),
		logging.WithFormat(format),
		logging.WithOutput(cmd.ErrOrStderr()),
	))
	return nil
}

// Execute runs the root command with build info injected via ldflags. An
// interrupt cancels the command context.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		rootCmd.PrintErrln("Error:", err)
	}
	return err
}
