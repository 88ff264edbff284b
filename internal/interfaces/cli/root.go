// Package cli implements the tsfinder command-line interface: configuration
// loading, logger initialisation, and the locate/migrate/config subcommands.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/molkinetics/tsfinder/internal/config"
	"github.com/molkinetics/tsfinder/internal/infrastructure/monitoring/logging"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

// CLIContext carries initialised dependencies through the command tree.
type CLIContext struct {
	Config *config.Config
	Logger logging.Logger
}

type cliContextKey struct{}

// NewRootCommand creates the root command with all global flags and
// subcommands attached.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "tsfinder",
		Short:   "tsfinder locates transition states of chemical reactions",
		Long:    "tsfinder locates transition states of chemical reactions by enumerating\nbond rearrangements, scanning along reaction coordinates with external\nelectronic-structure drivers, and validating saddle points by their\nimaginary vibrational mode.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initContext(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (default: environment only)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level override (debug, info, warn, error)")

	cmd.AddCommand(
		newLocateCmd(),
		newMigrateCmd(),
		newConfigCmd(),
	)
	return cmd
}

// initContext loads configuration, builds the logger, and stashes both in
// the command context for subcommands.
func initContext(cmd *cobra.Command, opts *RootOptions) error {
	var (
		cfg *config.Config
		err error
	)
	if opts.ConfigPath != "" {
		cfg, err = config.Load(opts.ConfigPath)
	} else {
		cfg, err = config.LoadFromEnv()
	}
	if err != nil {
		return err
	}

	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	log, err := logging.NewLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialise logger: %w", err)
	}
	logging.SetDefault(log)

	ctx := context.WithValue(cmd.Context(), cliContextKey{}, &CLIContext{Config: cfg, Logger: log})
	cmd.SetContext(ctx)
	return nil
}

// getCLIContext extracts the initialised dependencies from a command.
func getCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*CLIContext)
	if !ok || cc == nil {
		return nil, fmt.Errorf("CLI context not initialised")
	}
	return cc, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCommand().Execute()
}

// newConfigCmd groups configuration inspection subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load, default, and validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := getCLIContext(cmd)
			if err != nil {
				return err
			}
			// Loading already applied defaults and validation.
			fmt.Fprintf(cmd.OutOrStdout(), "configuration valid (low: %s, high: %s)\n",
				cc.Config.Methods.Low.Name, cc.Config.Methods.High.Name)
			return nil
		},
	})
	return cmd
}
