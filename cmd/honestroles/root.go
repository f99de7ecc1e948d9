package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/hypertrial/honestroles-sub000/internal/cli"
	"github.com/hypertrial/honestroles-sub000/internal/cli/config"
	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// isTerminal reports whether stderr is a terminal. Tests replace it.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stderr.Fd())) }

// Execute runs the CLI with os.Args and returns the process exit code.
func Execute() int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return executeContext(ctx, newRootCmd(), os.Args[1:])
}

func executeContext(ctx context.Context, root *cobra.Command, args []string) int {
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return exitCode(err)
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "honestroles",
		Short: "Runs job-listing pipelines with pluggable filter, label and rate stages.",
		Long: `honestroles reads a job-listing table, normalizes it to the canonical schema,
and runs the clean, filter, label, rate and match stages. Plugins declared in a
manifest run after the built-in logic of their stage, in (order, name) order.

Exit codes:
  0  success
  1  unexpected error
  2  configuration or input error
  3  plugin load or validation error
  4  plugin execution error
  5  stage execution error`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{.Use}} version {{.Version}}` + "\n")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", libconfig.ErrConfigValidation, err)
	})
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "CLI configuration file (default is ./"+config.DefaultConfigName+".yaml or $HOME/.config/honestroles/)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose (debug) logging output (disables TUI)")

	root.AddCommand(newRunCmd(&cfgFile), newPluginsCmd(&cfgFile))
	return root
}

func streams(cmd *cobra.Command) cli.Streams {
	errOut := cmd.ErrOrStderr()
	return cli.Streams{
		Out:         cmd.OutOrStdout(),
		Err:         errOut,
		Interactive: errOut == os.Stderr && isTerminal(),
	}
}

func addOutputFlags(flags *pflag.FlagSet) {
	flags.String("output-format", string(config.DefaultOutputFormat), `Summary format ("text", "json")`)
	flags.String("plugin-timeout", config.DefaultPluginTimeout, "Timeout for each exec: plugin invocation")
}

func newRunCmd(cfgFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run --pipeline <pipeline.yaml> [--plugins <manifest.yaml>]",
		Short: "Run a pipeline and print its diagnostics summary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, logger, err := config.LoadAndValidate(*cfgFile, version, config.ModeRun, cmd.Flags())
			if err != nil {
				return err
			}
			return cli.Run(cmd.Context(), opts, logger, streams(cmd))
		},
	}
	flags := cmd.Flags()
	flags.String("pipeline", "", "Pipeline configuration file (yaml, toml or json)")
	flags.String("plugins", "", "Plugin manifest file (yaml, toml or json)")
	flags.Bool("fail-fast", false, "Abort on the first stage or plugin failure (overrides runtime.fail_fast)")
	flags.Bool("no-fail-fast", false, "Record stage and plugin failures and continue (overrides runtime.fail_fast)")
	flags.String("report", "", "Also write the diagnostics JSON to this file")
	flags.String("template", "", "Custom Go template for the text summary")
	flags.Bool("no-tui", false, "Disable the interactive terminal UI even in a TTY")
	addOutputFlags(flags)
	return cmd
}

func newPluginsCmd(cfgFile *string) *cobra.Command {
	parent := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect a plugin manifest.",
	}

	pluginCmd := func(use, short string, fn func(config.Options, *slog.Logger, *cobra.Command) error) *cobra.Command {
		cmd := &cobra.Command{
			Use:   use + " --plugins <manifest.yaml>",
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				opts, logger, err := config.LoadAndValidate(*cfgFile, version, config.ModePlugins, cmd.Flags())
				if err != nil {
					return err
				}
				return fn(opts, logger, cmd)
			},
		}
		cmd.Flags().String("plugins", "", "Plugin manifest file (yaml, toml or json)")
		addOutputFlags(cmd.Flags())
		return cmd
	}

	parent.AddCommand(
		pluginCmd("validate", "Load the manifest and check every plugin's contract.", func(opts config.Options, logger *slog.Logger, cmd *cobra.Command) error {
			return cli.ValidatePlugins(opts, logger, streams(cmd))
		}),
		pluginCmd("list", "List plugins in execution order.", func(opts config.Options, logger *slog.Logger, cmd *cobra.Command) error {
			return cli.ListPlugins(opts, logger, streams(cmd))
		}),
	)
	return parent
}
