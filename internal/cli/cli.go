// Package cli wires the CLI options to the pipeline runtime: it builds the
// runtime with the exec and compiled-in plugin resolvers, drives progress
// output and prints the run summary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hypertrial/honestroles-sub000/internal/cli/config"
	"github.com/hypertrial/honestroles-sub000/internal/cli/hooks"
	"github.com/hypertrial/honestroles-sub000/internal/cli/runner"
	"github.com/hypertrial/honestroles-sub000/internal/cli/ui"
	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin/contrib"
	"github.com/hypertrial/honestroles-sub000/pkg/report"
	"github.com/hypertrial/honestroles-sub000/pkg/stages"
)

// Streams are the terminal endpoints of one invocation. Interactive is true
// when Err is a terminal, which enables the TUI or progress bar.
type Streams struct {
	Out         io.Writer
	Err         io.Writer
	Interactive bool
}

// Resolver returns the plugin resolver the CLI uses: "exec:" references run
// subprocesses, everything else is looked up in the compiled-in catalog.
func Resolver(opts config.Options) plugin.Resolver {
	return plugin.Chain{
		runner.NewResolver(opts.Logger, opts.PluginTimeoutDuration),
		contrib.DefaultCatalog(),
	}
}

// Run executes the configured pipeline and prints its summary to s.Out.
func Run(ctx context.Context, opts config.Options, logger *slog.Logger, s Streams) error {
	progress := newProgress(ctx, opts, logger, s)

	runtimeOpts := []pipeline.Option{
		pipeline.WithLogger(opts.Logger),
		pipeline.WithHooks(progress.hooks),
		pipeline.WithResolver(Resolver(opts)),
	}
	if opts.FailFast != nil {
		runtimeOpts = append(runtimeOpts, pipeline.WithFailFast(*opts.FailFast))
	}

	rt, err := pipeline.FromConfigs(opts.PipelinePath, opts.PluginsPath, runtimeOpts...)
	if err != nil {
		progress.stop()
		logger.Error("Runtime initialization failed", slog.Any("error", err))
		return err
	}
	logger.Debug("Runtime ready",
		slog.String("pipeline", opts.PipelinePath),
		slog.Int("plugins", rt.Registry().Len()),
		slog.Bool("fail_fast", rt.Config().Runtime.FailFast))

	res, err := rt.Run(ctx)
	progress.stop()
	if err != nil {
		logger.Error("Pipeline run failed", slog.Any("error", err))
		return err
	}

	if opts.ReportPath != "" {
		if err := writeDiagnostics(opts.ReportPath, res.Diagnostics); err != nil {
			logger.Error("Writing diagnostics report failed", slog.String("path", opts.ReportPath), slog.Any("error", err))
			return err
		}
		logger.Debug("Diagnostics report written", slog.String("path", opts.ReportPath))
	}

	switch opts.OutputFormat {
	case config.OutputFormatJSON:
		raw, err := res.Diagnostics.JSON()
		if err != nil {
			return fmt.Errorf("encoding diagnostics: %w", err)
		}
		_, err = fmt.Fprintf(s.Out, "%s\n", raw)
		return err
	default:
		return report.NewTextExecutor().Execute(s.Out, opts.Template, report.FromResult(res))
	}
}

func writeDiagnostics(path string, d pipeline.Diagnostics) error {
	raw, err := d.JSON()
	if err != nil {
		return fmt.Errorf("encoding diagnostics: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

// --- Progress ---

type progress struct {
	hooks *hooks.CLIHooks
	stop  func()
}

// newProgress picks the progress surface: the TUI on an interactive terminal,
// a progress bar when the TUI is disabled, plain logging otherwise.
func newProgress(ctx context.Context, opts config.Options, logger *slog.Logger, s Streams) progress {
	switch {
	case s.Interactive && opts.TUIEnabled && !opts.Verbose:
		model := ui.NewModel(opts.AppVersion, stages.Names())
		prog := tea.NewProgram(model, tea.WithOutput(s.Err), tea.WithInput(nil), tea.WithContext(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			if _, err := prog.Run(); err != nil {
				logger.Warn("TUI exited with error", slog.Any("error", err))
			}
		}()
		return progress{
			hooks: hooks.NewCLIHooks(logger, true, false, prog, nil),
			stop: func() {
				prog.Quit()
				<-done
			},
		}
	case s.Interactive && !opts.Verbose:
		bar := hooks.NewProgressBar(len(stages.Names()), s.Err)
		return progress{hooks: hooks.NewCLIHooks(logger, false, false, nil, bar), stop: func() {}}
	default:
		return progress{hooks: hooks.NewCLIHooks(logger, false, opts.Verbose, nil, nil), stop: func() {}}
	}
}

// --- Plugin commands ---

// PluginInfo describes one loaded plugin for `plugins list`.
type PluginInfo struct {
	Kind          plugin.Kind `json:"kind"`
	Order         int         `json:"order"`
	Name          string      `json:"name"`
	Enabled       bool        `json:"enabled"`
	Callable      string      `json:"callable"`
	APIVersion    string      `json:"api_version"`
	PluginVersion string      `json:"plugin_version"`
	Capabilities  []string    `json:"capabilities"`
}

// LoadRegistry loads and validates the manifest at opts.PluginsPath.
func LoadRegistry(opts config.Options, logger *slog.Logger) (*plugin.Registry, error) {
	manifest, err := libconfig.LoadManifest(opts.PluginsPath, logger.With(slog.String("component", "manifest")))
	if err != nil {
		return nil, err
	}
	loader := plugin.NewLoader(Resolver(opts), plugin.WithLogger(opts.Logger))
	return loader.LoadRegistry(manifest.Entries)
}

// ValidatePlugins loads the manifest and reports whether every plugin passes
// resolution and contract checks.
func ValidatePlugins(opts config.Options, logger *slog.Logger, s Streams) error {
	reg, err := LoadRegistry(opts, logger)
	if err != nil {
		logger.Error("Plugin manifest is invalid", slog.String("path", opts.PluginsPath), slog.Any("error", err))
		return err
	}
	if opts.OutputFormat == config.OutputFormatJSON {
		return json.NewEncoder(s.Out).Encode(map[string]any{
			"manifest": opts.PluginsPath,
			"plugins":  reg.Len(),
			"valid":    true,
		})
	}
	_, err = fmt.Fprintf(s.Out, "%s: %d plugins OK\n", opts.PluginsPath, reg.Len())
	return err
}

// ListPlugins prints every plugin, disabled ones included, in execution order
// grouped by kind.
func ListPlugins(opts config.Options, logger *slog.Logger, s Streams) error {
	reg, err := LoadRegistry(opts, logger)
	if err != nil {
		return err
	}
	infos := make([]PluginInfo, 0, reg.Len())
	for _, d := range reg.All() {
		spec := d.Spec()
		caps := spec.Capabilities
		if caps == nil {
			caps = []string{}
		}
		infos = append(infos, PluginInfo{
			Kind:          d.Kind(),
			Order:         d.Order(),
			Name:          d.Name(),
			Enabled:       d.Enabled(),
			Callable:      d.Ref(),
			APIVersion:    spec.APIVersion,
			PluginVersion: spec.PluginVersion,
			Capabilities:  caps,
		})
	}

	if opts.OutputFormat == config.OutputFormatJSON {
		enc := json.NewEncoder(s.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	tw := tabwriter.NewWriter(s.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tORDER\tNAME\tENABLED\tAPI\tVERSION\tCALLABLE")
	for _, p := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%t\t%s\t%s\t%s\n", p.Kind, p.Order, p.Name, p.Enabled, p.APIVersion, p.PluginVersion, p.Callable)
	}
	return tw.Flush()
}
