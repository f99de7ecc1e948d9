package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypertrial/honestroles-sub000/internal/testutil"
	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
)

// defineFlags mirrors the flags cmd/honestroles registers on the run command.
func defineFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("pipeline", "", "")
	flags.String("plugins", "", "")
	flags.Bool("fail-fast", false, "")
	flags.Bool("no-fail-fast", false, "")
	flags.String("output-format", string(DefaultOutputFormat), "")
	flags.String("report", "", "")
	flags.String("template", "", "")
	flags.Bool("no-tui", false, "")
	flags.BoolP("verbose", "v", false, "")
	flags.String("plugin-timeout", DefaultPluginTimeout, "")
	return flags
}

func load(t *testing.T, mode Mode, args ...string) (Options, error) {
	t.Helper()
	flags := defineFlags()
	require.NoError(t, flags.Parse(args))
	opts, logger, err := LoadAndValidate("", "test", mode, flags)
	require.NotNil(t, logger)
	return opts, err
}

func TestLoadAndValidate_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	opts, err := load(t, ModeRun, "--pipeline", "p.yaml")
	require.NoError(t, err)

	abs, _ := filepath.Abs("p.yaml")
	assert.Equal(t, abs, opts.PipelinePath)
	assert.Empty(t, opts.PluginsPath)
	assert.Equal(t, OutputFormatText, opts.OutputFormat)
	assert.True(t, opts.TUIEnabled)
	assert.False(t, opts.Verbose)
	assert.Nil(t, opts.FailFast, "no source set fail-fast")
	assert.Equal(t, 30*time.Second, opts.PluginTimeoutDuration)
	assert.NotNil(t, opts.Template)
	assert.NotNil(t, opts.Logger)
	assert.Equal(t, "test", opts.AppVersion)
}

func TestLoadAndValidate_Flags(t *testing.T) {
	t.Chdir(t.TempDir())
	opts, err := load(t, ModeRun,
		"--pipeline", "p.yaml", "--plugins", "m.yaml", "--output-format", "json",
		"--no-tui", "-v", "--plugin-timeout", "2s", "--fail-fast", "--report", "diag.json",
	)
	require.NoError(t, err)
	assert.Equal(t, OutputFormatJSON, opts.OutputFormat)
	assert.False(t, opts.TUIEnabled)
	assert.True(t, opts.Verbose)
	assert.Equal(t, 2*time.Second, opts.PluginTimeoutDuration)
	require.NotNil(t, opts.FailFast)
	assert.True(t, *opts.FailFast)
	assert.True(t, filepath.IsAbs(opts.PluginsPath))
	assert.True(t, filepath.IsAbs(opts.ReportPath))
}

func TestLoadAndValidate_NoFailFast(t *testing.T) {
	t.Chdir(t.TempDir())
	opts, err := load(t, ModeRun, "--pipeline", "p.yaml", "--no-fail-fast")
	require.NoError(t, err)
	require.NotNil(t, opts.FailFast)
	assert.False(t, *opts.FailFast)

	_, err = load(t, ModeRun, "--pipeline", "p.yaml", "--no-fail-fast", "--fail-fast")
	assert.ErrorIs(t, err, libconfig.ErrConfigValidation)
}

func TestLoadAndValidate_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HONESTROLES_PIPELINE", "env.yaml")
	t.Setenv("HONESTROLES_OUTPUT_FORMAT", "json")
	t.Setenv("HONESTROLES_FAIL_FAST", "false")
	t.Setenv("HONESTROLES_TUI", "false")

	opts, err := load(t, ModeRun)
	require.NoError(t, err)
	assert.Equal(t, "env.yaml", filepath.Base(opts.PipelinePath))
	assert.Equal(t, OutputFormatJSON, opts.OutputFormat)
	assert.False(t, opts.TUIEnabled)
	require.NotNil(t, opts.FailFast)
	assert.False(t, *opts.FailFast)

	opts, err = load(t, ModeRun, "--output-format", "text")
	require.NoError(t, err)
	assert.Equal(t, OutputFormatText, opts.OutputFormat, "flags win over environment")
}

func TestLoadAndValidate_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	cfgFile := testutil.WriteFile(t, filepath.Join(dir, "cli.yaml"), "plugins: plugins.yaml\noutput-format: json\nplugin-timeout: 5s\n")

	flags := defineFlags()
	require.NoError(t, flags.Parse(nil))
	opts, _, err := LoadAndValidate(cfgFile, "test", ModePlugins, flags)
	require.NoError(t, err)
	assert.Equal(t, cfgFile, opts.ConfigFilePath)
	assert.Equal(t, filepath.Join(dir, "plugins.yaml"), opts.PluginsPath)
	assert.Equal(t, OutputFormatJSON, opts.OutputFormat)
	assert.Equal(t, 5*time.Second, opts.PluginTimeoutDuration)
}

func TestLoadAndValidate_Errors(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		mode Mode
		args []string
	}{
		{"missing pipeline", ModeRun, nil},
		{"missing manifest", ModePlugins, []string{"--pipeline", "p.yaml"}},
		{"bad output format", ModeRun, []string{"--pipeline", "p.yaml", "--output-format", "xml"}},
		{"bad timeout", ModeRun, []string{"--pipeline", "p.yaml", "--plugin-timeout", "soon"}},
		{"non-positive timeout", ModeRun, []string{"--pipeline", "p.yaml", "--plugin-timeout", "0s"}},
		{"missing template", ModeRun, []string{"--pipeline", "p.yaml", "--template", "nope.tmpl"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(t, tc.mode, tc.args...)
			require.Error(t, err)
			assert.ErrorIs(t, err, libconfig.ErrConfigValidation)
		})
	}
}

func TestLoadAndValidate_MissingConfigFile(t *testing.T) {
	flags := defineFlags()
	require.NoError(t, flags.Parse([]string{"--pipeline", "p.yaml"}))
	_, _, err := LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml"), "test", ModeRun, flags)
	require.Error(t, err)
	assert.ErrorIs(t, err, libconfig.ErrConfigRead)
}

func TestLoadAndValidate_CustomTemplate(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	tpl := testutil.WriteFile(t, filepath.Join(dir, "summary.tmpl"), "rows={{.Diagnostics.FinalRows}}\n")

	opts, err := load(t, ModeRun, "--pipeline", "p.yaml", "--template", tpl)
	require.NoError(t, err)
	require.NotNil(t, opts.Template)
	assert.Equal(t, tpl, opts.TemplatePath)
}
