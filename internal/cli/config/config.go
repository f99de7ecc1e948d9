// Package config loads the honestroles CLI options from defaults, an optional
// CLI config file, HONESTROLES_* environment variables and command-line flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/report"
)

const (
	EnvPrefix         = "HONESTROLES"
	DefaultConfigName = "honestroles-cli"

	DefaultOutputFormat  = OutputFormatText
	DefaultPluginTimeout = "30s"
	DefaultTUIEnabled    = true
)

// OutputFormat selects how the run summary is printed to stdout.
type OutputFormat string

const (
	OutputFormatText OutputFormat = "text"
	OutputFormatJSON OutputFormat = "json"
)

// Mode says which paths a command needs.
type Mode int

const (
	// ModeRun needs a pipeline config; the plugin manifest is optional.
	ModeRun Mode = iota
	// ModePlugins needs a plugin manifest only.
	ModePlugins
)

// Options is the resolved CLI configuration.
type Options struct {
	AppVersion     string `mapstructure:"-"`
	ConfigFilePath string `mapstructure:"-"`

	PipelinePath  string       `mapstructure:"pipeline"`
	PluginsPath   string       `mapstructure:"plugins"`
	OutputFormat  OutputFormat `mapstructure:"output-format"`
	ReportPath    string       `mapstructure:"report"`
	TemplatePath  string       `mapstructure:"template"`
	TUIEnabled    bool         `mapstructure:"tui"`
	Verbose       bool         `mapstructure:"verbose"`
	PluginTimeout string       `mapstructure:"plugin-timeout"`

	// FailFast overrides the pipeline's runtime.fail_fast when not nil.
	FailFast *bool `mapstructure:"-"`
	// PluginTimeoutDuration is PluginTimeout parsed.
	PluginTimeoutDuration time.Duration `mapstructure:"-"`
	// Template renders the text summary.
	Template *template.Template `mapstructure:"-"`
	// Logger is the handler every component logs through.
	Logger slog.Handler `mapstructure:"-"`
}

// flagKeys are the flags bound into viper. Keys match the flag names.
var flagKeys = []string{
	"pipeline", "plugins", "fail-fast", "output-format", "report",
	"template", "verbose", "plugin-timeout",
}

// LoadAndValidate merges all option sources, validates the result for mode,
// sets up the logger and loads the summary template. Validation failures wrap
// libconfig.ErrConfigValidation; an unreadable config file wraps
// libconfig.ErrConfigRead.
func LoadAndValidate(cfgFile, appVersion string, mode Mode, flags *pflag.FlagSet) (Options, *slog.Logger, error) {
	var opts Options
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "honestroles"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No CLI configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = DefaultConfigName + ".yaml"
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("%w: error reading config file '%s': %w", libconfig.ErrConfigRead, used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags ---
	if flags != nil {
		for _, key := range flagKeys {
			flag := flags.Lookup(key)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				tempLogger.Error("Error binding flag", slog.String("flag", key), slog.Any("error", err))
				return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", key, err)
			}
		}
	}

	opts.AppVersion = appVersion
	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", libconfig.ErrConfigValidation, err)
	}

	// --- Tri-state and negated flags ---
	if flags != nil && flags.Changed("no-tui") {
		if noTUI, _ := flags.GetBool("no-tui"); noTUI {
			opts.TUIEnabled = false
		}
	}
	failFast, err := resolveFailFast(v, flags)
	if err != nil {
		tempLogger.Error(err.Error())
		return opts, tempLogger, err
	}
	opts.FailFast = failFast

	// --- Setup Final Logger ---
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, mode, logger); err != nil {
		return opts, logger, err
	}

	// --- Load Custom or Default Template ---
	if opts.TemplatePath != "" {
		tmpl, err := report.LoadTemplate(opts.TemplatePath)
		if err != nil {
			logger.Error("Failed to load custom template", slog.String("path", opts.TemplatePath), slog.Any("error", err))
			return opts, logger, fmt.Errorf("%w: %w", libconfig.ErrConfigValidation, err)
		}
		opts.Template = tmpl
		logger.Debug("Loaded custom template", slog.String("path", opts.TemplatePath))
	} else {
		tmpl, err := report.LoadDefaultTemplate()
		if err != nil {
			return opts, logger, fmt.Errorf("critical internal error: failed to load default template: %w", err)
		}
		opts.Template = tmpl
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("pipeline", opts.PipelinePath),
		slog.String("plugins", opts.PluginsPath),
		slog.String("logLevel", logLevel.String()),
	)
	return opts, logger, nil
}

// setDefaults establishes the default values for CLI options in Viper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline", "")
	v.SetDefault("plugins", "")
	v.SetDefault("output-format", string(DefaultOutputFormat))
	v.SetDefault("report", "")
	v.SetDefault("template", "")
	v.SetDefault("tui", DefaultTUIEnabled)
	v.SetDefault("verbose", false)
	v.SetDefault("plugin-timeout", DefaultPluginTimeout)
}

// resolveFailFast returns nil unless fail-fast was set by flag, environment or
// config file. --no-fail-fast wins over the other sources.
func resolveFailFast(v *viper.Viper, flags *pflag.FlagSet) (*bool, error) {
	if flags != nil && flags.Changed("no-fail-fast") {
		if flags.Changed("fail-fast") {
			return nil, fmt.Errorf("%w: --fail-fast and --no-fail-fast are mutually exclusive", libconfig.ErrConfigValidation)
		}
		if off, _ := flags.GetBool("no-fail-fast"); off {
			value := false
			return &value, nil
		}
	}
	if !v.IsSet("fail-fast") {
		return nil, nil
	}
	value := v.GetBool("fail-fast")
	return &value, nil
}

// isValidEnumValue checks if a given string value is present in a slice of allowed enum values.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions checks required paths for mode, resolves them to
// absolute paths and parses derived values.
func validateAndDeriveOptions(opts *Options, mode Mode, logger *slog.Logger) error {
	requirePath := func(key, flag string, p *string) error {
		if *p == "" {
			err := fmt.Errorf("%w: %s path is required (--%s)", libconfig.ErrConfigValidation, key, flag)
			logger.Error(err.Error(), slog.String("key", key))
			return err
		}
		return nil
	}
	absolutize := func(key string, p *string) error {
		if *p == "" {
			return nil
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			err = fmt.Errorf("%w: cannot resolve absolute %s path '%s': %w", libconfig.ErrConfigValidation, key, *p, err)
			logger.Error(err.Error(), slog.String("key", key), slog.String("value", *p))
			return err
		}
		*p = abs
		return nil
	}

	switch mode {
	case ModeRun:
		if err := requirePath("pipeline", "pipeline", &opts.PipelinePath); err != nil {
			return err
		}
	case ModePlugins:
		if err := requirePath("plugins", "plugins", &opts.PluginsPath); err != nil {
			return err
		}
	}
	for key, p := range map[string]*string{
		"pipeline": &opts.PipelinePath,
		"plugins":  &opts.PluginsPath,
		"report":   &opts.ReportPath,
		"template": &opts.TemplatePath,
	} {
		if err := absolutize(key, p); err != nil {
			return err
		}
	}

	// === Enum String Validations ===
	allowedOutputFormat := []OutputFormat{OutputFormatText, OutputFormatJSON}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		err := fmt.Errorf("%w: invalid value '%s' for key 'output-format' (flag --output-format). Allowed: %v", libconfig.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat)
		logger.Error(err.Error(), slog.String("key", "output-format"), slog.String("value", string(opts.OutputFormat)))
		return err
	}

	// === Durations ===
	timeout, err := time.ParseDuration(opts.PluginTimeout)
	if err != nil {
		err = fmt.Errorf("%w: invalid plugin timeout '%s': %w", libconfig.ErrConfigValidation, opts.PluginTimeout, err)
		logger.Error(err.Error(), slog.String("key", "plugin-timeout"))
		return err
	}
	if timeout <= 0 {
		err := fmt.Errorf("%w: plugin timeout must be positive, got '%s'", libconfig.ErrConfigValidation, opts.PluginTimeout)
		logger.Error(err.Error(), slog.String("key", "plugin-timeout"))
		return err
	}
	opts.PluginTimeoutDuration = timeout
	return nil
}
