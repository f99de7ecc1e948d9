// Package config loads the two configuration documents a pipeline run needs:
// the pipeline config (input, stages, output, runtime policy) and the plugin
// manifest. Both loaders validate and apply defaults, so the values they return
// can be handed to the runtime as-is.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// PipelineEnvPrefix prefixes environment overrides of pipeline config keys,
// e.g. HONESTROLES_PIPELINE_RUNTIME_FAIL_FAST=false.
const PipelineEnvPrefix = "HONESTROLES_PIPELINE"

// Input formats.
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatSQLite = "sqlite"
)

var (
	inputFormats  = []string{FormatAuto, FormatCSV, FormatJSONL}
	outputFormats = []string{FormatAuto, FormatCSV, FormatJSONL, FormatSQLite}
)

// Pipeline is a validated pipeline configuration. Treat it as a value: the
// runtime copies it at construction.
type Pipeline struct {
	Input   InputConfig   `mapstructure:"input" json:"input"`
	Output  OutputConfig  `mapstructure:"output" json:"output"`
	Stages  StagesConfig  `mapstructure:"stages" json:"stages"`
	Runtime RuntimeConfig `mapstructure:"runtime" json:"runtime"`

	// Path is the file the config was loaded from; empty for in-memory configs.
	Path string `mapstructure:"-" json:"-"`
}

// InputConfig describes where the job table comes from and how its columns are
// mapped onto the canonical schema.
type InputConfig struct {
	Path     string        `mapstructure:"path" json:"path"`
	Format   string        `mapstructure:"format" json:"format"`
	Encoding string        `mapstructure:"encoding" json:"encoding,omitempty"`
	Adapter  AdapterConfig `mapstructure:"adapter" json:"adapter"`
	Aliases  []AliasConfig `mapstructure:"aliases" json:"aliases,omitempty"`
	// LegacyAliases enables the built-in alias table (job_title -> title, ...).
	LegacyAliases bool `mapstructure:"legacy_aliases" json:"legacy_aliases"`
}

// AdapterConfig maps source columns onto canonical fields with type coercion.
type AdapterConfig struct {
	Enabled bool                    `mapstructure:"enabled" json:"enabled"`
	Fields  map[string]AdapterField `mapstructure:"fields" json:"fields,omitempty"`
}

// AdapterField lists candidate source columns for one canonical field, tried in order.
type AdapterField struct {
	From        []string `mapstructure:"from" json:"from"`
	Type        string   `mapstructure:"type" json:"type,omitempty"`
	TrueValues  []string `mapstructure:"true_values" json:"true_values,omitempty"`
	FalseValues []string `mapstructure:"false_values" json:"false_values,omitempty"`
	Separator   string   `mapstructure:"separator" json:"separator,omitempty"`
}

// AliasConfig renames a source column to a canonical field.
type AliasConfig struct {
	From string `mapstructure:"from" json:"from"`
	To   string `mapstructure:"to" json:"to"`
}

// OutputConfig configures the optional output sink. An empty Path disables output.
type OutputConfig struct {
	Path   string `mapstructure:"path" json:"path,omitempty"`
	Format string `mapstructure:"format" json:"format,omitempty"`
	Table  string `mapstructure:"table" json:"table,omitempty"`
}

// StagesConfig holds per-stage options.
type StagesConfig struct {
	Clean  CleanConfig  `mapstructure:"clean" json:"clean"`
	Filter FilterConfig `mapstructure:"filter" json:"filter"`
	Label  LabelConfig  `mapstructure:"label" json:"label"`
	Rate   RateConfig   `mapstructure:"rate" json:"rate"`
	Match  MatchConfig  `mapstructure:"match" json:"match"`
}

// CleanConfig configures the clean stage.
type CleanConfig struct {
	Enabled         bool `mapstructure:"enabled" json:"enabled"`
	NormalizeSkills bool `mapstructure:"normalize_skills" json:"normalize_skills"`
	InferRemote     bool `mapstructure:"infer_remote" json:"infer_remote"`
	Dedupe          bool `mapstructure:"dedupe" json:"dedupe"`
}

// FilterConfig configures the filter stage. Zero values disable each criterion.
type FilterConfig struct {
	Enabled         bool     `mapstructure:"enabled" json:"enabled"`
	RemoteOnly      bool     `mapstructure:"remote_only" json:"remote_only"`
	MinSalary       float64  `mapstructure:"min_salary" json:"min_salary"`
	IncludeKeywords []string `mapstructure:"include_keywords" json:"include_keywords,omitempty"`
	ExcludeKeywords []string `mapstructure:"exclude_keywords" json:"exclude_keywords,omitempty"`
	Locations       []string `mapstructure:"locations" json:"locations,omitempty"`
}

// LabelConfig configures the label stage.
type LabelConfig struct {
	Enabled    bool                `mapstructure:"enabled" json:"enabled"`
	Seniority  bool                `mapstructure:"seniority" json:"seniority"`
	Categories map[string][]string `mapstructure:"categories" json:"categories,omitempty"`
}

// RateConfig configures the rate stage.
type RateConfig struct {
	Enabled    bool               `mapstructure:"enabled" json:"enabled"`
	MinQuality float64            `mapstructure:"min_quality" json:"min_quality"`
	Weights    map[string]float64 `mapstructure:"weights" json:"weights,omitempty"`
}

// MatchConfig configures the match stage.
type MatchConfig struct {
	Enabled bool          `mapstructure:"enabled" json:"enabled"`
	TopK    int           `mapstructure:"top_k" json:"top_k"`
	Profile ProfileConfig `mapstructure:"profile" json:"profile"`
}

// ProfileConfig describes the candidate the match stage ranks against.
type ProfileConfig struct {
	Skills       []string `mapstructure:"skills" json:"skills,omitempty"`
	Locations    []string `mapstructure:"locations" json:"locations,omitempty"`
	PreferRemote bool     `mapstructure:"prefer_remote" json:"prefer_remote"`
	MinSalary    float64  `mapstructure:"min_salary" json:"min_salary"`
}

// RuntimeConfig holds the run policy.
type RuntimeConfig struct {
	FailFast   bool  `mapstructure:"fail_fast" json:"fail_fast"`
	RandomSeed int64 `mapstructure:"random_seed" json:"random_seed"`
}

// StageEnabled reports the enabled flag of the named stage.
func (s StagesConfig) StageEnabled(stage string) bool {
	switch stage {
	case "clean":
		return s.Clean.Enabled
	case "filter":
		return s.Filter.Enabled
	case "label":
		return s.Label.Enabled
	case "rate":
		return s.Rate.Enabled
	case "match":
		return s.Match.Enabled
	}
	return false
}

// Snapshot returns the stage options as a plain JSON-shaped map, suitable for
// freezing into plugin settings.
func (s StagesConfig) Snapshot() map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// DefaultPipeline returns the configuration used for keys a file omits.
func DefaultPipeline() Pipeline {
	return Pipeline{
		Input: InputConfig{Format: FormatAuto, LegacyAliases: true},
		Stages: StagesConfig{
			Clean:  CleanConfig{Enabled: true, NormalizeSkills: true, InferRemote: true, Dedupe: true},
			Filter: FilterConfig{Enabled: true},
			Label:  LabelConfig{Enabled: true, Seniority: true},
			Rate:   RateConfig{Enabled: true},
			Match:  MatchConfig{Enabled: true, TopK: 10},
		},
		Runtime: RuntimeConfig{FailFast: true, RandomSeed: 0},
	}
}

// setPipelineDefaults mirrors DefaultPipeline into viper so partial files merge
// over complete defaults.
func setPipelineDefaults(v *viper.Viper) {
	d := DefaultPipeline()
	v.SetDefault("input.format", d.Input.Format)
	v.SetDefault("input.encoding", "")
	v.SetDefault("input.legacy_aliases", d.Input.LegacyAliases)
	v.SetDefault("input.adapter.enabled", false)

	v.SetDefault("output.path", "")
	v.SetDefault("output.format", FormatAuto)
	v.SetDefault("output.table", "jobs")

	v.SetDefault("stages.clean.enabled", d.Stages.Clean.Enabled)
	v.SetDefault("stages.clean.normalize_skills", d.Stages.Clean.NormalizeSkills)
	v.SetDefault("stages.clean.infer_remote", d.Stages.Clean.InferRemote)
	v.SetDefault("stages.clean.dedupe", d.Stages.Clean.Dedupe)
	v.SetDefault("stages.filter.enabled", d.Stages.Filter.Enabled)
	v.SetDefault("stages.filter.remote_only", false)
	v.SetDefault("stages.filter.min_salary", 0.0)
	v.SetDefault("stages.label.enabled", d.Stages.Label.Enabled)
	v.SetDefault("stages.label.seniority", d.Stages.Label.Seniority)
	v.SetDefault("stages.rate.enabled", d.Stages.Rate.Enabled)
	v.SetDefault("stages.rate.min_quality", 0.0)
	v.SetDefault("stages.match.enabled", d.Stages.Match.Enabled)
	v.SetDefault("stages.match.top_k", d.Stages.Match.TopK)

	v.SetDefault("runtime.fail_fast", d.Runtime.FailFast)
	v.SetDefault("runtime.random_seed", d.Runtime.RandomSeed)
}

// LoadPipeline reads, merges with defaults and environment overrides, and
// validates the pipeline config at path. The format follows the extension
// (.yaml, .yml, .json, .toml). Relative input and output paths are resolved
// against the config file's directory.
func LoadPipeline(path string, logger *slog.Logger) (Pipeline, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var cfg Pipeline
	if path == "" {
		return cfg, fmt.Errorf("%w: pipeline config path is empty", ErrConfigValidation)
	}

	v := viper.New()
	setPipelineDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix(PipelineEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Debug("Error reading pipeline config", slog.String("path", path), slog.Any("error", err))
		return cfg, fmt.Errorf("%w: pipeline config '%s': %w", ErrConfigRead, path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: pipeline config '%s': %w", ErrConfigValidation, path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: cannot resolve pipeline config path '%s': %w", ErrConfigRead, path, err)
	}
	cfg.Path = abs
	baseDir := filepath.Dir(abs)
	cfg.Input.Path = resolveRelative(baseDir, cfg.Input.Path)
	cfg.Output.Path = resolveRelative(baseDir, cfg.Output.Path)

	if err := cfg.Validate(); err != nil {
		logger.Debug("Pipeline config failed validation", slog.String("path", abs), slog.Any("error", err))
		return cfg, err
	}
	logger.Debug("Loaded pipeline config",
		slog.String("path", abs),
		slog.String("input", cfg.Input.Path),
		slog.Bool("failFast", cfg.Runtime.FailFast),
		slog.Int64("randomSeed", cfg.Runtime.RandomSeed),
	)
	return cfg, nil
}

func resolveRelative(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate checks enum values and cross-field constraints.
func (p Pipeline) Validate() error {
	if strings.TrimSpace(p.Input.Path) == "" {
		return fmt.Errorf("%w: input.path is required", ErrConfigValidation)
	}
	if !isValidEnumValue(p.Input.Format, inputFormats) {
		return fmt.Errorf("%w: invalid input.format '%s', must be one of %v", ErrConfigValidation, p.Input.Format, inputFormats)
	}
	if p.Output.Format != "" && !isValidEnumValue(p.Output.Format, outputFormats) {
		return fmt.Errorf("%w: invalid output.format '%s', must be one of %v", ErrConfigValidation, p.Output.Format, outputFormats)
	}
	for canonical, f := range p.Input.Adapter.Fields {
		if _, ok := dataset.CanonicalField(canonical); !ok {
			return fmt.Errorf("%w: input.adapter.fields: '%s' is not a canonical field", ErrConfigValidation, canonical)
		}
		if len(f.From) == 0 {
			return fmt.Errorf("%w: input.adapter.fields.%s.from must list at least one source column", ErrConfigValidation, canonical)
		}
		if f.Type != "" && !dataset.LogicalType(f.Type).Valid() {
			return fmt.Errorf("%w: input.adapter.fields.%s.type '%s' is not a known type", ErrConfigValidation, canonical, f.Type)
		}
	}
	for i, a := range p.Input.Aliases {
		if a.From == "" || a.To == "" {
			return fmt.Errorf("%w: input.aliases[%d] needs both from and to", ErrConfigValidation, i)
		}
		if _, ok := dataset.CanonicalField(a.To); !ok {
			return fmt.Errorf("%w: input.aliases[%d].to '%s' is not a canonical field", ErrConfigValidation, i, a.To)
		}
	}
	if p.Stages.Filter.MinSalary < 0 {
		return fmt.Errorf("%w: stages.filter.min_salary must be >= 0", ErrConfigValidation)
	}
	if q := p.Stages.Rate.MinQuality; q < 0 || q > 1 {
		return fmt.Errorf("%w: stages.rate.min_quality must be within [0,1], got %v", ErrConfigValidation, q)
	}
	for name, w := range p.Stages.Rate.Weights {
		if _, ok := dataset.CanonicalField(name); !ok {
			return fmt.Errorf("%w: stages.rate.weights: '%s' is not a canonical field", ErrConfigValidation, name)
		}
		if w < 0 {
			return fmt.Errorf("%w: stages.rate.weights.%s must be >= 0", ErrConfigValidation, name)
		}
	}
	if p.Stages.Match.TopK < 0 {
		return fmt.Errorf("%w: stages.match.top_k must be >= 0", ErrConfigValidation)
	}
	return nil
}

// isValidEnumValue checks if a given string value is present in a slice of allowed enum values.
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}
