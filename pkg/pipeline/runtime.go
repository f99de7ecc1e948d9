// Package pipeline runs the job-listing stage sequence (clean, filter, label,
// rate, match) with manifest-declared plugins after each stage, applies the
// fail-fast policy, and assembles the run's Diagnostics.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin/contrib"
	"github.com/hypertrial/honestroles-sub000/pkg/sink"
	"github.com/hypertrial/honestroles-sub000/pkg/stages"
)

// StageInput is the stage_rows key recorded before the first stage runs.
const StageInput = "input"

// Result is what a successful run returns.
type Result struct {
	Dataset     *dataset.Dataset
	Diagnostics Diagnostics
	// Plan is the match stage's ranked plan; empty when match is disabled or failed.
	Plan []stages.PlanItem
}

// Runtime executes a pipeline configuration with a fixed plugin registry.
// It is immutable after construction, so Run may be called concurrently.
type Runtime struct {
	cfg         config.Pipeline
	registry    *plugin.Registry
	runtimeCtx  plugin.RuntimeContext
	handler     slog.Handler
	logger      *slog.Logger
	hooks       Hooks
	source      ingest.Source
	sinkFactory SinkFactory
	normalizer  stages.Normalizer
}

// New builds a Runtime from an already-loaded configuration and registry.
// A nil registry means no plugins.
func New(cfg config.Pipeline, reg *plugin.Registry, opts ...Option) (*Runtime, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return newRuntime(cfg, reg, o)
}

func newRuntime(cfg config.Pipeline, reg *plugin.Registry, o *options) (*Runtime, error) {
	if o.failFast != nil {
		cfg.Runtime.FailFast = *o.failFast
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = plugin.EmptyRegistry()
	}
	if o.logger == nil {
		o.logger = slog.DiscardHandler
	}
	logger := slog.New(o.logger).With(slog.String("component", "pipeline"))

	if o.hooks == nil {
		logger.Debug("EventHooks not provided, using NoOpHooks")
		o.hooks = &NoOpHooks{}
	}
	if o.sinkFactory == nil {
		o.sinkFactory = sink.Open
	}
	stageOptions, err := plugin.FreezeSettings(cfg.Stages.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("%w: freezing stage options: %w", config.ErrConfigValidation, err)
	}
	pipelinePath := o.pipelinePath
	if pipelinePath == "" {
		pipelinePath = cfg.Path
	}

	return &Runtime{
		cfg:      cfg,
		registry: reg,
		runtimeCtx: plugin.RuntimeContext{
			PipelineConfigPath: pipelinePath,
			PluginManifestPath: o.manifestPath,
			StageOptions:       stageOptions,
		},
		handler:     o.logger,
		logger:      logger,
		hooks:       o.hooks,
		source:      o.source,
		sinkFactory: o.sinkFactory,
		normalizer:  o.normalizer,
	}, nil
}

// FromConfigs loads the pipeline config and, when manifestPath is not empty,
// the plugin manifest, then builds a Runtime. Configuration and plugin
// load/validation errors are returned as is; any other failure, including a
// panic, is wrapped in *InitializationError.
func FromConfigs(pipelinePath, manifestPath string, opts ...Option) (rt *Runtime, err error) {
	defer func() {
		if r := recover(); r != nil {
			rt = nil
			err = &InitializationError{ConfigPath: pipelinePath, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	h := o.logger
	if h == nil {
		h = slog.DiscardHandler
	}
	logger := slog.New(h)

	cfg, err := config.LoadPipeline(pipelinePath, logger.With(slog.String("component", "config")))
	if err != nil {
		return nil, wrapInitError(pipelinePath, err)
	}

	reg := plugin.EmptyRegistry()
	if manifestPath != "" {
		manifest, err := config.LoadManifest(manifestPath, logger.With(slog.String("component", "manifest")))
		if err != nil {
			return nil, wrapInitError(pipelinePath, err)
		}
		resolver := o.resolver
		if resolver == nil {
			logger.Debug("Resolver not provided, using compiled-in plugin catalog")
			resolver = contrib.DefaultCatalog()
		}
		loader := plugin.NewLoader(resolver, plugin.WithAPIGate(o.apiGate), plugin.WithLogger(h))
		reg, err = loader.LoadRegistry(manifest.Entries)
		if err != nil {
			return nil, wrapInitError(pipelinePath, err)
		}
		manifestPath = manifest.Path
	}

	o.pipelinePath = cfg.Path
	o.manifestPath = manifestPath
	rt, err = newRuntime(cfg, reg, o)
	if err != nil {
		return nil, wrapInitError(pipelinePath, err)
	}
	return rt, nil
}

// wrapInitError passes through the failures callers are expected to classify
// and wraps everything else.
func wrapInitError(path string, err error) error {
	for _, known := range []error{
		config.ErrConfigValidation,
		config.ErrConfigRead,
		plugin.ErrPluginLoad,
		plugin.ErrPluginValidation,
	} {
		if errors.Is(err, known) {
			return err
		}
	}
	return &InitializationError{ConfigPath: path, Err: err}
}

// Config returns the pipeline configuration.
func (r *Runtime) Config() config.Pipeline { return r.cfg }

// Registry returns the plugin registry.
func (r *Runtime) Registry() *plugin.Registry { return r.registry }

// RuntimeContext returns the context handed to plugins.
func (r *Runtime) RuntimeContext() plugin.RuntimeContext { return r.runtimeCtx }

// Run reads the configured input and executes the pipeline on it.
func (r *Runtime) Run(ctx context.Context) (*Result, error) {
	src := r.source
	if src == nil {
		src = ingest.NewFileReader(ingest.NewCharsetDecoder(r.cfg.Input.Encoding), r.handler)
	}
	tbl, err := src.Read(ctx, r.cfg.Input.Path, string(r.cfg.Input.Format))
	if err != nil {
		r.logger.Error("Reading input failed", slog.String("path", r.cfg.Input.Path), slog.Any("error", err))
		return nil, err
	}
	return r.RunWithInput(ctx, tbl)
}

// RunWithInput executes the pipeline on an input table supplied by the caller.
// With fail_fast the first stage or plugin failure is returned and nothing is
// written. Without it failures are recorded in Diagnostics.NonFatalErrors and
// the run continues from the dataset as it stood before the failing stage.
func (r *Runtime) RunWithInput(ctx context.Context, input *dataset.Table) (*Result, error) {
	log := r.logger.With(slog.String("run_id", uuid.NewString()))
	startTime := time.Now()

	if input == nil {
		return nil, fmt.Errorf("%w: no input table", ingest.ErrInputPrepare)
	}
	prepared, err := ingest.Prepare(input, r.cfg.Input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrInputPrepare, err)
	}
	ds, err := dataset.New(prepared.Table, nil)
	if err == nil {
		err = ds.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ingest.ErrInputPrepare, err)
	}

	env := stages.NewEnv(r.cfg.Runtime.RandomSeed)
	if r.normalizer != nil {
		env.Normalizer = r.normalizer
	}
	diag := newDiagnosticsBuilder(r.cfg, prepared)
	diag.recordRows(StageInput, ds.Rows())
	log.Info("Pipeline run started",
		slog.String("input", r.cfg.Input.Path),
		slog.Int("rows", ds.Rows()),
		slog.Bool("failFast", r.cfg.Runtime.FailFast),
		slog.Int("plugins", r.registry.Len()),
	)
	r.hook(log, "OnRunStart", r.hooks.OnRunStart(r.cfg.Input.Path, ds.Rows()))

	plan := []stages.PlanItem{}
	for _, stage := range stages.Names() {
		if err := ctx.Err(); err != nil {
			log.Warn("Run cancelled", slog.String("stage", stage), slog.Any("error", err))
			return nil, err
		}
		if !r.cfg.Stages.StageEnabled(stage) {
			log.Debug("Stage disabled, skipping", slog.String("stage", stage))
			r.hook(log, "OnStageComplete", r.hooks.OnStageComplete(stage, StatusSkipped, ds.Rows(), 0))
			continue
		}

		r.hook(log, "OnStageStart", r.hooks.OnStageStart(stage, ds.Rows()))
		stageStart := time.Now()
		next, stagePlan, err := r.runStage(ctx, log, stage, ds, env, diag)
		if err != nil {
			if r.cfg.Runtime.FailFast {
				log.Error("Stage failed, aborting run", slog.String("stage", stage), slog.Any("error", err))
				r.hook(log, "OnStageComplete", r.hooks.OnStageComplete(stage, StatusAborted, ds.Rows(), time.Since(stageStart)))
				return nil, err
			}
			record, ok := classify(stage, err)
			if !ok {
				return nil, err
			}
			log.Warn("Stage failed, continuing with previous dataset",
				slog.String("stage", stage),
				slog.String("errorType", record.ErrorType),
				slog.String("detail", record.Detail),
			)
			diag.recordNonFatal(record)
			diag.recordRows(stage, ds.Rows())
			r.hook(log, "OnStageComplete", r.hooks.OnStageComplete(stage, StatusFailed, ds.Rows(), time.Since(stageStart)))
			continue
		}

		ds = next
		if stage == stages.Match {
			plan = stagePlan
		}
		diag.recordRows(stage, ds.Rows())
		log.Debug("Stage completed", slog.String("stage", stage), slog.Int("rows", ds.Rows()), slog.Duration("duration", time.Since(stageStart)))
		r.hook(log, "OnStageComplete", r.hooks.OnStageComplete(stage, StatusCompleted, ds.Rows(), time.Since(stageStart)))
	}

	out, err := r.sinkFactory(r.cfg.Output, r.handler)
	if err != nil {
		log.Error("Opening output failed", slog.Any("error", err))
		return nil, err
	}
	if out != nil {
		if err := out.Write(ctx, ds.Table()); err != nil {
			log.Error("Writing output failed", slog.String("path", out.Path()), slog.Any("error", err))
			return nil, err
		}
		diag.setOutputPath(out.Path())
	}

	diagnostics := diag.freeze(ds.Rows())
	log.Info("Pipeline run finished",
		slog.Int("finalRows", diagnostics.FinalRows),
		slog.Int("nonFatalErrors", len(diagnostics.NonFatalErrors)),
		slog.Duration("duration", time.Since(startTime)),
	)
	r.hook(log, "OnRunComplete", r.hooks.OnRunComplete(diagnostics))
	return &Result{Dataset: ds, Diagnostics: diagnostics, Plan: plan}, nil
}

// runStage applies the built-in transform and then every enabled plugin of
// the stage's kind. Any failure fails the whole stage.
func (r *Runtime) runStage(ctx context.Context, log *slog.Logger, stage string, ds *dataset.Dataset, env stages.Env, diag *diagnosticsBuilder) (*dataset.Dataset, []stages.PlanItem, error) {
	current, plan, err := r.runBuiltin(stage, ds, env)
	if err != nil {
		return nil, nil, err
	}
	kind, ok := stagePluginKind(stage)
	if !ok {
		return current, plan, nil
	}
	for _, d := range r.registry.ForKind(kind) {
		diag.countPlugin(kind)
		pluginStart := time.Now()
		next, err := r.invokePlugin(ctx, stage, d, current)
		if err != nil {
			r.hook(log, "OnPluginComplete", r.hooks.OnPluginComplete(stage, d.Name(), StatusFailed, time.Since(pluginStart)))
			return nil, nil, err
		}
		log.Debug("Plugin completed", slog.String("stage", stage), slog.String("plugin", d.Name()), slog.Int("rows", next.Rows()))
		r.hook(log, "OnPluginComplete", r.hooks.OnPluginComplete(stage, d.Name(), StatusCompleted, time.Since(pluginStart)))
		current = next
	}
	return current, plan, nil
}

// runBuiltin runs one built-in transform, converting errors and panics into
// *StageExecutionError.
func (r *Runtime) runBuiltin(stage string, ds *dataset.Dataset, env stages.Env) (out *dataset.Dataset, plan []stages.PlanItem, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, plan = nil, nil
			err = &StageExecutionError{Stage: stage, Detail: fmt.Sprintf("panic: %v", rec)}
		}
	}()

	var t *dataset.Table
	switch stage {
	case stages.Clean:
		t, err = stages.CleanTable(ds.Table(), r.cfg.Stages.Clean, env)
	case stages.Filter:
		t, err = stages.FilterTable(ds.Table(), r.cfg.Stages.Filter, env)
	case stages.Label:
		t, err = stages.LabelTable(ds.Table(), r.cfg.Stages.Label, env)
	case stages.Rate:
		t, err = stages.RateTable(ds.Table(), r.cfg.Stages.Rate, env)
	case stages.Match:
		t, plan, err = stages.MatchTable(ds.Table(), r.cfg.Stages.Match, env)
	default:
		err = errors.New("unknown stage")
	}
	if err != nil {
		var perr *PluginExecutionError
		if errors.As(err, &perr) {
			return nil, nil, err
		}
		return nil, nil, &StageExecutionError{Stage: stage, Detail: err.Error(), Err: err}
	}
	out, err = ds.WithFrame(t)
	if err == nil {
		err = out.Validate()
	}
	if err != nil {
		return nil, nil, &StageExecutionError{Stage: stage, Detail: err.Error(), Err: err}
	}
	return out, plan, nil
}

// invokePlugin calls d and checks that its result is a schema-valid table.
func (r *Runtime) invokePlugin(ctx context.Context, stage string, d *plugin.Descriptor, ds *dataset.Dataset) (out *dataset.Dataset, err error) {
	fail := func(detail string, cause error) error {
		return &PluginExecutionError{Stage: stage, Plugin: d.Name(), Kind: d.Kind(), Detail: detail, Err: cause}
	}
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fail(fmt.Sprintf("panic: %v", rec), nil)
		}
	}()

	t, callErr := d.Invoke(ctx, ds.Table(), r.runtimeCtx)
	if callErr != nil {
		return nil, fail(callErr.Error(), callErr)
	}
	if t == nil {
		return nil, fail("expected a *dataset.Table, got nil", nil)
	}
	out, err = ds.WithFrame(t)
	if err != nil {
		return nil, fail(err.Error(), err)
	}
	if err := out.Validate(); err != nil {
		return nil, fail(fmt.Sprintf("expected a table carrying the canonical fields: %v", err), err)
	}
	return out, nil
}

func (r *Runtime) hook(log *slog.Logger, name string, err error) {
	if err != nil {
		log.Warn("Hook returned an error", slog.String("hook", name), slog.Any("error", err))
	}
}

// stagePluginKind maps a stage to the plugin kind that extends it. Clean and
// match take no plugins.
func stagePluginKind(stage string) (plugin.Kind, bool) {
	switch stage {
	case stages.Filter:
		return plugin.KindFilter, true
	case stages.Label:
		return plugin.KindLabel, true
	case stages.Rate:
		return plugin.KindRate, true
	}
	return "", false
}
