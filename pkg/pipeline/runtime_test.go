package pipeline_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hypertrial/honestroles-sub000/internal/testutil"
	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin/contrib"
	"github.com/hypertrial/honestroles-sub000/pkg/sink"
	"github.com/hypertrial/honestroles-sub000/pkg/stages"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- Test Helpers ---

func traceLabel(t *dataset.Table, ctx plugin.LabelContext) (*dataset.Table, error) {
	return t.WithValues("trace", dataset.TypeString, func(r dataset.Row) any {
		return r.String("trace") + ctx.PluginName + ","
	})
}

func testCatalog() *plugin.Catalog {
	c := plugin.NewCatalog()
	c.MustRegister("tests:label_note", contrib.LabelNote)
	c.MustRegister("tests:trace", traceLabel)
	c.MustRegister("tests:boom", func(t *dataset.Table, _ plugin.FilterContext) (*dataset.Table, error) {
		return nil, errors.New("boom")
	})
	c.MustRegister("tests:panic", func(t *dataset.Table, _ plugin.FilterContext) *dataset.Table {
		panic("plugin exploded")
	})
	c.MustRegister("tests:drop_title", func(t *dataset.Table, _ plugin.LabelContext) *dataset.Table {
		return t.Drop(dataset.FieldTitle)
	})
	c.MustRegister("tests:nil", func(t *dataset.Table, _ plugin.RateContext) *dataset.Table { return nil })
	c.MustRegister("tests:one_param", func(t *dataset.Table) *dataset.Table { return t })
	c.MustRegister("tests:bad_return", func(t *dataset.Table, _ plugin.LabelContext) string { return "" })
	return c
}

func entry(name string, kind plugin.Kind, ref string, order int) plugin.ManifestEntry {
	return plugin.ManifestEntry{Name: name, Kind: kind, Callable: ref, Enabled: true, Order: order}
}

func registry(t *testing.T, entries ...plugin.ManifestEntry) *plugin.Registry {
	t.Helper()
	reg, err := plugin.NewLoader(testCatalog()).LoadRegistry(entries)
	require.NoError(t, err)
	return reg
}

func baseConfig() config.Pipeline {
	cfg := config.DefaultPipeline()
	cfg.Input.Path = "memory://jobs"
	cfg.Runtime.RandomSeed = 7
	cfg.Stages.Match.Profile = config.ProfileConfig{Skills: []string{"Go"}, PreferRemote: true}
	return cfg
}

func newRuntime(t *testing.T, cfg config.Pipeline, reg *plugin.Registry, opts ...pipeline.Option) *pipeline.Runtime {
	t.Helper()
	rt, err := pipeline.New(cfg, reg, opts...)
	require.NoError(t, err)
	return rt
}

func run(t *testing.T, rt *pipeline.Runtime) *pipeline.Result {
	t.Helper()
	res, err := rt.RunWithInput(context.Background(), testutil.SampleJobs(t))
	require.NoError(t, err)
	return res
}

func columnValues(t *testing.T, ds *dataset.Dataset, name string) []any {
	t.Helper()
	c, ok := ds.Table().Column(name)
	require.True(t, ok, "missing column %s", name)
	return c.Values()
}

type panicNormalizer struct{ stages.HeuristicNormalizer }

func (panicNormalizer) NormalizeText(string) string { panic("normalizer exploded") }

// --- Tests ---

func TestRun_EndToEnd(t *testing.T) {
	reg := registry(t, entry("label_note", plugin.KindLabel, "tests:label_note", 1))
	res := run(t, newRuntime(t, baseConfig(), reg))

	d := res.Diagnostics
	assert.Equal(t, []string{"clean", "filter", "input", "label", "match", "rate"}, d.StageKeys())
	assert.Equal(t, map[string]int{"filter": 0, "label": 1, "rate": 0}, d.PluginCounts)
	assert.Equal(t, 3, d.FinalRows)
	assert.Equal(t, "memory://jobs", d.InputPath)
	assert.Empty(t, d.NonFatalErrors)
	assert.Equal(t, pipeline.RuntimeSnapshot{FailFast: true, RandomSeed: 7}, d.Runtime)

	assert.Equal(t, []any{"label_note", "label_note", "label_note"}, columnValues(t, res.Dataset, "note"))
	assert.True(t, res.Dataset.Table().HasColumn(stages.ColumnFitRank))
	require.Len(t, res.Plan, 3)
	assert.Equal(t, 1, res.Plan[0].Rank)
	require.NoError(t, res.Dataset.Validate())
}

func TestRun_Deterministic(t *testing.T) {
	reg := registry(t, entry("label_note", plugin.KindLabel, "tests:label_note", 1))
	rt := newRuntime(t, baseConfig(), reg)

	first, second := run(t, rt), run(t, rt)

	tableA, err := json.Marshal(first.Dataset.Table())
	require.NoError(t, err)
	tableB, err := json.Marshal(second.Dataset.Table())
	require.NoError(t, err)
	assert.Equal(t, string(tableA), string(tableB))

	diagA, err := first.Diagnostics.JSON()
	require.NoError(t, err)
	diagB, err := second.Diagnostics.JSON()
	require.NoError(t, err)
	assert.Equal(t, string(diagA), string(diagB))
	assert.Equal(t, first.Plan, second.Plan)
}

func TestRun_ConcurrentRuntimesAreIsolated(t *testing.T) {
	withNote := newRuntime(t, baseConfig(), registry(t, entry("label_note", plugin.KindLabel, "tests:label_note", 1)))
	without := newRuntime(t, baseConfig(), registry(t))
	input := testutil.SampleJobs(t)

	const runs = 8
	type outcome struct {
		noted   bool
		hasNote bool
		counts  map[string]int
		err     error
	}
	results := make(chan outcome, 2*runs)
	var wg sync.WaitGroup
	for i := range 2 * runs {
		rt, noted := without, false
		if i%2 == 0 {
			rt, noted = withNote, true
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := rt.RunWithInput(context.Background(), input)
			if err != nil {
				results <- outcome{err: err}
				return
			}
			results <- outcome{noted: noted, hasNote: res.Dataset.Table().HasColumn("note"), counts: res.Diagnostics.PluginCounts}
		}()
	}
	wg.Wait()
	close(results)

	for o := range results {
		require.NoError(t, o.err)
		assert.Equal(t, o.noted, o.hasNote)
		if o.noted {
			assert.Equal(t, 1, o.counts["label"])
		} else {
			assert.Equal(t, 0, o.counts["label"])
		}
	}
	assert.False(t, input.HasColumn("note"), "caller's input table is never modified")
}

func TestRun_PluginOrdering(t *testing.T) {
	disabled := entry("disabled", plugin.KindLabel, "tests:trace", 0)
	disabled.Enabled = false
	reg := registry(t,
		entry("b", plugin.KindLabel, "tests:trace", 20),
		entry("a", plugin.KindLabel, "tests:trace", 20),
		disabled,
	)
	res := run(t, newRuntime(t, baseConfig(), reg))

	assert.Equal(t, []any{"a,b,", "a,b,", "a,b,"}, columnValues(t, res.Dataset, "trace"))
	assert.Equal(t, 2, res.Diagnostics.PluginCounts["label"])
}

func TestRun_FailFastPropagatesPluginError(t *testing.T) {
	reg := registry(t, entry("boom", plugin.KindFilter, "tests:boom", 0))
	cfg := baseConfig()
	cfg.Output.Path = "out.csv"
	sinkOpened := false
	rt := newRuntime(t, cfg, reg, pipeline.WithSinkFactory(func(config.OutputConfig, slog.Handler) (sink.Sink, error) {
		sinkOpened = true
		return nil, nil
	}))

	res, err := rt.RunWithInput(context.Background(), testutil.SampleJobs(t))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, plugin.ErrPluginExecution)
	assert.NotErrorIs(t, err, pipeline.ErrStageExecution)

	var perr *pipeline.PluginExecutionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "filter", perr.Stage)
	assert.Equal(t, "boom", perr.Plugin)
	assert.ErrorContains(t, err, "boom")
	assert.False(t, sinkOpened, "output step must not be reached")
}

func TestRun_DegradedContinuation(t *testing.T) {
	reg := registry(t,
		entry("boom", plugin.KindFilter, "tests:boom", 0),
		entry("label_note", plugin.KindLabel, "tests:label_note", 1),
	)
	cfg := baseConfig()
	cfg.Runtime.FailFast = false
	cfg.Stages.Filter.RemoteOnly = true // the built-in alone would drop one row

	res := run(t, newRuntime(t, cfg, reg))
	d := res.Diagnostics

	require.Len(t, d.NonFatalErrors, 1)
	assert.Equal(t, "filter", d.NonFatalErrors[0].Stage)
	assert.Equal(t, pipeline.ErrorTypePluginExecution, d.NonFatalErrors[0].ErrorType)
	assert.Contains(t, d.NonFatalErrors[0].Detail, "boom")

	assert.Equal(t, 3, d.StageRows["clean"])
	assert.Equal(t, 3, d.StageRows["filter"], "failed stage records the pre-failure row count")
	assert.Equal(t, 3, d.StageRows["label"])
	assert.Equal(t, 3, d.StageRows["rate"])
	assert.Equal(t, 3, d.StageRows["match"])
	assert.Equal(t, 3, d.FinalRows)
	assert.Equal(t, map[string]int{"filter": 1, "label": 1, "rate": 0}, d.PluginCounts)
	assert.True(t, res.Dataset.Table().HasColumn("note"), "later stages keep running")
}

func TestRun_FailFastOverride(t *testing.T) {
	reg := registry(t, entry("boom", plugin.KindFilter, "tests:boom", 0))
	cfg := baseConfig()
	cfg.Runtime.FailFast = true

	rt := newRuntime(t, cfg, reg, pipeline.WithFailFast(false))
	assert.False(t, rt.Config().Runtime.FailFast)
	res := run(t, rt)
	require.Len(t, res.Diagnostics.NonFatalErrors, 1)
	assert.False(t, res.Diagnostics.Runtime.FailFast)

	cfg.Runtime.FailFast = false
	_, err := newRuntime(t, cfg, reg, pipeline.WithFailFast(true)).RunWithInput(context.Background(), testutil.SampleJobs(t))
	assert.ErrorIs(t, err, plugin.ErrPluginExecution)
}

func TestRun_PluginReturnContract(t *testing.T) {
	tests := []struct {
		name   string
		entry  plugin.ManifestEntry
		stage  string
		detail string
	}{
		{"nil table", entry("nil", plugin.KindRate, "tests:nil", 0), "rate", "got nil"},
		{"schema violation", entry("drop", plugin.KindLabel, "tests:drop_title", 0), "label", "title"},
		{"panic", entry("panic", plugin.KindFilter, "tests:panic", 0), "filter", "plugin exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t, baseConfig(), registry(t, tt.entry))
			_, err := rt.RunWithInput(context.Background(), testutil.SampleJobs(t))
			var perr *pipeline.PluginExecutionError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.stage, perr.Stage)
			assert.Contains(t, perr.Detail, tt.detail)
		})
	}
}

func TestRun_StageExecutionError(t *testing.T) {
	t.Run("fail fast", func(t *testing.T) {
		rt := newRuntime(t, baseConfig(), nil, pipeline.WithNormalizer(panicNormalizer{}))
		_, err := rt.RunWithInput(context.Background(), testutil.SampleJobs(t))
		require.ErrorIs(t, err, pipeline.ErrStageExecution)
		assert.NotErrorIs(t, err, plugin.ErrPluginExecution)
		var serr *pipeline.StageExecutionError
		require.ErrorAs(t, err, &serr)
		assert.Equal(t, "clean", serr.Stage)
		assert.Contains(t, serr.Detail, "normalizer exploded")
	})

	t.Run("degraded", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Runtime.FailFast = false
		rt := newRuntime(t, cfg, nil, pipeline.WithNormalizer(panicNormalizer{}))
		res := run(t, rt)
		require.Len(t, res.Diagnostics.NonFatalErrors, 1)
		assert.Equal(t, pipeline.NonFatalStageError{
			Stage:     "clean",
			ErrorType: pipeline.ErrorTypeStageExecution,
			Detail:    res.Diagnostics.NonFatalErrors[0].Detail,
		}, res.Diagnostics.NonFatalErrors[0])
		assert.Equal(t, res.Diagnostics.StageRows["input"], res.Diagnostics.StageRows["clean"])
	})
}

func TestRun_DisabledStages(t *testing.T) {
	cfg := baseConfig()
	cfg.Stages.Label.Enabled = false
	cfg.Stages.Match.Enabled = false
	reg := registry(t, entry("label_note", plugin.KindLabel, "tests:label_note", 1))

	res := run(t, newRuntime(t, cfg, reg))

	assert.Equal(t, []string{"clean", "filter", "input", "rate"}, res.Diagnostics.StageKeys())
	assert.Equal(t, 0, res.Diagnostics.PluginCounts["label"], "plugins of a disabled stage never run")
	assert.NotNil(t, res.Plan)
	assert.Empty(t, res.Plan)
	assert.False(t, res.Dataset.Table().HasColumn("note"))
}

func TestRun_WritesOutputSink(t *testing.T) {
	cfg := baseConfig()
	cfg.Output.Path = "/tmp/jobs.csv"
	out := new(testutil.MockSink)
	out.On("Write", mock.Anything, mock.AnythingOfType("*dataset.Table")).Return(nil).Once()
	out.On("Path").Return("/tmp/jobs.csv")

	rt := newRuntime(t, cfg, nil, pipeline.WithSinkFactory(func(oc config.OutputConfig, _ slog.Handler) (sink.Sink, error) {
		assert.Equal(t, "/tmp/jobs.csv", oc.Path)
		return out, nil
	}))
	res := run(t, rt)

	assert.Equal(t, "/tmp/jobs.csv", res.Diagnostics.OutputPath)
	out.AssertExpectations(t)
}

func TestRun_SinkErrorFailsRun(t *testing.T) {
	cfg := baseConfig()
	cfg.Runtime.FailFast = false
	out := new(testutil.MockSink)
	out.On("Write", mock.Anything, mock.Anything).Return(sink.ErrSinkWrite)
	out.On("Path").Return("x.csv")
	rt := newRuntime(t, cfg, nil, pipeline.WithSinkFactory(func(config.OutputConfig, slog.Handler) (sink.Sink, error) {
		return out, nil
	}))

	_, err := rt.RunWithInput(context.Background(), testutil.SampleJobs(t))
	assert.ErrorIs(t, err, sink.ErrSinkWrite)
}

func TestRun_Hooks(t *testing.T) {
	hooks := new(testutil.MockHooks)
	hooks.On("OnRunStart", "memory://jobs", 3).Return(nil).Once()
	hooks.On("OnStageStart", mock.Anything, mock.Anything).Return(nil)
	hooks.On("OnStageComplete", mock.Anything, pipeline.StatusCompleted, mock.Anything, mock.Anything).Return(nil)
	hooks.On("OnStageComplete", "match", pipeline.StatusSkipped, mock.Anything, mock.Anything).Return(errors.New("ignored")).Once()
	hooks.On("OnPluginComplete", "label", "label_note", pipeline.StatusCompleted, mock.Anything).Return(nil).Once()
	hooks.On("OnRunComplete", mock.AnythingOfType("pipeline.Diagnostics")).Return(nil).Once()

	cfg := baseConfig()
	cfg.Stages.Match.Enabled = false
	reg := registry(t, entry("label_note", plugin.KindLabel, "tests:label_note", 1))
	run(t, newRuntime(t, cfg, reg, pipeline.WithHooks(hooks)))

	hooks.AssertExpectations(t)
	hooks.AssertNumberOfCalls(t, "OnStageStart", 4)
}

func TestRun_ReadsFromSource(t *testing.T) {
	src := new(testutil.MockSource)
	src.On("Read", mock.Anything, "memory://jobs", config.FormatAuto).Return(testutil.SampleJobs(t), nil)
	rt := newRuntime(t, baseConfig(), nil, pipeline.WithSource(src))

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Diagnostics.StageRows["input"])
	src.AssertExpectations(t)
}

func TestRun_CancelledContext(t *testing.T) {
	rt := newRuntime(t, baseConfig(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rt.RunWithInput(ctx, testutil.SampleJobs(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InputPreparationError(t *testing.T) {
	hooks := new(testutil.MockHooks)
	rt := newRuntime(t, baseConfig(), nil, pipeline.WithHooks(hooks))

	_, err := rt.RunWithInput(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrInputPrepare)
	assert.NotErrorIs(t, err, pipeline.ErrStageExecution)
	hooks.AssertNotCalled(t, "OnRunStart", mock.Anything, mock.Anything)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Input.Path = ""
	_, err := pipeline.New(cfg, nil)
	assert.ErrorIs(t, err, config.ErrConfigValidation)
}

func TestDiagnostics_JSON(t *testing.T) {
	res := run(t, newRuntime(t, baseConfig(), nil))
	raw, err := json.Marshal(res.Diagnostics)
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "non_fatal_errors", "empty optional sections are omitted")
	assert.NotContains(t, string(raw), "output_path")

	order := []string{`"final_rows"`, `"input_adapter"`, `"input_aliasing"`, `"input_path"`, `"plugin_counts"`, `"runtime"`, `"stage_rows"`}
	last := -1
	for _, key := range order {
		idx := bytes.Index(raw, []byte(key))
		require.Greater(t, idx, last, "key %s out of order", key)
		last = idx
	}
	adapter := bytes.Index(raw, []byte(`"input_adapter"`))
	applied := bytes.Index(raw[adapter:], []byte(`"applied"`))
	enabled := bytes.Index(raw[adapter:], []byte(`"enabled"`))
	assert.Less(t, applied, enabled, "nested report keys are sorted")

	var back map[string]any
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, map[string]any{"fail_fast": true, "random_seed": float64(7)}, back["runtime"])
}

// --- FromConfigs ---

const jobsCSV = `job_id,job_title,company_name,location,remote,skills,salary_min
a,Senior Go Engineer,Acme,Remote,true,"Go,SQL",150000
b,Data Analyst,Beta,Berlin,false,SQL,
c,Junior Go Developer,Gamma,Remote - EU,,Go,
`

func writeConfigs(t *testing.T, manifest string) (pipelinePath, manifestPath string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "jobs.csv"), jobsCSV)
	pipelinePath = testutil.WriteFile(t, filepath.Join(dir, "pipeline.yaml"), `
input:
  path: jobs.csv
stages:
  match:
    profile:
      skills: [go]
runtime:
  fail_fast: true
  random_seed: 3
`)
	if manifest != "" {
		manifestPath = testutil.WriteFile(t, filepath.Join(dir, "plugins.yaml"), manifest)
	}
	return pipelinePath, manifestPath
}

func TestFromConfigs_EndToEnd(t *testing.T) {
	pipelinePath, manifestPath := writeConfigs(t, `
plugins:
  - name: label_note
    kind: label
    callable: contrib:label_note
    order: 1
    settings:
      text: checked
`)
	rt, err := pipeline.FromConfigs(pipelinePath, manifestPath)
	require.NoError(t, err)
	assert.Equal(t, pipelinePath, rt.RuntimeContext().PipelineConfigPath)
	assert.Equal(t, manifestPath, rt.RuntimeContext().PluginManifestPath)
	assert.Equal(t, float64(10), rt.RuntimeContext().StageOptions.Get("match").Get("top_k").Interface())

	res, err := rt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"checked", "checked", "checked"}, columnValues(t, res.Dataset, "note"))
	assert.Equal(t, map[string]string{"title": "job_title", "company": "company_name"}, res.Diagnostics.InputAliasing.Applied)
	assert.Equal(t, filepath.Join(filepath.Dir(pipelinePath), "jobs.csv"), res.Diagnostics.InputPath)
}

func TestFromConfigs_Errors(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
		resolver plugin.Resolver
		check    func(t *testing.T, err error)
	}{
		{
			name:     "one parameter callable",
			manifest: "plugins:\n  - {name: p, kind: label, callable: 'tests:one_param'}\n",
			check: func(t *testing.T, err error) {
				var verr *plugin.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, plugin.PartArity, verr.Part)
			},
		},
		{
			name:     "non-table return",
			manifest: "plugins:\n  - {name: p, kind: label, callable: 'tests:bad_return'}\n",
			check: func(t *testing.T, err error) {
				var verr *plugin.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, plugin.PartReturn, verr.Part)
			},
		},
		{
			name:     "api version 2.0",
			manifest: "plugins:\n  - {name: p, kind: label, callable: 'tests:label_note', spec: {api_version: '2.0'}}\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, plugin.ErrPluginValidation)
				assert.NotErrorIs(t, err, pipeline.ErrRuntimeInitialization)
			},
		},
		{
			name:     "unresolvable reference",
			manifest: "plugins:\n  - {name: p, kind: label, callable: 'tests:missing'}\n",
			check: func(t *testing.T, err error) {
				var lerr *plugin.LoadError
				require.ErrorAs(t, err, &lerr)
				assert.Equal(t, "tests:missing", lerr.Ref)
			},
		},
		{
			name:     "invalid manifest",
			manifest: "plugins:\n  - {name: p, kind: score, callable: 'tests:label_note'}\n",
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, config.ErrConfigValidation)
			},
		},
		{
			name:     "resolver panic",
			manifest: "plugins:\n  - {name: p, kind: label, callable: 'tests:label_note'}\n",
			resolver: panicResolver{},
			check: func(t *testing.T, err error) {
				var ierr *pipeline.InitializationError
				require.ErrorAs(t, err, &ierr)
				assert.ErrorIs(t, err, pipeline.ErrRuntimeInitialization)
				assert.Contains(t, ierr.ConfigPath, "pipeline.yaml")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipelinePath, manifestPath := writeConfigs(t, tt.manifest)
			resolver := tt.resolver
			if resolver == nil {
				resolver = testCatalog()
			}
			rt, err := pipeline.FromConfigs(pipelinePath, manifestPath, pipeline.WithResolver(resolver))
			require.Error(t, err)
			assert.Nil(t, rt)
			tt.check(t, err)
		})
	}
}

func TestFromConfigs_BareMajorAPIVersion(t *testing.T) {
	pipelinePath, manifestPath := writeConfigs(t, "plugins:\n  - {name: p, kind: label, callable: 'tests:label_note', spec: {api_version: '1'}}\n")
	rt, err := pipeline.FromConfigs(pipelinePath, manifestPath, pipeline.WithResolver(testCatalog()))
	require.NoError(t, err)
	d, ok := rt.Registry().Lookup(plugin.KindLabel, "p")
	require.True(t, ok)
	assert.Equal(t, "1.0", d.Spec().APIVersion)
}

func TestFromConfigs_MissingPipeline(t *testing.T) {
	_, err := pipeline.FromConfigs(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.ErrorIs(t, err, config.ErrConfigRead)
}

type panicResolver struct{}

func (panicResolver) Resolve(string) (any, error) { panic("resolver exploded") }
