package pipeline

import (
	"log/slog"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/hypertrial/honestroles-sub000/pkg/sink"
	"github.com/hypertrial/honestroles-sub000/pkg/stages"
)

// SinkFactory opens the output sink for a run. A nil Sink with a nil error
// means nothing is written.
type SinkFactory func(cfg config.OutputConfig, h slog.Handler) (sink.Sink, error)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	logger       slog.Handler
	hooks        Hooks
	source       ingest.Source
	sinkFactory  SinkFactory
	normalizer   stages.Normalizer
	resolver     plugin.Resolver
	apiGate      plugin.APIGate
	pipelinePath string
	manifestPath string
	failFast     *bool
}

func defaultOptions() *options {
	return &options{apiGate: plugin.DefaultAPIGate()}
}

// WithLogger sets the slog handler used by the runtime and its collaborators.
func WithLogger(h slog.Handler) Option { return func(o *options) { o.logger = h } }

// WithHooks sets the progress hooks. The default is NoOpHooks.
func WithHooks(h Hooks) Option { return func(o *options) { o.hooks = h } }

// WithSource replaces the input reader used by Run.
func WithSource(s ingest.Source) Option { return func(o *options) { o.source = s } }

// WithSinkFactory replaces sink.Open for the output step.
func WithSinkFactory(f SinkFactory) Option { return func(o *options) { o.sinkFactory = f } }

// WithNormalizer replaces the clean stage's text heuristics.
func WithNormalizer(n stages.Normalizer) Option { return func(o *options) { o.normalizer = n } }

// WithResolver sets how FromConfigs resolves manifest callables. The default
// is contrib.DefaultCatalog().
func WithResolver(r plugin.Resolver) Option { return func(o *options) { o.resolver = r } }

// WithAPIGate sets the plugin API version FromConfigs accepts.
func WithAPIGate(g plugin.APIGate) Option { return func(o *options) { o.apiGate = g } }

// WithConfigPaths sets the paths reported to plugins through RuntimeContext.
// FromConfigs sets them itself.
func WithConfigPaths(pipelinePath, manifestPath string) Option {
	return func(o *options) {
		o.pipelinePath = pipelinePath
		o.manifestPath = manifestPath
	}
}

// WithFailFast overrides the configuration's runtime.fail_fast policy.
func WithFailFast(failFast bool) Option {
	return func(o *options) { o.failFast = &failFast }
}
