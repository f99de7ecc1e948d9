package plugin

import (
	"io"
	"log/slog"
)

// Loader resolves manifest entries into Descriptors.
type Loader struct {
	resolver Resolver
	gate     APIGate
	logger   *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAPIGate overrides the supported API version range.
func WithAPIGate(g APIGate) LoaderOption {
	return func(l *Loader) { l.gate = g }
}

// WithLogger sets the slog handler used for load-time debug output.
func WithLogger(h slog.Handler) LoaderOption {
	return func(l *Loader) {
		if h != nil {
			l.logger = slog.New(h).With(slog.String("component", "plugin-loader"))
		}
	}
}

// NewLoader returns a Loader that resolves references through r.
func NewLoader(r Resolver, opts ...LoaderOption) *Loader {
	l := &Loader{
		resolver: r,
		gate:     DefaultAPIGate(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load resolves and validates every entry, in manifest order. The first failure
// aborts the load: resolution failures are *LoadError, contract failures are
// *ValidationError. Disabled entries are resolved and validated too.
// The returned descriptors are unsorted; NewRegistry sorts them.
func (l *Loader) Load(entries []ManifestEntry) ([]*Descriptor, error) {
	descs := make([]*Descriptor, 0, len(entries))
	for _, entry := range entries {
		if !entry.Kind.Valid() {
			return nil, &ValidationError{Plugin: entry.Name, Kind: entry.Kind, Part: PartKind, Detail: "unknown kind " + string(entry.Kind)}
		}
		callable, err := l.resolver.Resolve(entry.Callable)
		if err != nil {
			l.logger.Debug("Plugin resolution failed", "plugin", entry.Name, "ref", entry.Callable, "error", err)
			return nil, &LoadError{Plugin: entry.Name, Ref: entry.Callable, Err: err}
		}
		d, err := NewDescriptor(entry, callable, l.gate)
		if err != nil {
			l.logger.Debug("Plugin validation failed", "plugin", entry.Name, "error", err)
			return nil, err
		}
		l.logger.Debug("Plugin loaded", "plugin", d.Name(), "kind", d.Kind(), "order", d.Order(), "enabled", d.Enabled(), "api_version", d.spec.APIVersion)
		descs = append(descs, d)
	}
	return descs, nil
}

// LoadRegistry is Load followed by NewRegistry.
func (l *Loader) LoadRegistry(entries []ManifestEntry) (*Registry, error) {
	descs, err := l.Load(entries)
	if err != nil {
		return nil, err
	}
	return NewRegistry(descs)
}
