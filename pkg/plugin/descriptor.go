package plugin

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// Invoker is implemented by plugin values that are not plain functions, such as
// out-of-process plugins. Its signature is fixed at compile time, so the Loader
// accepts it for any kind.
type Invoker interface {
	Invoke(t *dataset.Table, sc StageContext) (*dataset.Table, error)
}

// InvokerFunc adapts an ordinary function to Invoker.
type InvokerFunc func(t *dataset.Table, sc StageContext) (*dataset.Table, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(t *dataset.Table, sc StageContext) (*dataset.Table, error) {
	return f(t, sc)
}

// ManifestEntry is one validated manifest record, with defaults already applied.
type ManifestEntry struct {
	Name     string         `json:"name"`
	Kind     Kind           `json:"kind"`
	Callable string         `json:"callable"`
	Enabled  bool           `json:"enabled"`
	Order    int            `json:"order"`
	Settings map[string]any `json:"settings,omitempty"`
	Spec     Spec           `json:"spec"`
}

// Descriptor is a loaded plugin. It is immutable after loading.
type Descriptor struct {
	name     string
	kind     Kind
	ref      string
	order    int
	enabled  bool
	settings Settings
	spec     Spec
	call     func(*dataset.Table, StageContext) (*dataset.Table, error)
}

// Name returns the plugin name, unique within its kind.
func (d *Descriptor) Name() string { return d.name }

// Kind returns the stage kind the plugin extends.
func (d *Descriptor) Kind() Kind { return d.kind }

// Ref returns the callable reference the plugin was resolved from.
func (d *Descriptor) Ref() string { return d.ref }

// Order returns the declared order; lower runs first.
func (d *Descriptor) Order() int { return d.order }

// Enabled reports whether the plugin executes.
func (d *Descriptor) Enabled() bool { return d.enabled }

// Settings returns the frozen plugin settings.
func (d *Descriptor) Settings() Settings { return d.settings }

// Spec returns the compatibility spec with a normalized API version.
func (d *Descriptor) Spec() Spec {
	s := d.spec
	s.Capabilities = append([]string(nil), d.spec.Capabilities...)
	return s
}

// String identifies the descriptor in logs.
func (d *Descriptor) String() string {
	return fmt.Sprintf("%s/%s(order=%d)", d.kind, d.name, d.order)
}

// Invoke runs the plugin on t. Panics are not recovered here.
func (d *Descriptor) Invoke(ctx context.Context, t *dataset.Table, rt RuntimeContext) (*dataset.Table, error) {
	sc := StageContext{PluginName: d.name, Kind: d.kind, Settings: d.settings, Runtime: rt}.WithContext(ctx)
	return d.call(t, sc)
}

// NewDescriptor builds a descriptor from an already-resolved callable. It runs
// the same contract checks as the Loader; the Loader uses it internally.
func NewDescriptor(entry ManifestEntry, callable any, gate APIGate) (*Descriptor, error) {
	verr := func(part, format string, args ...any) error {
		return &ValidationError{Plugin: entry.Name, Kind: entry.Kind, Part: part, Detail: fmt.Sprintf(format, args...)}
	}
	if entry.Name == "" {
		return nil, verr(PartName, "name must not be empty")
	}
	if !entry.Kind.Valid() {
		return nil, verr(PartKind, "unknown kind %q", entry.Kind)
	}
	call, err := bindCallable(entry, callable)
	if err != nil {
		return nil, err
	}

	spec := entry.Spec
	if spec.APIVersion == "" {
		spec.APIVersion = DefaultAPIVersion
	}
	if spec.PluginVersion == "" {
		spec.PluginVersion = DefaultPluginVersion
	}
	normalized, err := gate.Check(spec.APIVersion)
	if err != nil {
		return nil, verr(PartAPIVersion, "%v", err)
	}
	spec.APIVersion = normalized
	if _, err := semverLoose(spec.PluginVersion); err != nil {
		return nil, verr(PartPluginVersion, "%v", err)
	}
	spec.Capabilities = normalizeCapabilities(spec.Capabilities)

	settings, err := FreezeSettings(entry.Settings)
	if err != nil {
		return nil, verr(PartSettings, "%v", err)
	}

	return &Descriptor{
		name:     entry.Name,
		kind:     entry.Kind,
		ref:      entry.Callable,
		order:    entry.Order,
		enabled:  entry.Enabled,
		settings: settings,
		spec:     spec,
		call:     call,
	}, nil
}

var (
	tableType = reflect.TypeOf((*dataset.Table)(nil))
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// bindCallable checks callable against the kind contract and returns a uniform
// call wrapper. Functions must be
//
//	func(*dataset.Table, <Kind>Context) *dataset.Table
//	func(*dataset.Table, <Kind>Context) (*dataset.Table, error)
func bindCallable(entry ManifestEntry, callable any) (func(*dataset.Table, StageContext) (*dataset.Table, error), error) {
	verr := func(part, format string, args ...any) error {
		return &ValidationError{Plugin: entry.Name, Kind: entry.Kind, Part: part, Detail: fmt.Sprintf(format, args...)}
	}
	if inv, ok := callable.(Invoker); ok {
		return inv.Invoke, nil
	}

	fv := reflect.ValueOf(callable)
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, verr(PartCallable, "%T is not a function", callable)
	}
	ft := fv.Type()
	if ft.IsVariadic() || ft.NumIn() != 2 {
		return nil, verr(PartArity, "must accept exactly 2 parameters, got %s", ft)
	}
	if ft.In(0) != tableType {
		return nil, verr(PartTableParam, "first parameter must be %s, got %s", tableType, ft.In(0))
	}
	want := entry.Kind.contextType()
	if ft.In(1) != want {
		return nil, verr(PartContextParam, "second parameter must be %s, got %s", want, ft.In(1))
	}
	switch {
	case ft.NumOut() == 1 && ft.Out(0) == tableType:
	case ft.NumOut() == 2 && ft.Out(0) == tableType && ft.Out(1) == errorType:
	default:
		return nil, verr(PartReturn, "must return %s or (%s, error), got %s", tableType, tableType, ft)
	}

	kind := entry.Kind
	return func(t *dataset.Table, sc StageContext) (*dataset.Table, error) {
		out := fv.Call([]reflect.Value{reflect.ValueOf(t), kind.contextValue(sc)})
		var err error
		if len(out) == 2 && !out[1].IsNil() {
			err = out[1].Interface().(error)
		}
		result, _ := out[0].Interface().(*dataset.Table)
		return result, err
	}, nil
}
