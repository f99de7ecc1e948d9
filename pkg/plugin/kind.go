package plugin

import (
	"context"
	"fmt"
	"reflect"
)

// Kind identifies which stage a plugin extends.
type Kind string

// Plugin kinds. Their lexical order matches the stage order they run in.
const (
	KindFilter Kind = "filter"
	KindLabel  Kind = "label"
	KindRate   Kind = "rate"
)

// Kinds returns every plugin kind in execution order.
func Kinds() []Kind { return []Kind{KindFilter, KindLabel, KindRate} }

// ParseKind validates s as a plugin kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindFilter, KindLabel, KindRate:
		return k, nil
	}
	return "", fmt.Errorf("unknown plugin kind %q (expected filter, label or rate)", s)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// RuntimeContext is the read-only view of the runtime handed to every plugin call.
type RuntimeContext struct {
	PipelineConfigPath string   `json:"pipeline_config_path"`
	PluginManifestPath string   `json:"plugin_manifest_path,omitempty"`
	StageOptions       Settings `json:"stage_options"`
}

// StageContext carries what a single plugin invocation may read: its own name,
// its frozen settings and the runtime context. The kind-specific contexts below
// embed it.
type StageContext struct {
	PluginName string         `json:"plugin_name"`
	Kind       Kind           `json:"kind"`
	Settings   Settings       `json:"settings"`
	Runtime    RuntimeContext `json:"runtime"`

	ctx context.Context
}

// Context returns the context of the run the invocation belongs to.
func (c StageContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// WithContext returns a copy of c bound to ctx.
func (c StageContext) WithContext(ctx context.Context) StageContext {
	c.ctx = ctx
	return c
}

// FilterContext is the second argument of filter plugins.
type FilterContext struct{ StageContext }

// LabelContext is the second argument of label plugins.
type LabelContext struct{ StageContext }

// RateContext is the second argument of rate plugins.
type RateContext struct{ StageContext }

var (
	filterContextType = reflect.TypeOf(FilterContext{})
	labelContextType  = reflect.TypeOf(LabelContext{})
	rateContextType   = reflect.TypeOf(RateContext{})
)

// contextType returns the parameter type plugins of kind k must accept second.
func (k Kind) contextType() reflect.Type {
	switch k {
	case KindFilter:
		return filterContextType
	case KindLabel:
		return labelContextType
	case KindRate:
		return rateContextType
	}
	return nil
}

// contextValue wraps sc in the kind-specific context type.
func (k Kind) contextValue(sc StageContext) reflect.Value {
	switch k {
	case KindFilter:
		return reflect.ValueOf(FilterContext{sc})
	case KindLabel:
		return reflect.ValueOf(LabelContext{sc})
	case KindRate:
		return reflect.ValueOf(RateContext{sc})
	}
	return reflect.Value{}
}
