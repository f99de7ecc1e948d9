package plugin

import (
	"errors"
	"fmt"
)

// --- Error Variables ---

// ErrPluginLoad indicates a plugin's callable reference could not be resolved.
// Load errors abort loading of the whole manifest; no partial registry is built.
// Returned wrapped in *LoadError.
var ErrPluginLoad = errors.New("plugin load failed")

// ErrPluginValidation indicates a resolved plugin does not satisfy its kind's
// calling contract, or declares an incompatible API version or malformed
// metadata. Returned wrapped in *ValidationError.
var ErrPluginValidation = errors.New("plugin validation failed")

// ErrPluginExecution indicates a plugin failed while being invoked, either by
// returning an error, panicking, or returning a value that breaks the table
// contract. Out-of-process runners wrap their failures with it too.
var ErrPluginExecution = errors.New("plugin execution failed")

// ErrUnresolvedRef is wrapped by resolvers when no callable is registered
// under a reference.
var ErrUnresolvedRef = errors.New("callable reference not found")

// ErrInvalidRef is wrapped by resolvers when a reference is not of the form
// "module:function".
var ErrInvalidRef = errors.New("invalid callable reference")

// LoadError reports a callable reference that could not be resolved.
type LoadError struct {
	Plugin string
	Ref    string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: plugin %q: cannot resolve %q: %v", ErrPluginLoad, e.Plugin, e.Ref, e.Err)
}

// Unwrap exposes the resolution failure.
func (e *LoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPluginLoad) true for *LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrPluginLoad }

// Contract parts a ValidationError can name.
const (
	PartKind          = "kind"
	PartCallable      = "callable"
	PartArity         = "arity"
	PartTableParam    = "table parameter"
	PartContextParam  = "context parameter"
	PartReturn        = "return type"
	PartAPIVersion    = "api_version"
	PartPluginVersion = "plugin_version"
	PartSettings      = "settings"
	PartName          = "name"
)

// ValidationError reports which part of the plugin contract a plugin broke.
type ValidationError struct {
	Plugin string
	Kind   Kind
	Part   string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: plugin %q (%s): %s: %s", ErrPluginValidation, e.Plugin, e.Kind, e.Part, e.Detail)
}

// Is makes errors.Is(err, ErrPluginValidation) true for *ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrPluginValidation }

// Errorf returns a formatted error that wraps ErrPluginExecution.
func Errorf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrPluginExecution}, args...)...)
}

// WrapExecutionError wraps a specific failure with ErrPluginExecution so callers
// can match either.
func WrapExecutionError(specific error, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %w", ErrPluginExecution, fmt.Sprintf(format, args...), specific)
}
