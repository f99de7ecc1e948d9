package pipeline

import (
	"errors"
	"fmt"

	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
)

// --- Sentinel Errors ---

// ErrStageExecution indicates a built-in stage transform failed. Returned
// wrapped in *StageExecutionError.
var ErrStageExecution = errors.New("stage execution failed")

// ErrRuntimeInitialization indicates an unexpected failure while building a
// Runtime from configuration files. Returned wrapped in *InitializationError.
var ErrRuntimeInitialization = errors.New("runtime initialization failed")

// Error type names recorded in NonFatalStageError.ErrorType.
const (
	ErrorTypePluginExecution = "PluginExecutionError"
	ErrorTypeStageExecution  = "StageExecutionError"
)

// --- Error Types ---

// PluginExecutionError reports a plugin that failed or returned a table that
// broke the dataset contract. It matches plugin.ErrPluginExecution.
type PluginExecutionError struct {
	Stage  string
	Plugin string
	Kind   plugin.Kind
	Detail string
	Err    error
}

func (e *PluginExecutionError) Error() string {
	return fmt.Sprintf("%s: plugin '%s' (%s) in stage '%s': %s", plugin.ErrPluginExecution, e.Plugin, e.Kind, e.Stage, e.Detail)
}

func (e *PluginExecutionError) Unwrap() error { return e.Err }

func (e *PluginExecutionError) Is(target error) bool { return target == plugin.ErrPluginExecution }

// StageExecutionError reports a built-in stage transform that failed.
type StageExecutionError struct {
	Stage  string
	Detail string
	Err    error
}

func (e *StageExecutionError) Error() string {
	return fmt.Sprintf("%s: stage '%s': %s", ErrStageExecution, e.Stage, e.Detail)
}

func (e *StageExecutionError) Unwrap() error { return e.Err }

func (e *StageExecutionError) Is(target error) bool { return target == ErrStageExecution }

// InitializationError wraps an unexpected failure from FromConfigs.
type InitializationError struct {
	ConfigPath string
	Err        error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("%s: pipeline config '%s': %v", ErrRuntimeInitialization, e.ConfigPath, e.Err)
}

func (e *InitializationError) Unwrap() error { return e.Err }

func (e *InitializationError) Is(target error) bool { return target == ErrRuntimeInitialization }

// NonFatalStageError is a stage failure recorded instead of propagated when
// fail_fast is off.
type NonFatalStageError struct {
	Stage     string `json:"stage"`
	ErrorType string `json:"error_type"`
	Detail    string `json:"detail"`
}

// classify turns a run-time stage failure into its diagnostics record.
// ok is false for errors the failure policy does not cover.
func classify(stage string, err error) (NonFatalStageError, bool) {
	var perr *PluginExecutionError
	if errors.As(err, &perr) {
		return NonFatalStageError{Stage: stage, ErrorType: ErrorTypePluginExecution, Detail: perr.Error()}, true
	}
	var serr *StageExecutionError
	if errors.As(err, &serr) {
		return NonFatalStageError{Stage: stage, ErrorType: ErrorTypeStageExecution, Detail: serr.Error()}, true
	}
	return NonFatalStageError{}, false
}
