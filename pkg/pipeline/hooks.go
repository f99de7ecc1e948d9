package pipeline

import "time"

// StageStatus is the outcome of one stage or plugin step reported to Hooks.
type StageStatus string

const (
	StatusCompleted StageStatus = "completed"
	StatusFailed    StageStatus = "failed"  // recorded as non-fatal, run continues
	StatusAborted   StageStatus = "aborted" // fail_fast propagation
	StatusSkipped   StageStatus = "skipped" // stage disabled
)

// Hooks receives progress events from a run. Implementations MUST be safe for
// concurrent use: one Runtime may serve several runs at once. Errors returned
// by hooks are logged and otherwise ignored.
type Hooks interface {
	OnRunStart(inputPath string, rows int) error
	OnStageStart(stage string, rows int) error
	OnPluginComplete(stage, plugin string, status StageStatus, duration time.Duration) error
	OnStageComplete(stage string, status StageStatus, rows int, duration time.Duration) error
	OnRunComplete(diagnostics Diagnostics) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnRunStart implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunStart(inputPath string, rows int) error { return nil }

// OnStageStart implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnStageStart(stage string, rows int) error { return nil }

// OnPluginComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnPluginComplete(stage, plugin string, status StageStatus, duration time.Duration) error {
	return nil
}

// OnStageComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnStageComplete(stage string, status StageStatus, rows int, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(diagnostics Diagnostics) error { return nil }
