// Package hooks bridges pipeline progress events to the terminal: a bubbletea
// program when the TUI is on, a progress bar on plain terminals, and slog
// records in verbose mode.
package hooks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/schollz/progressbar/v3"

	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
)

// --- TUI Messages ---

// RunStartMsg is sent when the input has been prepared.
type RunStartMsg struct {
	InputPath string
	Rows      int
}

// StageStartMsg is sent before a stage runs.
type StageStartMsg struct {
	Stage string
	Rows  int
}

// PluginCompleteMsg is sent after each plugin invocation.
type PluginCompleteMsg struct {
	Stage    string
	Plugin   string
	Status   pipeline.StageStatus
	Duration time.Duration
}

// StageCompleteMsg is sent after a stage and its plugins finish or are skipped.
type StageCompleteMsg struct {
	Stage    string
	Status   pipeline.StageStatus
	Rows     int
	Duration time.Duration
}

// RunCompleteMsg carries the run's final diagnostics.
type RunCompleteMsg struct{ Diagnostics pipeline.Diagnostics }

// --- Interfaces ---

// TUIProgram is the part of *tea.Program the hooks use.
type TUIProgram interface {
	Send(msg tea.Msg)
}

var _ TUIProgram = (*tea.Program)(nil)

// ProgressBar is the part of *progressbar.ProgressBar the hooks use.
type ProgressBar interface {
	Add(num int) error
	Describe(description string)
	Close() error
}

// NoOpTUIProgram discards messages.
type NoOpTUIProgram struct{}

// Send does nothing.
func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// NoOpProgressBar ignores updates.
type NoOpProgressBar struct{}

// Add does nothing.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe does nothing.
func (n *NoOpProgressBar) Describe(description string) {}

// Close does nothing.
func (n *NoOpProgressBar) Close() error { return nil }

// NewProgressBar returns a stage-count progress bar writing to w.
func NewProgressBar(stageCount int, w io.Writer) ProgressBar {
	return progressbar.NewOptions(stageCount,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// --- CLIHooks ---

// CLIHooks implements pipeline.Hooks for the command-line interface.
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram
	progressBar    ProgressBar
	mu             sync.Mutex // guards progressBar
}

var _ pipeline.Hooks = (*CLIHooks)(nil)

// NewCLIHooks creates hooks for one CLI invocation. Nil program or bar
// arguments are replaced with no-ops.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, progBar ProgressBar) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger.With(slog.String("component", "cli-hooks")),
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
		progressBar:    progBar,
	}
}

// OnRunStart implements pipeline.Hooks.
func (h *CLIHooks) OnRunStart(inputPath string, rows int) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunStartMsg{InputPath: inputPath, Rows: rows})
	} else if h.verboseEnabled {
		h.logger.Info("Input prepared", slog.String("path", inputPath), slog.Int("rows", rows))
	}
	return nil
}

// OnStageStart implements pipeline.Hooks.
func (h *CLIHooks) OnStageStart(stage string, rows int) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(StageStartMsg{Stage: stage, Rows: rows})
		return nil
	}
	if h.verboseEnabled {
		h.logger.Debug("Stage started", slog.String("stage", stage), slog.Int("rows", rows))
		return nil
	}
	h.mu.Lock()
	h.progressBar.Describe(stage)
	h.mu.Unlock()
	return nil
}

// OnPluginComplete implements pipeline.Hooks.
func (h *CLIHooks) OnPluginComplete(stage, plugin string, status pipeline.StageStatus, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(PluginCompleteMsg{Stage: stage, Plugin: plugin, Status: status, Duration: duration})
		return nil
	}
	if status != pipeline.StatusCompleted {
		h.logger.Warn("Plugin did not complete", slog.String("stage", stage), slog.String("plugin", plugin), slog.String("status", string(status)))
	} else if h.verboseEnabled {
		h.logger.Debug("Plugin completed", slog.String("stage", stage), slog.String("plugin", plugin), slog.Duration("duration", duration))
	}
	return nil
}

// OnStageComplete implements pipeline.Hooks.
func (h *CLIHooks) OnStageComplete(stage string, status pipeline.StageStatus, rows int, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(StageCompleteMsg{Stage: stage, Status: status, Rows: rows, Duration: duration})
		return nil
	}

	if h.verboseEnabled {
		level := slog.LevelInfo
		msg := "Stage completed"
		switch status {
		case pipeline.StatusFailed:
			level, msg = slog.LevelWarn, "Stage failed, continuing"
		case pipeline.StatusAborted:
			level, msg = slog.LevelError, "Stage failed, aborting run"
		case pipeline.StatusSkipped:
			level, msg = slog.LevelDebug, "Stage skipped"
		}
		h.logger.Log(context.Background(), level, msg,
			slog.String("stage", stage), slog.Int("rows", rows), slog.Duration("duration", duration))
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.progressBar.Add(1)
	return nil
}

// OnRunComplete implements pipeline.Hooks.
func (h *CLIHooks) OnRunComplete(diagnostics pipeline.Diagnostics) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Diagnostics: diagnostics})
		return nil
	}
	h.mu.Lock()
	_ = h.progressBar.Close()
	h.mu.Unlock()
	if h.verboseEnabled {
		h.logger.Info("Run complete",
			slog.Int("final_rows", diagnostics.FinalRows),
			slog.Int("non_fatal_errors", len(diagnostics.NonFatalErrors)),
			slog.String("output", diagnostics.OutputPath))
	}
	return nil
}
