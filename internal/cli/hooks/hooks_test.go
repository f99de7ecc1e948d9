package hooks

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
)

// --- Mock Implementations ---

type MockTUIProgram struct {
	mock.Mock
}

func (m *MockTUIProgram) Send(msg tea.Msg) {
	m.Called(msg)
}

type MockProgressBar struct {
	mock.Mock
}

func (m *MockProgressBar) Add(num int) error {
	args := m.Called(num)
	return args.Error(0)
}

func (m *MockProgressBar) Describe(description string) {
	m.Called(description)
}

func (m *MockProgressBar) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// --- Tests ---

func TestCLIHooks_TUIMode(t *testing.T) {
	prog := new(MockTUIProgram)
	bar := new(MockProgressBar)
	var logBuf bytes.Buffer
	h := NewCLIHooks(newLogger(&logBuf), true, false, prog, bar)

	diag := pipeline.Diagnostics{FinalRows: 2}
	prog.On("Send", RunStartMsg{InputPath: "jobs.csv", Rows: 3}).Once()
	prog.On("Send", StageStartMsg{Stage: "clean", Rows: 3}).Once()
	prog.On("Send", PluginCompleteMsg{Stage: "label", Plugin: "note", Status: pipeline.StatusCompleted, Duration: time.Millisecond}).Once()
	prog.On("Send", StageCompleteMsg{Stage: "clean", Status: pipeline.StatusCompleted, Rows: 3, Duration: time.Second}).Once()
	prog.On("Send", RunCompleteMsg{Diagnostics: diag}).Once()

	require.NoError(t, h.OnRunStart("jobs.csv", 3))
	require.NoError(t, h.OnStageStart("clean", 3))
	require.NoError(t, h.OnPluginComplete("label", "note", pipeline.StatusCompleted, time.Millisecond))
	require.NoError(t, h.OnStageComplete("clean", pipeline.StatusCompleted, 3, time.Second))
	require.NoError(t, h.OnRunComplete(diag))

	prog.AssertExpectations(t)
	bar.AssertNotCalled(t, "Add", mock.Anything)
	bar.AssertNotCalled(t, "Close")
	assert.Empty(t, logBuf.String())
}

func TestCLIHooks_ProgressBarMode(t *testing.T) {
	prog := new(MockTUIProgram)
	bar := new(MockProgressBar)
	var logBuf bytes.Buffer
	h := NewCLIHooks(newLogger(&logBuf), false, false, prog, bar)

	bar.On("Describe", "filter").Once()
	bar.On("Add", 1).Return(nil).Twice()
	bar.On("Close").Return(nil).Once()

	require.NoError(t, h.OnStageStart("filter", 3))
	require.NoError(t, h.OnStageComplete("filter", pipeline.StatusCompleted, 2, 0))
	require.NoError(t, h.OnStageComplete("match", pipeline.StatusSkipped, 0, 0))
	require.NoError(t, h.OnPluginComplete("filter", "boom", pipeline.StatusFailed, 0))
	require.NoError(t, h.OnRunComplete(pipeline.Diagnostics{}))

	bar.AssertExpectations(t)
	prog.AssertNotCalled(t, "Send", mock.Anything)
	assert.Contains(t, logBuf.String(), "Plugin did not complete")
	assert.Contains(t, logBuf.String(), "plugin=boom")
}

func TestCLIHooks_VerboseMode(t *testing.T) {
	bar := new(MockProgressBar)
	var logBuf bytes.Buffer
	h := NewCLIHooks(newLogger(&logBuf), false, true, nil, bar)
	bar.On("Close").Return(nil).Once()

	require.NoError(t, h.OnRunStart("jobs.csv", 3))
	require.NoError(t, h.OnStageStart("label", 3))
	require.NoError(t, h.OnPluginComplete("label", "note", pipeline.StatusCompleted, time.Millisecond))
	require.NoError(t, h.OnStageComplete("label", pipeline.StatusFailed, 3, time.Millisecond))
	require.NoError(t, h.OnStageComplete("rate", pipeline.StatusAborted, 3, time.Millisecond))
	require.NoError(t, h.OnRunComplete(pipeline.Diagnostics{FinalRows: 3, OutputPath: "out.csv"}))

	out := logBuf.String()
	assert.Contains(t, out, "Input prepared")
	assert.Contains(t, out, "Stage started")
	assert.Contains(t, out, "Plugin completed")
	assert.Contains(t, out, "level=WARN msg=\"Stage failed, continuing\"")
	assert.Contains(t, out, "level=ERROR msg=\"Stage failed, aborting run\"")
	assert.Contains(t, out, "final_rows=3")
	assert.Contains(t, out, "component=cli-hooks")
	bar.AssertNotCalled(t, "Add", mock.Anything)
}

func TestNewCLIHooks_NilCollaborators(t *testing.T) {
	var logBuf bytes.Buffer
	h := NewCLIHooks(newLogger(&logBuf), true, false, nil, nil)
	assert.NotPanics(t, func() {
		_ = h.OnStageStart("clean", 1)
		_ = h.OnRunComplete(pipeline.Diagnostics{})
	})
	h = NewCLIHooks(newLogger(&logBuf), false, false, nil, nil)
	assert.NotPanics(t, func() {
		_ = h.OnStageStart("clean", 1)
		_ = h.OnStageComplete("clean", pipeline.StatusCompleted, 1, 0)
		_ = h.OnRunComplete(pipeline.Diagnostics{})
	})
}

func TestCLIHooks_SendsToTeaProgram(t *testing.T) {
	prog := tea.NewProgram(nil, tea.WithInput(nil), tea.WithOutput(&bytes.Buffer{}))
	h := NewCLIHooks(newLogger(&bytes.Buffer{}), true, false, prog, nil)
	assert.Same(t, prog, h.tuiProgram)
}

func TestNewProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(5, &buf)
	bar.Describe("clean")
	require.NoError(t, bar.Add(1))
	require.NoError(t, bar.Close())
}
