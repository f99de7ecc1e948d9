// Package testutil provides testify mocks for the interfaces the honestroles
// runtime and CLI depend on, plus small file helpers for tests.
package testutil

import (
	"context"
	"time"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/stretchr/testify/mock"
)

// MockHooks provides a mock implementation of the pipeline.Hooks interface.
// Configure expectations using testify/mock methods (e.g., .On("OnStageComplete", ...).Return(nil)).
// A Runtime may run concurrently; mock.Mock is itself safe for that.
type MockHooks struct {
	mock.Mock
}

// OnRunStart mocks the OnRunStart method.
func (m *MockHooks) OnRunStart(inputPath string, rows int) error {
	args := m.Called(inputPath, rows)
	return args.Error(0)
}

// OnStageStart mocks the OnStageStart method.
func (m *MockHooks) OnStageStart(stage string, rows int) error {
	args := m.Called(stage, rows)
	return args.Error(0)
}

// OnPluginComplete mocks the OnPluginComplete method.
func (m *MockHooks) OnPluginComplete(stage, plugin string, status pipeline.StageStatus, duration time.Duration) error {
	args := m.Called(stage, plugin, status, duration)
	return args.Error(0)
}

// OnStageComplete mocks the OnStageComplete method.
func (m *MockHooks) OnStageComplete(stage string, status pipeline.StageStatus, rows int, duration time.Duration) error {
	args := m.Called(stage, status, rows, duration)
	return args.Error(0)
}

// OnRunComplete mocks the OnRunComplete method.
func (m *MockHooks) OnRunComplete(diagnostics pipeline.Diagnostics) error {
	args := m.Called(diagnostics)
	return args.Error(0)
}

// MockSink provides a mock implementation of the sink.Sink interface.
type MockSink struct {
	mock.Mock
}

// Write mocks the Write method.
func (m *MockSink) Write(ctx context.Context, t *dataset.Table) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

// Path mocks the Path method.
func (m *MockSink) Path() string {
	args := m.Called()
	return args.String(0)
}

// MockSource provides a mock implementation of the ingest.Source interface.
type MockSource struct {
	mock.Mock
}

// Read mocks the Read method.
func (m *MockSource) Read(ctx context.Context, path, format string) (t *dataset.Table, err error) {
	args := m.Called(ctx, path, format)
	t, _ = args.Get(0).(*dataset.Table)
	err = args.Error(1)
	return
}
