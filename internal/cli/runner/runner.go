// Package runner resolves "exec:" plugin references to subprocess plugins that
// exchange one JSON document over stdin/stdout per invocation.
package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/kballard/go-shellquote"
)

const (
	// SchemaVersion is the protocol version written to and expected from plugins.
	SchemaVersion = "1.0"
	// RefPrefix marks manifest callables served by this package.
	RefPrefix = "exec:"
	// DefaultTimeout bounds one plugin invocation.
	DefaultTimeout = 30 * time.Second

	maxLogOutputBytes  = 1024
	maxPluginReadBytes = 64 * 1024 * 1024
)

var (
	// ErrTimeout indicates the plugin did not finish before its deadline.
	ErrTimeout = errors.New("plugin timed out")
	// ErrNonZeroExit indicates the plugin process exited unsuccessfully.
	ErrNonZeroExit = errors.New("plugin exited with non-zero status")
	// ErrBadOutput indicates the plugin's stdout was not a valid response.
	ErrBadOutput = errors.New("plugin returned invalid output")
)

// Request is the document written to a plugin's stdin.
type Request struct {
	SchemaVersion string                `json:"$schemaVersion"`
	Kind          plugin.Kind           `json:"kind"`
	Plugin        string                `json:"plugin"`
	Settings      plugin.Settings       `json:"settings"`
	Runtime       plugin.RuntimeContext `json:"runtime"`
	Table         *dataset.Table        `json:"table"`
}

// Response is the document a plugin writes to stdout. A non-empty Error fails
// the invocation.
type Response struct {
	SchemaVersion string         `json:"$schemaVersion"`
	Error         string         `json:"error,omitempty"`
	Table         *dataset.Table `json:"table"`
}

// Resolver turns "exec:<command line>" references into Command invokers.
// It implements plugin.Handler so it can sit in a plugin.Chain.
type Resolver struct {
	timeout time.Duration
	handler slog.Handler
}

// NewResolver returns a Resolver whose commands time out after timeout
// (DefaultTimeout when zero or negative).
func NewResolver(loggerHandler slog.Handler, timeout time.Duration) *Resolver {
	if loggerHandler == nil {
		loggerHandler = slog.DiscardHandler
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{timeout: timeout, handler: loggerHandler}
}

// Handles reports whether ref is an exec reference.
func (r *Resolver) Handles(ref string) bool {
	return strings.HasPrefix(strings.TrimSpace(ref), RefPrefix)
}

// Resolve splits the command line with shell quoting rules and checks that the
// executable can be found.
func (r *Resolver) Resolve(ref string) (any, error) {
	if !r.Handles(ref) {
		return nil, fmt.Errorf("%w: %q is not an %s reference", plugin.ErrInvalidRef, ref, RefPrefix)
	}
	argv, err := shellquote.Split(strings.TrimPrefix(strings.TrimSpace(ref), RefPrefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", plugin.ErrInvalidRef, ref, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: %q has an empty command", plugin.ErrInvalidRef, ref)
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", plugin.ErrUnresolvedRef, err)
	}
	return &Command{
		Argv:    argv,
		Timeout: r.timeout,
		logger:  slog.New(r.handler).With(slog.String("component", "pluginRunner")),
	}, nil
}

// Command is a subprocess plugin. It implements plugin.Invoker, so it serves
// any plugin kind.
type Command struct {
	Argv    []string
	Timeout time.Duration

	logger *slog.Logger
}

// Invoke runs the command once with t and sc encoded as a Request.
func (c *Command) Invoke(t *dataset.Table, sc plugin.StageContext) (*dataset.Table, error) {
	logArgs := []any{
		slog.String("plugin", sc.PluginName),
		slog.String("kind", string(sc.Kind)),
		slog.String("command", strings.Join(c.Argv, " ")),
	}
	logger := c.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	inputJSON, err := json.Marshal(Request{
		SchemaVersion: SchemaVersion,
		Kind:          sc.Kind,
		Plugin:        sc.PluginName,
		Settings:      sc.Settings,
		Runtime:       sc.Runtime,
		Table:         t,
	})
	if err != nil {
		return nil, plugin.WrapExecutionError(ErrBadOutput, "failed to marshal input for plugin '%s'", sc.PluginName)
	}

	ctx := sc.Context()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, c.Argv[0], c.Argv[1:]...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, plugin.Errorf("failed to create stdin pipe for plugin '%s': %w", sc.PluginName, err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, plugin.Errorf("failed to create stdout pipe for plugin '%s': %w", sc.PluginName, err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, plugin.Errorf("failed to create stderr pipe for plugin '%s': %w", sc.PluginName, err)
	}
	if err := cmd.Start(); err != nil {
		logger.Error("Failed to start plugin process", append(logArgs, slog.Any("error", err))...)
		return nil, plugin.Errorf("failed to start plugin '%s': %w", sc.PluginName, err)
	}
	logger.Debug("Plugin process started", logArgs...)

	var wg sync.WaitGroup
	var writeErr, readErr error
	var stdoutData, stderrData []byte

	wg.Add(3)
	go func() {
		defer wg.Done()
		defer func() { _ = stdinPipe.Close() }()
		_, writeErr = stdinPipe.Write(inputJSON)
	}()
	go func() {
		defer wg.Done()
		stdoutData, readErr = readLimited(stdoutPipe)
	}()
	go func() {
		defer wg.Done()
		stderrData, _ = readLimited(stderrPipe)
	}()

	wg.Wait()
	waitErr := cmd.Wait()
	stderrString := strings.TrimSpace(string(stderrData))
	if stderrString != "" {
		logArgs = append(logArgs, slog.String("plugin_stderr", truncate(stderrString)))
	}

	if ctx.Err() != nil {
		logger.Error("Plugin execution cancelled or timed out", append(logArgs, slog.Any("error", ctx.Err()))...)
		return nil, plugin.WrapExecutionError(ErrTimeout, "plugin '%s' did not finish: %v", sc.PluginName, ctx.Err())
	}
	if waitErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		logger.Error("Plugin execution failed", append(logArgs, slog.Int("exitCode", exitCode), slog.Any("error", waitErr))...)
		return nil, plugin.WrapExecutionError(ErrNonZeroExit, "plugin '%s' exited with code %d: %s", sc.PluginName, exitCode, truncate(stderrString))
	}
	if writeErr != nil && !errors.Is(writeErr, syscall.EPIPE) && !errors.Is(writeErr, os.ErrClosed) {
		return nil, plugin.Errorf("failed writing input to plugin '%s': %w", sc.PluginName, writeErr)
	}
	if readErr != nil {
		logger.Error("Failed to read plugin stdout", append(logArgs, slog.Any("error", readErr))...)
		return nil, plugin.WrapExecutionError(ErrBadOutput, "error reading stdout from plugin '%s': %v", sc.PluginName, readErr)
	}
	if len(bytes.TrimSpace(stdoutData)) == 0 {
		return nil, plugin.WrapExecutionError(ErrBadOutput, "plugin '%s' returned empty stdout", sc.PluginName)
	}

	var output Response
	if err := json.Unmarshal(stdoutData, &output); err != nil {
		logger.Error("Failed to unmarshal plugin output JSON", append(logArgs, slog.Any("error", err), slog.String("stdout_prefix", truncate(string(stdoutData))))...)
		return nil, plugin.WrapExecutionError(ErrBadOutput, "failed to unmarshal JSON output from plugin '%s': %v", sc.PluginName, err)
	}
	if output.SchemaVersion != SchemaVersion {
		return nil, plugin.WrapExecutionError(ErrBadOutput, "plugin '%s' uses schema version '%s', expected '%s'", sc.PluginName, output.SchemaVersion, SchemaVersion)
	}
	if output.Error != "" {
		logger.Error("Plugin reported error", append(logArgs, slog.String("plugin_error", output.Error))...)
		return nil, plugin.Errorf("plugin '%s' reported error: %s", sc.PluginName, output.Error)
	}
	if output.Table == nil {
		return nil, plugin.WrapExecutionError(ErrBadOutput, "plugin '%s' response has no table", sc.PluginName)
	}
	logger.Debug("Plugin finished successfully", append(logArgs, slog.Int("rows", output.Table.NumRows()))...)
	return output.Table, nil
}

func readLimited(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, maxPluginReadBytes))
	if err != nil && !errors.Is(err, io.ErrClosedPipe) && !errors.Is(err, os.ErrClosed) {
		return buf.Bytes(), err
	}
	if n >= maxPluginReadBytes {
		_, _ = io.Copy(io.Discard, r)
		return buf.Bytes(), fmt.Errorf("output exceeded limit of %d bytes", maxPluginReadBytes)
	}
	return buf.Bytes(), nil
}

func truncate(s string) string {
	if len(s) > maxLogOutputBytes {
		return s[:maxLogOutputBytes] + "... (truncated)"
	}
	return s
}
