package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hypertrial/honestroles-sub000/internal/testutil"
	libconfig "github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
	"github.com/hypertrial/honestroles-sub000/pkg/sink"
)

func executeCommand(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	root := newRootCmd()
	var outBuf, errBuf bytes.Buffer
	root.SetOut(&outBuf)
	root.SetErr(&errBuf)
	code = executeContext(context.Background(), root, args)
	return outBuf.String(), errBuf.String(), code
}

func writeProject(t *testing.T, manifest string) (pipelinePath, manifestPath string) {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFile(t, filepath.Join(dir, "jobs.csv"), "job_id,title,company,skills\na,Go Engineer,Acme,Go\nb,Analyst,Beta,SQL\n")
	pipelinePath = testutil.WriteFile(t, filepath.Join(dir, "pipeline.yaml"), "input:\n  path: jobs.csv\nruntime:\n  random_seed: 1\n")
	manifestPath = testutil.WriteFile(t, filepath.Join(dir, "plugins.yaml"), manifest)
	return pipelinePath, manifestPath
}

const noteManifest = `
plugins:
  - name: note
    kind: label
    callable: contrib:label_note
`

func TestRootCmdHelp(t *testing.T) {
	stdout, stderr, code := executeCommand(t, "--help")
	assert.Equal(t, ExitOK, code)
	assert.Empty(t, stderr)
	assert.Contains(t, stdout, "Usage:")
	assert.Contains(t, stdout, "Exit codes:")
	for _, sub := range []string{"run", "plugins"} {
		assert.Contains(t, stdout, sub)
	}
}

func TestRunCmdHelp_AllFlagsPresent(t *testing.T) {
	stdout, _, code := executeCommand(t, "run", "--help")
	require.Equal(t, ExitOK, code)

	root := newRootCmd()
	runCmd, _, err := root.Find([]string{"run"})
	require.NoError(t, err)
	runCmd.Flags().VisitAll(func(f *pflag.Flag) {
		assert.Contains(t, stdout, "--"+f.Name)
	})
	assert.Contains(t, stdout, "--verbose", "inherited persistent flags are listed")
}

func TestRootCmdVersion(t *testing.T) {
	stdout, _, code := executeCommand(t, "--version")
	assert.Equal(t, ExitOK, code)
	assert.Equal(t, fmt.Sprintf("honestroles version %s (commit: %s, built: %s)\n", version, commit, date), stdout)
}

func TestRunCmd_Success(t *testing.T) {
	pipelinePath, manifestPath := writeProject(t, noteManifest)
	stdout, stderr, code := executeCommand(t, "run", "--pipeline", pipelinePath, "--plugins", manifestPath, "--output-format", "json")
	require.Equal(t, ExitOK, code, stderr)

	var d pipeline.Diagnostics
	require.NoError(t, json.Unmarshal([]byte(stdout), &d))
	assert.Equal(t, 2, d.FinalRows)
	assert.Equal(t, 1, d.PluginCounts["label"])
}

func TestRunCmd_ExitCodes(t *testing.T) {
	pipelinePath, manifestPath := writeProject(t, noteManifest)
	_, badManifest := writeProject(t, `
plugins:
  - name: ghost
    kind: label
    callable: contrib:nope
`)
	_, failing := writeProject(t, `
plugins:
  - name: clobber
    kind: label
    callable: contrib:label_note
    settings:
      column: title
`)

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"missing pipeline flag", []string{"run"}, ExitConfig},
		{"unknown flag", []string{"run", "--bogus"}, ExitConfig},
		{"bad output format", []string{"run", "--pipeline", pipelinePath, "--output-format", "xml"}, ExitConfig},
		{"missing pipeline file", []string{"run", "--pipeline", filepath.Join(t.TempDir(), "none.yaml")}, ExitConfig},
		{"unresolvable plugin", []string{"run", "--pipeline", pipelinePath, "--plugins", badManifest}, ExitPluginLoad},
		{"plugin failure", []string{"run", "--pipeline", pipelinePath, "--plugins", failing}, ExitPluginExecution},
		{"plugin failure without fail-fast", []string{"run", "--pipeline", pipelinePath, "--plugins", failing, "--no-fail-fast"}, ExitOK},
		{"validate ok", []string{"plugins", "validate", "--plugins", manifestPath}, ExitOK},
		{"validate missing manifest flag", []string{"plugins", "validate"}, ExitConfig},
		{"validate bad manifest", []string{"plugins", "validate", "--plugins", badManifest}, ExitPluginLoad},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, code := executeCommand(t, tc.args...)
			assert.Equal(t, tc.want, code, stderr)
			if tc.want != ExitOK {
				assert.Contains(t, stderr, "Error:")
			}
		})
	}
}

func TestPluginsList(t *testing.T) {
	_, manifestPath := writeProject(t, noteManifest)
	stdout, stderr, code := executeCommand(t, "plugins", "list", "--plugins", manifestPath)
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, "KIND")
	assert.Contains(t, stdout, "contrib:label_note")
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitUnexpected},
		{"sink", fmt.Errorf("%w: disk full", sink.ErrSinkWrite), ExitUnexpected},
		{"config validation", fmt.Errorf("%w: bad", libconfig.ErrConfigValidation), ExitConfig},
		{"config read", fmt.Errorf("%w: gone", libconfig.ErrConfigRead), ExitConfig},
		{"initialization", &pipeline.InitializationError{ConfigPath: "p.yaml", Err: errors.New("panic")}, ExitConfig},
		{"input read", fmt.Errorf("%w: missing", ingest.ErrInputRead), ExitConfig},
		{"input preparation", fmt.Errorf("%w: no input table", ingest.ErrInputPrepare), ExitConfig},
		{"binary input", fmt.Errorf("%w: nul bytes", ingest.ErrBinaryInput), ExitConfig},
		{"plugin load", &plugin.LoadError{Plugin: "x", Ref: "a:b", Err: plugin.ErrUnresolvedRef}, ExitPluginLoad},
		{"plugin validation", &plugin.ValidationError{Plugin: "x", Part: plugin.PartArity}, ExitPluginLoad},
		{"plugin execution", &pipeline.PluginExecutionError{Stage: "label", Plugin: "x", Err: errors.New("bad")}, ExitPluginExecution},
		{"stage execution", &pipeline.StageExecutionError{Stage: "clean", Err: errors.New("bad")}, ExitStageExecution},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCode(tc.err))
		})
	}
}
