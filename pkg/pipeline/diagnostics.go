package pipeline

import (
	"bytes"
	"encoding/json"
	"maps"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/ingest"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
)

// RuntimeSnapshot records the run policy a run used.
type RuntimeSnapshot struct {
	FailFast   bool  `json:"fail_fast"`
	RandomSeed int64 `json:"random_seed"`
}

// Diagnostics is the frozen account of one run. Its JSON form has sorted keys
// at every level, so identical runs serialize byte-identically. OutputPath and
// NonFatalErrors are omitted when empty.
type Diagnostics struct {
	FinalRows      int                   `json:"final_rows"`
	InputAdapter   ingest.AdapterReport  `json:"input_adapter"`
	InputAliasing  ingest.AliasingReport `json:"input_aliasing"`
	InputPath      string                `json:"input_path"`
	NonFatalErrors []NonFatalStageError  `json:"non_fatal_errors,omitempty"`
	OutputPath     string                `json:"output_path,omitempty"`
	PluginCounts   map[string]int        `json:"plugin_counts"`
	Runtime        RuntimeSnapshot       `json:"runtime"`
	StageRows      map[string]int        `json:"stage_rows"`
}

// MarshalJSON re-encodes the struct through a generic tree so nested reports
// come out key-sorted too.
func (d Diagnostics) MarshalJSON() ([]byte, error) {
	type plain Diagnostics
	raw, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, err
	}
	return json.Marshal(tree)
}

// JSON returns the indented serialized form.
func (d Diagnostics) JSON() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// StageKeys returns the stage_rows keys in sorted order.
func (d Diagnostics) StageKeys() []string {
	return slices.Sorted(maps.Keys(d.StageRows))
}

// --- Builder ---

// diagnosticsBuilder accumulates one run's diagnostics. It is owned by a
// single run and never shared.
type diagnosticsBuilder struct {
	d Diagnostics
}

func newDiagnosticsBuilder(cfg config.Pipeline, prepared ingest.Prepared) *diagnosticsBuilder {
	counts := make(map[string]int, len(plugin.Kinds()))
	for _, k := range plugin.Kinds() {
		counts[string(k)] = 0
	}
	return &diagnosticsBuilder{d: Diagnostics{
		InputAdapter:  prepared.Adapter,
		InputAliasing: prepared.Aliasing,
		InputPath:     cfg.Input.Path,
		PluginCounts:  counts,
		Runtime:       RuntimeSnapshot{FailFast: cfg.Runtime.FailFast, RandomSeed: cfg.Runtime.RandomSeed},
		StageRows:     map[string]int{},
	}}
}

func (b *diagnosticsBuilder) recordRows(key string, rows int) { b.d.StageRows[key] = rows }

func (b *diagnosticsBuilder) countPlugin(k plugin.Kind) { b.d.PluginCounts[string(k)]++ }

func (b *diagnosticsBuilder) recordNonFatal(e NonFatalStageError) {
	b.d.NonFatalErrors = append(b.d.NonFatalErrors, e)
}

func (b *diagnosticsBuilder) setOutputPath(p string) { b.d.OutputPath = p }

// freeze returns the finished diagnostics. The builder must not be used afterwards.
func (b *diagnosticsBuilder) freeze(finalRows int) Diagnostics {
	b.d.FinalRows = finalRows
	out := b.d
	b.d = Diagnostics{}
	return out
}
