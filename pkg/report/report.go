// Package report renders a run's diagnostics and application plan as text.
package report

import (
	_ "embed"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"text/template"

	"github.com/hypertrial/honestroles-sub000/pkg/pipeline"
	"github.com/hypertrial/honestroles-sub000/pkg/stages"
)

//go:embed default.tmpl
var defaultTemplateContent string

// Data is what templates are executed against.
type Data struct {
	Diagnostics pipeline.Diagnostics
	Plan        []stages.PlanItem
}

// FromResult builds template data from a run result.
func FromResult(res *pipeline.Result) *Data {
	return &Data{Diagnostics: res.Diagnostics, Plan: res.Plan}
}

// Executor renders report data with a template.
type Executor interface {
	// Execute renders data with tmpl, or with the default template when tmpl is nil.
	Execute(w io.Writer, tmpl *template.Template, data *Data) error
}

// TextExecutor implements Executor with text/template.
type TextExecutor struct{}

// NewTextExecutor creates a new TextExecutor.
func NewTextExecutor() *TextExecutor { return &TextExecutor{} }

// Execute runs tmpl, falling back to the default template when tmpl is nil.
func (e *TextExecutor) Execute(w io.Writer, tmpl *template.Template, data *Data) error {
	if tmpl == nil {
		def, err := LoadDefaultTemplate()
		if err != nil {
			return err
		}
		tmpl = def
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("template execution failed for %q: %w", tmpl.Name(), err)
	}
	return nil
}

// stageKeyOrder is the run order of the stage_rows keys.
var stageKeyOrder = append([]string{pipeline.StageInput}, stages.Names()...)

var templateFuncs = template.FuncMap{
	"sortedKeys": func(m map[string]int) []string { return slices.Sorted(maps.Keys(m)) },
	// stageOrder lists the keys of m in run order; unknown keys follow, sorted.
	"stageOrder": func(m map[string]int) []string {
		out := make([]string, 0, len(m))
		for _, k := range stageKeyOrder {
			if _, ok := m[k]; ok {
				out = append(out, k)
			}
		}
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if !slices.Contains(stageKeyOrder, k) {
				out = append(out, k)
			}
		}
		return out
	},
	"total": func(m map[string]int) int {
		n := 0
		for _, v := range m {
			n += v
		}
		return n
	},
	"join":  strings.Join,
	"score": func(f float64) string { return fmt.Sprintf("%.2f", f) },
}

// LoadDefaultTemplate parses the embedded default template.
func LoadDefaultTemplate() (*template.Template, error) {
	if defaultTemplateContent == "" {
		return nil, fmt.Errorf("embedded default template content is empty")
	}
	tmpl, err := template.New("default").Funcs(templateFuncs).Parse(defaultTemplateContent)
	if err != nil {
		return nil, fmt.Errorf("failed to parse default template: %w", err)
	}
	return tmpl, nil
}

// LoadTemplate parses a user-supplied template file. The helper functions of
// the default template are available to it.
func LoadTemplate(path string) (*template.Template, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report template '%s': %w", path, err)
	}
	tmpl, err := template.New(path).Funcs(templateFuncs).Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template '%s': %w", path, err)
	}
	return tmpl, nil
}
