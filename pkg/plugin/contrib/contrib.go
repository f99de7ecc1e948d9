// Package contrib holds the plugins compiled into the honestroles binary.
// Manifests reference them as "contrib:<name>".
package contrib

import (
	"fmt"
	"strings"

	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
	"github.com/hypertrial/honestroles-sub000/pkg/plugin"
)

// Module is the module part of every reference served by DefaultCatalog.
const Module = "contrib"

// DefaultCatalog returns a new catalog holding the compiled-in plugins.
func DefaultCatalog() *plugin.Catalog {
	c := plugin.NewCatalog()
	c.MustRegister(Module+":label_note", LabelNote)
	c.MustRegister(Module+":keyword_filter", KeywordFilter)
	c.MustRegister(Module+":quality_boost", QualityBoost)
	return c
}

// LabelNote adds a constant string column.
//
// Settings: column (default "note"), text (default the plugin name).
func LabelNote(t *dataset.Table, ctx plugin.LabelContext) (*dataset.Table, error) {
	column := ctx.Settings.String("column", "note")
	if _, canonical := dataset.CanonicalField(column); canonical {
		return nil, fmt.Errorf("label_note: refusing to overwrite canonical field '%s'", column)
	}
	text := ctx.Settings.String("text", ctx.PluginName)
	return t.WithValues(column, dataset.TypeString, func(dataset.Row) any { return text })
}

// KeywordFilter drops rows whose title or description mentions any of the
// configured keywords, case-insensitively.
//
// Settings: keywords (list of strings), fields (default ["title", "description"]).
func KeywordFilter(t *dataset.Table, ctx plugin.FilterContext) *dataset.Table {
	keywords := ctx.Settings.StringList("keywords")
	if len(keywords) == 0 {
		return t
	}
	for i, k := range keywords {
		keywords[i] = strings.ToLower(k)
	}
	fields := ctx.Settings.StringList("fields")
	if len(fields) == 0 {
		fields = []string{dataset.FieldTitle, dataset.FieldDescription}
	}
	return t.Filter(func(r dataset.Row) bool {
		for _, f := range fields {
			text := strings.ToLower(r.String(f))
			for _, k := range keywords {
				if k != "" && strings.Contains(text, k) {
					return false
				}
			}
		}
		return true
	})
}

// QualityBoost raises quality_score by a fixed amount for rows that disclose a
// salary, capped at 1.
//
// Settings: boost (default 0.1).
func QualityBoost(t *dataset.Table, ctx plugin.RateContext) (*dataset.Table, error) {
	if !t.HasColumn("quality_score") {
		return t, nil
	}
	boost := ctx.Settings.Float("boost", 0.1)
	return t.WithValues("quality_score", dataset.TypeFloat, func(r dataset.Row) any {
		score, ok := r.Float("quality_score")
		if !ok {
			return nil
		}
		_, hasMin := r.Float(dataset.FieldSalaryMin)
		_, hasMax := r.Float(dataset.FieldSalaryMax)
		if hasMin || hasMax {
			score = min(1, score+boost)
		}
		return score
	})
}
