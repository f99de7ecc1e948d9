package ingest

import (
	"fmt"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// MaxCoercionSamples caps the coercion-error samples kept in an AdapterReport.
const MaxCoercionSamples = 20

// CoercionSample records one value that could not be coerced.
type CoercionSample struct {
	Field  string `json:"field"`
	Row    int    `json:"row"`
	Source string `json:"source"`
	Value  string `json:"value"`
	Error  string `json:"error"`
}

// AdapterReport describes what the input adapter did.
type AdapterReport struct {
	Enabled              bool              `json:"enabled"`
	Applied              map[string]string `json:"applied"`
	Conflicts            map[string]int    `json:"conflicts"`
	CoercionErrors       map[string]int    `json:"coercion_errors"`
	CoercionErrorSamples []CoercionSample  `json:"coercion_error_samples"`
	Unresolved           []string          `json:"unresolved"`
}

func newAdapterReport(enabled bool) AdapterReport {
	return AdapterReport{
		Enabled:              enabled,
		Applied:              map[string]string{},
		Conflicts:            map[string]int{},
		CoercionErrors:       map[string]int{},
		CoercionErrorSamples: []CoercionSample{},
		Unresolved:           []string{},
	}
}

func (r *AdapterReport) recordCoercionError(field, source string, row int, value any, err error) {
	r.CoercionErrors[field]++
	if len(r.CoercionErrorSamples) < MaxCoercionSamples {
		r.CoercionErrorSamples = append(r.CoercionErrorSamples, CoercionSample{
			Field: field, Row: row, Source: source, Value: fmt.Sprint(value), Error: err.Error(),
		})
	}
}

// Adapter maps configured source columns onto canonical fields.
type Adapter struct {
	fields map[string]config.AdapterField
}

// NewAdapter returns an adapter for cfg. A disabled config yields an adapter
// that only reports itself as disabled.
func NewAdapter(cfg config.AdapterConfig) *Adapter {
	if !cfg.Enabled {
		return &Adapter{}
	}
	return &Adapter{fields: cfg.Fields}
}

// Apply builds each configured canonical column by coalescing its candidate
// source columns in order. A row where two present candidates hold different
// non-null values counts as a conflict; the earlier candidate wins. Values that
// fail coercion become null and are counted.
func (a *Adapter) Apply(t *dataset.Table) (*dataset.Table, AdapterReport, error) {
	report := newAdapterReport(a.fields != nil)
	canonicals := make([]string, 0, len(a.fields))
	for name := range a.fields {
		canonicals = append(canonicals, name)
	}
	slices.Sort(canonicals)

	out := t
	for _, canonical := range canonicals {
		spec := a.fields[canonical]
		var present []*dataset.Column
		for _, src := range spec.From {
			if c, ok := t.Column(src); ok {
				present = append(present, c)
			}
		}
		if len(present) == 0 {
			report.Unresolved = append(report.Unresolved, canonical)
			continue
		}
		report.Applied[canonical] = present[0].Name()

		typ := dataset.LogicalType(spec.Type)
		if typ == "" {
			f, _ := dataset.CanonicalField(canonical)
			typ = f.Type
		}
		co := newCoercer(spec.TrueValues, spec.FalseValues, spec.Separator)

		vals := make([]any, t.NumRows())
		for i := range vals {
			var chosen any
			source := ""
			for _, c := range present {
				v := c.Value(i)
				if v == nil {
					continue
				}
				if chosen == nil {
					chosen, source = v, c.Name()
					continue
				}
				if fmt.Sprint(v) != fmt.Sprint(chosen) {
					report.Conflicts[canonical]++
					break
				}
			}
			coerced, err := co.coerce(chosen, typ)
			if err != nil {
				report.recordCoercionError(canonical, source, i, chosen, err)
				coerced = nil
			}
			vals[i] = coerced
		}
		col, err := dataset.NewColumn(canonical, typ, vals)
		if err != nil {
			return nil, report, fmt.Errorf("adapter field %s: %w", canonical, err)
		}
		if out, err = out.WithColumn(col); err != nil {
			return nil, report, fmt.Errorf("adapter field %s: %w", canonical, err)
		}
	}
	return out, report, nil
}
