package ingest

import (
	"errors"
	"fmt"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// ErrInputPrepare indicates the input table could not be mapped onto the
// canonical schema.
var ErrInputPrepare = errors.New("input preparation failed")

// Prepared is an input table mapped onto the canonical schema plus the reports
// describing how.
type Prepared struct {
	Table    *dataset.Table
	Adapter  AdapterReport
	Aliasing AliasingReport
}

// Prepare runs the adapter, aliasing and Conform in that order.
func Prepare(t *dataset.Table, cfg config.InputConfig) (Prepared, error) {
	adapted, adapterReport, err := NewAdapter(cfg.Adapter).Apply(t)
	if err != nil {
		return Prepared{}, err
	}
	aliased, aliasReport, err := Alias(adapted, cfg.Aliases, cfg.LegacyAliases)
	if err != nil {
		return Prepared{}, err
	}
	conformed, err := Conform(aliased, &adapterReport)
	if err != nil {
		return Prepared{}, err
	}
	return Prepared{Table: conformed, Adapter: adapterReport, Aliasing: aliasReport}, nil
}

// Conform coerces every canonical column to its canonical type and adds
// all-null columns for canonical fields that are missing. When report is
// non-nil, coercion failures are recorded in it and every materialized field
// is added to its sorted Unresolved list.
func Conform(t *dataset.Table, report *AdapterReport) (*dataset.Table, error) {
	out := t
	co := newCoercer(nil, nil, "")
	for _, f := range dataset.CanonicalFields() {
		c, ok := out.Column(f.Name)
		if !ok {
			nc, err := dataset.NullColumn(f.Name, f.Type, out.NumRows())
			if err != nil {
				return nil, err
			}
			if out, err = out.WithColumn(nc); err != nil {
				return nil, err
			}
			if report != nil {
				report.Unresolved = append(report.Unresolved, f.Name)
			}
			continue
		}
		if f.Type.Accepts(c.Type()) {
			continue
		}
		vals := c.Values()
		for i, v := range vals {
			coerced, err := co.coerce(v, f.Type)
			if err != nil {
				if report != nil {
					report.recordCoercionError(f.Name, f.Name, i, v, err)
				}
				coerced = nil
			}
			vals[i] = coerced
		}
		nc, err := dataset.NewColumn(f.Name, f.Type, vals)
		if err != nil {
			return nil, fmt.Errorf("conform %s: %w", f.Name, err)
		}
		if out, err = out.WithColumn(nc); err != nil {
			return nil, err
		}
	}
	if report != nil {
		slices.Sort(report.Unresolved)
		report.Unresolved = slices.Compact(report.Unresolved)
	}
	return out, nil
}
