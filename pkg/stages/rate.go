package stages

import (
	"fmt"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// DefaultQualityWeights scores how complete a listing is.
var DefaultQualityWeights = map[string]float64{
	dataset.FieldTitle:       1,
	dataset.FieldCompany:     1,
	dataset.FieldLocation:    0.5,
	dataset.FieldDescription: 1,
	dataset.FieldSalaryMin:   1,
	dataset.FieldSalaryMax:   0.5,
	dataset.FieldSkills:      1,
	dataset.FieldApplyURL:    1,
	dataset.FieldPostedAt:    0.5,
}

// RateTable adds quality_score in [0,1]: the weighted share of populated fields.
// Rows below min_quality are dropped when it is set.
func RateTable(t *dataset.Table, opts config.RateConfig, _ Env) (*dataset.Table, error) {
	weights := opts.Weights
	if len(weights) == 0 {
		weights = DefaultQualityWeights
	}
	fields := make([]string, 0, len(weights))
	for name := range weights {
		fields = append(fields, name)
	}
	slices.Sort(fields)
	total := 0.0
	for _, name := range fields {
		total += weights[name]
	}
	if total <= 0 {
		return nil, fmt.Errorf("rate: quality weights sum to %v", total)
	}

	out, err := t.WithValues(ColumnQualityScore, dataset.TypeFloat, func(r dataset.Row) any {
		score := 0.0
		for _, name := range fields {
			if populated(r.Value(name)) {
				score += weights[name]
			}
		}
		return round4(score / total)
	})
	if err != nil {
		return nil, fmt.Errorf("rate: %w", err)
	}
	if opts.MinQuality > 0 {
		out = out.Filter(func(r dataset.Row) bool {
			q, _ := r.Float(ColumnQualityScore)
			return q >= opts.MinQuality
		})
	}
	return out, nil
}

func populated(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x != ""
	case []string:
		return len(x) > 0
	}
	return true
}
