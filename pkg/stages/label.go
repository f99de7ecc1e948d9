package stages

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/hypertrial/honestroles-sub000/pkg/config"
	"github.com/hypertrial/honestroles-sub000/pkg/dataset"
)

// Seniority levels written to the seniority column.
const (
	SeniorityIntern = "intern"
	SeniorityJunior = "junior"
	SeniorityMid    = "mid"
	SenioritySenior = "senior"
	SeniorityLead   = "lead"
)

var seniorityRules = []struct {
	level   string
	pattern *regexp.Regexp
}{
	{SeniorityIntern, regexp.MustCompile(`(?i)\b(intern|internship|trainee)\b`)},
	{SeniorityLead, regexp.MustCompile(`(?i)\b(lead|principal|staff|head of|director|architect)\b`)},
	{SenioritySenior, regexp.MustCompile(`(?i)\b(senior|sr\.?)\b`)},
	{SeniorityJunior, regexp.MustCompile(`(?i)\b(junior|jr\.?|entry[- ]level|graduate)\b`)},
}

// DefaultCategories is used when the label config declares none.
var DefaultCategories = map[string][]string{
	"data":        {"data", "analytics", "machine learning", "ml ", "scientist"},
	"design":      {"design", "ux", "ui "},
	"engineering": {"engineer", "developer", "programmer", "sre", "devops"},
	"product":     {"product manager", "product owner"},
	"sales":       {"sales", "account executive", "business development"},
}

// Seniority classifies a job title.
func Seniority(title string) string {
	for _, rule := range seniorityRules {
		if rule.pattern.MatchString(title) {
			return rule.level
		}
	}
	return SeniorityMid
}

// LabelTable adds the seniority and category columns. Categories are tried in
// name order against the title; the first match wins.
func LabelTable(t *dataset.Table, opts config.LabelConfig, _ Env) (*dataset.Table, error) {
	out := t
	var err error
	if opts.Seniority {
		out, err = out.WithValues(ColumnSeniority, dataset.TypeString, func(r dataset.Row) any {
			return Seniority(r.String(dataset.FieldTitle))
		})
		if err != nil {
			return nil, fmt.Errorf("label seniority: %w", err)
		}
	}

	categories := opts.Categories
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	slices.Sort(names)

	out, err = out.WithValues(ColumnCategory, dataset.TypeString, func(r dataset.Row) any {
		title := r.String(dataset.FieldTitle) + " "
		for _, name := range names {
			if containsFold(title, categories[name]) {
				return name
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("label category: %w", err)
	}
	return out, nil
}
