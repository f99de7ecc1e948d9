// Package stages implements the five built-in pipeline transforms. Every
// transform takes a table and returns a new one; none of them mutates its input.
package stages

import (
	"math"
	"math/rand"
	"regexp"
	"strings"
)

// Stage names, in execution order.
const (
	Clean  = "clean"
	Filter = "filter"
	Label  = "label"
	Rate   = "rate"
	Match  = "match"
)

// Names returns the stage names in execution order.
func Names() []string { return []string{Clean, Filter, Label, Rate, Match} }

// Derived column names added by the built-in stages.
const (
	ColumnSeniority    = "seniority"
	ColumnCategory     = "category"
	ColumnQualityScore = "quality_score"
	ColumnFitScore     = "fit_score"
	ColumnFitRank      = "fit_rank"
)

// Env carries per-run collaborators shared by the stages of one run.
type Env struct {
	// Rand is seeded from the run's random seed. It must not be shared between runs.
	Rand *rand.Rand
	// Normalizer holds the text heuristics used by the clean stage.
	Normalizer Normalizer
}

// NewEnv returns an Env with a generator seeded with seed and the default heuristics.
func NewEnv(seed int64) Env {
	return Env{Rand: rand.New(rand.NewSource(seed)), Normalizer: HeuristicNormalizer{}}
}

func (e Env) normalizer() Normalizer {
	if e.Normalizer == nil {
		return HeuristicNormalizer{}
	}
	return e.Normalizer
}

// Normalizer is the text-normalization collaborator of the clean stage.
type Normalizer interface {
	// NormalizeText collapses whitespace; an empty result means null.
	NormalizeText(s string) string
	// NormalizeSkill canonicalizes one skill tag; an empty result drops it.
	NormalizeSkill(s string) string
	// InferRemote guesses whether a listing is remote from its free text.
	// ok is false when nothing conclusive was found.
	InferRemote(location, title, description string) (remote bool, ok bool)
}

// HeuristicNormalizer is the default keyword-based Normalizer.
type HeuristicNormalizer struct{}

var (
	remotePattern = regexp.MustCompile(`(?i)\b(remote|work from home|wfh|distributed|anywhere)\b`)
	onsitePattern = regexp.MustCompile(`(?i)\b(on-?site|in[- ]office|hybrid)\b`)
	skillAliases  = map[string]string{
		"golang":     "go",
		"js":         "javascript",
		"ts":         "typescript",
		"postgres":   "postgresql",
		"k8s":        "kubernetes",
		"py":         "python",
		"react.js":   "react",
		"node":       "node.js",
		"nodejs":     "node.js",
		"amazon aws": "aws",
	}
)

// NormalizeText trims and collapses internal whitespace.
func (HeuristicNormalizer) NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeSkill lowercases, trims and resolves common aliases.
func (HeuristicNormalizer) NormalizeSkill(s string) string {
	skill := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if alias, ok := skillAliases[skill]; ok {
		return alias
	}
	return skill
}

// InferRemote looks at the location first, then title and description.
func (HeuristicNormalizer) InferRemote(location, title, description string) (bool, bool) {
	for _, text := range []string{location, title, description} {
		if remotePattern.MatchString(text) {
			return true, true
		}
		if onsitePattern.MatchString(text) {
			return false, true
		}
	}
	return false, false
}

// round4 rounds to four decimals so scores serialize identically across runs.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

func containsFold(haystack string, needles []string) bool {
	h := strings.ToLower(haystack)
	for _, n := range needles {
		if n = strings.ToLower(strings.TrimSpace(n)); n != "" && strings.Contains(h, n) {
			return true
		}
	}
	return false
}
