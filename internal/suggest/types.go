// Package suggest turns weakness reports, metrics and trends into ranked
// study recommendations and an adaptive learning path.
package suggest

import (
	"fmt"
	"slices"
	"strings"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Priority of a recommendation. Lower values are more urgent.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityMedium   Priority = 3
	PriorityLow      Priority = 4
)

func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "critical":
		*p = PriorityCritical
	case "high":
		*p = PriorityHigh
	case "medium":
		*p = PriorityMedium
	case "low":
		*p = PriorityLow
	default:
		return fmt.Errorf("unknown priority %q", b)
	}
	return nil
}

// PriorityFor maps a weakness severity to a starting priority.
func PriorityFor(s weakness.Severity) Priority {
	switch s {
	case weakness.SeverityCritical:
		return PriorityCritical
	case weakness.SeverityHigh:
		return PriorityHigh
	case weakness.SeverityMedium:
		return PriorityMedium
	}
	return PriorityLow
}

// Difficulty of carrying out a recommendation.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Source tags where a recommendation came from.
type Source string

const (
	SourceRule      Source = "rule"
	SourceGenerated Source = "generated"
)

// Recommendation is one actionable study suggestion.
type Recommendation struct {
	ID             string        `json:"id"`
	Category       string        `json:"category"`
	Priority       Priority      `json:"priority"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Actions        []string      `json:"actions"`
	ExpectedImpact string        `json:"expected_impact"`
	Timeframe      string        `json:"timeframe"`
	Difficulty     Difficulty    `json:"difficulty"`
	Subjects       []string      `json:"subjects,omitempty"`
	Confidence     float64       `json:"confidence"` // 0-1
	Source         Source        `json:"source"`
	Weakness       weakness.Type `json:"weakness,omitempty"`
}

// Clone returns a copy of r that shares no slices with it.
func (r Recommendation) Clone() Recommendation {
	r.Actions = slices.Clone(r.Actions)
	r.Subjects = slices.Clone(r.Subjects)
	return r
}

// CloneRecommendations deep-copies recs, keeping nil and empty distinct.
func CloneRecommendations(recs []Recommendation) []Recommendation {
	if recs == nil {
		return nil
	}
	out := make([]Recommendation, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// AnalysisContext is everything the rules read.
type AnalysisContext struct {
	Report  weakness.Report
	Metrics analyzer.MetricsSnapshot
	Trends  analyzer.TrendReport

	// Subjects known to the caller, used to tag generated recommendations.
	Subjects []string
}

// Rule examines the context and produces zero or more recommendations.
type Rule func(ctx *AnalysisContext) []Recommendation
