package engine

import (
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Summary is the lightweight result of a background re-analysis, published
// as weaknessAnalysisUpdated.
type Summary struct {
	Timeframe        analyzer.Timeframe `json:"timeframe"`
	CompositeScore   float64            `json:"composite_score"`
	Grade            string             `json:"grade"`
	OverallAccuracy  float64            `json:"overall_accuracy"`
	WeaknessScore    float64            `json:"weakness_score"`
	InsufficientData bool               `json:"insufficient_data"`
	Unmet            []string           `json:"unmet,omitempty"`
	Weaknesses       []SummaryWeakness  `json:"weaknesses"`
	TopActions       []string           `json:"top_actions,omitempty"`
	Partial          bool               `json:"partial"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// SummaryWeakness is the short form of a detected weakness.
type SummaryWeakness struct {
	Type     weakness.Type     `json:"type"`
	Severity weakness.Severity `json:"severity"`
	Title    string            `json:"title"`
}

// topActionCount is how many recommendation titles a summary carries.
const topActionCount = 3

func newSummary(report weakness.Report, recs []suggest.Recommendation) Summary {
	s := Summary{
		Timeframe:        report.Timeframe,
		CompositeScore:   report.Metrics.CompositeScore,
		Grade:            report.Metrics.Grade,
		OverallAccuracy:  report.Metrics.OverallAccuracy,
		WeaknessScore:    report.OverallScore,
		InsufficientData: report.HasInsufficientData,
		Unmet:            report.Unmet,
		Weaknesses:       make([]SummaryWeakness, 0, len(report.Weaknesses)),
		Partial:          report.Partial,
		GeneratedAt:      report.GeneratedAt,
	}
	for _, w := range report.Weaknesses {
		s.Weaknesses = append(s.Weaknesses, SummaryWeakness{Type: w.Type, Severity: w.Severity, Title: w.Title})
	}
	for i := 0; i < len(recs) && i < topActionCount; i++ {
		s.TopActions = append(s.TopActions, recs[i].Title)
	}
	return s
}

// Analysis bundles every result for one timeframe and subject.
type Analysis struct {
	Metrics         analyzer.MetricsSnapshot `json:"metrics"`
	Trends          analyzer.TrendReport     `json:"trends"`
	Report          weakness.Report          `json:"report"`
	Recommendations []suggest.Recommendation `json:"recommendations"`
	LearningPath    suggest.LearningPath     `json:"learning_path"`
}
