package suggest

import (
	"sort"

	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Escalate raises a recommendation to critical when a weakness of the same
// type is high or critical, and shifts its difficulty one step up when
// accuracy is above 80 or down when it is below 50.
func Escalate(recs []Recommendation, report weakness.Report, accuracy float64) []Recommendation {
	severe := make(map[weakness.Type]bool)
	for _, w := range report.Weaknesses {
		if w.Severity == weakness.SeverityHigh || w.Severity == weakness.SeverityCritical {
			severe[w.Type] = true
		}
	}
	for i := range recs {
		r := &recs[i]
		if r.Weakness != "" && severe[r.Weakness] {
			r.Priority = PriorityCritical
		}
		switch {
		case accuracy > 80:
			r.Difficulty = harder(r.Difficulty)
		case accuracy < 50:
			r.Difficulty = easier(r.Difficulty)
		}
	}
	return recs
}

func harder(d Difficulty) Difficulty {
	switch d {
	case DifficultyEasy:
		return DifficultyMedium
	case DifficultyMedium, DifficultyHard:
		return DifficultyHard
	}
	return d
}

func easier(d Difficulty) Difficulty {
	switch d {
	case DifficultyHard:
		return DifficultyMedium
	case DifficultyMedium, DifficultyEasy:
		return DifficultyEasy
	}
	return d
}

// RankRecommendations sorts by priority (most urgent first), then by
// confidence descending, and keeps at most limit entries when limit > 0.
func RankRecommendations(recs []Recommendation, limit int) []Recommendation {
	sorted := make([]Recommendation, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Priority != sorted[j].Priority {
			return sorted[i].Priority < sorted[j].Priority
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
