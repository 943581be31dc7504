package records

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// finite replaces NaN, infinities and negative values with zero.
func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// percent clamps a finite value to [0, 100].
func percent(v float64) float64 {
	v = finite(v)
	if v > 100 {
		return 100
	}
	return v
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}

// NormalizeSession treats missing or invalid numeric fields as zero so
// aggregates stay total. Missing ids and timestamps are filled in.
func NormalizeSession(rec SessionRecord, now time.Time) SessionRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Subject = strings.TrimSpace(rec.Subject)
	rec.Duration = finite(rec.Duration)
	rec.FocusQuality = percent(rec.FocusQuality)
	rec.CompletionRate = percent(rec.CompletionRate)

	p := &rec.Performance
	p.Attempted = nonNegative(p.Attempted)
	p.Correct = min(nonNegative(p.Correct), p.Attempted)
	p.AvgResponseTime = finite(p.AvgResponseTime)
	if p.Attempted > 0 {
		p.Accuracy = float64(p.Correct) / float64(p.Attempted) * 100
	} else {
		p.Accuracy = percent(p.Accuracy)
	}
	return rec
}

// NormalizeAssessment applies the same recovery rules to assessments.
// Correct answers never exceed total questions and unknown difficulties
// are read as medium.
func NormalizeAssessment(rec AssessmentRecord, now time.Time) AssessmentRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Subject = strings.TrimSpace(rec.Subject)
	rec.TotalQuestions = nonNegative(rec.TotalQuestions)
	rec.CorrectAnswers = min(nonNegative(rec.CorrectAnswers), rec.TotalQuestions)
	rec.TimeSpent = finite(rec.TimeSpent)
	rec.Score = finite(rec.Score)
	rec.MaxScore = finite(rec.MaxScore)
	if rec.TotalQuestions > 0 {
		rec.Accuracy = float64(rec.CorrectAnswers) / float64(rec.TotalQuestions) * 100
	} else {
		rec.Accuracy = percent(rec.Accuracy)
	}

	switch Difficulty(strings.ToLower(string(rec.Difficulty))) {
	case DifficultyEasy:
		rec.Difficulty = DifficultyEasy
	case DifficultyHard:
		rec.Difficulty = DifficultyHard
	default:
		rec.Difficulty = DifficultyMedium
	}
	return rec
}

// NormalizeReview clamps quality to the SM-2 range.
func NormalizeReview(rec ReviewRecord, now time.Time) ReviewRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = now
	}
	rec.Subject = strings.TrimSpace(rec.Subject)
	rec.Quality = min(max(rec.Quality, 0), 5)
	return rec
}

// MatchSubject reports whether a record subject passes a subject filter.
func MatchSubject(recordSubject, filter string) bool {
	if filter == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(recordSubject), strings.TrimSpace(filter))
}

// inRange reports whether t lies in [start, end].
func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && !t.After(end)
}
