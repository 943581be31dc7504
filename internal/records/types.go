// Package records defines the study, assessment and review records the
// analytics engine consumes, and the capped stores that retain them.
package records

import (
	"context"
	"time"
)

// Retention caps. The most recently appended records are kept; eviction
// follows insertion order, not timestamps.
const (
	DefaultSessionCap    = 500
	DefaultAssessmentCap = 200
	DefaultReviewCap     = 1000
)

// Difficulty of an assessment.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Performance summarizes the questions answered inside a study session.
type Performance struct {
	Attempted       int     `json:"attempted"`
	Correct         int     `json:"correct"`
	Accuracy        float64 `json:"accuracy"`
	AvgResponseTime float64 `json:"avg_response_time"` // seconds
}

// SessionRecord is a logged unit of study activity.
type SessionRecord struct {
	ID             string      `json:"id"`
	Timestamp      time.Time   `json:"timestamp"`
	Duration       float64     `json:"duration"` // seconds
	Type           string      `json:"type"`
	Subject        string      `json:"subject"`
	Chapter        string      `json:"chapter,omitempty"`
	Performance    Performance `json:"performance"`
	FocusQuality   float64     `json:"focus_quality"`   // 0-100
	CompletionRate float64     `json:"completion_rate"` // 0-100
}

// AssessmentRecord is a logged unit of graded practice.
type AssessmentRecord struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Type           string     `json:"type"`
	Subject        string     `json:"subject"`
	Chapter        string     `json:"chapter,omitempty"`
	TotalQuestions int        `json:"total_questions"`
	CorrectAnswers int        `json:"correct_answers"`
	Accuracy       float64    `json:"accuracy"`
	TimeSpent      float64    `json:"time_spent"` // seconds
	Difficulty     Difficulty `json:"difficulty"`
	Score          float64    `json:"score"`
	MaxScore       float64    `json:"max_score"`
}

// AccuracyPercent returns the record's accuracy in percent, derived from
// the answer counts when questions exist and from the stored field otherwise.
func (a AssessmentRecord) AccuracyPercent() float64 {
	if a.TotalQuestions > 0 {
		return float64(a.CorrectAnswers) / float64(a.TotalQuestions) * 100
	}
	return a.Accuracy
}

// QuestionsPerMinute returns the answering speed, or 0 when no time was logged.
func (a AssessmentRecord) QuestionsPerMinute() float64 {
	if a.TimeSpent <= 0 {
		return 0
	}
	return float64(a.TotalQuestions) / (a.TimeSpent / 60)
}

// ReviewRecord is a single spaced-repetition review on the SM-2 quality scale (0-5).
type ReviewRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ItemID    string    `json:"item_id"`
	Subject   string    `json:"subject,omitempty"`
	Quality   int       `json:"quality"`
}

// Set is the result of a range query.
type Set struct {
	Sessions    []SessionRecord    `json:"sessions"`
	Assessments []AssessmentRecord `json:"assessments"`
	Reviews     []ReviewRecord     `json:"reviews"`
}

// Source is the record persistence collaborator. Implementations enforce
// their retention caps on append.
type Source interface {
	AppendSession(ctx context.Context, rec SessionRecord) error
	AppendAssessment(ctx context.Context, rec AssessmentRecord) error
	AppendReview(ctx context.Context, rec ReviewRecord) error

	// QueryRange returns records with start <= timestamp <= end. An empty
	// subject matches all subjects; otherwise matching is case-insensitive.
	QueryRange(ctx context.Context, start, end time.Time, subject string) (Set, error)
}

// Caps holds per-kind retention limits.
type Caps struct {
	Sessions    int `json:"sessions"`
	Assessments int `json:"assessments"`
	Reviews     int `json:"reviews"`
}

// DefaultCaps returns the standard retention limits.
func DefaultCaps() Caps {
	return Caps{
		Sessions:    DefaultSessionCap,
		Assessments: DefaultAssessmentCap,
		Reviews:     DefaultReviewCap,
	}
}

// Resolve returns c with non-positive caps replaced by the standard limits.
func (c Caps) Resolve() Caps {
	d := DefaultCaps()
	if c.Sessions <= 0 {
		c.Sessions = d.Sessions
	}
	if c.Assessments <= 0 {
		c.Assessments = d.Assessments
	}
	if c.Reviews <= 0 {
		c.Reviews = d.Reviews
	}
	return c
}
