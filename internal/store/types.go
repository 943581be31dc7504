// Package store provides SQLite persistence for examwatch records and
// analysis snapshots.
package store

import "time"

// sessionRow mirrors the sessions table.
type sessionRow struct {
	Seq             int64   `db:"seq"`
	ID              string  `db:"id"`
	TS              int64   `db:"ts"`
	Duration        float64 `db:"duration"`
	Type            string  `db:"type"`
	Subject         string  `db:"subject"`
	Chapter         string  `db:"chapter"`
	Attempted       int     `db:"attempted"`
	Correct         int     `db:"correct"`
	Accuracy        float64 `db:"accuracy"`
	AvgResponseTime float64 `db:"avg_response_time"`
	FocusQuality    float64 `db:"focus_quality"`
	CompletionRate  float64 `db:"completion_rate"`
}

// assessmentRow mirrors the assessments table.
type assessmentRow struct {
	Seq            int64   `db:"seq"`
	ID             string  `db:"id"`
	TS             int64   `db:"ts"`
	Type           string  `db:"type"`
	Subject        string  `db:"subject"`
	Chapter        string  `db:"chapter"`
	TotalQuestions int     `db:"total_questions"`
	CorrectAnswers int     `db:"correct_answers"`
	Accuracy       float64 `db:"accuracy"`
	TimeSpent      float64 `db:"time_spent"`
	Difficulty     string  `db:"difficulty"`
	Score          float64 `db:"score"`
	MaxScore       float64 `db:"max_score"`
}

// reviewRow mirrors the reviews table.
type reviewRow struct {
	Seq     int64  `db:"seq"`
	ID      string `db:"id"`
	TS      int64  `db:"ts"`
	ItemID  string `db:"item_id"`
	Subject string `db:"subject"`
	Quality int    `db:"quality"`
}

// Snapshot is a persisted point-in-time analysis result.
type Snapshot struct {
	ID                  int64              `json:"id" db:"id"`
	TakenAt             time.Time          `json:"taken_at" db:"-"`
	Timeframe           string             `json:"timeframe" db:"timeframe"`
	Subject             string             `json:"subject,omitempty" db:"subject"`
	CompositeScore      float64            `json:"composite_score" db:"composite_score"`
	Grade               string             `json:"grade" db:"grade"`
	Accuracy            float64            `json:"accuracy" db:"accuracy"`
	ConsistencyScore    float64            `json:"consistency_score" db:"consistency_score"`
	RetentionRate       float64            `json:"retention_rate" db:"retention_rate"`
	WeaknessScore       float64            `json:"weakness_score" db:"weakness_score"`
	RecommendationCount int                `json:"recommendation_count" db:"recommendation_count"`
	InsufficientData    bool               `json:"insufficient_data" db:"insufficient_data"`
	Weaknesses          []SnapshotWeakness `json:"weaknesses,omitempty" db:"-"`
}

// SnapshotWeakness is one detected weakness stored with a snapshot.
type SnapshotWeakness struct {
	SnapshotID   int64   `json:"-" db:"snapshot_id"`
	Type         string  `json:"type" db:"type"`
	Severity     string  `json:"severity" db:"severity"`
	CurrentValue float64 `json:"current_value" db:"current_value"`
	TargetValue  float64 `json:"target_value" db:"target_value"`
}

// SnapshotDiff represents the comparison between two snapshots.
type SnapshotDiff struct {
	Previous   *Snapshot     `json:"previous"`
	Current    *Snapshot     `json:"current"`
	Deltas     []MetricDelta `json:"deltas"`
	Introduced []string      `json:"introduced,omitempty"`
	Resolved   []string      `json:"resolved,omitempty"`
}

// MetricDelta represents the change in a single metric between snapshots.
type MetricDelta struct {
	Name      string  `json:"name"`
	Previous  float64 `json:"previous"`
	Current   float64 `json:"current"`
	Delta     float64 `json:"delta"`
	Direction string  `json:"direction"` // "improved", "regressed", "unchanged"
}
