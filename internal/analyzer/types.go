// Package analyzer derives aggregate study metrics and time-bucketed trends
// from session, assessment and review records.
package analyzer

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"
)

// ErrInvalidTimeframe is returned for timeframe names outside the known set.
var ErrInvalidTimeframe = errors.New("invalid timeframe")

// Timeframe names a comparison period.
type Timeframe string

const (
	Daily     Timeframe = "daily"
	Weekly    Timeframe = "weekly"
	Monthly   Timeframe = "monthly"
	Quarterly Timeframe = "quarterly"
)

// ParseTimeframe validates a timeframe name. Matching is case-insensitive.
func ParseTimeframe(s string) (Timeframe, error) {
	switch tf := Timeframe(strings.ToLower(strings.TrimSpace(s))); tf {
	case Daily, Weekly, Monthly, Quarterly:
		return tf, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTimeframe, s)
}

// Periods maps each timeframe to its length in days.
type Periods struct {
	Daily     int `json:"daily" mapstructure:"daily"`
	Weekly    int `json:"weekly" mapstructure:"weekly"`
	Monthly   int `json:"monthly" mapstructure:"monthly"`
	Quarterly int `json:"quarterly" mapstructure:"quarterly"`
}

// DefaultPeriods returns the 1/7/30/90 day comparison periods.
func DefaultPeriods() Periods {
	return Periods{Daily: 1, Weekly: 7, Monthly: 30, Quarterly: 90}
}

// Days returns the length of tf in days.
func (p Periods) Days(tf Timeframe) (int, error) {
	var d int
	switch tf {
	case Daily:
		d = p.Daily
	case Weekly:
		d = p.Weekly
	case Monthly:
		d = p.Monthly
	case Quarterly:
		d = p.Quarterly
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeframe, tf)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: %q has no positive length", ErrInvalidTimeframe, tf)
	}
	return d, nil
}

// Weights of the composite score components.
type Weights struct {
	Accuracy    float64 `json:"accuracy" mapstructure:"accuracy"`
	Consistency float64 `json:"consistency" mapstructure:"consistency"`
	Speed       float64 `json:"speed" mapstructure:"speed"`
	Retention   float64 `json:"retention" mapstructure:"retention"`
}

// DefaultWeights returns the 0.4/0.3/0.2/0.1 composite weighting.
func DefaultWeights() Weights {
	return Weights{Accuracy: 0.4, Consistency: 0.3, Speed: 0.2, Retention: 0.1}
}

// RetentionSource reports where a retention rate came from.
type RetentionSource string

const (
	RetentionFromProvider RetentionSource = "provider"
	RetentionFromReviews  RetentionSource = "internal"
	RetentionUnavailable  RetentionSource = "none"
)

// Counts holds the number of records a computation used.
type Counts struct {
	Sessions    int `json:"sessions"`
	Assessments int `json:"assessments"`
	Reviews     int `json:"reviews"`
}

// MetricsSnapshot is the aggregate view of one timeframe and subject filter.
type MetricsSnapshot struct {
	Timeframe Timeframe `json:"timeframe"`
	Subject   string    `json:"subject,omitempty"`
	Days      int       `json:"days"`

	// StudyTime is total study time in hours.
	StudyTime float64 `json:"study_time"`

	// AvgSessionDuration is the mean session length in minutes.
	AvgSessionDuration float64 `json:"avg_session_duration"`

	// StudyConsistency is the share of effective window days with a session (0-100).
	StudyConsistency float64 `json:"study_consistency"`

	FocusQuality    float64 `json:"focus_quality"`
	OverallAccuracy float64 `json:"overall_accuracy"`
	AccuracyTrend   float64 `json:"accuracy_trend"`

	// ResponseSpeed is questions answered per minute.
	ResponseSpeed float64 `json:"response_speed"`
	SpeedTrend    float64 `json:"speed_trend"`

	// AvgTimePerQuestion is seconds per question over timed assessments.
	AvgTimePerQuestion float64 `json:"avg_time_per_question"`

	ImprovementRate  float64         `json:"improvement_rate"`
	ConsistencyScore float64         `json:"consistency_score"`
	RetentionRate    float64         `json:"retention_rate"`
	RetentionSource  RetentionSource `json:"retention_source"`

	CompositeScore float64 `json:"composite_score"`
	Grade          string  `json:"grade"`

	DataPoints Counts    `json:"data_points"`
	ComputedAt time.Time `json:"computed_at"`
}

// CheckFinite returns an error naming the first field that is NaN or infinite.
func (m MetricsSnapshot) CheckFinite() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"study_time", m.StudyTime},
		{"avg_session_duration", m.AvgSessionDuration},
		{"study_consistency", m.StudyConsistency},
		{"focus_quality", m.FocusQuality},
		{"overall_accuracy", m.OverallAccuracy},
		{"accuracy_trend", m.AccuracyTrend},
		{"response_speed", m.ResponseSpeed},
		{"speed_trend", m.SpeedTrend},
		{"avg_time_per_question", m.AvgTimePerQuestion},
		{"improvement_rate", m.ImprovementRate},
		{"consistency_score", m.ConsistencyScore},
		{"retention_rate", m.RetentionRate},
		{"composite_score", m.CompositeScore},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("metric %s is not finite", f.name)
		}
	}
	return nil
}

// Grade maps a composite score to a letter.
func Grade(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}

// DataPoint is the metric set of one trend bucket.
type DataPoint struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Accuracy      float64   `json:"accuracy"`
	StudyTime     float64   `json:"study_time"`
	FocusQuality  float64   `json:"focus_quality"`
	ResponseSpeed float64   `json:"response_speed"`
	Sessions      int       `json:"sessions"`
	Assessments   int       `json:"assessments"`

	// Timed counts assessments with a logged duration.
	Timed int `json:"timed"`
}

// Trends holds the least-squares slope of each metric per bucket.
type Trends struct {
	Accuracy      float64 `json:"accuracy"`
	StudyTime     float64 `json:"study_time"`
	FocusQuality  float64 `json:"focus_quality"`
	ResponseSpeed float64 `json:"response_speed"`
}

// Interpretation is a labelled reading of one trend slope.
type Interpretation struct {
	Metric  string `json:"metric"`
	Signal  string `json:"signal"` // improving, declining, increasing, decreasing
	Message string `json:"message"`
}

// TrendReport is the result of a trend analysis.
type TrendReport struct {
	Period          Timeframe        `json:"period"`
	Subject         string           `json:"subject,omitempty"`
	IntervalDays    int              `json:"interval_days"`
	DataPoints      []DataPoint      `json:"data_points"`
	Trends          Trends           `json:"trends"`
	Interpretations []Interpretation `json:"interpretations"`
	ComputedAt      time.Time        `json:"computed_at"`
}

// Clone returns a copy of r that shares no slices with it.
func (r TrendReport) Clone() TrendReport {
	r.DataPoints = slices.Clone(r.DataPoints)
	r.Interpretations = slices.Clone(r.Interpretations)
	return r
}

// LearningVelocity is the accuracy slope in percentage points per interval.
func (r TrendReport) LearningVelocity() float64 {
	return r.Trends.Accuracy
}

// HasSignal reports whether an interpretation for metric carries signal.
func (r TrendReport) HasSignal(metric, signal string) bool {
	for _, in := range r.Interpretations {
		if in.Metric == metric && in.Signal == signal {
			return true
		}
	}
	return false
}
