// Package weakness classifies performance deficiencies with threshold rules
// and ranks them by urgency, severity and impact.
package weakness

import (
	"slices"
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
)

// Type identifies a kind of weakness.
type Type string

const (
	TypeAccuracy         Type = "accuracy"
	TypeConsistency      Type = "consistency"
	TypeSpeed            Type = "speed"
	TypeRetention        Type = "retention"
	TypeDeclining        Type = "declining_performance"
	TypeStudySchedule    Type = "study_schedule"
	TypeFocusQuality     Type = "focus_quality"
	TypeSubjectImbalance Type = "subject_imbalance"
)

// Severity grades how far a metric is from its threshold.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

// Score is the severity's contribution to the overall weakness score.
func (s Severity) Score() float64 {
	return float64(s.Rank()) * 25
}

// Urgency says how soon a weakness should be addressed.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencyHigh      Urgency = "high"
	UrgencyMedium    Urgency = "medium"
	UrgencyLow       Urgency = "low"
)

// Rank orders urgencies, immediate highest.
func (u Urgency) Rank() int {
	switch u {
	case UrgencyImmediate:
		return 4
	case UrgencyHigh:
		return 3
	case UrgencyMedium:
		return 2
	case UrgencyLow:
		return 1
	}
	return 0
}

// Impact estimates how much fixing a weakness moves overall performance.
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Weight is the impact multiplier in the overall weakness score.
func (i Impact) Weight() float64 {
	switch i {
	case ImpactHigh:
		return 3
	case ImpactMedium:
		return 2
	case ImpactLow:
		return 1
	}
	return 0
}

// Category separates threshold findings from advisory ones.
type Category string

const (
	CategoryPrimary   Category = "primary"
	CategorySecondary Category = "secondary"
)

// Weakness is one rule-triggered finding.
type Weakness struct {
	Type        Type     `json:"type"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Urgency     Urgency  `json:"urgency"`
	Impact      Impact   `json:"impact"`
	Title       string   `json:"title"`
	Description string   `json:"description"`

	CurrentValue float64 `json:"current_value"`
	TargetValue  float64 `json:"target_value"`

	// Distance is the signed percentage distance past the threshold.
	Distance float64 `json:"distance"`

	AffectedAreas []string `json:"affected_areas,omitempty"`
	RootCauses    []string `json:"root_causes,omitempty"`
}

// Thresholds configure the rule triggers.
type Thresholds struct {
	Accuracy         float64 `json:"accuracy" mapstructure:"accuracy"`
	Consistency      float64 `json:"consistency" mapstructure:"consistency"`
	ResponseTime     float64 `json:"response_time" mapstructure:"response_time"` // seconds per question
	RetentionRate    float64 `json:"retention_rate" mapstructure:"retention_rate"`
	ImprovementRate  float64 `json:"improvement_rate" mapstructure:"improvement_rate"`
	StudyConsistency float64 `json:"study_consistency" mapstructure:"study_consistency"`
	FocusQuality     float64 `json:"focus_quality" mapstructure:"focus_quality"`
}

// DefaultThresholds returns the standard rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Accuracy:         70,
		Consistency:      60,
		ResponseTime:     120,
		RetentionRate:    65,
		ImprovementRate:  -5,
		StudyConsistency: 50,
		FocusQuality:     75,
	}
}

// Config configures a Detector.
type Config struct {
	Thresholds     Thresholds
	MinSessions    int
	MinAssessments int
	MaxActionPlans int
}

// DefaultConfig returns the standard detector configuration.
func DefaultConfig() Config {
	return Config{
		Thresholds:     DefaultThresholds(),
		MinSessions:    5,
		MinAssessments: 3,
		MaxActionPlans: 5,
	}
}

// Flags select optional parts of an analysis.
type Flags struct {
	Secondary   bool `json:"secondary"`
	Detailed    bool `json:"detailed"`
	ActionPlans bool `json:"action_plans"`
}

// AllFlags enables every optional part.
func AllFlags() Flags {
	return Flags{Secondary: true, Detailed: true, ActionPlans: true}
}

// ActionPlan is the remediation plan attached to a top-ranked weakness.
type ActionPlan struct {
	Weakness  Type     `json:"weakness"`
	Severity  Severity `json:"severity"`
	Immediate []string `json:"immediate"`
	ShortTerm []string `json:"short_term"`
	LongTerm  []string `json:"long_term"`
	Resources []string `json:"resources"`
	Timeline  string   `json:"timeline"`
}

// Report is the result of a weakness analysis.
type Report struct {
	Timeframe analyzer.Timeframe `json:"timeframe"`
	Subject   string             `json:"subject,omitempty"`

	HasInsufficientData bool     `json:"has_insufficient_data"`
	Unmet               []string `json:"unmet,omitempty"`

	Weaknesses   []Weakness   `json:"weaknesses"`
	OverallScore float64      `json:"overall_score"`
	ActionPlans  []ActionPlan `json:"action_plans,omitempty"`

	Breakdown      *Breakdown `json:"breakdown,omitempty"`
	Partial        bool       `json:"partial"`
	FailedSections []string   `json:"failed_sections,omitempty"`

	Metrics     analyzer.MetricsSnapshot `json:"metrics"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Clone returns a deep copy of r.
func (r Report) Clone() Report {
	out := r
	out.Unmet = slices.Clone(r.Unmet)
	out.FailedSections = slices.Clone(r.FailedSections)
	if r.Weaknesses != nil {
		out.Weaknesses = make([]Weakness, len(r.Weaknesses))
		for i, w := range r.Weaknesses {
			w.AffectedAreas = slices.Clone(w.AffectedAreas)
			w.RootCauses = slices.Clone(w.RootCauses)
			out.Weaknesses[i] = w
		}
	}
	if r.ActionPlans != nil {
		out.ActionPlans = make([]ActionPlan, len(r.ActionPlans))
		for i, p := range r.ActionPlans {
			p.Immediate = slices.Clone(p.Immediate)
			p.ShortTerm = slices.Clone(p.ShortTerm)
			p.LongTerm = slices.Clone(p.LongTerm)
			p.Resources = slices.Clone(p.Resources)
			out.ActionPlans[i] = p
		}
	}
	out.Breakdown = r.Breakdown.Clone()
	return out
}

// Find returns the weakness of type t, if present.
func (r Report) Find(t Type) (Weakness, bool) {
	for _, w := range r.Weaknesses {
		if w.Type == t {
			return w, true
		}
	}
	return Weakness{}, false
}

// CountBySeverity tallies weaknesses per severity.
func (r Report) CountBySeverity() map[Severity]int {
	out := make(map[Severity]int)
	for _, w := range r.Weaknesses {
		out[w.Severity]++
	}
	return out
}
