package suggest

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// UserLevel selects a learning path template.
type UserLevel string

const (
	LevelBeginner     UserLevel = "beginner"
	LevelIntermediate UserLevel = "intermediate"
	LevelAdvanced     UserLevel = "advanced"
)

// LevelFor maps a composite score to a user level.
func LevelFor(composite float64) UserLevel {
	switch {
	case composite >= 80:
		return LevelAdvanced
	case composite >= 60:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// PathConfig tunes learning path generation.
type PathConfig struct {
	// ReviewIntervals are day offsets for spaced-repetition reviews.
	ReviewIntervals []int
	MaxDailyTasks   int
	MaxFocusAreas   int
}

// DefaultPathConfig returns 1/3/7/14/30 day reviews, five daily tasks and
// three focus areas.
func DefaultPathConfig() PathConfig {
	return PathConfig{
		ReviewIntervals: []int{1, 3, 7, 14, 30},
		MaxDailyTasks:   5,
		MaxFocusAreas:   3,
	}
}

// Phase is one stage of the plan template.
type Phase struct {
	Name  string `json:"name"`
	Weeks int    `json:"weeks"`
	Goal  string `json:"goal"`
}

// FocusArea is a weakness selected for daily practice.
type FocusArea struct {
	Type     weakness.Type     `json:"type"`
	Severity weakness.Severity `json:"severity"`
	Priority float64           `json:"priority"` // 0-100
	Strategy string            `json:"strategy"`

	// TimeAllocation is hours per day.
	TimeAllocation float64 `json:"time_allocation"`
}

// StudyTask is one step of a study day.
type StudyTask struct {
	Order    int           `json:"order"`
	Activity string        `json:"activity"`
	Focus    weakness.Type `json:"focus,omitempty"`
	Minutes  int           `json:"minutes"`
}

// ReviewSchedule lists the review dates for one weakness.
type ReviewSchedule struct {
	Weakness weakness.Type     `json:"weakness"`
	Severity weakness.Severity `json:"severity"`
	Days     []int             `json:"days"`
	Dates    []time.Time       `json:"dates"`
}

// Milestone is a checkpoint with a target to reach by its deadline.
type Milestone struct {
	Title    string    `json:"title"`
	Week     int       `json:"week"`
	Deadline time.Time `json:"deadline"`
	Target   string    `json:"target"`
}

// AdaptiveFeatures flags which adjustments the plan enables.
type AdaptiveFeatures struct {
	DifficultyAdjustment bool `json:"difficulty_adjustment"`
	SpacedRepetition     bool `json:"spaced_repetition"`
	PaceAdjustment       bool `json:"pace_adjustment"`
	WeaknessTargeting    bool `json:"weakness_targeting"`
}

// LearningPath is a multi-week adaptive study plan.
type LearningPath struct {
	UserLevel        UserLevel        `json:"user_level"`
	DurationWeeks    int              `json:"duration_weeks"`
	DailyHours       float64          `json:"daily_hours"`
	Phases           []Phase          `json:"phases"`
	FocusAreas       []FocusArea      `json:"focus_areas"`
	StudySequence    []StudyTask      `json:"study_sequence"`
	ReviewSchedule   []ReviewSchedule `json:"review_schedule"`
	Milestones       []Milestone      `json:"milestones"`
	AdaptiveFeatures AdaptiveFeatures `json:"adaptive_features"`
	LearningVelocity float64          `json:"learning_velocity"`
	GeneratedAt      time.Time        `json:"generated_at"`
}

// Clone returns a deep copy of p.
func (p LearningPath) Clone() LearningPath {
	out := p
	out.Phases = slices.Clone(p.Phases)
	out.FocusAreas = slices.Clone(p.FocusAreas)
	out.StudySequence = slices.Clone(p.StudySequence)
	out.Milestones = slices.Clone(p.Milestones)
	if p.ReviewSchedule != nil {
		out.ReviewSchedule = make([]ReviewSchedule, len(p.ReviewSchedule))
		for i, r := range p.ReviewSchedule {
			r.Days = slices.Clone(r.Days)
			r.Dates = slices.Clone(r.Dates)
			out.ReviewSchedule[i] = r
		}
	}
	return out
}

type pathTemplate struct {
	weeks  int
	hours  float64
	phases []Phase
}

var pathTemplates = map[UserLevel]pathTemplate{
	LevelBeginner: {weeks: 8, hours: 2, phases: []Phase{
		{Name: "Foundation", Weeks: 3, Goal: "Cover core concepts in every subject"},
		{Name: "Guided practice", Weeks: 3, Goal: "Untimed practice on weak areas"},
		{Name: "Consolidation", Weeks: 2, Goal: "Mixed revision and first mock tests"},
	}},
	LevelIntermediate: {weeks: 6, hours: 3, phases: []Phase{
		{Name: "Reinforcement", Weeks: 2, Goal: "Close the largest gaps"},
		{Name: "Application", Weeks: 3, Goal: "Timed practice at exam difficulty"},
		{Name: "Review", Weeks: 1, Goal: "Full mock tests and error review"},
	}},
	LevelAdvanced: {weeks: 4, hours: 4, phases: []Phase{
		{Name: "Refinement", Weeks: 1, Goal: "Polish remaining weak spots"},
		{Name: "Exam simulation", Weeks: 2, Goal: "Full-length timed mocks"},
		{Name: "Final review", Weeks: 1, Goal: "Light revision and rest"},
	}},
}

// cognitiveLoad estimates how demanding it is to fix each weakness (0-1).
var cognitiveLoad = map[weakness.Type]float64{
	weakness.TypeAccuracy:         0.8,
	weakness.TypeDeclining:        0.7,
	weakness.TypeRetention:        0.6,
	weakness.TypeConsistency:      0.5,
	weakness.TypeSpeed:            0.5,
	weakness.TypeFocusQuality:     0.4,
	weakness.TypeStudySchedule:    0.3,
	weakness.TypeSubjectImbalance: 0.3,
}

var strategies = map[weakness.Type]string{
	weakness.TypeAccuracy:         "concept review followed by untimed targeted practice",
	weakness.TypeDeclining:        "consolidate recent topics before adding new ones",
	weakness.TypeRetention:        "daily spaced-repetition with active recall",
	weakness.TypeConsistency:      "mixed-difficulty sets across all topics",
	weakness.TypeSpeed:            "timed drills with per-question limits",
	weakness.TypeFocusQuality:     "short distraction-free blocks",
	weakness.TypeStudySchedule:    "fixed daily study slot",
	weakness.TypeSubjectImbalance: "weekly subject rotation",
}

// FocusPriority combines severity, learning velocity and cognitive load into
// a 0-100 priority. Falling velocity raises the priority.
func FocusPriority(w weakness.Weakness, velocity float64) float64 {
	sev := w.Severity.Score() / 100
	v := math.Max(-1, math.Min(1, velocity/5))
	slowdown := (1 - v) / 2
	return (0.5*sev + 0.3*slowdown + 0.2*cognitiveLoad[w.Type]) * 100
}

// BuildLearningPath derives the adaptive plan from current metrics, the
// weakness report and the learning velocity.
func BuildLearningPath(m analyzer.MetricsSnapshot, report weakness.Report, velocity float64, cfg PathConfig, now time.Time) LearningPath {
	def := DefaultPathConfig()
	if len(cfg.ReviewIntervals) == 0 {
		cfg.ReviewIntervals = def.ReviewIntervals
	}
	if cfg.MaxDailyTasks <= 0 {
		cfg.MaxDailyTasks = def.MaxDailyTasks
	}
	if cfg.MaxFocusAreas <= 0 {
		cfg.MaxFocusAreas = def.MaxFocusAreas
	}

	level := LevelFor(m.CompositeScore)
	tpl := pathTemplates[level]
	path := LearningPath{
		UserLevel:        level,
		DurationWeeks:    tpl.weeks,
		DailyHours:       tpl.hours,
		Phases:           append([]Phase(nil), tpl.phases...),
		LearningVelocity: velocity,
		GeneratedAt:      now,
	}

	path.FocusAreas = focusAreas(report.Weaknesses, velocity, tpl.hours, cfg.MaxFocusAreas)
	path.StudySequence = studySequence(path.FocusAreas, cfg.MaxDailyTasks)
	path.ReviewSchedule = reviewSchedules(report.Weaknesses, cfg.ReviewIntervals, now)
	path.Milestones = milestones(path.FocusAreas, report.Weaknesses, tpl.weeks, now)
	path.AdaptiveFeatures = AdaptiveFeatures{
		DifficultyAdjustment: true,
		SpacedRepetition:     len(path.ReviewSchedule) > 0,
		PaceAdjustment:       velocity < 0,
		WeaknessTargeting:    len(path.FocusAreas) > 0,
	}
	return path
}

func focusAreas(ws []weakness.Weakness, velocity, dailyHours float64, limit int) []FocusArea {
	areas := make([]FocusArea, 0, len(ws))
	for _, w := range ws {
		areas = append(areas, FocusArea{
			Type:     w.Type,
			Severity: w.Severity,
			Priority: FocusPriority(w, velocity),
			Strategy: strategies[w.Type],
		})
	}
	sort.SliceStable(areas, func(i, j int) bool { return areas[i].Priority > areas[j].Priority })
	if len(areas) > limit {
		areas = areas[:limit]
	}

	var total float64
	for _, a := range areas {
		total += a.Priority
	}
	for i := range areas {
		if total > 0 {
			areas[i].TimeAllocation = math.Round(dailyHours*areas[i].Priority/total*100) / 100
		}
	}
	return areas
}

func studySequence(areas []FocusArea, maxTasks int) []StudyTask {
	var tasks []StudyTask
	for _, a := range areas {
		minutes := int(a.TimeAllocation * 60)
		tasks = append(tasks,
			StudyTask{Activity: fmt.Sprintf("Review: %s", a.Strategy), Focus: a.Type, Minutes: minutes / 2},
			StudyTask{Activity: fmt.Sprintf("Targeted practice (%s)", a.Type), Focus: a.Type, Minutes: minutes - minutes/2},
		)
	}
	tasks = append(tasks,
		StudyTask{Activity: "Spaced-repetition reviews", Minutes: 20},
		StudyTask{Activity: "Mixed timed set", Minutes: 30},
	)
	if len(tasks) > maxTasks {
		tasks = tasks[:maxTasks]
	}
	for i := range tasks {
		tasks[i].Order = i + 1
	}
	return tasks
}

// severityStart picks the first review interval index for a severity.
func severityStart(s weakness.Severity) int {
	switch s {
	case weakness.SeverityCritical:
		return 0
	case weakness.SeverityHigh:
		return 1
	case weakness.SeverityMedium:
		return 2
	default:
		return 3
	}
}

func reviewSchedules(ws []weakness.Weakness, intervals []int, now time.Time) []ReviewSchedule {
	out := make([]ReviewSchedule, 0, len(ws))
	for _, w := range ws {
		start := min(severityStart(w.Severity), len(intervals)-1)
		days := append([]int(nil), intervals[start:]...)
		dates := make([]time.Time, len(days))
		for i, d := range days {
			dates[i] = now.AddDate(0, 0, d)
		}
		out = append(out, ReviewSchedule{Weakness: w.Type, Severity: w.Severity, Days: days, Dates: dates})
	}
	return out
}

// milestones places one checkpoint per focus area, earlier for higher rank,
// plus a final readiness milestone.
func milestones(areas []FocusArea, ws []weakness.Weakness, weeks int, now time.Time) []Milestone {
	targets := make(map[weakness.Type]weakness.Weakness, len(ws))
	for _, w := range ws {
		targets[w.Type] = w
	}

	var out []Milestone
	n := len(areas)
	for i, a := range areas {
		week := max(1, int(math.Round(float64(weeks)*float64(i+1)/float64(n+1))))
		w := targets[a.Type]
		out = append(out, Milestone{
			Title:    fmt.Sprintf("Resolve %s weakness", a.Type),
			Week:     week,
			Deadline: now.AddDate(0, 0, week*7),
			Target:   fmt.Sprintf("%s from %.1f to %.1f", a.Type, w.CurrentValue, w.TargetValue),
		})
	}
	out = append(out, Milestone{
		Title:    "Exam readiness",
		Week:     weeks,
		Deadline: now.AddDate(0, 0, weeks*7),
		Target:   "composite score at or above 80 with no critical weaknesses",
	})
	return out
}
