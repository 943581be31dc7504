package suggest

import (
	"fmt"

	"github.com/blackwell-systems/examwatch/internal/weakness"
)

type template struct {
	category   string
	title      string
	actions    []string
	impact     string
	timeframe  string
	difficulty Difficulty
	confidence float64
}

var weaknessTemplates = map[weakness.Type]template{
	weakness.TypeAccuracy: {
		category: "accuracy",
		title:    "Rebuild accuracy with targeted practice",
		actions: []string{
			"Review the concepts behind every wrong answer",
			"Do 20 untimed questions a day in the weakest subject",
			"Keep an error log and revisit it weekly",
		},
		impact:     "10-15 point accuracy gain",
		timeframe:  "2 weeks",
		difficulty: DifficultyMedium,
		confidence: 0.9,
	},
	weakness.TypeConsistency: {
		category: "consistency",
		title:    "Stabilize performance across topics",
		actions: []string{
			"Find the topics behind your lowest scores",
			"Mix easy and hard questions in each practice set",
		},
		impact:     "narrower score spread between assessments",
		timeframe:  "3 weeks",
		difficulty: DifficultyMedium,
		confidence: 0.75,
	},
	weakness.TypeSpeed: {
		category: "speed",
		title:    "Improve answering speed",
		actions: []string{
			"Practice with a per-question timer",
			"Drill key formulas and facts for instant recall",
			"Skip and return to questions that stall you",
		},
		impact:     "20-30% less time per question",
		timeframe:  "3 weeks",
		difficulty: DifficultyMedium,
		confidence: 0.8,
	},
	weakness.TypeRetention: {
		category: "retention",
		title:    "Strengthen long-term retention",
		actions: []string{
			"Clear overdue spaced-repetition reviews daily",
			"Switch rereading for active recall",
		},
		impact:     "higher recall of older material",
		timeframe:  "4 weeks",
		difficulty: DifficultyEasy,
		confidence: 0.85,
	},
	weakness.TypeDeclining: {
		category: "trend",
		title:    "Reverse the performance decline",
		actions: []string{
			"Retest on material from your earliest assessments",
			"Cut new material until scores recover",
			"Check sleep and workload for fatigue",
		},
		impact:     "return to earlier accuracy levels",
		timeframe:  "1 week",
		difficulty: DifficultyMedium,
		confidence: 0.85,
	},
	weakness.TypeStudySchedule: {
		category: "schedule",
		title:    "Study on a regular schedule",
		actions: []string{
			"Block a fixed daily study slot",
			"Keep sessions short on busy days rather than skipping",
		},
		impact:     "more study days per week",
		timeframe:  "2 weeks",
		difficulty: DifficultyEasy,
		confidence: 0.7,
	},
	weakness.TypeFocusQuality: {
		category: "focus",
		title:    "Protect your focus during sessions",
		actions: []string{
			"Silence notifications while studying",
			"Work in 25-50 minute blocks with breaks",
		},
		impact:     "higher focus quality ratings",
		timeframe:  "2 weeks",
		difficulty: DifficultyEasy,
		confidence: 0.65,
	},
	weakness.TypeSubjectImbalance: {
		category: "balance",
		title:    "Rebalance time across subjects",
		actions: []string{
			"Start each week with the least studied subject",
			"Rotate subjects on a fixed cycle",
		},
		impact:     "even coverage before the exam",
		timeframe:  "2 weeks",
		difficulty: DifficultyEasy,
		confidence: 0.6,
	},
}

// builtinRules is the default rule set.
var builtinRules = []Rule{
	WeaknessRecommendations,
	DecliningTrend,
	StudyTimeDrop,
	Maintenance,
	CollectMoreData,
}

// WeaknessRecommendations emits one templated recommendation per weakness.
func WeaknessRecommendations(ctx *AnalysisContext) []Recommendation {
	var out []Recommendation
	for _, w := range ctx.Report.Weaknesses {
		tpl, ok := weaknessTemplates[w.Type]
		if !ok {
			continue
		}
		out = append(out, Recommendation{
			Category:       tpl.category,
			Priority:       PriorityFor(w.Severity),
			Title:          tpl.title,
			Description:    fmt.Sprintf("%s Current: %.1f, target: %.1f.", w.Description, w.CurrentValue, w.TargetValue),
			Actions:        append([]string(nil), tpl.actions...),
			ExpectedImpact: tpl.impact,
			Timeframe:      tpl.timeframe,
			Difficulty:     tpl.difficulty,
			Subjects:       w.AffectedAreas,
			Confidence:     tpl.confidence,
			Source:         SourceRule,
			Weakness:       w.Type,
		})
	}
	return out
}

// DecliningTrend reacts to a falling accuracy slope when no decline weakness
// was raised from the first-to-last comparison.
func DecliningTrend(ctx *AnalysisContext) []Recommendation {
	if !ctx.Trends.HasSignal("accuracy", "declining") {
		return nil
	}
	if _, ok := ctx.Report.Find(weakness.TypeDeclining); ok {
		return nil
	}
	return []Recommendation{{
		Category: "trend",
		Priority: PriorityHigh,
		Title:    "Accuracy is trending down",
		Description: fmt.Sprintf("Accuracy is falling by %.1f points per interval. "+
			"Slow down on new topics and consolidate recent ones.", -ctx.Trends.Trends.Accuracy),
		Actions: []string{
			"Redo the last two practice sets",
			"Add a revision session before each new topic",
		},
		ExpectedImpact: "stop the decline within a week",
		Timeframe:      "1 week",
		Difficulty:     DifficultyMedium,
		Confidence:     0.7,
		Source:         SourceRule,
	}}
}

// StudyTimeDrop flags shrinking study time.
func StudyTimeDrop(ctx *AnalysisContext) []Recommendation {
	if !ctx.Trends.HasSignal("study_time", "decreasing") {
		return nil
	}
	return []Recommendation{{
		Category:       "schedule",
		Priority:       PriorityMedium,
		Title:          "Study time is shrinking",
		Description:    "Your study hours per interval are dropping. Restore your planned daily hours.",
		Actions:        []string{"Schedule tomorrow's sessions tonight", "Set a minimum daily study target"},
		ExpectedImpact: "steady weekly study volume",
		Timeframe:      "1 week",
		Difficulty:     DifficultyEasy,
		Confidence:     0.6,
		Source:         SourceRule,
	}}
}

// Maintenance encourages keeping the routine when nothing is wrong.
func Maintenance(ctx *AnalysisContext) []Recommendation {
	if ctx.Report.HasInsufficientData || len(ctx.Report.Weaknesses) > 0 {
		return nil
	}
	return []Recommendation{{
		Category:       "maintenance",
		Priority:       PriorityLow,
		Title:          "Keep your current routine",
		Description:    fmt.Sprintf("No weaknesses detected (grade %s). Raise difficulty gradually to keep improving.", ctx.Metrics.Grade),
		Actions:        []string{"Add one harder practice set per week", "Take a full mock test every two weeks"},
		ExpectedImpact: "sustained performance",
		Timeframe:      "ongoing",
		Difficulty:     DifficultyMedium,
		Confidence:     0.6,
		Source:         SourceRule,
	}}
}

// CollectMoreData asks for more records when the analysis was gated.
func CollectMoreData(ctx *AnalysisContext) []Recommendation {
	if !ctx.Report.HasInsufficientData {
		return nil
	}
	return []Recommendation{{
		Category:       "data",
		Priority:       PriorityMedium,
		Title:          "Log more study activity",
		Description:    "Not enough data for a weakness analysis yet.",
		Actions:        append([]string(nil), ctx.Report.Unmet...),
		ExpectedImpact: "personalized analysis",
		Timeframe:      "1 week",
		Difficulty:     DifficultyEasy,
		Confidence:     0.95,
		Source:         SourceRule,
	}}
}
