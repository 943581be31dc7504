package weakness

import "strings"

type planTemplate struct {
	immediate []string
	shortTerm []string
	longTerm  []string
	resources []string
}

var planTemplates = map[Type]planTemplate{
	TypeAccuracy: {
		immediate: []string{"Review every incorrect answer from the last three assessments", "Re-derive the core concepts behind repeated mistakes"},
		shortTerm: []string{"Practice 20 targeted questions per day in the weakest areas", "Keep an error log grouped by concept"},
		longTerm:  []string{"Take a full-length mock test every week", "Hold accuracy above target for three consecutive weeks"},
		resources: []string{"Topic-wise question banks", "Solution walkthroughs for past papers"},
	},
	TypeConsistency: {
		immediate: []string{"Identify topics where scores swing the most"},
		shortTerm: []string{"Alternate easy and hard sets in each session", "Revise weak topics before moving to new ones"},
		longTerm:  []string{"Track weekly score variance and aim to halve it"},
		resources: []string{"Mixed-difficulty practice sets"},
	},
	TypeSpeed: {
		immediate: []string{"Time every practice set from today"},
		shortTerm: []string{"Drill formula and fact recall with flashcards", "Use per-question time limits in practice"},
		longTerm:  []string{"Reach the target pace on full-length timed tests"},
		resources: []string{"Timed sectional tests", "Formula sheets"},
	},
	TypeRetention: {
		immediate: []string{"Clear all overdue spaced-repetition reviews"},
		shortTerm: []string{"Use active recall instead of rereading", "Add cards for every new concept learned"},
		longTerm:  []string{"Schedule cumulative revision of completed chapters"},
		resources: []string{"Spaced-repetition deck", "Chapter summary notes"},
	},
	TypeDeclining: {
		immediate: []string{"Compare recent mistakes with earlier ones to find what changed", "Check sleep and study load for signs of fatigue"},
		shortTerm: []string{"Reduce new material and consolidate recent topics", "Retest on material from the first assessments"},
		longTerm:  []string{"Rebalance the plan between new learning and revision"},
		resources: []string{"Earlier assessment sets for retesting"},
	},
	TypeStudySchedule: {
		immediate: []string{"Pick a fixed daily study slot"},
		shortTerm: []string{"Study at least a short session every day this week"},
		longTerm:  []string{"Build a streak of study days across the whole month"},
		resources: []string{"Calendar reminders"},
	},
	TypeFocusQuality: {
		immediate: []string{"Remove phone and notification distractions during sessions"},
		shortTerm: []string{"Use 25-50 minute blocks with short breaks"},
		longTerm:  []string{"Move demanding topics to your highest-focus time of day"},
		resources: []string{"Focus timer"},
	},
	TypeSubjectImbalance: {
		immediate: []string{"Schedule the neglected subjects first this week"},
		shortTerm: []string{"Rotate subjects on a fixed weekly cycle"},
		longTerm:  []string{"Keep every subject within a fair share of weekly study time"},
		resources: []string{"Weekly subject planner"},
	},
}

// timelineFor maps severity to an expected remediation window.
func timelineFor(s Severity) string {
	switch s {
	case SeverityCritical:
		return "1-2 weeks"
	case SeverityHigh:
		return "2-3 weeks"
	case SeverityMedium:
		return "3-4 weeks"
	default:
		return "4-6 weeks"
	}
}

// BuildActionPlans creates plans for the first limit ranked weaknesses.
func BuildActionPlans(ranked []Weakness, limit int) []ActionPlan {
	n := max(0, min(limit, len(ranked)))
	plans := make([]ActionPlan, 0, n)
	for _, w := range ranked[:n] {
		tpl := planTemplates[w.Type]
		plan := ActionPlan{
			Weakness:  w.Type,
			Severity:  w.Severity,
			Immediate: append([]string(nil), tpl.immediate...),
			ShortTerm: append([]string(nil), tpl.shortTerm...),
			LongTerm:  append([]string(nil), tpl.longTerm...),
			Resources: append([]string(nil), tpl.resources...),
			Timeline:  timelineFor(w.Severity),
		}
		if len(w.AffectedAreas) > 0 {
			plan.Immediate = append(plan.Immediate, "Start with: "+strings.Join(w.AffectedAreas, ", "))
		}
		plans = append(plans, plan)
	}
	return plans
}
