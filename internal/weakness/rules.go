package weakness

import (
	"fmt"
	"math"
	"sort"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// Input is what a rule evaluates.
type Input struct {
	Metrics    analyzer.MetricsSnapshot
	Set        records.Set
	Thresholds Thresholds
	Subject    string
}

// Rule returns a weakness when its condition holds, or nil.
type Rule func(in *Input) *Weakness

// PrimaryRules are the threshold rules evaluated on every sufficient analysis.
var PrimaryRules = []Rule{
	AccuracyRule,
	ConsistencyRule,
	SpeedRule,
	RetentionRule,
	DecliningRule,
}

// SecondaryRules are advisory and never exceed medium severity.
var SecondaryRules = []Rule{
	StudyScheduleRule,
	FocusQualityRule,
	SubjectImbalanceRule,
}

// belowDistance is how far value falls under threshold, in percent of it.
func belowDistance(threshold, value float64) float64 {
	return (threshold - value) / scale(threshold) * 100
}

// aboveDistance is how far value exceeds threshold, in percent of it.
func aboveDistance(threshold, value float64) float64 {
	return (value - threshold) / scale(threshold) * 100
}

func scale(threshold float64) float64 {
	if a := math.Abs(threshold); a > 1e-9 {
		return a
	}
	return 1
}

// SeverityFor maps a threshold distance to a severity.
func SeverityFor(distance float64) Severity {
	switch {
	case distance > 30:
		return SeverityCritical
	case distance > 15:
		return SeverityHigh
	case distance > 5:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func capAtMedium(s Severity) Severity {
	if s.Rank() > SeverityMedium.Rank() {
		return SeverityMedium
	}
	return s
}

// AccuracyRule fires when overall accuracy is below the threshold.
func AccuracyRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.Accuracy
	if !(m.OverallAccuracy < th) {
		return nil
	}
	d := belowDistance(th, m.OverallAccuracy)
	w := &Weakness{
		Type:          TypeAccuracy,
		Category:      CategoryPrimary,
		Severity:      SeverityFor(d),
		Urgency:       UrgencyImmediate,
		Impact:        ImpactHigh,
		Title:         "Low answer accuracy",
		Description:   fmt.Sprintf("Overall accuracy is %.1f%%, below the %.0f%% target.", m.OverallAccuracy, th),
		CurrentValue:  m.OverallAccuracy,
		TargetValue:   th,
		Distance:      d,
		AffectedAreas: subjectsBelow(in.Set.Assessments, th),
	}
	if m.AccuracyTrend < 0 {
		w.RootCauses = append(w.RootCauses, "accuracy dropped in the most recent assessments")
	}
	if m.AvgTimePerQuestion > 0 && m.AvgTimePerQuestion < 30 {
		w.RootCauses = append(w.RootCauses, "questions answered quickly, possibly without full reading")
	}
	if hardShare(in.Set.Assessments) > 0.5 {
		w.RootCauses = append(w.RootCauses, "most practice is at hard difficulty")
	}
	w.RootCauses = append(w.RootCauses, "gaps in conceptual understanding")
	return w
}

// ConsistencyRule fires when assessment scores vary too much.
func ConsistencyRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.Consistency
	if !(m.ConsistencyScore < th) {
		return nil
	}
	d := belowDistance(th, m.ConsistencyScore)
	return &Weakness{
		Type:         TypeConsistency,
		Category:     CategoryPrimary,
		Severity:     SeverityFor(d),
		Urgency:      UrgencyHigh,
		Impact:       ImpactMedium,
		Title:        "Inconsistent performance",
		Description:  fmt.Sprintf("Consistency score is %.1f, below the %.0f target.", m.ConsistencyScore, th),
		CurrentValue: m.ConsistencyScore,
		TargetValue:  th,
		Distance:     d,
		RootCauses: []string{
			"uneven preparation across topics",
			"performance depends on question difficulty",
		},
		AffectedAreas: subjectsOf(in.Set.Assessments),
	}
}

// SpeedRule fires when the average time per question exceeds the threshold.
func SpeedRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.ResponseTime
	if !(m.AvgTimePerQuestion > th) {
		return nil
	}
	d := aboveDistance(th, m.AvgTimePerQuestion)
	return &Weakness{
		Type:         TypeSpeed,
		Category:     CategoryPrimary,
		Severity:     SeverityFor(d),
		Urgency:      UrgencyMedium,
		Impact:       ImpactMedium,
		Title:        "Slow response time",
		Description:  fmt.Sprintf("Average time per question is %.0fs, above the %.0fs limit.", m.AvgTimePerQuestion, th),
		CurrentValue: m.AvgTimePerQuestion,
		TargetValue:  th,
		Distance:     d,
		RootCauses: []string{
			"insufficient timed practice",
			"slow recall of formulas and facts",
		},
		AffectedAreas: subjectsOf(in.Set.Assessments),
	}
}

// RetentionRule fires when the retention rate is below the threshold. With
// no provider and no reviews the rate defaults to 0, which fires.
func RetentionRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.RetentionRate
	if !(m.RetentionRate < th) {
		return nil
	}
	d := belowDistance(th, m.RetentionRate)
	return &Weakness{
		Type:         TypeRetention,
		Category:     CategoryPrimary,
		Severity:     SeverityFor(d),
		Urgency:      UrgencyHigh,
		Impact:       ImpactHigh,
		Title:        "Weak long-term retention",
		Description:  fmt.Sprintf("Retention rate is %.1f%%, below the %.0f%% target.", m.RetentionRate, th),
		CurrentValue: m.RetentionRate,
		TargetValue:  th,
		Distance:     d,
		RootCauses: []string{
			"reviews are missed or spaced too far apart",
			"material learned passively without recall practice",
		},
	}
}

// DecliningRule fires when accuracy fell between the first and last assessment.
func DecliningRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.ImprovementRate
	if !(m.ImprovementRate < th) {
		return nil
	}
	d := belowDistance(th, m.ImprovementRate)
	return &Weakness{
		Type:         TypeDeclining,
		Category:     CategoryPrimary,
		Severity:     SeverityFor(d),
		Urgency:      UrgencyImmediate,
		Impact:       ImpactHigh,
		Title:        "Declining performance",
		Description:  fmt.Sprintf("Accuracy changed by %.1f%% from first to latest assessment.", m.ImprovementRate),
		CurrentValue: m.ImprovementRate,
		TargetValue:  th,
		Distance:     d,
		RootCauses: []string{
			"fatigue or burnout",
			"new material outpacing review",
		},
	}
}

// StudyScheduleRule flags irregular study days.
func StudyScheduleRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.StudyConsistency
	if m.DataPoints.Sessions == 0 || !(m.StudyConsistency < th) {
		return nil
	}
	d := belowDistance(th, m.StudyConsistency)
	return &Weakness{
		Type:         TypeStudySchedule,
		Category:     CategorySecondary,
		Severity:     capAtMedium(SeverityFor(d)),
		Urgency:      UrgencyLow,
		Impact:       ImpactMedium,
		Title:        "Irregular study schedule",
		Description:  fmt.Sprintf("Studied on %.0f%% of days, below the %.0f%% target.", m.StudyConsistency, th),
		CurrentValue: m.StudyConsistency,
		TargetValue:  th,
		Distance:     d,
		RootCauses:   []string{"no fixed daily study slot"},
	}
}

// FocusQualityRule flags low self-reported focus.
func FocusQualityRule(in *Input) *Weakness {
	m, th := in.Metrics, in.Thresholds.FocusQuality
	if m.DataPoints.Sessions == 0 || !(m.FocusQuality < th) {
		return nil
	}
	d := belowDistance(th, m.FocusQuality)
	return &Weakness{
		Type:         TypeFocusQuality,
		Category:     CategorySecondary,
		Severity:     capAtMedium(SeverityFor(d)),
		Urgency:      UrgencyLow,
		Impact:       ImpactMedium,
		Title:        "Low focus quality",
		Description:  fmt.Sprintf("Average focus quality is %.0f%%, below %.0f%%.", m.FocusQuality, th),
		CurrentValue: m.FocusQuality,
		TargetValue:  th,
		Distance:     d,
		RootCauses:   []string{"distractions during sessions", "sessions too long without breaks"},
	}
}

// SubjectImbalanceRule flags subjects receiving less than half of an even
// share of study time. It needs at least two subjects and no subject filter.
func SubjectImbalanceRule(in *Input) *Weakness {
	if in.Subject != "" {
		return nil
	}
	seconds := make(map[string]float64)
	var total float64
	for _, s := range in.Set.Sessions {
		if s.Subject == "" {
			continue
		}
		seconds[s.Subject] += s.Duration
		total += s.Duration
	}
	if len(seconds) < 2 || total <= 0 {
		return nil
	}

	even := 100 / float64(len(seconds))
	floor := even / 2
	minShare := math.Inf(1)
	var under []string
	for subj, sec := range seconds {
		share := sec / total * 100
		minShare = math.Min(minShare, share)
		if share < floor {
			under = append(under, subj)
		}
	}
	if len(under) == 0 {
		return nil
	}
	sort.Strings(under)
	d := belowDistance(floor, minShare)
	return &Weakness{
		Type:          TypeSubjectImbalance,
		Category:      CategorySecondary,
		Severity:      capAtMedium(SeverityFor(d)),
		Urgency:       UrgencyLow,
		Impact:        ImpactLow,
		Title:         "Unbalanced subject coverage",
		Description:   fmt.Sprintf("The least studied subject gets %.0f%% of study time; an even split is %.0f%%.", minShare, even),
		CurrentValue:  minShare,
		TargetValue:   floor,
		Distance:      d,
		AffectedAreas: under,
		RootCauses:    []string{"preference for familiar subjects"},
	}
}

// subjectsBelow lists subjects whose pooled accuracy is under threshold.
func subjectsBelow(as []records.AssessmentRecord, threshold float64) []string {
	type tally struct{ correct, total int }
	by := make(map[string]*tally)
	for _, a := range as {
		if a.Subject == "" {
			continue
		}
		t, ok := by[a.Subject]
		if !ok {
			t = &tally{}
			by[a.Subject] = t
		}
		t.correct += a.CorrectAnswers
		t.total += a.TotalQuestions
	}
	var out []string
	for subj, t := range by {
		if t.total > 0 && float64(t.correct)/float64(t.total)*100 < threshold {
			out = append(out, subj)
		}
	}
	sort.Strings(out)
	return out
}

func subjectsOf(as []records.AssessmentRecord) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range as {
		if a.Subject != "" && !seen[a.Subject] {
			seen[a.Subject] = true
			out = append(out, a.Subject)
		}
	}
	sort.Strings(out)
	return out
}

func hardShare(as []records.AssessmentRecord) float64 {
	if len(as) == 0 {
		return 0
	}
	hard := 0
	for _, a := range as {
		if a.Difficulty == records.DifficultyHard {
			hard++
		}
	}
	return float64(hard) / float64(len(as))
}
