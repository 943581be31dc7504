package weakness

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/records"
)

func inputWith(m analyzer.MetricsSnapshot) *Input {
	return &Input{Metrics: m, Thresholds: DefaultThresholds()}
}

func TestAccuracyRule_StrictBoundary(t *testing.T) {
	assert.Nil(t, AccuracyRule(inputWith(analyzer.MetricsSnapshot{OverallAccuracy: 70})))

	w := AccuracyRule(inputWith(analyzer.MetricsSnapshot{OverallAccuracy: 69.9}))
	require.NotNil(t, w)
	assert.Equal(t, SeverityLow, w.Severity)
	assert.Equal(t, CategoryPrimary, w.Category)
}

func TestSeverityFor(t *testing.T) {
	tests := []struct {
		distance float64
		want     Severity
	}{
		{0.5, SeverityLow},
		{5, SeverityLow},
		{5.1, SeverityMedium},
		{15, SeverityMedium},
		{15.1, SeverityHigh},
		{30, SeverityHigh},
		{30.1, SeverityCritical},
	}
	for _, tt := range tests {
		if got := SeverityFor(tt.distance); got != tt.want {
			t.Errorf("SeverityFor(%v) = %q, want %q", tt.distance, got, tt.want)
		}
	}
}

func TestSeverity_MonotonicInDistance(t *testing.T) {
	prev := 0
	for acc := 69.9; acc >= 0; acc -= 0.5 {
		w := AccuracyRule(inputWith(analyzer.MetricsSnapshot{OverallAccuracy: acc}))
		require.NotNil(t, w)
		if w.Severity.Rank() < prev {
			t.Fatalf("severity decreased at accuracy %.1f", acc)
		}
		prev = w.Severity.Rank()
	}
}

func TestSpeedRule_AboveThreshold(t *testing.T) {
	assert.Nil(t, SpeedRule(inputWith(analyzer.MetricsSnapshot{AvgTimePerQuestion: 120})))

	w := SpeedRule(inputWith(analyzer.MetricsSnapshot{AvgTimePerQuestion: 150}))
	require.NotNil(t, w)
	assert.InDelta(t, 25, w.Distance, 1e-9)
	assert.Equal(t, SeverityHigh, w.Severity)
	assert.Equal(t, UrgencyMedium, w.Urgency)
}

func TestDecliningRule(t *testing.T) {
	assert.Nil(t, DecliningRule(inputWith(analyzer.MetricsSnapshot{ImprovementRate: -5})))

	w := DecliningRule(inputWith(analyzer.MetricsSnapshot{ImprovementRate: -6}))
	require.NotNil(t, w)
	assert.InDelta(t, 20, w.Distance, 1e-9)
	assert.Equal(t, SeverityHigh, w.Severity)
}

func TestRetentionRule(t *testing.T) {
	assert.Nil(t, RetentionRule(inputWith(analyzer.MetricsSnapshot{RetentionRate: 65, RetentionSource: analyzer.RetentionFromReviews})))

	w := RetentionRule(inputWith(analyzer.MetricsSnapshot{RetentionRate: 40, RetentionSource: analyzer.RetentionFromReviews}))
	require.NotNil(t, w)
	assert.Equal(t, SeverityCritical, w.Severity)
}

func TestRetentionRule_FiresOnDefaultZero(t *testing.T) {
	w := RetentionRule(inputWith(analyzer.MetricsSnapshot{RetentionSource: analyzer.RetentionUnavailable}))
	require.NotNil(t, w)
	assert.Zero(t, w.CurrentValue)
	assert.Equal(t, 65.0, w.TargetValue)
	assert.Equal(t, SeverityCritical, w.Severity)
}

func TestSecondaryRules_CappedAtMedium(t *testing.T) {
	m := analyzer.MetricsSnapshot{
		StudyConsistency: 5,
		FocusQuality:     10,
		DataPoints:       analyzer.Counts{Sessions: 3},
	}
	for _, rule := range []Rule{StudyScheduleRule, FocusQualityRule} {
		w := rule(inputWith(m))
		require.NotNil(t, w)
		assert.Equal(t, SeverityMedium, w.Severity)
		assert.Equal(t, CategorySecondary, w.Category)
	}
}

func TestSubjectImbalanceRule(t *testing.T) {
	sessions := []records.SessionRecord{
		{Subject: "Physics", Duration: 9000, Timestamp: time.Now()},
		{Subject: "Chemistry", Duration: 8000, Timestamp: time.Now()},
		{Subject: "Biology", Duration: 1000, Timestamp: time.Now()},
	}
	in := &Input{Set: records.Set{Sessions: sessions}, Thresholds: DefaultThresholds()}

	w := SubjectImbalanceRule(in)
	require.NotNil(t, w)
	assert.Equal(t, []string{"Biology"}, w.AffectedAreas)
	assert.LessOrEqual(t, w.Severity.Rank(), SeverityMedium.Rank())

	in.Subject = "Physics"
	assert.Nil(t, SubjectImbalanceRule(in))

	in.Subject = ""
	in.Set.Sessions = sessions[:2]
	assert.Nil(t, SubjectImbalanceRule(in))
}

func TestRank_UrgencyFirst(t *testing.T) {
	ws := []Weakness{
		{Type: TypeStudySchedule, Urgency: UrgencyLow, Severity: SeverityHigh, Impact: ImpactHigh},
		{Type: TypeAccuracy, Urgency: UrgencyImmediate, Severity: SeverityHigh, Impact: ImpactHigh},
	}
	Rank(ws)
	assert.Equal(t, TypeAccuracy, ws[0].Type)
}

func TestRank_SeverityThenImpact(t *testing.T) {
	ws := []Weakness{
		{Type: "a", Urgency: UrgencyHigh, Severity: SeverityLow, Impact: ImpactHigh},
		{Type: "b", Urgency: UrgencyHigh, Severity: SeverityHigh, Impact: ImpactLow},
		{Type: "c", Urgency: UrgencyHigh, Severity: SeverityHigh, Impact: ImpactHigh},
	}
	Rank(ws)
	assert.Equal(t, []Type{"c", "b", "a"}, []Type{ws[0].Type, ws[1].Type, ws[2].Type})
}

func TestOverallScore(t *testing.T) {
	assert.Zero(t, OverallScore(nil))

	ws := []Weakness{
		{Category: CategoryPrimary, Severity: SeverityCritical, Impact: ImpactHigh},
		{Category: CategorySecondary, Severity: SeverityLow, Impact: ImpactLow},
	}
	assert.InDelta(t, 625.0/7.0, OverallScore(ws), 1e-9)
}

func TestBuildActionPlans_TopN(t *testing.T) {
	ws := make([]Weakness, 7)
	for i := range ws {
		ws[i] = Weakness{Type: TypeSpeed, Severity: SeverityLow}
	}
	assert.Len(t, BuildActionPlans(ws, 5), 5)
	assert.Empty(t, BuildActionPlans(ws, 0))
}
