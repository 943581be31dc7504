package weakness

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/records"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newDetector() *Detector {
	calc := analyzer.NewCalculator(analyzer.DefaultWeights(), analyzer.DefaultPeriods(), nil, nil)
	return NewDetector(DefaultConfig(), calc, nil)
}

// scenario builds five daily one-hour sessions and one assessment per day
// for the given correct counts out of total questions.
func scenario(t *testing.T, total int, correct ...int) *records.Store {
	t.Helper()
	s := records.NewStore(records.DefaultCaps())
	s.SetClock(func() time.Time { return testNow })
	ctx := context.Background()
	for i := 4; i >= 0; i-- {
		require.NoError(t, s.AppendSession(ctx, records.SessionRecord{
			Timestamp:    testNow.AddDate(0, 0, -i),
			Duration:     3600,
			Subject:      "Physics",
			FocusQuality: 90,
		}))
	}
	for i, c := range correct {
		require.NoError(t, s.AppendAssessment(ctx, records.AssessmentRecord{
			Timestamp:      testNow.AddDate(0, 0, -(len(correct) - i)),
			Subject:        "Physics",
			TotalQuestions: total,
			CorrectAnswers: c,
			TimeSpent:      300,
		}))
	}
	return s
}

func TestAnalyze_ScenarioA_NoAccuracyWeakness(t *testing.T) {
	report, err := newDetector().Analyze(context.Background(), scenario(t, 10, 7, 6, 9), testNow, analyzer.Weekly, "", AllFlags())
	require.NoError(t, err)

	assert.False(t, report.HasInsufficientData)
	assert.InDelta(t, 73.33, report.Metrics.OverallAccuracy, 0.01)
	assert.Equal(t, 100.0, report.Metrics.StudyConsistency)
	_, found := report.Find(TypeAccuracy)
	assert.False(t, found)
	assert.False(t, report.Partial)
	require.NotNil(t, report.Breakdown)
	assert.NotNil(t, report.Breakdown.Pattern)
}

func TestAnalyze_NoRetentionSignalReportsRetentionWeakness(t *testing.T) {
	report, err := newDetector().Analyze(context.Background(), scenario(t, 10, 7, 6, 9), testNow, analyzer.Weekly, "", Flags{})
	require.NoError(t, err)

	assert.Equal(t, analyzer.RetentionUnavailable, report.Metrics.RetentionSource)
	assert.Zero(t, report.Metrics.RetentionRate)
	w, found := report.Find(TypeRetention)
	require.True(t, found)
	assert.Equal(t, SeverityCritical, w.Severity)
	assert.Equal(t, CategoryPrimary, w.Category)
}

func TestAnalyze_ScenarioB_CriticalAccuracy(t *testing.T) {
	report, err := newDetector().Analyze(context.Background(), scenario(t, 20, 8, 9, 10), testNow, analyzer.Weekly, "", AllFlags())
	require.NoError(t, err)

	w, found := report.Find(TypeAccuracy)
	require.True(t, found)
	assert.Equal(t, SeverityCritical, w.Severity)
	assert.Equal(t, UrgencyImmediate, w.Urgency)
	assert.InDelta(t, 35.71, w.Distance, 0.01)
	assert.Equal(t, []string{"Physics"}, w.AffectedAreas)

	assert.Equal(t, TypeAccuracy, report.Weaknesses[0].Type)
	require.NotEmpty(t, report.ActionPlans)
	assert.Equal(t, TypeAccuracy, report.ActionPlans[0].Weakness)
	assert.Equal(t, "1-2 weeks", report.ActionPlans[0].Timeline)
	assert.Greater(t, report.OverallScore, 0.0)
}

func TestAnalyze_InsufficientDataSkipsRules(t *testing.T) {
	d := newDetector()
	calls := 0
	d.primary = []Rule{func(*Input) *Weakness { calls++; return nil }}
	d.secondary = d.primary

	report, err := d.Analyze(context.Background(), scenario(t, 10, 7, 6), testNow, analyzer.Weekly, "", AllFlags())
	require.NoError(t, err)

	assert.True(t, report.HasInsufficientData)
	assert.Equal(t, []string{"assessments: have 2, need 3"}, report.Unmet)
	assert.Zero(t, calls)
	assert.Empty(t, report.Weaknesses)
	assert.Nil(t, report.Breakdown)
}

func TestAnalyze_FailedSectionMarksPartial(t *testing.T) {
	d := newDetector()
	d.sections = []section{
		d.sections[0],
		{"explodes", func(records.Set, *Breakdown) error { panic("boom") }},
	}

	report, err := d.Analyze(context.Background(), scenario(t, 10, 7, 6, 9), testNow, analyzer.Weekly, "", Flags{Detailed: true})
	require.NoError(t, err)

	assert.True(t, report.Partial)
	assert.Equal(t, []string{"explodes"}, report.FailedSections)
	assert.NotNil(t, report.Breakdown.Accuracy)
	assert.Empty(t, report.ActionPlans)
}

func TestAnalyze_InvalidTimeframe(t *testing.T) {
	_, err := newDetector().Analyze(context.Background(), scenario(t, 10, 7), testNow, "hourly", "", Flags{})
	assert.ErrorIs(t, err, analyzer.ErrInvalidTimeframe)
}
