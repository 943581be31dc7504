package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/records"
)

func TestSlope(t *testing.T) {
	tests := []struct {
		name string
		ys   []float64
		want float64
	}{
		{"rising", []float64{50, 55, 60, 65, 70}, 5},
		{"falling", []float64{9, 6, 3}, -3},
		{"flat", []float64{4, 4, 4, 4}, 0},
		{"single point", []float64{10}, 0},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Slope(tt.ys), 1e-9)
		})
	}
}

func TestHalfDelta(t *testing.T) {
	assert.Zero(t, HalfDelta([]float64{80}))
	assert.Equal(t, 20.0, HalfDelta([]float64{50, 60, 70, 80}))
}

func TestPerformTrendAnalysis_RisingAccuracy(t *testing.T) {
	var as []records.AssessmentRecord
	for i, correct := range []int{10, 11, 12, 13, 14} {
		as = append(as, records.AssessmentRecord{
			Timestamp:      testNow.AddDate(0, 0, -(4 - i)).Add(-time.Hour),
			TotalQuestions: 20,
			CorrectAnswers: correct,
			TimeSpent:      600,
		})
	}
	src := seedStore(t, nil, as)

	report, err := newCalc(nil).PerformTrendAnalysis(context.Background(), src, testNow, Weekly, "")
	require.NoError(t, err)

	assert.Equal(t, 1, report.IntervalDays)
	require.Len(t, report.DataPoints, 5)
	assert.Equal(t, 50.0, report.DataPoints[0].Accuracy)
	assert.Equal(t, 70.0, report.DataPoints[4].Accuracy)
	assert.Greater(t, report.Trends.Accuracy, 0.0)
	assert.InDelta(t, 5.0, report.LearningVelocity(), 1e-9)
	assert.Zero(t, report.Trends.StudyTime)
	assert.True(t, report.HasSignal("accuracy", "improving"))
}

func TestAnalyzeTrends_IntervalAndEmptyBuckets(t *testing.T) {
	set := records.Set{Sessions: []records.SessionRecord{
		{Timestamp: testNow.AddDate(0, 0, -80), Duration: 7200, FocusQuality: 90},
		{Timestamp: testNow.AddDate(0, 0, -10), Duration: 3600, FocusQuality: 70},
		{Timestamp: testNow, Duration: 1800, FocusQuality: 50},
	}}

	report := AnalyzeTrends(set, Quarterly, 90, "", testNow)
	assert.Equal(t, 9, report.IntervalDays)
	require.Len(t, report.DataPoints, 3)
	assert.Less(t, report.Trends.StudyTime, 0.0)
	assert.Less(t, report.Trends.FocusQuality, 0.0)
	assert.True(t, report.HasSignal("focus_quality", "declining"))
	assert.True(t, report.HasSignal("study_time", "decreasing"))
	assert.Zero(t, report.Trends.Accuracy)
}

func TestInterpret_Thresholds(t *testing.T) {
	assert.Empty(t, Interpret(Trends{Accuracy: 1, StudyTime: 0.1, FocusQuality: 0.5, ResponseSpeed: 0.1}))

	got := Interpret(Trends{Accuracy: -1.5, ResponseSpeed: 0.2})
	require.Len(t, got, 2)
	assert.Equal(t, "declining", got[0].Signal)
	assert.Equal(t, "response_speed", got[1].Metric)
}
