package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

var pathNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelAdvanced, LevelFor(80))
	assert.Equal(t, LevelIntermediate, LevelFor(79))
	assert.Equal(t, LevelIntermediate, LevelFor(60))
	assert.Equal(t, LevelBeginner, LevelFor(59.5))
}

func TestBuildLearningPath_Templates(t *testing.T) {
	tests := []struct {
		score float64
		weeks int
		hours float64
	}{
		{40, 8, 2},
		{70, 6, 3},
		{90, 4, 4},
	}
	for _, tt := range tests {
		p := BuildLearningPath(analyzer.MetricsSnapshot{CompositeScore: tt.score}, weakness.Report{}, 0, DefaultPathConfig(), pathNow)
		assert.Equal(t, tt.weeks, p.DurationWeeks)
		assert.Equal(t, tt.hours, p.DailyHours)

		weeks := 0
		for _, ph := range p.Phases {
			weeks += ph.Weeks
		}
		assert.Equal(t, tt.weeks, weeks, "phases should fill the duration")
	}
}

func TestBuildLearningPath_FocusAndSchedule(t *testing.T) {
	report := weakness.Report{Weaknesses: []weakness.Weakness{
		{Type: weakness.TypeSubjectImbalance, Severity: weakness.SeverityLow},
		{Type: weakness.TypeAccuracy, Severity: weakness.SeverityCritical, CurrentValue: 45, TargetValue: 70},
		{Type: weakness.TypeSpeed, Severity: weakness.SeverityMedium},
		{Type: weakness.TypeRetention, Severity: weakness.SeverityHigh},
	}}
	p := BuildLearningPath(analyzer.MetricsSnapshot{CompositeScore: 50}, report, -2, DefaultPathConfig(), pathNow)

	require.Len(t, p.FocusAreas, 3)
	assert.Equal(t, weakness.TypeAccuracy, p.FocusAreas[0].Type)
	assert.Equal(t, weakness.TypeRetention, p.FocusAreas[1].Type)
	assert.Equal(t, weakness.TypeSpeed, p.FocusAreas[2].Type)

	var hours float64
	for _, a := range p.FocusAreas {
		hours += a.TimeAllocation
	}
	assert.InDelta(t, p.DailyHours, hours, 0.02)

	assert.Len(t, p.StudySequence, 5)
	assert.Equal(t, 1, p.StudySequence[0].Order)
	assert.Equal(t, weakness.TypeAccuracy, p.StudySequence[0].Focus)

	require.Len(t, p.ReviewSchedule, 4)
	byType := map[weakness.Type]ReviewSchedule{}
	for _, rs := range p.ReviewSchedule {
		byType[rs.Weakness] = rs
	}
	assert.Equal(t, []int{1, 3, 7, 14, 30}, byType[weakness.TypeAccuracy].Days)
	assert.Equal(t, []int{3, 7, 14, 30}, byType[weakness.TypeRetention].Days)
	assert.Equal(t, []int{14, 30}, byType[weakness.TypeSubjectImbalance].Days)
	assert.Equal(t, pathNow.AddDate(0, 0, 1), byType[weakness.TypeAccuracy].Dates[0])

	require.Len(t, p.Milestones, 4)
	assert.LessOrEqual(t, p.Milestones[0].Week, p.Milestones[1].Week)
	assert.LessOrEqual(t, p.Milestones[1].Week, p.Milestones[2].Week)
	assert.Equal(t, 8, p.Milestones[3].Week)
	assert.Contains(t, p.Milestones[0].Target, "45.0 to 70.0")

	assert.True(t, p.AdaptiveFeatures.PaceAdjustment)
	assert.True(t, p.AdaptiveFeatures.WeaknessTargeting)
}

func TestBuildLearningPath_CustomIntervals(t *testing.T) {
	report := weakness.Report{Weaknesses: []weakness.Weakness{{Type: weakness.TypeRetention, Severity: weakness.SeverityLow}}}
	cfg := PathConfig{ReviewIntervals: []int{2, 5}, MaxDailyTasks: 2}
	p := BuildLearningPath(analyzer.MetricsSnapshot{}, report, 0, cfg, pathNow)

	assert.Equal(t, []int{5}, p.ReviewSchedule[0].Days)
	assert.Len(t, p.StudySequence, 2)
}

func TestFocusPriority_VelocityRaisesPriority(t *testing.T) {
	w := weakness.Weakness{Type: weakness.TypeSpeed, Severity: weakness.SeverityMedium}
	assert.Greater(t, FocusPriority(w, -5), FocusPriority(w, 0))
	assert.Greater(t, FocusPriority(w, 0), FocusPriority(w, 5))
	assert.Equal(t, FocusPriority(w, 10), FocusPriority(w, 5))
}

func TestBuildLearningPath_NoWeaknesses(t *testing.T) {
	p := BuildLearningPath(analyzer.MetricsSnapshot{CompositeScore: 85}, weakness.Report{}, 1, DefaultPathConfig(), pathNow)
	assert.Empty(t, p.FocusAreas)
	assert.Len(t, p.StudySequence, 2)
	require.Len(t, p.Milestones, 1)
	assert.False(t, p.AdaptiveFeatures.SpacedRepetition)
}
