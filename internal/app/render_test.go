package app

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/store"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// capture redirects command output into a buffer for the test.
func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := out
	out = &buf
	t.Cleanup(func() { out = prev })
	return &buf
}

func plainOutput(t *testing.T) {
	t.Helper()
	output.SetNoColor(true)
	t.Cleanup(func() { output.SetNoColor(false) })
}

func setFormat(t *testing.T, json, yaml bool) {
	t.Helper()
	prevJSON, prevYAML := flagJSON, flagYAML
	flagJSON, flagYAML = json, yaml
	t.Cleanup(func() { flagJSON, flagYAML = prevJSON, prevYAML })
}

type ordered struct {
	Zeta  int    `json:"zeta"`
	Alpha string `json:"alpha_key"`
}

func TestToYAML_KeepsJSONNamesAndOrder(t *testing.T) {
	data, err := toYAML(ordered{Zeta: 1, Alpha: "x"})
	require.NoError(t, err)
	assert.Equal(t, "zeta: 1\nalpha_key: x\n", string(data))
}

func TestEmit_Formats(t *testing.T) {
	human := func(w io.Writer) error {
		_, err := io.WriteString(w, "human\n")
		return err
	}

	t.Run("human", func(t *testing.T) {
		buf := capture(t)
		setFormat(t, false, false)
		require.NoError(t, emit(ordered{}, human))
		assert.Equal(t, "human\n", buf.String())
	})
	t.Run("json", func(t *testing.T) {
		buf := capture(t)
		setFormat(t, true, false)
		require.NoError(t, emit(ordered{Zeta: 2}, human))
		assert.Equal(t, "{\n  \"zeta\": 2,\n  \"alpha_key\": \"\"\n}\n", buf.String())
	})
	t.Run("yaml", func(t *testing.T) {
		buf := capture(t)
		setFormat(t, false, true)
		require.NoError(t, emit(ordered{Zeta: 3, Alpha: "y"}, human))
		assert.Equal(t, "zeta: 3\nalpha_key: y\n", buf.String())
	})
}

func TestRenderWeaknesses_Empty(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	renderWeaknesses(&buf, weakness.Report{
		Timeframe:           analyzer.Weekly,
		HasInsufficientData: true,
		Unmet:               []string{"sessions 1/5"},
	})
	assert.Contains(t, buf.String(), "Not enough data: sessions 1/5")
	assert.Contains(t, buf.String(), "No weaknesses detected.")
}

func TestRenderWeaknesses_Findings(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	renderWeaknesses(&buf, weakness.Report{
		Timeframe: analyzer.Monthly,
		Subject:   "Physics",
		Weaknesses: []weakness.Weakness{{
			Type:          weakness.TypeAccuracy,
			Severity:      weakness.SeverityCritical,
			Urgency:       weakness.UrgencyImmediate,
			Impact:        weakness.ImpactHigh,
			Title:         "Low accuracy",
			Description:   "Accuracy is well below target.",
			CurrentValue:  40,
			TargetValue:   70,
			AffectedAreas: []string{"Physics"},
		}},
		OverallScore: 75,
		ActionPlans: []weakness.ActionPlan{{
			Weakness:  weakness.TypeAccuracy,
			Timeline:  "1-2 weeks",
			Immediate: []string{"Review mistakes"},
		}},
	})
	got := buf.String()
	assert.Contains(t, got, "Weaknesses (monthly, Physics)")
	assert.Contains(t, got, "1. CRITICAL  Low accuracy")
	assert.Contains(t, got, "1 critical")
	assert.Contains(t, got, "Affects: Physics")
	assert.Contains(t, got, "Review mistakes")
}

func TestRenderRecommendations(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	renderRecommendations(&buf, []suggest.Recommendation{{
		Priority:   suggest.PriorityHigh,
		Title:      "Drill weak chapters",
		Category:   "accuracy",
		Difficulty: suggest.DifficultyMedium,
		Timeframe:  "2 weeks",
		Actions:    []string{"20 questions a day"},
		Source:     suggest.SourceGenerated,
	}})
	got := buf.String()
	assert.Contains(t, got, "#1 [HIGH] Drill weak chapters")
	assert.Contains(t, got, "generated")
	assert.Contains(t, got, "- 20 questions a day")

	buf.Reset()
	renderRecommendations(&buf, nil)
	assert.Contains(t, buf.String(), "No recommendations.")
}

func TestRenderTrackOutput(t *testing.T) {
	plainOutput(t)
	taken := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	current := &store.Snapshot{ID: 2, Timeframe: "weekly", TakenAt: taken, Grade: "C", CompositeScore: 62, WeaknessScore: 20}

	var buf bytes.Buffer
	renderTrackOutput(&buf, trackResult{Snapshot: current})
	assert.Contains(t, buf.String(), "First snapshot recorded.")

	prev := &store.Snapshot{ID: 1, Timeframe: "weekly", TakenAt: taken.Add(-24 * time.Hour), Grade: "D", CompositeScore: 50, WeaknessScore: 40,
		Weaknesses: []store.SnapshotWeakness{{Type: "speed"}}}
	diff := store.CompareSnapshots(prev, current)

	buf.Reset()
	renderTrackOutput(&buf, trackResult{Snapshot: current, Diff: &diff})
	got := buf.String()
	assert.Contains(t, got, "Comparing against snapshot #1")
	assert.Contains(t, got, "composite_score")
	assert.Contains(t, got, "Grade D → C")
	assert.Contains(t, got, "Resolved: speed")
}

func TestRenderLearningPath_PhaseSpans(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	renderLearningPath(&buf, suggest.LearningPath{
		UserLevel:     suggest.LevelBeginner,
		DurationWeeks: 4,
		Phases: []suggest.Phase{
			{Name: "Foundation", Weeks: 3, Goal: "Core concepts"},
			{Name: "Review", Weeks: 1, Goal: "Mocks"},
		},
	})
	got := buf.String()
	assert.Contains(t, got, "weeks 1-3")
	assert.Contains(t, got, "week 4")
	assert.True(t, strings.Contains(got, "beginner"))
}
