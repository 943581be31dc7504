package suggest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

type stubProvider struct {
	text   string
	err    error
	prompt string
}

func (s *stubProvider) Generate(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.text, s.err
}

func contextWith(ws ...weakness.Weakness) *AnalysisContext {
	return &AnalysisContext{
		Report:  weakness.Report{Weaknesses: ws},
		Metrics: analyzer.MetricsSnapshot{OverallAccuracy: 65, Grade: "C"},
	}
}

func TestEngineRun_OnePerWeakness(t *testing.T) {
	ctx := contextWith(
		weakness.Weakness{Type: weakness.TypeSpeed, Severity: weakness.SeverityMedium},
		weakness.Weakness{Type: weakness.TypeRetention, Severity: weakness.SeverityLow},
	)
	recs := NewEngine(nil, 0, nil).Run(context.Background(), ctx)

	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, SourceRule, r.Source)
		assert.NotEmpty(t, r.Actions)
	}
	assert.Equal(t, weakness.TypeSpeed, recs[0].Weakness)
}

func TestEngineRun_EscalatesSevereWeakness(t *testing.T) {
	ctx := contextWith(weakness.Weakness{Type: weakness.TypeAccuracy, Severity: weakness.SeverityHigh})
	recs := NewEngine(nil, 0, nil).Run(context.Background(), ctx)

	require.Len(t, recs, 1)
	assert.Equal(t, PriorityCritical, recs[0].Priority)
}

func TestEngineRun_MaintenanceWhenHealthy(t *testing.T) {
	recs := NewEngine(nil, 0, nil).Run(context.Background(), contextWith())
	require.Len(t, recs, 1)
	assert.Equal(t, "maintenance", recs[0].Category)
}

func TestEngineRun_InsufficientData(t *testing.T) {
	ctx := &AnalysisContext{Report: weakness.Report{HasInsufficientData: true, Unmet: []string{"sessions: have 1, need 5"}}}
	p := &stubProvider{text: "1. Do more"}
	recs := NewEngine(p, 0, nil).Run(context.Background(), ctx)

	require.Len(t, recs, 1)
	assert.Equal(t, "data", recs[0].Category)
	assert.Equal(t, []string{"sessions: have 1, need 5"}, recs[0].Actions)
	assert.Empty(t, p.prompt)
}

func TestEngineRun_ProviderFailureDegradesToRules(t *testing.T) {
	ctx := contextWith(weakness.Weakness{Type: weakness.TypeSpeed, Severity: weakness.SeverityLow})
	recs := NewEngine(&stubProvider{err: errors.New("rate limited")}, 0, nil).Run(context.Background(), ctx)

	require.Len(t, recs, 1)
	assert.Equal(t, SourceRule, recs[0].Source)
}

func TestEngineRun_MergesGenerated(t *testing.T) {
	ctx := contextWith(weakness.Weakness{Type: weakness.TypeSpeed, Severity: weakness.SeverityLow})
	ctx.Subjects = []string{"Physics"}
	p := &stubProvider{text: "1. Timed drills: Practice Physics speed daily for 2 weeks.\n   - Use a stopwatch"}

	recs := NewEngine(p, 0, nil).Run(context.Background(), ctx)
	require.Len(t, recs, 2)
	assert.Contains(t, p.prompt, "speed (low severity)")

	var gen *Recommendation
	for i := range recs {
		if recs[i].Source == SourceGenerated {
			gen = &recs[i]
		}
	}
	require.NotNil(t, gen)
	assert.Equal(t, []string{"Physics"}, gen.Subjects)
	assert.Equal(t, "2 weeks", gen.Timeframe)
}

func TestEngineRun_Truncates(t *testing.T) {
	var ws []weakness.Weakness
	for _, wt := range []weakness.Type{
		weakness.TypeAccuracy, weakness.TypeConsistency, weakness.TypeSpeed, weakness.TypeRetention,
	} {
		ws = append(ws, weakness.Weakness{Type: wt, Severity: weakness.SeverityLow})
	}
	recs := NewEngine(nil, 2, nil).Run(context.Background(), contextWith(ws...))
	assert.Len(t, recs, 2)
}

func TestRankRecommendations_PriorityThenConfidence(t *testing.T) {
	recs := []Recommendation{
		{Title: "low", Priority: PriorityLow, Confidence: 0.99},
		{Title: "high-weak", Priority: PriorityHigh, Confidence: 0.5},
		{Title: "high-strong", Priority: PriorityHigh, Confidence: 0.9},
		{Title: "critical", Priority: PriorityCritical, Confidence: 0.1},
	}
	got := RankRecommendations(recs, 0)
	titles := make([]string, len(got))
	for i, r := range got {
		titles[i] = r.Title
	}
	assert.Equal(t, []string{"critical", "high-strong", "high-weak", "low"}, titles)
}

func TestEscalate_Difficulty(t *testing.T) {
	recs := []Recommendation{{Difficulty: DifficultyEasy}, {Difficulty: DifficultyHard}}

	Escalate(recs, weakness.Report{}, 85)
	assert.Equal(t, DifficultyMedium, recs[0].Difficulty)
	assert.Equal(t, DifficultyHard, recs[1].Difficulty)

	Escalate(recs, weakness.Report{}, 40)
	assert.Equal(t, DifficultyEasy, recs[0].Difficulty)
	assert.Equal(t, DifficultyMedium, recs[1].Difficulty)

	Escalate(recs, weakness.Report{}, 65)
	assert.Equal(t, DifficultyEasy, recs[0].Difficulty)
}

func TestPriority_Text(t *testing.T) {
	b, err := PriorityHigh.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "high", string(b))

	var p Priority
	require.NoError(t, p.UnmarshalText([]byte("Critical")))
	assert.Equal(t, PriorityCritical, p)
	assert.Error(t, p.UnmarshalText([]byte("urgent")))
}
