package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// fakeAnalyzer records the scope each tool asked for.
type fakeAnalyzer struct {
	tf          analyzer.Timeframe
	subject     string
	flags       weakness.Flags
	latest      *engine.Summary
	invalidated int
	recorded    []records.AssessmentRecord
	err         error
}

func (f *fakeAnalyzer) CalculateMetrics(_ context.Context, tf analyzer.Timeframe, subject string) (analyzer.MetricsSnapshot, error) {
	f.tf, f.subject = tf, subject
	return analyzer.MetricsSnapshot{Timeframe: tf, Subject: subject, CompositeScore: 72, Grade: "C"}, f.err
}

func (f *fakeAnalyzer) PerformTrendAnalysis(_ context.Context, tf analyzer.Timeframe, subject string) (analyzer.TrendReport, error) {
	f.tf, f.subject = tf, subject
	return analyzer.TrendReport{}, f.err
}

func (f *fakeAnalyzer) AnalyzeWeaknesses(_ context.Context, tf analyzer.Timeframe, subject string, flags weakness.Flags) (weakness.Report, error) {
	f.tf, f.subject, f.flags = tf, subject, flags
	return weakness.Report{Timeframe: tf}, f.err
}

func (f *fakeAnalyzer) GenerateRecommendations(_ context.Context, tf analyzer.Timeframe, subject string) ([]suggest.Recommendation, error) {
	f.tf, f.subject = tf, subject
	return nil, f.err
}

func (f *fakeAnalyzer) GenerateLearningPath(_ context.Context, tf analyzer.Timeframe, subject string) (suggest.LearningPath, error) {
	f.tf, f.subject = tf, subject
	return suggest.LearningPath{}, f.err
}

func (f *fakeAnalyzer) RecordAssessment(_ context.Context, rec records.AssessmentRecord) error {
	f.recorded = append(f.recorded, rec)
	return f.err
}

func (f *fakeAnalyzer) Latest() (engine.Summary, bool) {
	if f.latest == nil {
		return engine.Summary{}, false
	}
	return *f.latest, true
}

func (f *fakeAnalyzer) Invalidate(context.Context) (engine.Summary, error) {
	f.invalidated++
	return engine.Summary{Grade: "B"}, f.err
}

// callTool invokes the named tool handler and returns the typed result.
func callTool(s *Server, name string, args json.RawMessage) (any, error) {
	tool, ok := s.tools[name]
	if !ok {
		return nil, ErrUnknownTool
	}
	return tool.Handler(context.Background(), args)
}

func TestScopeTools_DefaultToWeekly(t *testing.T) {
	for _, name := range []string{"get_metrics", "get_trends", "get_weaknesses", "get_recommendations", "get_learning_path"} {
		t.Run(name, func(t *testing.T) {
			f := &fakeAnalyzer{}
			_, err := callTool(NewServer(f, "", nil), name, json.RawMessage(`{}`))
			require.NoError(t, err)
			assert.Equal(t, analyzer.Weekly, f.tf)
			assert.Empty(t, f.subject)
		})
	}
}

func TestGetMetrics_PassesScope(t *testing.T) {
	f := &fakeAnalyzer{}
	got, err := callTool(NewServer(f, "", nil), "get_metrics", json.RawMessage(`{"timeframe":"Monthly","subject":"Physics"}`))
	require.NoError(t, err)

	m, ok := got.(analyzer.MetricsSnapshot)
	require.True(t, ok, "expected MetricsSnapshot, got %T", got)
	assert.Equal(t, analyzer.Monthly, m.Timeframe)
	assert.Equal(t, "Physics", f.subject)
}

func TestScopeTools_RejectBadArguments(t *testing.T) {
	s := NewServer(&fakeAnalyzer{}, "", nil)

	_, err := callTool(s, "get_trends", json.RawMessage(`{"timeframe":"yearly"}`))
	assert.ErrorIs(t, err, analyzer.ErrInvalidTimeframe)

	_, err = callTool(s, "get_metrics", json.RawMessage(`{"timeframe":7}`))
	assert.ErrorContains(t, err, "invalid arguments")
}

func TestGetWeaknesses_Flags(t *testing.T) {
	f := &fakeAnalyzer{}
	s := NewServer(f, "", nil)

	_, err := callTool(s, "get_weaknesses", nil)
	require.NoError(t, err)
	assert.Equal(t, weakness.Flags{Secondary: true}, f.flags)

	_, err = callTool(s, "get_weaknesses", json.RawMessage(`{"detailed":true}`))
	require.NoError(t, err)
	assert.Equal(t, weakness.AllFlags(), f.flags)
}

func TestGetRecommendations_EmptyIsNotNull(t *testing.T) {
	got, err := callTool(NewServer(&fakeAnalyzer{}, "", nil), "get_recommendations", nil)
	require.NoError(t, err)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}

func TestGetLatestSummary(t *testing.T) {
	f := &fakeAnalyzer{}
	s := NewServer(f, "", nil)

	got, err := callTool(s, "get_latest_summary", nil)
	require.NoError(t, err)
	assert.Equal(t, "B", got.(engine.Summary).Grade)
	assert.Equal(t, 1, f.invalidated)

	f.latest = &engine.Summary{Grade: "A"}
	got, err = callTool(s, "get_latest_summary", nil)
	require.NoError(t, err)
	assert.Equal(t, "A", got.(engine.Summary).Grade)
	assert.Equal(t, 1, f.invalidated, "an existing summary should not trigger a refresh")
}

func TestRecordAssessment(t *testing.T) {
	f := &fakeAnalyzer{}
	s := NewServer(f, "", nil)

	got, err := callTool(s, "record_assessment", json.RawMessage(`{"subject":"Chemistry","total_questions":20,"correct_answers":15,"time_spent":600,"difficulty":"hard"}`))
	require.NoError(t, err)
	assert.Equal(t, RecordResult{Recorded: true, Kind: "assessment"}, got)
	require.Len(t, f.recorded, 1)
	assert.Equal(t, records.DifficultyHard, f.recorded[0].Difficulty)
	assert.Equal(t, 15, f.recorded[0].CorrectAnswers)

	_, err = callTool(s, "record_assessment", json.RawMessage(`{"total_questions":20}`))
	assert.ErrorContains(t, err, "subject is required")
	_, err = callTool(s, "record_assessment", json.RawMessage(`{"subject":"Chemistry"}`))
	assert.ErrorContains(t, err, "total_questions")
	assert.Len(t, f.recorded, 1)
}

func TestTools_PropagateEngineErrors(t *testing.T) {
	f := &fakeAnalyzer{err: errors.New("store closed")}
	_, err := callTool(NewServer(f, "", nil), "get_learning_path", nil)
	assert.EqualError(t, err, "store closed")
}

func TestTools_AgainstEngine(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := engine.DefaultConfig()
	cfg.SweepInterval = -1
	clock := func() time.Time { return now }
	store := records.NewStore(records.DefaultCaps())
	store.SetClock(clock)
	e, err := engine.New(cfg, store, engine.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(e.Stop)
	s := NewServer(e, "test", nil)

	for i := 0; i < 3; i++ {
		_, err := callTool(s, "record_assessment", json.RawMessage(`{"subject":"Biology","total_questions":10,"correct_answers":4}`))
		require.NoError(t, err)
	}

	got, err := callTool(s, "get_metrics", json.RawMessage(`{"timeframe":"daily","subject":"biology"}`))
	require.NoError(t, err)
	m := got.(analyzer.MetricsSnapshot)
	assert.InDelta(t, 40, m.OverallAccuracy, 0.001)
	assert.Equal(t, 3, m.DataPoints.Assessments)
}
