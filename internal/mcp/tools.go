package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Analyzer is the engine surface the tools query. *engine.Engine satisfies it.
type Analyzer interface {
	CalculateMetrics(ctx context.Context, tf analyzer.Timeframe, subject string) (analyzer.MetricsSnapshot, error)
	PerformTrendAnalysis(ctx context.Context, period analyzer.Timeframe, subject string) (analyzer.TrendReport, error)
	AnalyzeWeaknesses(ctx context.Context, tf analyzer.Timeframe, subject string, flags weakness.Flags) (weakness.Report, error)
	GenerateRecommendations(ctx context.Context, tf analyzer.Timeframe, subject string) ([]suggest.Recommendation, error)
	GenerateLearningPath(ctx context.Context, tf analyzer.Timeframe, subject string) (suggest.LearningPath, error)
	RecordAssessment(ctx context.Context, rec records.AssessmentRecord) error
	Latest() (engine.Summary, bool)
	Invalidate(ctx context.Context) (engine.Summary, error)
}

// scopeArgs are the arguments shared by the analysis tools.
type scopeArgs struct {
	Timeframe string `json:"timeframe"`
	Subject   string `json:"subject"`
	Detailed  bool   `json:"detailed"`
}

// RecordResult acknowledges a stored record.
type RecordResult struct {
	Recorded bool   `json:"recorded"`
	Kind     string `json:"kind"`
}

var (
	scopeSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"timeframe":{"type":"string","enum":["daily","weekly","monthly","quarterly"],"description":"Analysis window (default weekly)"},` +
		`"subject":{"type":"string","description":"Restrict to one subject (case-insensitive)"}},"additionalProperties":false}`)
	weaknessSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"timeframe":{"type":"string","enum":["daily","weekly","monthly","quarterly"],"description":"Analysis window (default weekly)"},` +
		`"subject":{"type":"string","description":"Restrict to one subject (case-insensitive)"},` +
		`"detailed":{"type":"boolean","description":"Include subject breakdowns and action plans"}},"additionalProperties":false}`)
	noArgsSchema     = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)
	assessmentSchema = json.RawMessage(`{"type":"object","properties":{` +
		`"subject":{"type":"string"},"chapter":{"type":"string"},"type":{"type":"string"},` +
		`"total_questions":{"type":"integer"},"correct_answers":{"type":"integer"},` +
		`"time_spent":{"type":"number","description":"Seconds"},` +
		`"difficulty":{"type":"string","enum":["easy","medium","hard"]}},` +
		`"required":["subject","total_questions","correct_answers"]}`)
)

// addTools registers all MCP tool handlers on s.
func addTools(s *Server) {
	s.registerTool(toolDef{
		Name:        "get_metrics",
		Description: "Accuracy, consistency, retention, speed, focus and composite score for a timeframe.",
		InputSchema: scopeSchema,
		Handler:     s.handleGetMetrics,
	})
	s.registerTool(toolDef{
		Name:        "get_trends",
		Description: "Per-interval data points, slopes and learning velocity over a period.",
		InputSchema: scopeSchema,
		Handler:     s.handleGetTrends,
	})
	s.registerTool(toolDef{
		Name:        "get_weaknesses",
		Description: "Detected weaknesses with severity, urgency and impact, plus the overall weakness score.",
		InputSchema: weaknessSchema,
		Handler:     s.handleGetWeaknesses,
	})
	s.registerTool(toolDef{
		Name:        "get_recommendations",
		Description: "Ranked study recommendations for the detected weaknesses.",
		InputSchema: scopeSchema,
		Handler:     s.handleGetRecommendations,
	})
	s.registerTool(toolDef{
		Name:        "get_learning_path",
		Description: "Adaptive study plan with phases, focus areas, review schedule and milestones.",
		InputSchema: scopeSchema,
		Handler:     s.handleGetLearningPath,
	})
	s.registerTool(toolDef{
		Name:        "get_latest_summary",
		Description: "The most recent background analysis summary, computed now if none exists.",
		InputSchema: noArgsSchema,
		Handler:     s.handleGetLatestSummary,
	})
	s.registerTool(toolDef{
		Name:        "record_assessment",
		Description: "Log a completed assessment so later analyses include it.",
		InputSchema: assessmentSchema,
		Handler:     s.handleRecordAssessment,
	})
}

// parseScope decodes scope arguments, defaulting the timeframe to weekly.
func parseScope(args json.RawMessage) (analyzer.Timeframe, scopeArgs, error) {
	var a scopeArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return "", a, fmt.Errorf("invalid arguments: %w", err)
		}
	}
	if strings.TrimSpace(a.Timeframe) == "" {
		return analyzer.Weekly, a, nil
	}
	tf, err := analyzer.ParseTimeframe(a.Timeframe)
	return tf, a, err
}

func (s *Server) handleGetMetrics(ctx context.Context, args json.RawMessage) (any, error) {
	tf, a, err := parseScope(args)
	if err != nil {
		return nil, err
	}
	return s.engine.CalculateMetrics(ctx, tf, a.Subject)
}

func (s *Server) handleGetTrends(ctx context.Context, args json.RawMessage) (any, error) {
	tf, a, err := parseScope(args)
	if err != nil {
		return nil, err
	}
	return s.engine.PerformTrendAnalysis(ctx, tf, a.Subject)
}

// handleGetWeaknesses always includes secondary weaknesses; detailed adds
// breakdowns and action plans.
func (s *Server) handleGetWeaknesses(ctx context.Context, args json.RawMessage) (any, error) {
	tf, a, err := parseScope(args)
	if err != nil {
		return nil, err
	}
	flags := weakness.Flags{Secondary: true}
	if a.Detailed {
		flags = weakness.AllFlags()
	}
	return s.engine.AnalyzeWeaknesses(ctx, tf, a.Subject, flags)
}

func (s *Server) handleGetRecommendations(ctx context.Context, args json.RawMessage) (any, error) {
	tf, a, err := parseScope(args)
	if err != nil {
		return nil, err
	}
	recs, err := s.engine.GenerateRecommendations(ctx, tf, a.Subject)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []suggest.Recommendation{}
	}
	return recs, nil
}

func (s *Server) handleGetLearningPath(ctx context.Context, args json.RawMessage) (any, error) {
	tf, a, err := parseScope(args)
	if err != nil {
		return nil, err
	}
	return s.engine.GenerateLearningPath(ctx, tf, a.Subject)
}

func (s *Server) handleGetLatestSummary(ctx context.Context, _ json.RawMessage) (any, error) {
	if summary, ok := s.engine.Latest(); ok {
		return summary, nil
	}
	return s.engine.Invalidate(ctx)
}

func (s *Server) handleRecordAssessment(ctx context.Context, args json.RawMessage) (any, error) {
	var rec records.AssessmentRecord
	if err := json.Unmarshal(args, &rec); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(rec.Subject) == "" {
		return nil, fmt.Errorf("subject is required")
	}
	if rec.TotalQuestions <= 0 {
		return nil, fmt.Errorf("total_questions must be positive")
	}
	if err := s.engine.RecordAssessment(ctx, rec); err != nil {
		return nil, err
	}
	return RecordResult{Recorded: true, Kind: "assessment"}, nil
}
