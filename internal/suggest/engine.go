package suggest

import (
	"context"

	"github.com/google/uuid"

	"github.com/blackwell-systems/examwatch/internal/logger"
)

// DefaultMaxRecommendations caps the ranked output.
const DefaultMaxRecommendations = 15

// Engine runs all registered rules, optionally asks a text provider for
// extra advice, and ranks the combined output.
type Engine struct {
	rules    []Rule
	provider TextProvider
	max      int
	log      *logger.Logger
}

// NewEngine creates an engine with the built-in rules. provider may be nil.
func NewEngine(provider TextProvider, maxRecommendations int, log *logger.Logger) *Engine {
	if maxRecommendations <= 0 {
		maxRecommendations = DefaultMaxRecommendations
	}
	return &Engine{
		rules:    builtinRules,
		provider: provider,
		max:      maxRecommendations,
		log:      logger.OrNop(log),
	}
}

// Run executes the rules against actx and returns ranked recommendations.
// Provider failures and unparsable provider output are logged and skipped.
func (e *Engine) Run(ctx context.Context, actx *AnalysisContext) []Recommendation {
	var all []Recommendation
	for _, rule := range e.rules {
		all = append(all, rule(actx)...)
	}
	all = append(all, e.generated(ctx, actx)...)

	for i := range all {
		if all[i].ID == "" {
			all[i].ID = uuid.NewString()
		}
	}
	Escalate(all, actx.Report, actx.Metrics.OverallAccuracy)
	return RankRecommendations(all, e.max)
}

func (e *Engine) generated(ctx context.Context, actx *AnalysisContext) []Recommendation {
	if e.provider == nil || actx.Report.HasInsufficientData {
		return nil
	}
	text, err := e.provider.Generate(ctx, BuildPrompt(actx))
	if err != nil {
		e.log.Warn("text provider failed, using rule recommendations only", "error", err)
		return nil
	}
	recs := ParseGenerated(text, actx.Subjects)
	if len(recs) == 0 {
		e.log.Debug("text provider output had no recognizable recommendations")
	}
	return recs
}
