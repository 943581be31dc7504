package engine

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/cache"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// CalculateMetrics returns the metrics snapshot for tf and subject (empty
// for all subjects). Results are cached for the metrics TTL.
func (e *Engine) CalculateMetrics(ctx context.Context, tf analyzer.Timeframe, subject string) (analyzer.MetricsSnapshot, error) {
	ctx, end := e.span(ctx, "CalculateMetrics", scope(tf, subject)...)
	e.mu.Lock()
	m, err := e.metrics(ctx, tf, subject)
	e.mu.Unlock()
	end(err)
	return m, err
}

// PerformTrendAnalysis returns interval data points, slopes and their
// interpretation over period.
func (e *Engine) PerformTrendAnalysis(ctx context.Context, period analyzer.Timeframe, subject string) (analyzer.TrendReport, error) {
	ctx, end := e.span(ctx, "PerformTrendAnalysis", scope(period, subject)...)
	e.mu.Lock()
	r, err := e.trends(ctx, period, subject)
	e.mu.Unlock()
	end(err)
	return r, err
}

// AnalyzeWeaknesses classifies weaknesses for tf and subject.
func (e *Engine) AnalyzeWeaknesses(ctx context.Context, tf analyzer.Timeframe, subject string, flags weakness.Flags) (weakness.Report, error) {
	ctx, end := e.span(ctx, "AnalyzeWeaknesses", scope(tf, subject)...)
	e.mu.Lock()
	r, err := e.report(ctx, tf, subject, flags)
	e.mu.Unlock()
	end(err)
	return r, err
}

// GenerateRecommendations returns ranked recommendations for tf and subject.
func (e *Engine) GenerateRecommendations(ctx context.Context, tf analyzer.Timeframe, subject string) ([]suggest.Recommendation, error) {
	ctx, end := e.span(ctx, "GenerateRecommendations", scope(tf, subject)...)
	e.mu.Lock()
	recs, err := e.recommendations(ctx, tf, subject)
	e.mu.Unlock()
	end(err)
	return recs, err
}

// GenerateLearningPath builds the adaptive study plan for tf and subject.
func (e *Engine) GenerateLearningPath(ctx context.Context, tf analyzer.Timeframe, subject string) (suggest.LearningPath, error) {
	ctx, end := e.span(ctx, "GenerateLearningPath", scope(tf, subject)...)
	e.mu.Lock()
	p, err := e.learningPath(ctx, tf, subject)
	e.mu.Unlock()
	end(err)
	return p, err
}

// FullAnalysis runs every stage for tf and subject.
func (e *Engine) FullAnalysis(ctx context.Context, tf analyzer.Timeframe, subject string) (Analysis, error) {
	ctx, end := e.span(ctx, "FullAnalysis", scope(tf, subject)...)
	e.mu.Lock()
	a, err := e.full(ctx, tf, subject)
	e.mu.Unlock()
	end(err)
	return a, err
}

// The unexported stages below assume e.mu is held.

func (e *Engine) metrics(ctx context.Context, tf analyzer.Timeframe, subject string) (analyzer.MetricsSnapshot, error) {
	return cached[analyzer.MetricsSnapshot](e, cacheKey("metrics", tf, subject), e.cfg.MetricsTTL, nil, func() (analyzer.MetricsSnapshot, error) {
		return guard("CalculateMetrics", func() (analyzer.MetricsSnapshot, error) {
			m, err := e.calc.Calculate(ctx, e.src, e.now(), tf, subject)
			if err != nil {
				return m, err
			}
			if err := m.CheckFinite(); err != nil {
				return analyzer.MetricsSnapshot{}, &ComputationError{Op: "CalculateMetrics", Err: err}
			}
			return m, nil
		})
	})
}

func (e *Engine) trends(ctx context.Context, period analyzer.Timeframe, subject string) (analyzer.TrendReport, error) {
	return cached(e, cacheKey("trends", period, subject), e.cfg.ReportTTL, analyzer.TrendReport.Clone, func() (analyzer.TrendReport, error) {
		return guard("PerformTrendAnalysis", func() (analyzer.TrendReport, error) {
			r, err := e.calc.PerformTrendAnalysis(ctx, e.src, e.now(), period, subject)
			if err != nil {
				return r, err
			}
			if err := checkTrends(r.Trends); err != nil {
				return analyzer.TrendReport{}, &ComputationError{Op: "PerformTrendAnalysis", Err: err}
			}
			return r, nil
		})
	})
}

func (e *Engine) report(ctx context.Context, tf analyzer.Timeframe, subject string, flags weakness.Flags) (weakness.Report, error) {
	key := cacheKey(fmt.Sprintf("weaknesses:%t:%t:%t", flags.Secondary, flags.Detailed, flags.ActionPlans), tf, subject)
	return cached(e, key, e.cfg.ReportTTL, weakness.Report.Clone, func() (weakness.Report, error) {
		return guard("AnalyzeWeaknesses", func() (weakness.Report, error) {
			r, err := e.detector.Analyze(ctx, e.src, e.now(), tf, subject, flags)
			if err != nil {
				return r, err
			}
			if err := r.Metrics.CheckFinite(); err != nil {
				return weakness.Report{}, &ComputationError{Op: "AnalyzeWeaknesses", Err: err}
			}
			return r, nil
		})
	})
}

func (e *Engine) recommendations(ctx context.Context, tf analyzer.Timeframe, subject string) ([]suggest.Recommendation, error) {
	return cached(e, cacheKey("recommendations", tf, subject), e.cfg.ReportTTL, suggest.CloneRecommendations, func() ([]suggest.Recommendation, error) {
		report, err := e.report(ctx, tf, subject, weakness.AllFlags())
		if err != nil {
			return nil, err
		}
		trends, err := e.trends(ctx, tf, subject)
		if err != nil {
			return nil, err
		}
		subjects, err := e.subjects(ctx, tf, subject)
		if err != nil {
			return nil, err
		}
		return guard("GenerateRecommendations", func() ([]suggest.Recommendation, error) {
			return e.advisor.Run(ctx, &suggest.AnalysisContext{
				Report:   report,
				Metrics:  report.Metrics,
				Trends:   trends,
				Subjects: subjects,
			}), nil
		})
	})
}

func (e *Engine) learningPath(ctx context.Context, tf analyzer.Timeframe, subject string) (suggest.LearningPath, error) {
	return cached(e, cacheKey("path", tf, subject), e.cfg.ReportTTL, suggest.LearningPath.Clone, func() (suggest.LearningPath, error) {
		report, err := e.report(ctx, tf, subject, weakness.AllFlags())
		if err != nil {
			return suggest.LearningPath{}, err
		}
		trends, err := e.trends(ctx, tf, subject)
		if err != nil {
			return suggest.LearningPath{}, err
		}
		return guard("GenerateLearningPath", func() (suggest.LearningPath, error) {
			return suggest.BuildLearningPath(report.Metrics, report, trends.LearningVelocity(), e.cfg.Path, e.now()), nil
		})
	})
}

func (e *Engine) full(ctx context.Context, tf analyzer.Timeframe, subject string) (Analysis, error) {
	var (
		a   Analysis
		err error
	)
	if a.Metrics, err = e.metrics(ctx, tf, subject); err != nil {
		return Analysis{}, err
	}
	if a.Trends, err = e.trends(ctx, tf, subject); err != nil {
		return Analysis{}, err
	}
	if a.Report, err = e.report(ctx, tf, subject, weakness.AllFlags()); err != nil {
		return Analysis{}, err
	}
	if a.Recommendations, err = e.recommendations(ctx, tf, subject); err != nil {
		return Analysis{}, err
	}
	if a.LearningPath, err = e.learningPath(ctx, tf, subject); err != nil {
		return Analysis{}, err
	}
	return a, nil
}

// subjects lists the distinct subjects recorded in the tf window.
func (e *Engine) subjects(ctx context.Context, tf analyzer.Timeframe, subject string) ([]string, error) {
	days, err := e.cfg.Periods.Days(tf)
	if err != nil {
		return nil, err
	}
	set, err := records.Window(ctx, e.src, e.now(), days, subject)
	if err != nil {
		return nil, fmt.Errorf("querying subjects: %w", err)
	}
	var out []string
	add := func(s string) {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	for _, s := range set.Sessions {
		add(s.Subject)
	}
	for _, a := range set.Assessments {
		add(a.Subject)
	}
	slices.Sort(out)
	return out, nil
}

// cached returns the cached value for key or computes and stores it.
// Failed computations are not stored, and neither are results whose
// computation overlapped a Clear. Callers receive clone(v) so the stored
// value stays unshared; a nil clone suits plain value types.
func cached[T any](e *Engine, key string, ttl time.Duration, clone func(T) T, compute func() (T, error)) (T, error) {
	if clone == nil {
		clone = func(v T) T { return v }
	}
	if v, ok := cache.Typed[T](e.cache, key); ok {
		return clone(v), nil
	}
	gen := e.cache.Generation()
	v, err := compute()
	if err != nil {
		var zero T
		return zero, err
	}
	if !e.cache.SetIfCurrent(key, v, ttl, gen) {
		e.log.Debug("result not cached, records changed during computation", "key", key)
	}
	return clone(v), nil
}

func cacheKey(kind string, tf analyzer.Timeframe, subject string) string {
	return kind + "|" + string(tf) + "|" + strings.ToLower(strings.TrimSpace(subject))
}

func scope(tf analyzer.Timeframe, subject string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("timeframe", string(tf)),
		attribute.String("subject", subject),
	}
}

func checkTrends(t analyzer.Trends) error {
	for name, v := range map[string]float64{
		"accuracy":       t.Accuracy,
		"study_time":     t.StudyTime,
		"focus_quality":  t.FocusQuality,
		"response_speed": t.ResponseSpeed,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("trend %s is not finite", name)
		}
	}
	return nil
}
