// Package engine orchestrates the analytics pipeline: it owns the result
// cache, reacts to record events with a debounced re-analysis, runs a
// periodic sweep and publishes the resulting summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/cache"
	"github.com/blackwell-systems/examwatch/internal/events"
	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

const tracerName = "github.com/blackwell-systems/examwatch/internal/engine"

// Option configures optional collaborators.
type Option func(*Engine)

// WithRetentionProvider supplies spaced-repetition retention statistics.
func WithRetentionProvider(p analyzer.RetentionProvider) Option {
	return func(e *Engine) { e.retention = p }
}

// WithTextProvider supplies free-text recommendations.
func WithTextProvider(p suggest.TextProvider) Option {
	return func(e *Engine) { e.text = p }
}

// WithBus connects the engine to an event channel.
func WithBus(b events.Bus) Option {
	return func(e *Engine) { e.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine runs analyses over a record source.
type Engine struct {
	cfg       Config
	src       records.Source
	retention analyzer.RetentionProvider
	text      suggest.TextProvider
	bus       events.Bus
	log       *logger.Logger
	now       func() time.Time
	tracer    trace.Tracer

	calc        *analyzer.Calculator
	detector    *weakness.Detector
	advisor     *suggest.Engine
	ruleAdvisor *suggest.Engine
	cache       *cache.Cache

	// mu serializes analyses.
	mu       sync.Mutex
	debounce *debouncer

	stateMu sync.Mutex
	latest  *Summary
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	unsub   func()
	sched   *gocron.Scheduler
}

// New creates an engine over src. Collaborators left unset are absent and
// their contributions fall back to defaults.
func New(cfg Config, src records.Source, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, errors.New("record source required")
	}
	e := &Engine{
		cfg: cfg.withDefaults(),
		src: src,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.OrNop(e.log).With("component", "engine")
	e.tracer = otel.Tracer(tracerName)

	e.cache = cache.New()
	e.cache.SetClock(e.now)
	e.calc = analyzer.NewCalculator(e.cfg.Weights, e.cfg.Periods, e.retention, e.log)
	e.detector = weakness.NewDetector(e.cfg.Weakness, e.calc, e.log)
	e.advisor = suggest.NewEngine(e.text, e.cfg.MaxRecommendations, e.log)
	e.ruleAdvisor = suggest.NewEngine(nil, e.cfg.MaxRecommendations, e.log)
	e.debounce = newDebouncer(e.cfg.Debounce, func() {
		if _, err := e.refresh(e.backgroundCtx(), "debounce"); err != nil {
			e.log.Error("debounced analysis failed", "error", err)
		}
	})
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start subscribes to record events and schedules the periodic sweep.
func (e *Engine) Start(ctx context.Context) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.started {
		return errors.New("engine already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.debounce.Resume()
	if e.bus != nil {
		unsub, err := e.bus.Subscribe(runCtx, e.handleEvent, events.RecordTopics...)
		if err != nil {
			cancel()
			return fmt.Errorf("subscribing to record events: %w", err)
		}
		e.unsub = unsub
	}

	if e.cfg.SweepInterval > 0 {
		s := gocron.NewScheduler(time.UTC)
		if _, err := s.Every(e.cfg.SweepInterval).SingletonMode().WaitForSchedule().Do(e.sweep); err != nil {
			cancel()
			if e.unsub != nil {
				e.unsub()
			}
			return fmt.Errorf("scheduling sweep: %w", err)
		}
		s.StartAsync()
		e.sched = s
	}

	e.runCtx, e.cancel = runCtx, cancel
	e.started = true
	e.log.Info("engine started", "sweep", e.cfg.SweepInterval.String(), "debounce", e.cfg.Debounce.String())
	return nil
}

// Stop cancels pending work, the sweep and the event subscription.
func (e *Engine) Stop() {
	e.debounce.Stop()

	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if !e.started {
		return
	}
	if e.sched != nil {
		e.sched.Stop()
	}
	if e.unsub != nil {
		e.unsub()
	}
	e.cancel()
	e.started = false
}

func (e *Engine) backgroundCtx() context.Context {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.runCtx != nil {
		return e.runCtx
	}
	return context.Background()
}

func (e *Engine) sweep() {
	e.log.Debug("periodic sweep")
	if _, err := e.refresh(e.backgroundCtx(), "sweep"); err != nil {
		e.log.Error("periodic analysis failed", "error", err)
	}
}

// handleEvent reacts to records appended by other processes.
func (e *Engine) handleEvent(_ context.Context, ev events.Event) {
	if ev.Origin == e.cfg.Origin {
		return
	}
	e.log.Debug("record event received", "topic", ev.Topic, "origin", ev.Origin)
	e.cache.Clear()
	e.debounce.Trigger()
}

// RecordSession appends a study session and schedules re-analysis.
func (e *Engine) RecordSession(ctx context.Context, rec records.SessionRecord) error {
	if err := e.src.AppendSession(ctx, rec); err != nil {
		return fmt.Errorf("recording session: %w", err)
	}
	e.recordAdded(ctx, events.TopicSessionCompleted, rec)
	return nil
}

// RecordAssessment appends an assessment and schedules re-analysis.
func (e *Engine) RecordAssessment(ctx context.Context, rec records.AssessmentRecord) error {
	if err := e.src.AppendAssessment(ctx, rec); err != nil {
		return fmt.Errorf("recording assessment: %w", err)
	}
	e.recordAdded(ctx, events.TopicAssessmentCompleted, rec)
	return nil
}

// RecordReview appends a spaced-repetition review and schedules re-analysis.
func (e *Engine) RecordReview(ctx context.Context, rec records.ReviewRecord) error {
	if err := e.src.AppendReview(ctx, rec); err != nil {
		return fmt.Errorf("recording review: %w", err)
	}
	e.recordAdded(ctx, events.TopicReviewCompleted, rec)
	return nil
}

// GoalProgressUpdated signals an external goal change; it stores nothing.
func (e *Engine) GoalProgressUpdated(ctx context.Context, payload any) {
	e.recordAdded(ctx, events.TopicGoalProgressUpdated, payload)
}

func (e *Engine) recordAdded(ctx context.Context, topic events.Topic, payload any) {
	e.cache.Clear()
	e.debounce.Trigger()
	e.publish(ctx, topic, payload)
}

func (e *Engine) publish(ctx context.Context, topic events.Topic, payload any) {
	if e.bus == nil {
		return
	}
	ev, err := events.New(topic, e.cfg.Origin, payload)
	if err == nil {
		err = e.bus.Publish(ctx, ev)
	}
	if err != nil {
		e.log.Warn("publishing event failed", "topic", topic, "error", err)
	}
}

// Latest returns the last published summary. It may be stale while a
// re-analysis is pending.
func (e *Engine) Latest() (Summary, bool) {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	if e.latest == nil {
		return Summary{}, false
	}
	return *e.latest, true
}

// Pending reports whether a debounced re-analysis is scheduled.
func (e *Engine) Pending() bool {
	return e.debounce.Pending()
}

// Invalidate purges the cache and recomputes the summary immediately.
func (e *Engine) Invalidate(ctx context.Context) (Summary, error) {
	e.cache.Clear()
	return e.refresh(ctx, "invalidate")
}

// refresh runs the lightweight re-analysis, stores it as the latest
// summary and publishes it.
func (e *Engine) refresh(ctx context.Context, trigger string) (Summary, error) {
	ctx, end := e.span(ctx, "Refresh", attribute.String("trigger", trigger))

	e.mu.Lock()
	summary, err := guard("Refresh", func() (Summary, error) {
		now := e.now()
		tf := e.cfg.SummaryTimeframe
		report, err := e.detector.Analyze(ctx, e.src, now, tf, "", weakness.Flags{Secondary: true})
		if err != nil {
			return Summary{}, err
		}
		if err := report.Metrics.CheckFinite(); err != nil {
			return Summary{}, &ComputationError{Op: "Refresh", Err: err}
		}
		trends, err := e.calc.PerformTrendAnalysis(ctx, e.src, now, tf, "")
		if err != nil {
			return Summary{}, err
		}
		recs := e.ruleAdvisor.Run(ctx, &suggest.AnalysisContext{Report: report, Metrics: report.Metrics, Trends: trends})
		return newSummary(report, recs), nil
	})
	e.mu.Unlock()
	end(err)
	if err != nil {
		return Summary{}, err
	}

	e.stateMu.Lock()
	e.latest = &summary
	e.stateMu.Unlock()

	e.log.Debug("analysis refreshed", "trigger", trigger, "grade", summary.Grade, "weaknesses", len(summary.Weaknesses))
	e.publish(ctx, events.TopicWeaknessAnalysisUpdated, summary)
	return summary, nil
}

// span starts a tracing span for op and returns a function that ends it,
// recording err when non-nil.
func (e *Engine) span(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := e.tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
