// Package watcher follows published analysis summaries and emits alerts
// when a new one differs notably from the last.
package watcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/events"
	"github.com/blackwell-systems/examwatch/internal/logger"
)

// Alert represents a notable change between two summaries.
type Alert struct {
	Level   string // "info", "warning", "critical"
	Title   string
	Message string
	Time    time.Time
}

// Refresher recomputes the summary on demand. *engine.Engine satisfies it.
type Refresher interface {
	Invalidate(ctx context.Context) (engine.Summary, error)
}

// Watcher compares each summary it sees with the previous one.
type Watcher struct {
	refresher Refresher
	bus       events.Bus
	interval  time.Duration
	alertFn   func(Alert)
	log       *logger.Logger
	now       func() time.Time

	mu            sync.Mutex
	previous      *engine.Summary
	lastAlertKeys map[string]bool // dedup: suppress repeated identical alerts
}

// New creates a Watcher. bus may be nil, in which case only the periodic
// refresh feeds the watcher.
func New(r Refresher, bus events.Bus, interval time.Duration, alertFn func(Alert), log *logger.Logger) *Watcher {
	return &Watcher{
		refresher:     r,
		bus:           bus,
		interval:      interval,
		alertFn:       alertFn,
		log:           logger.OrNop(log).With("component", "watcher"),
		now:           time.Now,
		lastAlertKeys: make(map[string]bool),
	}
}

// Run takes a baseline, then refreshes at every interval and reacts to
// published summaries. Blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.bus != nil {
		unsub, err := w.bus.Subscribe(ctx, w.handleEvent, events.TopicWeaknessAnalysisUpdated)
		if err != nil {
			return fmt.Errorf("subscribing to summaries: %w", err)
		}
		defer unsub()
	}

	if err := w.refresh(ctx); err != nil {
		return fmt.Errorf("initial analysis: %w", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.refresh(ctx); err != nil {
				w.emit([]Alert{{
					Level:   "warning",
					Title:   "Analysis failed",
					Message: fmt.Sprintf("Could not refresh the analysis: %v", err),
					Time:    w.now(),
				}})
			}
		}
	}
}

// refresh asks for a new summary. With a bus, the published summary
// arrives through handleEvent; without one it is observed directly.
func (w *Watcher) refresh(ctx context.Context) error {
	s, err := w.refresher.Invalidate(ctx)
	if err != nil {
		return err
	}
	if w.bus == nil {
		w.emit(w.Observe(s))
	}
	return nil
}

func (w *Watcher) handleEvent(_ context.Context, ev events.Event) {
	var s engine.Summary
	if err := ev.Decode(&s); err != nil {
		w.log.Warn("bad summary payload", "event", ev.ID, "error", err)
		return
	}
	w.emit(w.Observe(s))
}

func (w *Watcher) emit(alerts []Alert) {
	if w.alertFn == nil {
		return
	}
	for _, a := range alerts {
		w.alertFn(a)
	}
}

// Observe compares s against the previous summary, records it as the new
// previous, and returns the alerts. Identical alerts are suppressed until
// the underlying data changes. The first summary only sets the baseline.
func (w *Watcher) Observe(s engine.Summary) []Alert {
	w.mu.Lock()
	defer w.mu.Unlock()

	var raw []Alert
	if w.previous != nil {
		raw = Compare(w.previous, &s, w.now())
	}
	w.previous = &s

	currentKeys := make(map[string]bool, len(raw))
	var alerts []Alert
	for _, a := range raw {
		key := a.Level + ":" + a.Title + ":" + a.Message
		currentKeys[key] = true
		if !w.lastAlertKeys[key] {
			alerts = append(alerts, a)
		}
	}
	w.lastAlertKeys = currentKeys
	return alerts
}

// Previous returns the last observed summary.
func (w *Watcher) Previous() (engine.Summary, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.previous == nil {
		return engine.Summary{}, false
	}
	return *w.previous, true
}
