package retention

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// ErrNoReviews is returned when there is nothing to derive retention from.
var ErrNoReviews = errors.New("no review history")

// Provider replays review records through SM-2 to derive retention
// statistics. It implements analyzer.RetentionProvider.
type Provider struct {
	src records.Source
	sm  *SM2
	now func() time.Time
}

// NewProvider creates a provider over src. A nil sm uses NewSM2.
func NewProvider(src records.Source, sm *SM2) *Provider {
	if sm == nil {
		sm = NewSM2()
	}
	return &Provider{src: src, sm: sm, now: time.Now}
}

// SetClock overrides the clock used for due-date checks.
func (p *Provider) SetClock(now func() time.Time) {
	p.now = now
}

// Items replays all retained reviews and returns the per-item state,
// ordered by item id.
func (p *Provider) Items(ctx context.Context) ([]Item, error) {
	set, err := p.src.QueryRange(ctx, time.Time{}, p.now(), "")
	if err != nil {
		return nil, fmt.Errorf("loading reviews: %w", err)
	}
	reviews := set.Reviews
	sort.SliceStable(reviews, func(i, j int) bool { return reviews[i].Timestamp.Before(reviews[j].Timestamp) })

	byID := make(map[string]*Item)
	for _, r := range reviews {
		id := r.ItemID
		if id == "" {
			id = r.ID
		}
		it, ok := byID[id]
		if !ok {
			item := NewItem(id, r.Subject)
			it = &item
			byID[id] = it
		}
		p.sm.Review(it, Quality(r.Quality), r.Timestamp)
	}

	items := make([]Item, 0, len(byID))
	for _, it := range byID {
		items = append(items, *it)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// GetRetentionStatistics reports the share of items whose latest review
// passed. With no reviewed items it returns an error so callers fall back.
func (p *Provider) GetRetentionStatistics(ctx context.Context) (analyzer.RetentionStatistics, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return analyzer.RetentionStatistics{}, err
	}
	if len(items) == 0 {
		return analyzer.RetentionStatistics{}, ErrNoReviews
	}

	now := p.now()
	stats := analyzer.RetentionStatistics{ItemsTracked: len(items)}
	passed := 0
	for _, it := range items {
		if p.sm.Passed(it) {
			passed++
		}
		if p.sm.IsMastered(it) {
			stats.Mastered++
		}
		if !it.NextReview.After(now) {
			stats.DueItems++
		}
	}
	stats.RetentionRate = float64(passed) / float64(len(items)) * 100
	return stats, nil
}

// Due returns the items due for review now.
func (p *Provider) Due(ctx context.Context, limit int) ([]Item, error) {
	items, err := p.Items(ctx)
	if err != nil {
		return nil, err
	}
	return p.sm.Due(items, p.now(), limit), nil
}
