package analyzer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// passingQuality is the lowest SM-2 review quality counted as retained.
const passingQuality = 3

// RetentionStatistics is what a spaced-repetition scheduler reports.
type RetentionStatistics struct {
	RetentionRate float64 `json:"retention_rate"` // 0-100
	ItemsTracked  int     `json:"items_tracked"`
	DueItems      int     `json:"due_items"`
	Mastered      int     `json:"mastered"`
}

// RetentionProvider supplies retention statistics from a spaced-repetition
// scheduler. It is optional.
type RetentionProvider interface {
	GetRetentionStatistics(ctx context.Context) (RetentionStatistics, error)
}

// Calculator computes MetricsSnapshots.
type Calculator struct {
	weights   Weights
	periods   Periods
	retention RetentionProvider
	log       *logger.Logger
}

// NewCalculator creates a calculator. retention may be nil.
func NewCalculator(weights Weights, periods Periods, retention RetentionProvider, log *logger.Logger) *Calculator {
	return &Calculator{
		weights:   weights,
		periods:   periods,
		retention: retention,
		log:       logger.OrNop(log),
	}
}

// Periods returns the calculator's timeframe lengths.
func (c *Calculator) Periods() Periods {
	return c.periods
}

// Calculate loads the timeframe window from src and computes its metrics.
func (c *Calculator) Calculate(ctx context.Context, src records.Source, now time.Time, tf Timeframe, subject string) (MetricsSnapshot, error) {
	days, err := c.periods.Days(tf)
	if err != nil {
		return MetricsSnapshot{}, err
	}
	set, err := records.Window(ctx, src, now, days, subject)
	if err != nil {
		return MetricsSnapshot{}, fmt.Errorf("querying %s window: %w", tf, err)
	}
	return c.Compute(ctx, set, tf, days, subject, now), nil
}

// Compute derives the metrics of an already filtered record set. now is the
// end of the window.
func (c *Calculator) Compute(ctx context.Context, set records.Set, tf Timeframe, days int, subject string, now time.Time) MetricsSnapshot {
	m := MetricsSnapshot{
		Timeframe:  tf,
		Subject:    subject,
		Days:       days,
		ComputedAt: now,
		DataPoints: Counts{
			Sessions:    len(set.Sessions),
			Assessments: len(set.Assessments),
			Reviews:     len(set.Reviews),
		},
	}

	c.sessionMetrics(&m, set.Sessions, days, now)
	assessmentMetrics(&m, set.Assessments)
	m.RetentionRate, m.RetentionSource = c.retentionRate(ctx, set.Reviews)
	m.CompositeScore = c.composite(m)
	m.Grade = Grade(m.CompositeScore)
	return m
}

func (c *Calculator) sessionMetrics(m *MetricsSnapshot, sessions []records.SessionRecord, days int, now time.Time) {
	if len(sessions) == 0 {
		return
	}
	var total float64
	focus := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		total += s.Duration
		focus = append(focus, s.FocusQuality)
	}
	m.StudyTime = total / 3600
	m.AvgSessionDuration = total / float64(len(sessions)) / 60
	m.FocusQuality = Mean(focus)
	m.StudyConsistency = StudyConsistency(sessions, days, now)
}

// StudyConsistency is the share of study days within the effective window:
// the shorter of the configured window and the span from the earliest
// session's day through today inclusive. Capped at 100.
func StudyConsistency(sessions []records.SessionRecord, windowDays int, now time.Time) float64 {
	if len(sessions) == 0 {
		return 0
	}
	loc := now.Location()
	today := dayOf(now, loc)
	earliest := today
	days := make(map[time.Time]struct{})
	for _, s := range sessions {
		d := dayOf(s.Timestamp, loc)
		days[d] = struct{}{}
		if d.Before(earliest) {
			earliest = d
		}
	}
	span := int(math.Round(today.Sub(earliest).Hours()/24)) + 1
	effective := span
	if windowDays > 0 && windowDays < effective {
		effective = windowDays
	}
	if effective <= 0 {
		return 0
	}
	return math.Min(100, float64(len(days))/float64(effective)*100)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	y, mo, d := t.In(loc).Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, loc)
}

func assessmentMetrics(m *MetricsSnapshot, assessments []records.AssessmentRecord) {
	m.ConsistencyScore = 100
	if len(assessments) == 0 {
		return
	}

	sorted := make([]records.AssessmentRecord, len(assessments))
	copy(sorted, assessments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var correct, total int
	var timedSeconds float64
	var timedQuestions int
	accuracies := make([]float64, 0, len(sorted))
	var speeds []float64
	for _, a := range sorted {
		correct += a.CorrectAnswers
		total += a.TotalQuestions
		accuracies = append(accuracies, a.AccuracyPercent())
		if a.TimeSpent > 0 {
			speeds = append(speeds, a.QuestionsPerMinute())
			if a.TotalQuestions > 0 {
				timedSeconds += a.TimeSpent
				timedQuestions += a.TotalQuestions
			}
		}
	}

	if total > 0 {
		m.OverallAccuracy = float64(correct) / float64(total) * 100
	}
	m.AccuracyTrend = HalfDelta(accuracies)
	m.ResponseSpeed = Mean(speeds)
	m.SpeedTrend = HalfDelta(speeds)
	if timedQuestions > 0 {
		m.AvgTimePerQuestion = timedSeconds / float64(timedQuestions)
	}

	if len(accuracies) >= 2 {
		first, last := accuracies[0], accuracies[len(accuracies)-1]
		if first > 0 {
			m.ImprovementRate = (last - first) / first * 100
		}
	}
	if len(accuracies) >= 3 {
		m.ConsistencyScore = 100 - math.Min(100, StdDev(accuracies)/50*100)
	}
}

// retentionRate prefers the provider, then the pass ratio of the window's
// reviews, then zero.
func (c *Calculator) retentionRate(ctx context.Context, reviews []records.ReviewRecord) (float64, RetentionSource) {
	if c.retention != nil {
		stats, err := c.retention.GetRetentionStatistics(ctx)
		if err == nil && !math.IsNaN(stats.RetentionRate) && !math.IsInf(stats.RetentionRate, 0) {
			return clamp(stats.RetentionRate, 0, 100), RetentionFromProvider
		}
		c.log.Warn("retention provider unavailable, falling back", "error", err)
	}
	if len(reviews) == 0 {
		return 0, RetentionUnavailable
	}
	passed := 0
	for _, r := range reviews {
		if r.Quality >= passingQuality {
			passed++
		}
	}
	return float64(passed) / float64(len(reviews)) * 100, RetentionFromReviews
}

func (c *Calculator) composite(m MetricsSnapshot) float64 {
	speed := math.Min(100, m.ResponseSpeed/2*100)
	score := m.OverallAccuracy*c.weights.Accuracy +
		m.ConsistencyScore*c.weights.Consistency +
		speed*c.weights.Speed +
		m.RetentionRate*c.weights.Retention
	return clamp(math.Round(score), 0, 100)
}
