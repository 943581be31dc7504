package analyzer

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/examwatch/internal/records"
)

// trendBuckets is the target number of intervals a period is split into.
const trendBuckets = 10

// PerformTrendAnalysis splits the period ending at now into intervals of
// max(1, days/10) days and fits a slope through each metric's series.
func (c *Calculator) PerformTrendAnalysis(ctx context.Context, src records.Source, now time.Time, period Timeframe, subject string) (TrendReport, error) {
	days, err := c.periods.Days(period)
	if err != nil {
		return TrendReport{}, err
	}
	set, err := records.Window(ctx, src, now, days, subject)
	if err != nil {
		return TrendReport{}, fmt.Errorf("querying %s window: %w", period, err)
	}
	return AnalyzeTrends(set, period, days, subject, now), nil
}

// AnalyzeTrends is the pure form of PerformTrendAnalysis over a loaded set.
func AnalyzeTrends(set records.Set, period Timeframe, days int, subject string, now time.Time) TrendReport {
	interval := max(1, days/trendBuckets)
	report := TrendReport{
		Period:       period,
		Subject:      subject,
		IntervalDays: interval,
		ComputedAt:   now,
	}

	start := now.AddDate(0, 0, -days)
	for bStart := start; bStart.Before(now); bStart = bStart.AddDate(0, 0, interval) {
		bEnd := bStart.AddDate(0, 0, interval)
		last := !bEnd.Before(now)
		if last {
			bEnd = now
		}
		if dp, ok := bucket(set, bStart, bEnd, last); ok {
			report.DataPoints = append(report.DataPoints, dp)
		}
	}

	var acc, study, focus, speed []float64
	for _, dp := range report.DataPoints {
		if dp.Assessments > 0 {
			acc = append(acc, dp.Accuracy)
		}
		if dp.Timed > 0 {
			speed = append(speed, dp.ResponseSpeed)
		}
		if dp.Sessions > 0 {
			study = append(study, dp.StudyTime)
			focus = append(focus, dp.FocusQuality)
		}
	}
	report.Trends = Trends{
		Accuracy:      Slope(acc),
		StudyTime:     Slope(study),
		FocusQuality:  Slope(focus),
		ResponseSpeed: Slope(speed),
	}
	report.Interpretations = Interpret(report.Trends)
	return report
}

// bucket aggregates records in [start, end), or [start, end] for the final
// bucket. ok is false when the bucket holds no sessions or assessments.
func bucket(set records.Set, start, end time.Time, inclusive bool) (DataPoint, bool) {
	dp := DataPoint{Start: start, End: end}
	in := func(t time.Time) bool {
		if t.Before(start) {
			return false
		}
		if inclusive {
			return !t.After(end)
		}
		return t.Before(end)
	}

	var seconds float64
	var focus []float64
	for _, s := range set.Sessions {
		if !in(s.Timestamp) {
			continue
		}
		dp.Sessions++
		seconds += s.Duration
		focus = append(focus, s.FocusQuality)
	}
	dp.StudyTime = seconds / 3600
	dp.FocusQuality = Mean(focus)

	var correct, total int
	var speeds []float64
	for _, a := range set.Assessments {
		if !in(a.Timestamp) {
			continue
		}
		dp.Assessments++
		correct += a.CorrectAnswers
		total += a.TotalQuestions
		if a.TimeSpent > 0 {
			speeds = append(speeds, a.QuestionsPerMinute())
		}
	}
	if total > 0 {
		dp.Accuracy = float64(correct) / float64(total) * 100
	}
	dp.Timed = len(speeds)
	dp.ResponseSpeed = Mean(speeds)

	return dp, dp.Sessions > 0 || dp.Assessments > 0
}

// Interpret labels each slope that crosses its signal threshold.
func Interpret(t Trends) []Interpretation {
	var out []Interpretation
	switch {
	case t.Accuracy > 1:
		out = append(out, Interpretation{"accuracy", "improving", fmt.Sprintf("Accuracy is improving strongly (+%.1f pts per interval)", t.Accuracy)})
	case t.Accuracy < -1:
		out = append(out, Interpretation{"accuracy", "declining", fmt.Sprintf("Accuracy is declining at a concerning rate (%.1f pts per interval)", t.Accuracy)})
	}
	switch {
	case t.StudyTime > 0.1:
		out = append(out, Interpretation{"study_time", "increasing", "Study time is increasing"})
	case t.StudyTime < -0.1:
		out = append(out, Interpretation{"study_time", "decreasing", "Study time is decreasing"})
	}
	switch {
	case t.FocusQuality > 0.5:
		out = append(out, Interpretation{"focus_quality", "improving", "Focus quality is improving"})
	case t.FocusQuality < -0.5:
		out = append(out, Interpretation{"focus_quality", "declining", "Focus quality is declining"})
	}
	if t.ResponseSpeed > 0.1 {
		out = append(out, Interpretation{"response_speed", "improving", "Response speed is improving"})
	}
	return out
}
