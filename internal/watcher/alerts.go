package watcher

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// compositeDropAlert is the composite score loss that raises a warning
// even without a grade change.
const compositeDropAlert = 5.0

// Compare detects notable changes between two summaries and returns alerts,
// critical first.
func Compare(prev, curr *engine.Summary, now time.Time) []Alert {
	var alerts []Alert

	alerts = append(alerts, compareCritical(prev, curr, now)...)
	alerts = append(alerts, compareWarning(prev, curr, now)...)
	alerts = append(alerts, compareInfo(prev, curr, now)...)

	return alerts
}

func severities(s *engine.Summary) map[weakness.Type]weakness.Severity {
	out := make(map[weakness.Type]weakness.Severity, len(s.Weaknesses))
	for _, w := range s.Weaknesses {
		out[w.Type] = w.Severity
	}
	return out
}

// compareCritical flags weaknesses that became critical.
func compareCritical(prev, curr *engine.Summary, now time.Time) []Alert {
	var alerts []Alert
	before := severities(prev)
	for _, w := range curr.Weaknesses {
		if w.Severity == weakness.SeverityCritical && before[w.Type] != weakness.SeverityCritical {
			alerts = append(alerts, Alert{
				Level:   "critical",
				Title:   fmt.Sprintf("Critical weakness: %s", w.Type),
				Message: w.Title,
				Time:    now,
			})
		}
	}
	return alerts
}

// compareWarning flags new or worsening weaknesses and score losses.
func compareWarning(prev, curr *engine.Summary, now time.Time) []Alert {
	var alerts []Alert
	before := severities(prev)

	for _, w := range curr.Weaknesses {
		if w.Severity == weakness.SeverityCritical {
			continue
		}
		old, existed := before[w.Type]
		switch {
		case !existed:
			alerts = append(alerts, Alert{
				Level:   "warning",
				Title:   fmt.Sprintf("New weakness: %s", w.Type),
				Message: fmt.Sprintf("%s (%s)", w.Title, w.Severity),
				Time:    now,
			})
		case w.Severity.Rank() > old.Rank():
			alerts = append(alerts, Alert{
				Level:   "warning",
				Title:   fmt.Sprintf("Weakness worsened: %s", w.Type),
				Message: fmt.Sprintf("Severity rose from %s to %s", old, w.Severity),
				Time:    now,
			})
		}
	}

	if curr.InsufficientData || prev.InsufficientData {
		return alerts
	}
	if gradeRank(curr.Grade) < gradeRank(prev.Grade) {
		alerts = append(alerts, Alert{
			Level:   "warning",
			Title:   "Grade dropped",
			Message: fmt.Sprintf("Grade fell from %s to %s (score %.0f, was %.0f)", prev.Grade, curr.Grade, curr.CompositeScore, prev.CompositeScore),
			Time:    now,
		})
	} else if drop := prev.CompositeScore - curr.CompositeScore; drop >= compositeDropAlert {
		alerts = append(alerts, Alert{
			Level:   "warning",
			Title:   "Score dropped",
			Message: fmt.Sprintf("Composite score fell from %.0f to %.0f", prev.CompositeScore, curr.CompositeScore),
			Time:    now,
		})
	}
	return alerts
}

// compareInfo reports progress.
func compareInfo(prev, curr *engine.Summary, now time.Time) []Alert {
	var alerts []Alert

	if prev.InsufficientData && !curr.InsufficientData {
		alerts = append(alerts, Alert{
			Level:   "info",
			Title:   "Enough data for analysis",
			Message: fmt.Sprintf("Weakness detection is active (grade %s)", curr.Grade),
			Time:    now,
		})
	}

	after := severities(curr)
	for _, w := range prev.Weaknesses {
		if _, still := after[w.Type]; !still && !curr.InsufficientData {
			alerts = append(alerts, Alert{
				Level:   "info",
				Title:   fmt.Sprintf("Weakness resolved: %s", w.Type),
				Message: w.Title,
				Time:    now,
			})
		}
	}

	if !curr.InsufficientData && !prev.InsufficientData && gradeRank(curr.Grade) > gradeRank(prev.Grade) {
		alerts = append(alerts, Alert{
			Level:   "info",
			Title:   "Grade improved",
			Message: fmt.Sprintf("Grade rose from %s to %s", prev.Grade, curr.Grade),
			Time:    now,
		})
	}
	return alerts
}

// gradeRank orders grades so that A is highest; unknown grades rank 0.
func gradeRank(g string) int {
	switch g {
	case "A":
		return 5
	case "B":
		return 4
	case "C":
		return 3
	case "D":
		return 2
	case "F":
		return 1
	default:
		return 0
	}
}
