package output

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// sectionWidth is the rule length under section headers.
const sectionWidth = 66

// trendEpsilon is the smallest delta shown as a movement.
const trendEpsilon = 0.05

// scoreStyle colours a 0-100 score by the grade bands: B and up is good,
// C and D are borderline.
func scoreStyle(score float64) lipgloss.Style {
	switch {
	case score >= 75:
		return StyleSuccess
	case score >= 45:
		return StyleWarning
	}
	return StyleError
}

// ScoreBar renders a 0-100 score as a bar of width cells with half-cell
// precision, e.g. "████████▌░ 85/100". Width defaults to 20.
func ScoreBar(score float64, width int) string {
	if width <= 0 {
		width = 20
	}
	halves := int(math.Round(math.Max(0, math.Min(score, 100)) / 100 * float64(width*2)))
	full, half := halves/2, halves%2

	bar := strings.Repeat("█", full) + strings.Repeat("▌", half) + strings.Repeat("░", width-full-half)
	return scoreStyle(score).Render(bar) + " " + StyleMuted.Render(fmt.Sprintf("%.0f/100", score))
}

// TrendArrow renders a signed delta as ▲ or ▼ with its value, or a dash
// when the move is negligible. Green marks an improvement: a rise when
// higherIsBetter, a fall otherwise.
func TrendArrow(delta float64, higherIsBetter bool) string {
	if math.Abs(delta) < trendEpsilon {
		return StyleMuted.Render("─")
	}
	arrow := fmt.Sprintf("▼ %.1f", delta)
	if delta > 0 {
		arrow = fmt.Sprintf("▲ +%.1f", delta)
	}
	if (delta > 0) == higherIsBetter {
		return StyleSuccess.Render(arrow)
	}
	return StyleError.Render(arrow)
}

// Severity renders a weakness severity as an upper-case label.
func Severity(s string) string {
	label := strings.ToUpper(s)
	if noColor {
		return label
	}
	switch s {
	case "critical":
		return StyleError.Bold(true).Render(label)
	case "high":
		return StyleError.Render(label)
	case "medium":
		return StyleWarning.Render(label)
	}
	return StyleMuted.Render(label)
}

// Grade renders a letter grade.
func Grade(g string) string {
	if noColor {
		return g
	}
	style := StyleError
	switch g {
	case "A", "B":
		style = StyleSuccess
	case "C":
		style = StyleWarning
	}
	return style.Bold(true).Render(g)
}

// Section renders a header line with a rule beneath it, preceded by a
// blank line.
func Section(title string) string {
	return "\n " + StyleHeader.Render(title) + "\n " + StyleMuted.Render(strings.Repeat("─", sectionWidth))
}
