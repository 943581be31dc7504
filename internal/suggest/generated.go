package suggest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// TextProvider generates free-text study advice from a prompt. It is
// optional; its output is parsed heuristically.
type TextProvider interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// generatedConfidence is assigned to every parsed recommendation.
const generatedConfidence = 0.6

var (
	numberedLine  = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)
	bulletLine    = regexp.MustCompile(`^\s*[-*•]\s+(.+)$`)
	timeframeExpr = regexp.MustCompile(`(?i)\b(\d+)\s*(day|week|month)s?\b`)
)

// BuildPrompt summarizes the analysis for a text provider.
func BuildPrompt(ctx *AnalysisContext) string {
	var b strings.Builder
	m := ctx.Metrics
	b.WriteString("You are an exam preparation coach. Based on this student's data, give up to 5 numbered recommendations. ")
	b.WriteString("For each, give a short title line, one sentence of explanation, bullet-point actions, and a timeframe such as \"2 weeks\".\n\n")
	fmt.Fprintf(&b, "Timeframe: %s\n", m.Timeframe)
	fmt.Fprintf(&b, "Accuracy: %.1f%% (trend %+.1f)\n", m.OverallAccuracy, m.AccuracyTrend)
	fmt.Fprintf(&b, "Consistency score: %.1f\n", m.ConsistencyScore)
	fmt.Fprintf(&b, "Response speed: %.2f questions/min\n", m.ResponseSpeed)
	fmt.Fprintf(&b, "Retention: %.1f%%\n", m.RetentionRate)
	fmt.Fprintf(&b, "Study time: %.1f h, study days: %.0f%%, focus: %.0f%%\n", m.StudyTime, m.StudyConsistency, m.FocusQuality)
	fmt.Fprintf(&b, "Composite score: %.0f (grade %s)\n", m.CompositeScore, m.Grade)
	if len(ctx.Subjects) > 0 {
		fmt.Fprintf(&b, "Subjects: %s\n", strings.Join(ctx.Subjects, ", "))
	}
	if len(ctx.Report.Weaknesses) > 0 {
		b.WriteString("\nWeaknesses:\n")
		for _, w := range ctx.Report.Weaknesses {
			fmt.Fprintf(&b, "- %s (%s severity): %s\n", w.Type, w.Severity, w.Description)
		}
	}
	return b.String()
}

type block struct {
	title   string
	desc    []string
	actions []string
}

// ParseGenerated extracts recommendations from numbered or bulleted free
// text. It returns nil when no block structure is found.
func ParseGenerated(text string, subjects []string) []Recommendation {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	numbered := false
	for _, l := range lines {
		if numberedLine.MatchString(l) {
			numbered = true
			break
		}
	}

	var blocks []*block
	var cur *block
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if numbered {
			if m := numberedLine.FindStringSubmatch(raw); m != nil {
				cur = &block{title: cleanMarkup(m[1])}
				blocks = append(blocks, cur)
				continue
			}
			if cur == nil {
				continue
			}
			if m := bulletLine.FindStringSubmatch(raw); m != nil {
				cur.actions = append(cur.actions, cleanMarkup(m[1]))
			} else {
				cur.desc = append(cur.desc, cleanMarkup(line))
			}
			continue
		}
		if m := bulletLine.FindStringSubmatch(raw); m != nil {
			cur = &block{title: cleanMarkup(m[1])}
			blocks = append(blocks, cur)
		} else if cur != nil {
			cur.desc = append(cur.desc, cleanMarkup(line))
		}
	}

	var out []Recommendation
	for _, b := range blocks {
		if b.title == "" {
			continue
		}
		title, rest := splitTitle(b.title)
		desc := strings.TrimSpace(strings.Join(append([]string{rest}, b.desc...), " "))
		all := strings.ToLower(b.title + " " + desc + " " + strings.Join(b.actions, " "))
		wt := weaknessFor(all)
		out = append(out, Recommendation{
			Category:    categoryFor(wt),
			Priority:    priorityFor(all),
			Title:       title,
			Description: desc,
			Actions:     b.actions,
			Timeframe:   timeframeFor(all),
			Difficulty:  DifficultyMedium,
			Subjects:    subjectsIn(all, subjects),
			Confidence:  generatedConfidence,
			Source:      SourceGenerated,
			Weakness:    wt,
		})
	}
	return out
}

func cleanMarkup(s string) string {
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	return strings.TrimSpace(s)
}

// splitTitle separates "Title: explanation" or "Title - explanation".
func splitTitle(s string) (string, string) {
	for _, sep := range []string{": ", " - "} {
		if i := strings.Index(s, sep); i > 0 && i < 80 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):])
		}
	}
	return s, ""
}

func priorityFor(text string) Priority {
	switch {
	case containsAny(text, "critical", "urgent", "immediately", "right away"):
		return PriorityCritical
	case containsAny(text, "important", "high priority", "focus on", "must"):
		return PriorityHigh
	case containsAny(text, "consider", "optional", "low priority", "if time"):
		return PriorityLow
	}
	return PriorityMedium
}

func timeframeFor(text string) string {
	m := timeframeExpr.FindStringSubmatch(text)
	if m == nil {
		return "2 weeks"
	}
	unit := strings.ToLower(m[2])
	if m[1] != "1" {
		unit += "s"
	}
	return m[1] + " " + unit
}

var weaknessKeywords = []struct {
	t        weakness.Type
	keywords []string
}{
	{weakness.TypeRetention, []string{"retention", "spaced repetition", "recall", "forget"}},
	{weakness.TypeSpeed, []string{"speed", "timed", "faster", "time per question", "pace"}},
	{weakness.TypeConsistency, []string{"consisten", "variab"}},
	{weakness.TypeDeclining, []string{"declin", "dropping"}},
	{weakness.TypeFocusQuality, []string{"focus quality", "concentrat", "distraction"}},
	{weakness.TypeStudySchedule, []string{"schedule", "routine", "every day", "daily slot"}},
	{weakness.TypeSubjectImbalance, []string{"balance", "neglected"}},
	{weakness.TypeAccuracy, []string{"accuracy", "mistake", "error", "wrong answer"}},
}

func weaknessFor(text string) weakness.Type {
	for _, wk := range weaknessKeywords {
		if containsAny(text, wk.keywords...) {
			return wk.t
		}
	}
	return ""
}

func categoryFor(t weakness.Type) string {
	if tpl, ok := weaknessTemplates[t]; ok {
		return tpl.category
	}
	return "general"
}

func subjectsIn(text string, subjects []string) []string {
	var out []string
	for _, s := range subjects {
		if s != "" && strings.Contains(text, strings.ToLower(s)) {
			out = append(out, s)
		}
	}
	return out
}

func containsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}
