package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/suggest"
)

var (
	suggestLimit    int
	suggestCategory string
)

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Generate ranked study recommendations",
	Long: `Turn detected weaknesses, metrics and trends into ranked study
recommendations. When an Anthropic API key is configured, generated
recommendations are merged with the rule-based ones.`,
	Args: cobra.NoArgs,
	RunE: runSuggest,
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Build an adaptive learning path",
	Long: `Build a multi-week study plan from the current level, weaknesses and
learning velocity: phases, focus areas with daily time allocation, a
study sequence, spaced review dates and milestones.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func init() {
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 0, "Maximum number of recommendations to show (0 = configured maximum)")
	suggestCmd.Flags().StringVar(&suggestCategory, "category", "", "Filter by category (accuracy, retention, schedule, ...)")
	rootCmd.AddCommand(suggestCmd, planCmd)
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	recs, err := rt.engine.GenerateRecommendations(cmd.Context(), tf, flagSubject)
	if err != nil {
		return err
	}
	recs = filterRecommendations(recs, suggestCategory, suggestLimit)

	return emit(recs, func(w io.Writer) error {
		renderRecommendations(w, recs)
		return nil
	})
}

// filterRecommendations keeps category matches (case-insensitive) and
// applies limit. The result is never nil.
func filterRecommendations(recs []suggest.Recommendation, category string, limit int) []suggest.Recommendation {
	filtered := make([]suggest.Recommendation, 0, len(recs))
	for _, r := range recs {
		if category == "" || strings.EqualFold(r.Category, category) {
			filtered = append(filtered, r)
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[:limit]
	}
	return filtered
}

func renderRecommendations(w io.Writer, recs []suggest.Recommendation) {
	if len(recs) == 0 {
		fmt.Fprintln(w, output.Section("Recommendations"))
		fmt.Fprintln(w)
		fmt.Fprintln(w, " No recommendations. Keep up the current plan!")
		return
	}

	fmt.Fprintln(w, output.Section("Study Recommendations"))
	fmt.Fprintln(w)

	for i, r := range recs {
		fmt.Fprintf(w, " #%d %s %s\n", i+1, stylePriority(r.Priority), output.StyleBold.Render(r.Title))
		meta := fmt.Sprintf("Category: %s  |  Difficulty: %s  |  %s", r.Category, r.Difficulty, r.Timeframe)
		if r.Source == suggest.SourceGenerated {
			meta += "  |  generated"
		}
		fmt.Fprintf(w, "    %s\n", output.StyleMuted.Render(meta))
		fmt.Fprintf(w, "    %s\n", r.Description)
		for _, a := range r.Actions {
			fmt.Fprintf(w, "    - %s\n", a)
		}
		if r.ExpectedImpact != "" {
			fmt.Fprintf(w, "    %s %s\n", output.StyleMuted.Render("Expected:"), r.ExpectedImpact)
		}
		fmt.Fprintln(w)
	}
}

func stylePriority(p suggest.Priority) string {
	label := "[" + strings.ToUpper(p.String()) + "]"
	switch p {
	case suggest.PriorityCritical, suggest.PriorityHigh:
		return output.StyleError.Render(label)
	case suggest.PriorityMedium:
		return output.StyleWarning.Render(label)
	default:
		return output.StyleMuted.Render(label)
	}
}

func runPlan(cmd *cobra.Command, _ []string) error {
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	path, err := rt.engine.GenerateLearningPath(cmd.Context(), tf, flagSubject)
	if err != nil {
		return err
	}
	return emit(path, func(w io.Writer) error {
		renderLearningPath(w, path)
		return nil
	})
}

func renderLearningPath(w io.Writer, p suggest.LearningPath) {
	fmt.Fprintln(w, output.Section("Learning Path"))
	line(w, "Level", string(p.UserLevel))
	line(w, "Duration", fmt.Sprintf("%d weeks", p.DurationWeeks))
	line(w, "Daily study", fmt.Sprintf("%.1f h", p.DailyHours))
	line(w, "Learning velocity", fmt.Sprintf("%+.2f", p.LearningVelocity), output.TrendArrow(p.LearningVelocity, true))
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleBold.Render(" Phases"))
	week := 1
	for _, ph := range p.Phases {
		span := fmt.Sprintf("week %d", week)
		if ph.Weeks > 1 {
			span = fmt.Sprintf("weeks %d-%d", week, week+ph.Weeks-1)
		}
		fmt.Fprintf(w, "   %s %s %s\n", output.StyleLabel.Render(ph.Name), output.StyleMuted.Render(span), ph.Goal)
		week += ph.Weeks
	}

	if len(p.FocusAreas) > 0 {
		fmt.Fprintln(w)
		tbl := output.NewTable("Focus", "Severity", "Priority", "h/day", "Strategy").AlignRight(2, 3).MaxWidth(4, 48)
		for _, f := range p.FocusAreas {
			tbl.AddRow(string(f.Type), output.Severity(string(f.Severity)),
				fmt.Sprintf("%.0f", f.Priority), fmt.Sprintf("%.1f", f.TimeAllocation), f.Strategy)
		}
		tbl.Fprint(w)
	}

	if len(p.StudySequence) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.StyleBold.Render(" Daily sequence"))
		for _, t := range p.StudySequence {
			fmt.Fprintf(w, "   %d. %s %s\n", t.Order, t.Activity, output.StyleMuted.Render(fmt.Sprintf("(%d min)", t.Minutes)))
		}
	}

	if len(p.ReviewSchedule) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.StyleBold.Render(" Reviews"))
		for _, r := range p.ReviewSchedule {
			dates := make([]string, 0, len(r.Dates))
			for _, d := range r.Dates {
				dates = append(dates, d.Local().Format("Jan 02"))
			}
			fmt.Fprintf(w, "   %s %s\n", output.StyleLabel.Render(string(r.Weakness)), strings.Join(dates, ", "))
		}
	}

	if len(p.Milestones) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.StyleBold.Render(" Milestones"))
		for _, m := range p.Milestones {
			fmt.Fprintf(w, "   %s %s %s\n", output.StyleMuted.Render(fmt.Sprintf("week %d", m.Week)), m.Title, output.StyleMuted.Render("("+m.Target+")"))
		}
	}
}
