package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

var (
	weakSecondary bool
	weakDetailed  bool
	weakPlans     bool
	weakAll       bool
)

var weaknessesCmd = &cobra.Command{
	Use:     "weaknesses",
	Aliases: []string{"weak"},
	Short:   "Detect and rank weaknesses",
	Long: `Evaluate the threshold rules against the selected timeframe's metrics
and list the triggered weaknesses, ranked by urgency, severity and impact.
The weakness score is lower-is-better (0 means nothing was detected).

Examples:
  examwatch weaknesses
  examwatch weaknesses --plans -t monthly
  examwatch weaknesses --all -s Chemistry`,
	Args: cobra.NoArgs,
	RunE: runWeaknesses,
}

func init() {
	weaknessesCmd.Flags().BoolVar(&weakSecondary, "secondary", true, "Include schedule, focus and balance findings")
	weaknessesCmd.Flags().BoolVar(&weakDetailed, "detailed", false, "Include per-subject and per-difficulty breakdowns")
	weaknessesCmd.Flags().BoolVar(&weakPlans, "plans", false, "Attach action plans to the top weaknesses")
	weaknessesCmd.Flags().BoolVar(&weakAll, "all", false, "Shorthand for --detailed --plans")
	rootCmd.AddCommand(weaknessesCmd)
}

func weaknessFlags() weakness.Flags {
	if weakAll {
		return weakness.AllFlags()
	}
	return weakness.Flags{Secondary: weakSecondary, Detailed: weakDetailed, ActionPlans: weakPlans}
}

func runWeaknesses(cmd *cobra.Command, _ []string) error {
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.engine.AnalyzeWeaknesses(cmd.Context(), tf, flagSubject, weaknessFlags())
	if err != nil {
		return err
	}
	return emit(report, func(w io.Writer) error {
		renderWeaknesses(w, report)
		return nil
	})
}

func renderWeaknesses(w io.Writer, r weakness.Report) {
	fmt.Fprintln(w, output.Section(scopeTitle("Weaknesses", r.Timeframe, r.Subject)))

	if r.HasInsufficientData {
		fmt.Fprintf(w, " %s %s\n", output.StyleWarning.Render("Not enough data:"), strings.Join(r.Unmet, ", "))
		fmt.Fprintln(w, output.StyleMuted.Render(" Keep logging sessions and assessments; findings below may be incomplete."))
		fmt.Fprintln(w)
	}

	if len(r.Weaknesses) == 0 {
		fmt.Fprintln(w, output.StyleSuccess.Render(" No weaknesses detected."))
	} else {
		line(w, "Weakness score", fmt.Sprintf("%.1f", r.OverallScore), output.StyleMuted.Render("(lower is better)"))
		counts := r.CountBySeverity()
		var parts []string
		for _, s := range []weakness.Severity{weakness.SeverityCritical, weakness.SeverityHigh, weakness.SeverityMedium, weakness.SeverityLow} {
			if counts[s] > 0 {
				parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
			}
		}
		line(w, "Findings", strings.Join(parts, ", "))
		fmt.Fprintln(w)

		for i, wk := range r.Weaknesses {
			fmt.Fprintf(w, " %d. %s  %s\n", i+1, output.Severity(string(wk.Severity)), output.StyleBold.Render(wk.Title))
			fmt.Fprintf(w, "    %s\n", wk.Description)
			fmt.Fprintf(w, "    %s\n", output.StyleMuted.Render(fmt.Sprintf("current %.1f, target %.1f, urgency %s, impact %s",
				wk.CurrentValue, wk.TargetValue, wk.Urgency, wk.Impact)))
			if len(wk.AffectedAreas) > 0 {
				fmt.Fprintf(w, "    %s %s\n", output.StyleMuted.Render("Affects:"), strings.Join(wk.AffectedAreas, ", "))
			}
			for _, c := range wk.RootCauses {
				fmt.Fprintf(w, "    %s %s\n", output.StyleMuted.Render("·"), c)
			}
		}
	}

	if len(r.ActionPlans) > 0 {
		renderActionPlans(w, r.ActionPlans)
	}
	if r.Breakdown != nil {
		renderBreakdown(w, r.Breakdown)
	}
	if r.Partial {
		fmt.Fprintln(w)
		fmt.Fprintf(w, " %s %s\n", output.StyleWarning.Render("Partial breakdown, failed:"), strings.Join(r.FailedSections, ", "))
	}
}

func renderActionPlans(w io.Writer, plans []weakness.ActionPlan) {
	fmt.Fprintln(w, output.Section("Action plans"))
	for _, p := range plans {
		fmt.Fprintf(w, " %s %s\n", output.StyleBold.Render(string(p.Weakness)), output.StyleMuted.Render("("+p.Timeline+")"))
		steps := []struct {
			label string
			items []string
		}{
			{"Now", p.Immediate},
			{"Next weeks", p.ShortTerm},
			{"Long term", p.LongTerm},
			{"Resources", p.Resources},
		}
		for _, s := range steps {
			for _, it := range s.items {
				fmt.Fprintf(w, "   %s %s\n", output.StyleLabel.Render(s.label), it)
			}
		}
		fmt.Fprintln(w)
	}
}

func renderBreakdown(w io.Writer, b *weakness.Breakdown) {
	fmt.Fprintln(w, output.Section("Breakdown"))

	if b.Accuracy != nil {
		tbl := output.NewTable("Group", "Accuracy", "Questions", "Tests").AlignRight(1, 2, 3).MaxWidth(0, 32)
		addGroups(tbl, "", b.Accuracy.BySubject)
		addGroups(tbl, "difficulty: ", b.Accuracy.ByDifficulty)
		addGroups(tbl, "chapter: ", b.Accuracy.ByChapter)
		tbl.Fprint(w)
		if b.Accuracy.Weakest != "" {
			line(w, "Weakest subject", b.Accuracy.Weakest)
		}
		fmt.Fprintln(w)
	}
	if c := b.Consistency; c != nil {
		line(w, "Study days", fmt.Sprintf("%d", c.StudyDays))
		line(w, "Longest gap", fmt.Sprintf("%d days", c.LongestGap))
		line(w, "Time variability", fmt.Sprintf("%.2f", c.Variability))
		line(w, "Accuracy std dev", fmt.Sprintf("%.1f", c.AccuracyStdDev))
	}
	if s := b.Speed; s != nil && s.Slowest != "" {
		line(w, "Slowest subject", s.Slowest, output.StyleMuted.Render(fmt.Sprintf("(%.0fs/question)", s.BySubject[s.Slowest])))
	}
	if r := b.Retention; r != nil {
		line(w, "Reviews", fmt.Sprintf("%d", r.Reviews))
		line(w, "Retention decay", fmt.Sprintf("%+.1f", r.Decay), output.TrendArrow(r.Decay, false))
	}
	if p := b.Pattern; p != nil {
		if p.BestSlot != "" {
			line(w, "Best time of day", p.BestSlot)
		}
		if p.PeakDay != "" {
			line(w, "Peak study day", p.PeakDay)
		}
	}
}

func addGroups(tbl *output.Table, prefix string, groups map[string]weakness.GroupStat) {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		g := groups[k]
		tbl.AddRow(prefix+k, fmt.Sprintf("%.1f%%", g.Accuracy), fmt.Sprintf("%d", g.Questions), fmt.Sprintf("%d", g.Assessments))
	}
}
