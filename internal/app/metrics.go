package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/output"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show performance metrics for a timeframe",
	Long: `Compute study time, consistency, focus, accuracy, speed, retention and
the weighted composite score over the selected timeframe.

Examples:
  examwatch metrics
  examwatch metrics -t monthly -s Physics
  examwatch metrics --json`,
	Args: cobra.NoArgs,
	RunE: runMetrics,
}

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Show per-interval trends and learning velocity",
	Long: `Split the selected period into intervals (daily for weekly, weekly for
monthly and quarterly) and report each interval's metrics, the fitted
slope of every metric and what the slopes mean.`,
	Args: cobra.NoArgs,
	RunE: runTrends,
}

func init() {
	rootCmd.AddCommand(metricsCmd, trendsCmd)
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	m, err := rt.engine.CalculateMetrics(cmd.Context(), tf, flagSubject)
	if err != nil {
		return err
	}
	return emit(m, func(w io.Writer) error {
		renderMetrics(w, m)
		return nil
	})
}

func runTrends(cmd *cobra.Command, _ []string) error {
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.engine.PerformTrendAnalysis(cmd.Context(), tf, flagSubject)
	if err != nil {
		return err
	}
	return emit(report, func(w io.Writer) error {
		renderTrends(w, report)
		return nil
	})
}

// line prints one label/value row.
func line(w io.Writer, label, value string, extra ...string) {
	fmt.Fprintf(w, " %s %s", output.StyleLabel.Render(label), output.StyleValue.Render(value))
	for _, e := range extra {
		fmt.Fprintf(w, " %s", e)
	}
	fmt.Fprintln(w)
}

func scopeTitle(title string, tf analyzer.Timeframe, subject string) string {
	if subject != "" {
		return fmt.Sprintf("%s (%s, %s)", title, tf, subject)
	}
	return fmt.Sprintf("%s (%s)", title, tf)
}

func renderMetrics(w io.Writer, m analyzer.MetricsSnapshot) {
	fmt.Fprintln(w, output.Section(scopeTitle("Performance", m.Timeframe, m.Subject)))
	fmt.Fprintf(w, " %s %s  grade %s\n", output.StyleLabel.Render("Composite score"),
		output.ScoreBar(m.CompositeScore, 20), output.Grade(m.Grade))
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleBold.Render(" Study"))
	line(w, "Study time", fmt.Sprintf("%.1f h", m.StudyTime))
	line(w, "Avg session", fmt.Sprintf("%.0f min", m.AvgSessionDuration))
	line(w, "Consistency", fmt.Sprintf("%.0f%%", m.StudyConsistency))
	line(w, "Focus quality", fmt.Sprintf("%.0f/100", m.FocusQuality))
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleBold.Render(" Assessments"))
	line(w, "Accuracy", fmt.Sprintf("%.1f%%", m.OverallAccuracy), output.TrendArrow(m.AccuracyTrend, true))
	line(w, "Speed", fmt.Sprintf("%.2f q/min", m.ResponseSpeed), output.TrendArrow(m.SpeedTrend, true))
	line(w, "Time per question", fmt.Sprintf("%.0fs", m.AvgTimePerQuestion))
	line(w, "Improvement rate", fmt.Sprintf("%+.1f%%", m.ImprovementRate))
	line(w, "Score consistency", fmt.Sprintf("%.0f/100", m.ConsistencyScore))
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleBold.Render(" Retention"))
	if m.RetentionSource == analyzer.RetentionUnavailable {
		line(w, "Retention rate", "n/a", output.StyleMuted.Render("(no reviews)"))
	} else {
		line(w, "Retention rate", fmt.Sprintf("%.0f%%", m.RetentionRate),
			output.StyleMuted.Render("("+string(m.RetentionSource)+")"))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleMuted.Render(fmt.Sprintf(" Based on %d sessions, %d assessments, %d reviews over %d days",
		m.DataPoints.Sessions, m.DataPoints.Assessments, m.DataPoints.Reviews, m.Days)))
}

func renderTrends(w io.Writer, r analyzer.TrendReport) {
	fmt.Fprintln(w, output.Section(scopeTitle("Trends", r.Period, r.Subject)))

	if len(r.DataPoints) == 0 {
		fmt.Fprintln(w, output.StyleMuted.Render(" No activity in this period."))
		return
	}

	tbl := output.NewTable("Interval", "Accuracy", "Study h", "Focus", "q/min", "Sessions", "Tests").AlignRight(1, 2, 3, 4, 5, 6)
	for _, dp := range r.DataPoints {
		tbl.AddRow(
			dp.Start.Local().Format("Jan 02"),
			fmt.Sprintf("%.1f%%", dp.Accuracy),
			fmt.Sprintf("%.1f", dp.StudyTime),
			fmt.Sprintf("%.0f", dp.FocusQuality),
			fmt.Sprintf("%.2f", dp.ResponseSpeed),
			fmt.Sprintf("%d", dp.Sessions),
			fmt.Sprintf("%d", dp.Assessments),
		)
	}
	tbl.Fprint(w)
	fmt.Fprintln(w)

	fmt.Fprintln(w, output.StyleBold.Render(fmt.Sprintf(" Slopes (per %d-day interval)", r.IntervalDays)))
	line(w, "Accuracy", fmt.Sprintf("%+.2f", r.Trends.Accuracy), output.TrendArrow(r.Trends.Accuracy, true))
	line(w, "Study time", fmt.Sprintf("%+.2f", r.Trends.StudyTime), output.TrendArrow(r.Trends.StudyTime, true))
	line(w, "Focus quality", fmt.Sprintf("%+.2f", r.Trends.FocusQuality), output.TrendArrow(r.Trends.FocusQuality, true))
	line(w, "Speed", fmt.Sprintf("%+.2f", r.Trends.ResponseSpeed), output.TrendArrow(r.Trends.ResponseSpeed, true))
	line(w, "Learning velocity", fmt.Sprintf("%+.2f", r.LearningVelocity()))

	if len(r.Interpretations) > 0 {
		fmt.Fprintln(w)
		for _, in := range r.Interpretations {
			style := output.StyleSuccess
			if in.Signal == "declining" || in.Signal == "decreasing" {
				style = output.StyleError
			}
			fmt.Fprintf(w, "   %s %s\n", style.Render("•"), in.Message)
		}
	}
}
