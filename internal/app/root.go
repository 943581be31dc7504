// Package app contains the Cobra command tree for examwatch.
package app

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/output"
)

var appVersion = "dev"

// SetVersion sets the application version (called from main with ldflags value).
func SetVersion(v string) {
	appVersion = v
	rootCmd.Version = v
}

var (
	flagNoColor   bool
	flagJSON      bool
	flagYAML      bool
	flagVerbose   bool
	flagConfig    string
	flagTimeframe string
	flagSubject   string
)

var rootCmd = &cobra.Command{
	Use:   "examwatch",
	Short: "Performance analytics and weakness detection for exam preparation",
	Long: `examwatch records study sessions, assessments and spaced-repetition
reviews, then measures performance, detects weaknesses, ranks study
recommendations and builds an adaptive learning path.

Run 'examwatch' with no arguments to see the current summary.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDashboard,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file path (default: ~/.config/examwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagYAML, "yaml", false, "Output as YAML")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagTimeframe, "timeframe", "t", "weekly", "Analysis window: daily, weekly, monthly or quarterly")
	rootCmd.PersistentFlags().StringVarP(&flagSubject, "subject", "s", "", "Restrict analysis to one subject")
	rootCmd.MarkFlagsMutuallyExclusive("json", "yaml")
}

// timeframe parses the --timeframe flag.
func timeframe() (analyzer.Timeframe, error) {
	return analyzer.ParseTimeframe(flagTimeframe)
}

// runDashboard shows the latest summary and the available subcommands.
func runDashboard(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	summary, err := rt.engine.Invalidate(cmd.Context())
	if err != nil {
		return err
	}
	return emit(summary, func(w io.Writer) error {
		renderSummary(w, summary)
		fmt.Fprintln(w)
		fmt.Fprintln(w, output.StyleMuted.Render(" Commands:"))
		fmt.Fprintln(w, "  log         Record a session, assessment or review")
		fmt.Fprintln(w, "  metrics     Show performance metrics")
		fmt.Fprintln(w, "  trends      Show per-interval trends and learning velocity")
		fmt.Fprintln(w, "  weaknesses  Detect and rank weaknesses")
		fmt.Fprintln(w, "  suggest     Generate ranked study recommendations")
		fmt.Fprintln(w, "  plan        Build an adaptive learning path")
		fmt.Fprintln(w, "  track       Snapshot and compare analyses over time")
		fmt.Fprintln(w, "  watch       Monitor analyses and alert on changes")
		fmt.Fprintln(w, "  mcp         Serve the analyses to an assistant over MCP")
		return nil
	})
}

// renderSummary prints the compact summary used by the dashboard and watch.
func renderSummary(w io.Writer, s engine.Summary) {
	fmt.Fprintln(w, output.Section(fmt.Sprintf("Summary (%s)", s.Timeframe)))
	if s.InsufficientData {
		fmt.Fprintf(w, " %s %s\n", output.StyleWarning.Render("Not enough data:"), strings.Join(s.Unmet, ", "))
	}
	fmt.Fprintf(w, " %s %s  grade %s\n", output.StyleLabel.Render("Composite score"), output.ScoreBar(s.CompositeScore, 20), output.Grade(s.Grade))
	fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render("Accuracy"), output.StyleValue.Render(fmt.Sprintf("%.1f%%", s.OverallAccuracy)))
	fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render("Weakness score"), output.StyleValue.Render(fmt.Sprintf("%.1f", s.WeaknessScore)))
	for _, wk := range s.Weaknesses {
		fmt.Fprintf(w, "   %s  %s\n", output.Severity(string(wk.Severity)), wk.Title)
	}
	if len(s.TopActions) > 0 {
		fmt.Fprintln(w, output.StyleBold.Render(" Next steps"))
		for i, a := range s.TopActions {
			fmt.Fprintf(w, "   %d. %s\n", i+1, a)
		}
	}
}
