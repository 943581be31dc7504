package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/store"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

var (
	trackCompare int
	trackHistory int
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Snapshot and compare analyses over time",
	Long: `Run a weakness analysis, store a new snapshot for the timeframe and
subject, and compare it against an earlier snapshot to show deltas with
trend arrows and the weaknesses that appeared or cleared.`,
	Args: cobra.NoArgs,
	RunE: runTrack,
}

func init() {
	trackCmd.Flags().IntVar(&trackCompare, "compare", 1, "Compare against Nth previous snapshot (1 = most recent)")
	trackCmd.Flags().IntVar(&trackHistory, "history", 0, "Show scores across the N most recent snapshots instead of comparing")
	rootCmd.AddCommand(trackCmd)
}

// trackResult is the structured form of a track run.
type trackResult struct {
	Snapshot *store.Snapshot     `json:"snapshot"`
	Diff     *store.SnapshotDiff `json:"diff,omitempty"`
}

func runTrack(cmd *cobra.Command, _ []string) error {
	if trackCompare < 1 {
		return fmt.Errorf("--compare must be at least 1")
	}
	tf, err := timeframe()
	if err != nil {
		return err
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()
	ctx := cmd.Context()

	if trackHistory > 0 {
		history, err := loadHistory(rt.db, cmd, string(tf), trackHistory)
		if err != nil {
			return err
		}
		return emit(history, func(w io.Writer) error {
			renderHistory(w, history)
			return nil
		})
	}

	report, err := rt.engine.AnalyzeWeaknesses(ctx, tf, flagSubject, weakness.Flags{Secondary: true})
	if err != nil {
		return err
	}
	recs, err := rt.engine.GenerateRecommendations(ctx, tf, flagSubject)
	if err != nil {
		return err
	}

	current := snapshotFrom(report, recs)
	if _, err := rt.db.SaveSnapshot(ctx, current); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	rt.log.Debug("snapshot saved", "id", current.ID, "timeframe", current.Timeframe)

	// The new snapshot is #1, so the Nth previous one sits at N+1.
	prev, err := rt.db.GetSnapshotN(ctx, current.Timeframe, current.Subject, trackCompare+1)
	if err != nil {
		return fmt.Errorf("loading previous snapshot: %w", err)
	}

	result := trackResult{Snapshot: current}
	if prev != nil {
		diff := store.CompareSnapshots(prev, current)
		result.Diff = &diff
	}
	return emit(result, func(w io.Writer) error {
		renderTrackOutput(w, result)
		return nil
	})
}

// snapshotFrom flattens a weakness report and its recommendations into a
// storable snapshot.
func snapshotFrom(report weakness.Report, recs []suggest.Recommendation) *store.Snapshot {
	m := report.Metrics
	s := &store.Snapshot{
		Timeframe:           string(report.Timeframe),
		Subject:             report.Subject,
		CompositeScore:      m.CompositeScore,
		Grade:               m.Grade,
		Accuracy:            m.OverallAccuracy,
		ConsistencyScore:    m.ConsistencyScore,
		RetentionRate:       m.RetentionRate,
		WeaknessScore:       report.OverallScore,
		RecommendationCount: len(recs),
		InsufficientData:    report.HasInsufficientData,
	}
	for _, w := range report.Weaknesses {
		s.Weaknesses = append(s.Weaknesses, store.SnapshotWeakness{
			Type:         string(w.Type),
			Severity:     string(w.Severity),
			CurrentValue: w.CurrentValue,
			TargetValue:  w.TargetValue,
		})
	}
	return s
}

// loadHistory returns up to n snapshots, newest first.
func loadHistory(db *store.DB, cmd *cobra.Command, tf string, n int) ([]*store.Snapshot, error) {
	history := make([]*store.Snapshot, 0, n)
	for i := 1; i <= n; i++ {
		s, err := db.GetSnapshotN(cmd.Context(), tf, flagSubject, i)
		if err != nil {
			return nil, fmt.Errorf("loading snapshot %d: %w", i, err)
		}
		if s == nil {
			break
		}
		history = append(history, s)
	}
	return history, nil
}

// lowerIsBetter lists the snapshot metrics where a drop is an improvement.
var lowerIsBetter = map[string]bool{
	"weakness_score": true,
}

func renderTrackOutput(w io.Writer, r trackResult) {
	current := r.Snapshot
	fmt.Fprintln(w, output.Section("Track: Snapshot Comparison"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " Snapshot #%d (%s) taken at %s\n\n", current.ID, current.Timeframe, current.TakenAt.Local().Format("2006-01-02 15:04:05"))

	if r.Diff == nil {
		fmt.Fprintln(w, " First snapshot recorded. Run 'examwatch track' again later to see trends.")
		return
	}
	diff := r.Diff

	fmt.Fprintf(w, " Comparing against snapshot #%d (%s)\n\n",
		diff.Previous.ID, diff.Previous.TakenAt.Local().Format("2006-01-02 15:04:05"))

	tbl := output.NewTable("Metric", "Previous", "Current", "Delta", "Trend").AlignRight(1, 2, 3)
	for _, d := range diff.Deltas {
		tbl.AddRow(
			d.Name,
			fmt.Sprintf("%.1f", d.Previous),
			fmt.Sprintf("%.1f", d.Current),
			fmt.Sprintf("%+.1f", d.Delta),
			output.TrendArrow(d.Delta, !lowerIsBetter[d.Name]),
		)
	}
	tbl.Fprint(w)

	if diff.Previous.Grade != current.Grade {
		fmt.Fprintf(w, "\n Grade %s → %s\n", output.Grade(diff.Previous.Grade), output.Grade(current.Grade))
	}
	for _, t := range diff.Introduced {
		fmt.Fprintf(w, " %s %s\n", output.StyleError.Render("New weakness:"), t)
	}
	for _, t := range diff.Resolved {
		fmt.Fprintf(w, " %s %s\n", output.StyleSuccess.Render("Resolved:"), t)
	}
}

func renderHistory(w io.Writer, history []*store.Snapshot) {
	fmt.Fprintln(w, output.Section("Track: History"))
	fmt.Fprintln(w)
	if len(history) == 0 {
		fmt.Fprintln(w, " No snapshots yet. Run 'examwatch track' to record one.")
		return
	}

	tbl := output.NewTable("#", "Taken", "Score", "Grade", "Accuracy", "Weakness", "Findings").AlignRight(0, 2, 4, 5, 6)
	for _, s := range history {
		tbl.AddRow(
			fmt.Sprintf("%d", s.ID),
			s.TakenAt.Local().Format("2006-01-02 15:04"),
			fmt.Sprintf("%.1f", s.CompositeScore),
			output.Grade(s.Grade),
			fmt.Sprintf("%.1f%%", s.Accuracy),
			fmt.Sprintf("%.1f", s.WeaknessScore),
			fmt.Sprintf("%d", len(s.Weaknesses)),
		)
	}
	tbl.Fprint(w)
}
