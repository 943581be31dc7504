package app

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/records"
)

var (
	logAt         string
	logChapter    string
	logType       string
	logKind       string
	logDuration   string
	logAttempted  int
	logCorrect    int
	logResponse   float64
	logFocus      float64
	logCompletion float64
	logQuestions  int
	logTimeSpent  string
	logDifficulty string
	logScore      float64
	logMaxScore   float64
	logItem       string
	logQuality    int
	logDays       int
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a session, assessment or review",
	Long: `Record study activity in the examwatch database. Every record
invalidates cached analyses and is published to other examwatch processes
(such as a running 'examwatch watch') over the configured event bus.

Examples:
  examwatch log session -s Physics --duration 45m --focus 80
  examwatch log assessment -s Chemistry --questions 20 --correct 14 --time 15m --difficulty hard
  examwatch log review -s Biology --item cell-membrane --quality 4
  examwatch log list --days 7`,
}

var logSessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Record a study session",
	Args:  cobra.NoArgs,
	RunE:  runLogSession,
}

var logAssessmentCmd = &cobra.Command{
	Use:   "assessment",
	Short: "Record a graded assessment",
	Args:  cobra.NoArgs,
	RunE:  runLogAssessment,
}

var logReviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record a spaced-repetition review (quality 0-5)",
	Args:  cobra.NoArgs,
	RunE:  runLogReview,
}

var logListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded activity",
	Args:  cobra.NoArgs,
	RunE:  runLogList,
}

func init() {
	for _, c := range []*cobra.Command{logSessionCmd, logAssessmentCmd, logReviewCmd} {
		c.Flags().StringVar(&logAt, "at", "", "When it happened (RFC3339 or 2006-01-02 15:04; default now)")
		c.Flags().StringVar(&logChapter, "chapter", "", "Chapter or topic")
	}

	logSessionCmd.Flags().StringVar(&logType, "type", "study", "Session type (study, practice, revision)")
	logSessionCmd.Flags().StringVar(&logDuration, "duration", "", "Session length (e.g. 45m, 1.5h, or seconds)")
	logSessionCmd.Flags().IntVar(&logAttempted, "attempted", 0, "Questions attempted during the session")
	logSessionCmd.Flags().IntVar(&logCorrect, "correct", 0, "Questions answered correctly")
	logSessionCmd.Flags().Float64Var(&logResponse, "response-time", 0, "Average seconds per answer")
	logSessionCmd.Flags().Float64Var(&logFocus, "focus", 0, "Focus quality 0-100")
	logSessionCmd.Flags().Float64Var(&logCompletion, "completion", 100, "Completion rate 0-100")
	_ = logSessionCmd.MarkFlagRequired("duration")

	logAssessmentCmd.Flags().StringVar(&logKind, "type", "quiz", "Assessment type (quiz, mock, exam)")
	logAssessmentCmd.Flags().IntVar(&logQuestions, "questions", 0, "Total questions")
	logAssessmentCmd.Flags().IntVar(&logCorrect, "correct", 0, "Correct answers")
	logAssessmentCmd.Flags().StringVar(&logTimeSpent, "time", "", "Time spent (e.g. 15m)")
	logAssessmentCmd.Flags().StringVar(&logDifficulty, "difficulty", "medium", "easy, medium or hard")
	logAssessmentCmd.Flags().Float64Var(&logScore, "score", 0, "Score awarded")
	logAssessmentCmd.Flags().Float64Var(&logMaxScore, "max-score", 0, "Maximum score")
	_ = logAssessmentCmd.MarkFlagRequired("questions")

	logReviewCmd.Flags().StringVar(&logItem, "item", "", "Reviewed item id (card, fact, problem)")
	logReviewCmd.Flags().IntVar(&logQuality, "quality", -1, "Recall quality 0-5")
	_ = logReviewCmd.MarkFlagRequired("item")
	_ = logReviewCmd.MarkFlagRequired("quality")

	logListCmd.Flags().IntVar(&logDays, "days", 7, "Show the last N days")

	logCmd.AddCommand(logSessionCmd, logAssessmentCmd, logReviewCmd, logListCmd)
	rootCmd.AddCommand(logCmd)
}

func runLogSession(cmd *cobra.Command, _ []string) error {
	at, err := parseTimestamp(logAt)
	if err != nil {
		return err
	}
	seconds, err := parseDurationValue(logDuration)
	if err != nil {
		return fmt.Errorf("parsing --duration: %w", err)
	}
	if err := requireSubject(); err != nil {
		return err
	}

	rec := records.SessionRecord{
		Timestamp: at,
		Duration:  seconds,
		Type:      logType,
		Subject:   flagSubject,
		Chapter:   logChapter,
		Performance: records.Performance{
			Attempted:       logAttempted,
			Correct:         logCorrect,
			AvgResponseTime: logResponse,
		},
		FocusQuality:   logFocus,
		CompletionRate: logCompletion,
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.RecordSession(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged %s session (%s", rec.Subject, formatDuration(rec.Duration))
	if logFocus > 0 {
		fmt.Fprintf(out, ", focus %.0f", logFocus)
	}
	fmt.Fprintln(out, ")")
	return nil
}

func runLogAssessment(cmd *cobra.Command, _ []string) error {
	at, err := parseTimestamp(logAt)
	if err != nil {
		return err
	}
	if err := requireSubject(); err != nil {
		return err
	}
	if logQuestions <= 0 {
		return fmt.Errorf("--questions must be positive")
	}
	if logCorrect < 0 || logCorrect > logQuestions {
		return fmt.Errorf("--correct must be between 0 and %d", logQuestions)
	}
	var spent float64
	if logTimeSpent != "" {
		if spent, err = parseDurationValue(logTimeSpent); err != nil {
			return fmt.Errorf("parsing --time: %w", err)
		}
	}
	difficulty, err := parseDifficulty(logDifficulty)
	if err != nil {
		return err
	}

	rec := records.AssessmentRecord{
		Timestamp:      at,
		Type:           logKind,
		Subject:        flagSubject,
		Chapter:        logChapter,
		TotalQuestions: logQuestions,
		CorrectAnswers: logCorrect,
		TimeSpent:      spent,
		Difficulty:     difficulty,
		Score:          logScore,
		MaxScore:       logMaxScore,
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.RecordAssessment(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged %s assessment: %d/%d correct (%.0f%%)\n",
		rec.Subject, rec.CorrectAnswers, rec.TotalQuestions, rec.AccuracyPercent())
	return nil
}

func runLogReview(cmd *cobra.Command, _ []string) error {
	at, err := parseTimestamp(logAt)
	if err != nil {
		return err
	}
	if logQuality < 0 || logQuality > 5 {
		return fmt.Errorf("--quality must be between 0 and 5, got %d", logQuality)
	}

	rec := records.ReviewRecord{
		Timestamp: at,
		ItemID:    strings.TrimSpace(logItem),
		Subject:   flagSubject,
		Quality:   logQuality,
	}

	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.engine.RecordReview(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(out, "Logged review of %s (quality %d)\n", rec.ItemID, rec.Quality)

	due, err := rt.retention.Due(cmd.Context(), 5)
	if err == nil && len(due) > 0 {
		ids := make([]string, 0, len(due))
		for _, it := range due {
			ids = append(ids, it.ID)
		}
		fmt.Fprintln(out, output.StyleMuted.Render("Due for review: "+strings.Join(ids, ", ")))
	}
	return nil
}

// activityLog is the structured form of 'log list'.
type activityLog struct {
	Days   int         `json:"days"`
	Totals activityCnt `json:"totals"`
	Set    records.Set `json:"records"`
}

type activityCnt struct {
	Sessions    int `json:"sessions"`
	Assessments int `json:"assessments"`
	Reviews     int `json:"reviews"`
}

func runLogList(cmd *cobra.Command, _ []string) error {
	if logDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.close()

	set, err := rt.db.Query(cmd.Context(), logDays, flagSubject)
	if err != nil {
		return fmt.Errorf("querying records: %w", err)
	}
	s, a, r, err := rt.db.Counts(cmd.Context())
	if err != nil {
		return fmt.Errorf("counting records: %w", err)
	}
	result := activityLog{Days: logDays, Totals: activityCnt{s, a, r}, Set: set}

	return emit(result, func(w io.Writer) error {
		renderActivity(w, result)
		return nil
	})
}

func renderActivity(w io.Writer, l activityLog) {
	fmt.Fprintln(w, output.Section(fmt.Sprintf("Activity (last %d days)", l.Days)))
	fmt.Fprintln(w)

	tbl := output.NewTable("Time", "Kind", "Subject", "Detail").MaxWidth(2, 24).EmptyText(" nothing recorded yet; start with 'examwatch log session'")
	for _, s := range l.Set.Sessions {
		tbl.AddRow(s.Timestamp.Local().Format("2006-01-02 15:04"), "session", s.Subject,
			fmt.Sprintf("%s %s, focus %.0f", s.Type, formatDuration(s.Duration), s.FocusQuality))
	}
	for _, a := range l.Set.Assessments {
		tbl.AddRow(a.Timestamp.Local().Format("2006-01-02 15:04"), "assessment", a.Subject,
			fmt.Sprintf("%d/%d correct, %s", a.CorrectAnswers, a.TotalQuestions, a.Difficulty))
	}
	for _, r := range l.Set.Reviews {
		tbl.AddRow(r.Timestamp.Local().Format("2006-01-02 15:04"), "review", r.Subject,
			fmt.Sprintf("%s quality %d", truncateID(r.ItemID), r.Quality))
	}
	tbl.Fprint(w)

	fmt.Fprintln(w)
	fmt.Fprintln(w, output.StyleMuted.Render(fmt.Sprintf(" Retained: %d sessions, %d assessments, %d reviews",
		l.Totals.Sessions, l.Totals.Assessments, l.Totals.Reviews)))
}

func requireSubject() error {
	if strings.TrimSpace(flagSubject) == "" {
		return fmt.Errorf("--subject is required")
	}
	return nil
}

// parseTimestamp accepts RFC3339 or a local "2006-01-02 15:04"; empty means now.
func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC3339 or 2006-01-02 15:04", raw)
}

func parseDifficulty(raw string) (records.Difficulty, error) {
	switch d := records.Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case records.DifficultyEasy, records.DifficultyMedium, records.DifficultyHard:
		return d, nil
	}
	return "", fmt.Errorf("invalid difficulty %q: use easy, medium or hard", raw)
}

// parseDurationValue converts duration strings like "12m", "30s", "1h" to seconds.
func parseDurationValue(raw string) (float64, error) {
	if len(raw) < 2 {
		// Try plain number (seconds).
		return strconv.ParseFloat(raw, 64)
	}

	suffix := raw[len(raw)-1]
	numStr := raw[:len(raw)-1]

	num, err := strconv.ParseFloat(numStr, 64)
	if err != nil {
		// Not a suffixed duration; try plain number.
		return strconv.ParseFloat(raw, 64)
	}

	switch suffix {
	case 's', 'S':
		return num, nil
	case 'm', 'M':
		return num * 60, nil
	case 'h', 'H':
		return num * 3600, nil
	default:
		// Suffix is a digit; try the whole string as a plain number.
		return strconv.ParseFloat(raw, 64)
	}
}

// formatDuration converts seconds to a human-readable duration string.
func formatDuration(seconds float64) string {
	if seconds >= 3600 {
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
	if seconds >= 60 {
		return fmt.Sprintf("%.0fm", seconds/60)
	}
	return fmt.Sprintf("%.0fs", seconds)
}

// truncateID shortens a long id for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
