package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/config"
	"github.com/blackwell-systems/examwatch/internal/events"
	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check whether the examwatch setup is healthy",
	Long: `Run a series of health checks against your examwatch configuration,
database and optional integrations. Prints a pass/fail line for each check
and a summary of how many checks passed.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck holds the result of a single health check.
type doctorCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// doctorOutput is the structured result of the doctor command.
type doctorOutput struct {
	Checks      []doctorCheck `json:"checks"`
	PassedCount int           `json:"passed"`
	TotalCount  int           `json:"total"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		// Everything else depends on the config; report just this.
		return emitDoctor([]doctorCheck{{Name: "Configuration", Message: err.Error()}})
	}
	output.ConfigureColor(stdout, flagNoColor || !cfg.Output.Color)

	checks := []doctorCheck{{Name: "Configuration", Passed: true, Message: "loaded and valid"}}
	checks = append(checks, checkDataDir(cfg.DataDir))

	db, dbCheck := checkDatabase(ctx, cfg)
	checks = append(checks, dbCheck)
	if db != nil {
		checks = append(checks, checkAnalysisData(ctx, db, cfg))
		_ = db.Close()
	}

	checks = append(checks, checkRedis(ctx, cfg))
	checks = append(checks, checkAPIKey(cfg))
	checks = append(checks, checkWatchDaemon())

	return emitDoctor(checks)
}

func emitDoctor(checks []doctorCheck) error {
	passed := 0
	for _, c := range checks {
		if c.Passed {
			passed++
		}
	}
	result := doctorOutput{Checks: checks, PassedCount: passed, TotalCount: len(checks)}

	return emit(result, func(w io.Writer) error {
		fmt.Fprintln(w, output.Section("Doctor"))
		fmt.Fprintln(w)
		for _, c := range checks {
			renderDoctorCheck(w, c)
		}
		fmt.Fprintln(w)
		summary := fmt.Sprintf("%d/%d checks passed", passed, len(checks))
		if passed == len(checks) {
			fmt.Fprintf(w, " %s\n\n", output.StyleSuccess.Render(summary))
		} else {
			fmt.Fprintf(w, " %s\n\n", output.StyleWarning.Render(summary))
		}
		return nil
	})
}

// renderDoctorCheck prints a single check result line.
func renderDoctorCheck(w io.Writer, c doctorCheck) {
	indicator := output.StyleSuccess.Render("✓")
	if !c.Passed {
		indicator = output.StyleWarning.Render("✗")
	}
	fmt.Fprintf(w, "  %s  %s %s\n", indicator, output.StyleLabel.Render(c.Name), output.StyleMuted.Render(c.Message))
}

// checkDataDir verifies the data directory exists (creating it if needed)
// and is writable.
func checkDataDir(dir string) doctorCheck {
	const name = "Data directory"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return doctorCheck{Name: name, Message: fmt.Sprintf("cannot create %s: %v", dir, err)}
	}
	probe, err := os.CreateTemp(dir, ".doctor-*")
	if err != nil {
		return doctorCheck{Name: name, Message: fmt.Sprintf("%s is not writable: %v", dir, err)}
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())
	return doctorCheck{Name: name, Passed: true, Message: dir}
}

// checkDatabase opens and migrates the database. The returned DB is nil
// when the check failed.
func checkDatabase(ctx context.Context, cfg *config.Config) (*store.DB, doctorCheck) {
	const name = "SQLite database"
	path := cfg.DBPath()
	db, err := store.Open(path, cfg.Caps)
	if err != nil {
		return nil, doctorCheck{Name: name, Message: fmt.Sprintf("cannot open %s: %v", path, err)}
	}
	s, a, r, err := db.Counts(ctx)
	if err != nil {
		_ = db.Close()
		return nil, doctorCheck{Name: name, Message: fmt.Sprintf("cannot read %s: %v", filepath.Base(path), err)}
	}
	return db, doctorCheck{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("%s (%d sessions, %d assessments, %d reviews)", path, s, a, r),
	}
}

// checkAnalysisData compares the summary window's record counts with the
// detector minimums.
func checkAnalysisData(ctx context.Context, db *store.DB, cfg *config.Config) doctorCheck {
	const name = "Analysis data"
	ec := cfg.EngineConfig()
	days, err := ec.Periods.Days(ec.SummaryTimeframe)
	if err != nil {
		return doctorCheck{Name: name, Message: err.Error()}
	}
	set, err := db.Query(ctx, days, "")
	if err != nil {
		return doctorCheck{Name: name, Message: fmt.Sprintf("query failed: %v", err)}
	}
	s, a := len(set.Sessions), len(set.Assessments)
	msg := fmt.Sprintf("%d/%d sessions, %d/%d assessments in the last %d days",
		s, cfg.Detector.MinSessions, a, cfg.Detector.MinAssessments, days)
	return doctorCheck{
		Name:    name,
		Passed:  s >= cfg.Detector.MinSessions && a >= cfg.Detector.MinAssessments,
		Message: msg,
	}
}

// checkRedis pings the configured event bus. No address is a pass: events
// stay in-process.
func checkRedis(ctx context.Context, cfg *config.Config) doctorCheck {
	const name = "Event bus"
	if cfg.Redis.Addr == "" {
		return doctorCheck{Name: name, Passed: true, Message: "in-process (redis.addr not set)"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	bus, err := events.NewRedisBus(ctx, cfg.Redis.Addr, cfg.Redis.Channel, logger.Nop())
	if err != nil {
		return doctorCheck{Name: name, Message: fmt.Sprintf("redis %s unreachable: %v", cfg.Redis.Addr, err)}
	}
	_ = bus.Close()
	return doctorCheck{Name: name, Passed: true, Message: fmt.Sprintf("redis %s, channel %s", cfg.Redis.Addr, cfg.Redis.Channel)}
}

// checkAPIKey reports whether generated recommendations are available.
func checkAPIKey(cfg *config.Config) doctorCheck {
	const name = "API key"
	opts, ok := cfg.AdvisorOptions()
	if !ok {
		return doctorCheck{Name: name, Message: "ANTHROPIC_API_KEY is not set (generated recommendations disabled)"}
	}
	// Show only the first few characters.
	masked := opts.APIKey[:min(8, len(opts.APIKey))] + "..."
	return doctorCheck{Name: name, Passed: true, Message: fmt.Sprintf("set (%s), model %s", masked, opts.Model)}
}

// checkWatchDaemon reports whether a background watcher is running.
func checkWatchDaemon() doctorCheck {
	const name = "Watch daemon"
	pid, err := readPID()
	if err != nil {
		return doctorCheck{Name: name, Message: "not running (start with 'examwatch watch --daemon')"}
	}
	if !processExists(pid) {
		return doctorCheck{Name: name, Message: fmt.Sprintf("PID %d is not running (stale PID file)", pid)}
	}
	return doctorCheck{Name: name, Passed: true, Message: fmt.Sprintf("running (PID %d)", pid)}
}
