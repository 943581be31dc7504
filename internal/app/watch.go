package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/examwatch/internal/config"
	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/output"
	"github.com/blackwell-systems/examwatch/internal/watcher"
)

var (
	watchDaemon   bool
	watchInterval time.Duration
	watchStop     bool
	watchQuiet    bool
)

// minWatchInterval bounds how often the watcher forces a full refresh.
const minWatchInterval = 30 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Monitor analyses and alert on changes",
	Long: `Run a monitor that keeps the analysis engine live: new records logged
from any examwatch process (shared over Redis when configured) trigger a
debounced re-analysis, and a full refresh also runs at every interval.
When a weakness turns critical, the grade drops or a finding clears,
desktop notifications and/or terminal alerts are emitted.

Examples:
  examwatch watch                    # run in foreground (ctrl-c to stop)
  examwatch watch --daemon           # run in background, write PID file
  examwatch watch --interval 5m      # refresh every 5 minutes (default: 10m)
  examwatch watch --stop             # stop the background daemon`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchDaemon, "daemon", false, "Run in background mode (write PID file, log to file)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", config.DefaultWatchInterval, "Refresh interval (e.g. 5m, 1h); overrides watch.interval")
	watchCmd.Flags().BoolVar(&watchStop, "stop", false, "Stop a running background daemon")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output, only send notifications")
	rootCmd.AddCommand(watchCmd)
}

// pidFilePath returns the path to the daemon PID file.
func pidFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.pid")
}

// logFilePath returns the path to the daemon log file.
func logFilePath() string {
	return filepath.Join(config.ConfigDir(), "watch.log")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchStop {
		return stopDaemon()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	interval := rt.cfg.Watch.Interval
	if cmd.Flags().Changed("interval") || interval <= 0 {
		interval = watchInterval
	}
	if interval < minWatchInterval {
		return fmt.Errorf("interval must be at least %s, got %s", minWatchInterval, interval)
	}

	if err := rt.engine.Start(ctx); err != nil {
		return err
	}

	if watchDaemon {
		return runDaemon(ctx, rt, interval)
	}
	return runForeground(ctx, rt, interval)
}

// alertSink builds the watcher callback: a desktop notification when
// enabled, then the writer output unless suppressed.
func alertSink(notify bool, show func(watcher.Alert)) func(watcher.Alert) {
	var n *watcher.Notifier
	if notify {
		n = watcher.NewNotifier()
	}
	return func(a watcher.Alert) {
		if n != nil {
			_ = n.Notify(a)
		}
		if show != nil {
			show(a)
		}
	}
}

// runForeground runs the watcher in the foreground with live terminal output.
func runForeground(ctx context.Context, rt *runtime, interval time.Duration) error {
	var show func(watcher.Alert)
	if !watchQuiet {
		fmt.Fprintf(out, "examwatch watching... (refreshing every %s)\n", interval)
		show = func(a watcher.Alert) { printAlert(out, a) }
	}

	baseline, err := rt.engine.Invalidate(ctx)
	if err != nil {
		return fmt.Errorf("initial analysis failed: %w", err)
	}
	if !watchQuiet {
		fmt.Fprintf(out, "[%s] %s grade %s, score %.1f, %d weaknesses\n",
			time.Now().Format("15:04:05"), alertLabel("baseline"),
			output.Grade(baseline.Grade), baseline.CompositeScore, len(baseline.Weaknesses))
	}

	w := watcher.New(rt.engine, rt.bus, interval, alertSink(rt.cfg.Watch.Notify, show), rt.log)
	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !watchQuiet {
			fmt.Fprintln(out, "\nStopped.")
		}
		return nil
	}
	return err
}

// runDaemon claims the PID file and runs the watcher with alerts and
// lifecycle events logged as JSON to the daemon log. Detaching from the
// terminal is left to the caller (nohup, a service manager).
func runDaemon(ctx context.Context, rt *runtime, interval time.Duration) error {
	pid, err := claimPIDFile()
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(pidFilePath()) }()

	dlog, err := logger.NewFile(logFilePath(), rt.cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer dlog.Sync()

	dlog.Info("watch daemon started", "pid", pid, "interval", interval.String())
	sink := alertSink(rt.cfg.Watch.Notify, func(a watcher.Alert) {
		dlog.Info("alert", "severity", a.Level, "title", a.Title, "message", a.Message)
	})

	err = watcher.New(rt.engine, rt.bus, interval, sink, dlog).Run(ctx)
	if errors.Is(err, context.Canceled) {
		dlog.Info("watch daemon stopped", "pid", pid)
		return nil
	}
	dlog.Error("watch daemon failed", "error", err)
	return err
}

// claimPIDFile records this process as the daemon. A live daemon is an
// error; a stale PID file is replaced.
func claimPIDFile() (int, error) {
	if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
		return 0, fmt.Errorf("creating config dir: %w", err)
	}
	if pid, err := readPID(); err == nil {
		if processExists(pid) {
			return 0, fmt.Errorf("watch daemon already running (PID %d); use --stop first", pid)
		}
		_ = os.Remove(pidFilePath())
	}

	f, err := os.OpenFile(pidFilePath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("writing PID file: %w", err)
	}
	pid := os.Getpid()
	_, err = f.WriteString(strconv.Itoa(pid))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(pidFilePath())
		return 0, fmt.Errorf("writing PID file: %w", err)
	}
	return pid, nil
}

// stopExitTimeout bounds how long --stop waits for the daemon to go away.
const stopExitTimeout = 5 * time.Second

// stopDaemon terminates the daemon named in the PID file and waits for it
// to exit. A PID file naming a dead process is removed.
func stopDaemon() error {
	pid, err := readPID()
	if err != nil {
		return fmt.Errorf("no watch daemon running (could not read %s: %v)", pidFilePath(), err)
	}
	if !processExists(pid) {
		_ = os.Remove(pidFilePath())
		return fmt.Errorf("no watch daemon running (PID %d is gone, removed stale PID file)", pid)
	}
	if err := terminate(pid); err != nil {
		return fmt.Errorf("stopping watch daemon (PID %d): %w", pid, err)
	}
	if !waitExit(pid, stopExitTimeout, 100*time.Millisecond) {
		return fmt.Errorf("watch daemon (PID %d) still running after %s", pid, stopExitTimeout)
	}
	_ = os.Remove(pidFilePath())
	fmt.Fprintf(out, "Stopped watch daemon (PID %d)\n", pid)
	return nil
}

// waitExit polls until pid has exited or timeout passes.
func waitExit(pid int, timeout, poll time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for processExists(pid) {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(poll)
	}
	return true
}

// readPID reads the daemon PID from the PID file.
func readPID() (int, error) {
	data, err := os.ReadFile(pidFilePath())
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// printAlert writes an alert as a timestamped line, with the message
// indented beneath it.
func printAlert(w io.Writer, a watcher.Alert) {
	fmt.Fprintf(w, "[%s] %s %s\n", a.Time.Format("15:04:05"), alertLabel(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(w, "%11s%s\n", "", output.StyleMuted.Render(a.Message))
	}
}

// alertLabel renders the alert level as a fixed-width coloured tag.
func alertLabel(level string) string {
	tag := fmt.Sprintf("%-8s", strings.ToUpper(level))
	switch level {
	case "critical":
		return output.StyleError.Bold(true).Render(tag)
	case "warning":
		return output.StyleWarning.Render(tag)
	case "info":
		return output.StyleSuccess.Render(tag)
	}
	return output.StyleMuted.Render(tag)
}
