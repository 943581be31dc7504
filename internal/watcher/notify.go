package watcher

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
)

// Notifier delivers alerts as desktop notifications. Hosts without a
// notifier get a plain line on the fallback writer.
type Notifier struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
	fallback io.Writer
}

// NewNotifier returns a Notifier for the running OS.
func NewNotifier() *Notifier {
	return &Notifier{
		goos:     runtime.GOOS,
		lookPath: exec.LookPath,
		run:      func(name string, args ...string) error { return exec.Command(name, args...).Run() },
		fallback: os.Stderr,
	}
}

// Notify sends one alert.
func (n *Notifier) Notify(a Alert) error {
	name, args := n.command(a)
	if name == "" {
		return n.printFallback(a)
	}
	if err := n.run(name, args...); err != nil {
		return n.printFallback(a)
	}
	return nil
}

// command picks the notifier binary and its arguments; an empty name means
// none is usable here.
func (n *Notifier) command(a Alert) (string, []string) {
	switch n.goos {
	case "darwin":
		script := fmt.Sprintf(`display notification %q with title "examwatch" subtitle %q`, a.Message, a.Title)
		if a.Level == "critical" {
			script += ` sound name "Basso"`
		}
		return "osascript", []string{"-e", script}
	case "linux":
		if _, err := n.lookPath("notify-send"); err != nil {
			return "", nil
		}
		return "notify-send", []string{"-u", urgency(a.Level), "examwatch: " + a.Title, a.Message}
	}
	return "", nil
}

func (n *Notifier) printFallback(a Alert) error {
	_, err := fmt.Fprintf(n.fallback, "[%s] %s: %s\n", a.Level, a.Title, a.Message)
	return err
}

// urgency maps alert levels onto notify-send urgencies.
func urgency(level string) string {
	switch level {
	case "critical":
		return "critical"
	case "info":
		return "low"
	}
	return "normal"
}
