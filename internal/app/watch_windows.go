//go:build windows

package app

import (
	"os"
)

var shutdownSignals = []os.Signal{os.Interrupt}

// terminate kills the daemon outright. Windows has no SIGTERM, so the
// daemon cannot clean up after itself.
func terminate(pid int) error {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Kill()
}

// processExists reports whether pid is alive. FindProcess always succeeds
// here, so a nil signal does the probing.
func processExists(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(os.Signal(nil)) == nil
}
