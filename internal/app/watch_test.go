package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/config"
	"github.com/blackwell-systems/examwatch/internal/watcher"
)

func writePIDFile(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(config.ConfigDir(), 0o755))
	require.NoError(t, os.WriteFile(pidFilePath(), []byte(content), 0o644))
}

func TestReadPID_TrimsWhitespace(t *testing.T) {
	isolateHome(t)
	writePIDFile(t, " 4242\n")

	pid, err := readPID()
	require.NoError(t, err)
	assert.Equal(t, 4242, pid)
	assert.Equal(t, filepath.Join(config.ConfigDir(), "watch.pid"), pidFilePath())
}

func TestStopDaemon_NoPIDFile(t *testing.T) {
	isolateHome(t)
	assert.ErrorContains(t, stopDaemon(), "no watch daemon running")
}

func TestStopDaemon_RemovesStalePIDFile(t *testing.T) {
	isolateHome(t)
	// Above the default pid_max, so never a live process.
	writePIDFile(t, "2147483646")

	err := stopDaemon()
	assert.ErrorContains(t, err, "removed stale PID file")
	_, statErr := os.Stat(pidFilePath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestClaimPIDFile(t *testing.T) {
	isolateHome(t)

	pid, err := claimPIDFile()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	got, err := readPID()
	require.NoError(t, err)
	assert.Equal(t, pid, got)

	_, err = claimPIDFile()
	assert.ErrorContains(t, err, "already running")
}

func TestClaimPIDFile_ReplacesStale(t *testing.T) {
	isolateHome(t)
	writePIDFile(t, "2147483646")

	pid, err := claimPIDFile()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestWaitExit(t *testing.T) {
	assert.False(t, waitExit(os.Getpid(), 20*time.Millisecond, 5*time.Millisecond), "this process keeps running")
	assert.True(t, waitExit(2147483646, time.Second, 5*time.Millisecond))
}

func TestPrintAlert(t *testing.T) {
	plainOutput(t)
	buf := capture(t)
	printAlert(out, watcher.Alert{
		Level:   "warning",
		Title:   "Grade dropped",
		Message: "Grade fell from B to C",
		Time:    time.Date(2026, 3, 1, 14, 5, 9, 0, time.Local),
	})
	got := buf.String()
	assert.Contains(t, got, "[14:05:09]")
	assert.Contains(t, got, "Grade dropped")
	assert.Contains(t, got, "WARNING")
	assert.Contains(t, got, "Grade fell from B to C")
}
