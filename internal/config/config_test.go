package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
)

// isolate points HOME at a temp dir so the user's real config is never read,
// and clears the variables Load honours.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, key := range []string{"ANTHROPIC_API_KEY", "REDIS_ADDR", "EXAMWATCH_ANTHROPIC_API_KEY", "EXAMWATCH_REDIS_ADDR"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".config", "examwatch"), cfg.DataDir)
	assert.Equal(t, filepath.Join(home, ".config", "examwatch", "examwatch.db"), cfg.DBPath())
	assert.Equal(t, analyzer.DefaultWeights(), cfg.Weights)
	assert.Equal(t, analyzer.DefaultPeriods(), cfg.Periods)
	assert.Equal(t, 70.0, cfg.Thresholds.Accuracy)
	assert.Equal(t, 5, cfg.Detector.MinSessions)
	assert.Equal(t, []int{1, 3, 7, 14, 30}, cfg.Plan.ReviewIntervals)
	assert.Equal(t, 15, cfg.Plan.MaxRecommendations)
	assert.Equal(t, 500, cfg.Caps.Sessions)
	assert.Equal(t, 5*time.Minute, cfg.Engine.CacheTTL)
	assert.Equal(t, "weekly", cfg.Engine.SummaryTimeframe)
	assert.Equal(t, "examwatch:events", cfg.Redis.Channel)
	assert.Empty(t, cfg.Redis.Addr)
	assert.False(t, cfg.Tracing.Enabled)

	_, ok := cfg.AdvisorOptions()
	assert.False(t, ok)
}

func TestLoad_File(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "examwatch", "config.yaml"), `
data_dir: ~/study
weights:
  accuracy: 0.5
  consistency: 0.2
thresholds:
  accuracy: 80
engine:
  debounce: 2s
  summary_timeframe: monthly
plan:
  review_intervals: [2, 4, 8]
caps:
  assessments: 50
`)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "study"), cfg.DataDir)
	assert.Equal(t, 0.5, cfg.Weights.Accuracy)
	assert.Equal(t, 0.2, cfg.Weights.Consistency)
	assert.Equal(t, 0.2, cfg.Weights.Speed, "unset keys keep their default")
	assert.Equal(t, 80.0, cfg.Thresholds.Accuracy)
	assert.Equal(t, 2*time.Second, cfg.Engine.Debounce)
	assert.Equal(t, []int{2, 4, 8}, cfg.Plan.ReviewIntervals)
	assert.Equal(t, 50, cfg.Caps.Assessments)

	ec := cfg.EngineConfig()
	assert.Equal(t, analyzer.Monthly, ec.SummaryTimeframe)
	assert.Equal(t, 80.0, ec.Weakness.Thresholds.Accuracy)
	assert.Equal(t, []int{2, 4, 8}, ec.Path.ReviewIntervals)
	assert.Equal(t, 2*time.Second, ec.Debounce)
}

func TestLoad_ExplicitFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "exam.yaml")
	writeFile(t, path, "detector:\n  min_assessments: 1\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Detector.MinAssessments)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Detector.MinAssessments)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("EXAMWATCH_THRESHOLDS_ACCURACY", "65")
	t.Setenv("EXAMWATCH_ENGINE_SWEEP_INTERVAL", "15m")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 65.0, cfg.Thresholds.Accuracy)
	assert.Equal(t, 15*time.Minute, cfg.Engine.SweepInterval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	opts, ok := cfg.AdvisorOptions()
	require.True(t, ok)
	assert.Equal(t, "sk-test", opts.APIKey)
	assert.Equal(t, "claude-sonnet-4-20250514", opts.Model)
}

func TestLoad_DotEnv(t *testing.T) {
	home := isolate(t)
	writeFile(t, filepath.Join(home, ".config", "examwatch", ".env"), "REDIS_ADDR=redis.internal:6380\n")
	t.Cleanup(func() { _ = os.Unsetenv("REDIS_ADDR") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
}

func TestLoad_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"negative weight", "weights:\n  speed: -1\n", "negative"},
		{"zero weights", "weights: {accuracy: 0, consistency: 0, speed: 0, retention: 0}\n", "zero"},
		{"bad period", "comparison_periods:\n  monthly: 0\n", "comparison_periods"},
		{"bad timeframe", "engine:\n  summary_timeframe: yearly\n", "summary_timeframe"},
		{"bad interval", "plan:\n  review_intervals: [1, 0]\n", "review_intervals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeFile(t, path, tt.yaml)

			_, err := Load(path)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestSM2_Overrides(t *testing.T) {
	cfg := &Config{Retention: Retention{MaxInterval: 90}}
	sm := cfg.SM2()
	assert.Equal(t, 90, sm.MaxInterval)
	assert.Equal(t, 30, sm.MasteredInterval)
}
