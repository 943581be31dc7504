// Package config provides configuration loading and defaults for examwatch.
package config

import (
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/events"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/retention"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// DefaultConfigDir is the default location for examwatch configuration.
const DefaultConfigDir = "~/.config/examwatch"

// DefaultDBName is the filename for the SQLite database.
const DefaultDBName = "examwatch.db"

// DefaultConfigFile is the filename for the YAML config.
const DefaultConfigFile = "config.yaml"

// DefaultEnvFile is the dotenv file read from the working and config directories.
const DefaultEnvFile = ".env"

// EnvPrefix prefixes environment overrides, e.g. EXAMWATCH_THRESHOLDS_ACCURACY.
const EnvPrefix = "EXAMWATCH"

// Engine timing defaults.
const (
	DefaultCacheTTL      = 5 * time.Minute
	DefaultReportTTL     = 30 * time.Minute
	DefaultDebounce      = 5 * time.Second
	DefaultSweepInterval = time.Hour
	DefaultWatchInterval = 10 * time.Minute
)

// DefaultSummaryTimeframe is the window of background re-analysis.
const DefaultSummaryTimeframe = string(analyzer.Weekly)

// DefaultWeights holds the composite score weighting.
var DefaultWeights = analyzer.DefaultWeights()

// DefaultPeriods holds the comparison period lengths in days.
var DefaultPeriods = analyzer.DefaultPeriods()

// DefaultThresholds holds the weakness rule triggers.
var DefaultThresholds = weakness.DefaultThresholds()

// DefaultDetector holds the data sufficiency minimums.
var DefaultDetector = Detector{
	MinSessions:    weakness.DefaultConfig().MinSessions,
	MinAssessments: weakness.DefaultConfig().MinAssessments,
	MaxActionPlans: weakness.DefaultConfig().MaxActionPlans,
}

// DefaultPlan holds the learning path limits.
var DefaultPlan = Plan{
	ReviewIntervals:    suggest.DefaultPathConfig().ReviewIntervals,
	MaxDailyTasks:      suggest.DefaultPathConfig().MaxDailyTasks,
	MaxFocusAreas:      suggest.DefaultPathConfig().MaxFocusAreas,
	MaxRecommendations: suggest.DefaultMaxRecommendations,
}

// DefaultCaps holds the record retention limits.
var DefaultCaps = records.DefaultCaps()

// DefaultRetention holds the SM-2 scheduler settings.
var DefaultRetention = Retention{
	PassThreshold:    int(retention.NewSM2().PassThreshold),
	MaxInterval:      retention.NewSM2().MaxInterval,
	MasteredInterval: retention.NewSM2().MasteredInterval,
}

// DefaultRedis leaves the shared bus disabled.
var DefaultRedis = Redis{
	Channel: events.DefaultRedisChannel,
}

// DefaultAnthropic configures generated advice; it stays off without a key.
var DefaultAnthropic = Anthropic{
	Model:     "claude-sonnet-4-20250514",
	MaxTokens: 1024,
	BaseURL:   "https://api.anthropic.com",
}

// DefaultLog holds the logger defaults.
var DefaultLog = Log{
	Mode:  "dev",
	Level: "warn",
}

// DefaultOutput holds the default output preferences.
var DefaultOutput = Output{
	Color: true,
}
