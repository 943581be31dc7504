package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Config holds the engine's typed settings.
type Config struct {
	Weights  analyzer.Weights
	Periods  analyzer.Periods
	Weakness weakness.Config
	Path     suggest.PathConfig

	MaxRecommendations int

	// MetricsTTL bounds cached metric snapshots; ReportTTL bounds trends,
	// weakness reports, recommendations and learning paths.
	MetricsTTL time.Duration
	ReportTTL  time.Duration

	// Debounce delays re-analysis after a record event. SweepInterval is the
	// period of the background re-analysis; a negative value disables it.
	Debounce      time.Duration
	SweepInterval time.Duration

	// SummaryTimeframe is the window of the background re-analysis.
	SummaryTimeframe analyzer.Timeframe

	// Origin tags published events so the engine can ignore its own. It
	// defaults to a random per-process name.
	Origin string
}

// DefaultConfig returns the standard engine settings.
func DefaultConfig() Config {
	return Config{
		Weights:            analyzer.DefaultWeights(),
		Periods:            analyzer.DefaultPeriods(),
		Weakness:           weakness.DefaultConfig(),
		Path:               suggest.DefaultPathConfig(),
		MaxRecommendations: suggest.DefaultMaxRecommendations,
		MetricsTTL:         5 * time.Minute,
		ReportTTL:          30 * time.Minute,
		Debounce:           5 * time.Second,
		SweepInterval:      time.Hour,
		SummaryTimeframe:   analyzer.Weekly,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Weights == (analyzer.Weights{}) {
		c.Weights = d.Weights
	}
	if c.Periods == (analyzer.Periods{}) {
		c.Periods = d.Periods
	}
	if c.Weakness.Thresholds == (weakness.Thresholds{}) {
		c.Weakness.Thresholds = d.Weakness.Thresholds
	}
	if len(c.Path.ReviewIntervals) == 0 {
		c.Path.ReviewIntervals = d.Path.ReviewIntervals
	}
	if c.Path.MaxDailyTasks <= 0 {
		c.Path.MaxDailyTasks = d.Path.MaxDailyTasks
	}
	if c.Path.MaxFocusAreas <= 0 {
		c.Path.MaxFocusAreas = d.Path.MaxFocusAreas
	}
	if c.MaxRecommendations <= 0 {
		c.MaxRecommendations = d.MaxRecommendations
	}
	if c.MetricsTTL <= 0 {
		c.MetricsTTL = d.MetricsTTL
	}
	if c.ReportTTL <= 0 {
		c.ReportTTL = d.ReportTTL
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.SummaryTimeframe == "" {
		c.SummaryTimeframe = d.SummaryTimeframe
	}
	if c.Origin == "" {
		c.Origin = "examwatch-" + uuid.NewString()[:8]
	}
	return c
}
