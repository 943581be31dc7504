package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/blackwell-systems/examwatch/internal/advisor"
	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/engine"
	"github.com/blackwell-systems/examwatch/internal/observability"
	"github.com/blackwell-systems/examwatch/internal/records"
	"github.com/blackwell-systems/examwatch/internal/retention"
	"github.com/blackwell-systems/examwatch/internal/suggest"
	"github.com/blackwell-systems/examwatch/internal/weakness"
)

// Config is the top-level examwatch configuration.
type Config struct {
	DataDir    string                      `mapstructure:"data_dir"`
	Weights    analyzer.Weights            `mapstructure:"weights"`
	Periods    analyzer.Periods            `mapstructure:"comparison_periods"`
	Thresholds weakness.Thresholds         `mapstructure:"thresholds"`
	Detector   Detector                    `mapstructure:"detector"`
	Plan       Plan                        `mapstructure:"plan"`
	Caps       records.Caps                `mapstructure:"caps"`
	Retention  Retention                   `mapstructure:"retention"`
	Engine     Engine                      `mapstructure:"engine"`
	Watch      Watch                       `mapstructure:"watch"`
	Redis      Redis                       `mapstructure:"redis"`
	Anthropic  Anthropic                   `mapstructure:"anthropic"`
	Tracing    observability.TracingConfig `mapstructure:"tracing"`
	Log        Log                         `mapstructure:"log"`
	Output     Output                      `mapstructure:"output"`
}

// Detector defines the data sufficiency minimums.
type Detector struct {
	MinSessions    int `mapstructure:"min_sessions"`
	MinAssessments int `mapstructure:"min_assessments"`
	MaxActionPlans int `mapstructure:"max_action_plans"`
}

// Plan defines learning path and recommendation limits.
type Plan struct {
	ReviewIntervals    []int `mapstructure:"review_intervals"`
	MaxDailyTasks      int   `mapstructure:"max_daily_tasks"`
	MaxFocusAreas      int   `mapstructure:"max_focus_areas"`
	MaxRecommendations int   `mapstructure:"max_recommendations"`
}

// Retention defines the SM-2 scheduler settings.
type Retention struct {
	PassThreshold    int `mapstructure:"pass_threshold"`
	MaxInterval      int `mapstructure:"max_interval"`
	MasteredInterval int `mapstructure:"mastered_interval"`
}

// Engine defines cache and background analysis timing.
type Engine struct {
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	ReportTTL        time.Duration `mapstructure:"report_ttl"`
	Debounce         time.Duration `mapstructure:"debounce"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	SummaryTimeframe string        `mapstructure:"summary_timeframe"`
}

// Watch defines the watch daemon settings.
type Watch struct {
	Interval time.Duration `mapstructure:"interval"`
	Notify   bool          `mapstructure:"notify"`
}

// Redis configures the shared event bus. An empty Addr keeps events in-process.
type Redis struct {
	Addr    string `mapstructure:"addr"`
	Channel string `mapstructure:"channel"`
}

// Anthropic configures generated recommendations.
type Anthropic struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	BaseURL   string `mapstructure:"base_url"`
}

// Log defines the logger mode and level.
type Log struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Output defines output preferences.
type Output struct {
	Color bool `mapstructure:"color"`
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// setDefaults registers every key so that environment overrides apply to
// keys absent from the config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultConfigDir)

	v.SetDefault("weights.accuracy", DefaultWeights.Accuracy)
	v.SetDefault("weights.consistency", DefaultWeights.Consistency)
	v.SetDefault("weights.speed", DefaultWeights.Speed)
	v.SetDefault("weights.retention", DefaultWeights.Retention)

	v.SetDefault("comparison_periods.daily", DefaultPeriods.Daily)
	v.SetDefault("comparison_periods.weekly", DefaultPeriods.Weekly)
	v.SetDefault("comparison_periods.monthly", DefaultPeriods.Monthly)
	v.SetDefault("comparison_periods.quarterly", DefaultPeriods.Quarterly)

	v.SetDefault("thresholds.accuracy", DefaultThresholds.Accuracy)
	v.SetDefault("thresholds.consistency", DefaultThresholds.Consistency)
	v.SetDefault("thresholds.response_time", DefaultThresholds.ResponseTime)
	v.SetDefault("thresholds.retention_rate", DefaultThresholds.RetentionRate)
	v.SetDefault("thresholds.improvement_rate", DefaultThresholds.ImprovementRate)
	v.SetDefault("thresholds.study_consistency", DefaultThresholds.StudyConsistency)
	v.SetDefault("thresholds.focus_quality", DefaultThresholds.FocusQuality)

	v.SetDefault("detector.min_sessions", DefaultDetector.MinSessions)
	v.SetDefault("detector.min_assessments", DefaultDetector.MinAssessments)
	v.SetDefault("detector.max_action_plans", DefaultDetector.MaxActionPlans)

	v.SetDefault("plan.review_intervals", DefaultPlan.ReviewIntervals)
	v.SetDefault("plan.max_daily_tasks", DefaultPlan.MaxDailyTasks)
	v.SetDefault("plan.max_focus_areas", DefaultPlan.MaxFocusAreas)
	v.SetDefault("plan.max_recommendations", DefaultPlan.MaxRecommendations)

	v.SetDefault("caps.sessions", DefaultCaps.Sessions)
	v.SetDefault("caps.assessments", DefaultCaps.Assessments)
	v.SetDefault("caps.reviews", DefaultCaps.Reviews)

	v.SetDefault("retention.pass_threshold", DefaultRetention.PassThreshold)
	v.SetDefault("retention.max_interval", DefaultRetention.MaxInterval)
	v.SetDefault("retention.mastered_interval", DefaultRetention.MasteredInterval)

	v.SetDefault("engine.cache_ttl", DefaultCacheTTL)
	v.SetDefault("engine.report_ttl", DefaultReportTTL)
	v.SetDefault("engine.debounce", DefaultDebounce)
	v.SetDefault("engine.sweep_interval", DefaultSweepInterval)
	v.SetDefault("engine.summary_timeframe", DefaultSummaryTimeframe)

	v.SetDefault("watch.interval", DefaultWatchInterval)
	v.SetDefault("watch.notify", true)

	v.SetDefault("redis.addr", DefaultRedis.Addr)
	v.SetDefault("redis.channel", DefaultRedis.Channel)

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", DefaultAnthropic.Model)
	v.SetDefault("anthropic.max_tokens", DefaultAnthropic.MaxTokens)
	v.SetDefault("anthropic.base_url", DefaultAnthropic.BaseURL)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "examwatch")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("log.mode", DefaultLog.Mode)
	v.SetDefault("log.level", DefaultLog.Level)

	v.SetDefault("output.color", DefaultOutput.Color)
}

// loadDotEnv reads .env from the working directory, then from the config
// directory. Variables already set in the environment win.
func loadDotEnv(dirs ...string) error {
	for _, dir := range dirs {
		path := filepath.Join(dir, DefaultEnvFile)
		if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from the given path (or the default location)
// and returns a Config with all defaults applied. Environment variables
// prefixed with EXAMWATCH_ override file values; ANTHROPIC_API_KEY and
// REDIS_ADDR are honoured as well.
func Load(cfgFile string) (*Config, error) {
	configDir := expandPath(DefaultConfigDir)
	if err := loadDotEnv(".", configDir); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("redis.addr", EnvPrefix+"_REDIS_ADDR", "REDIS_ADDR")

	if cfgFile != "" {
		v.SetConfigFile(expandPath(cfgFile))
	} else {
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	// Read config file if it exists; missing file is not an error.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.DataDir = expandPath(cfg.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	w := c.Weights
	if w.Accuracy < 0 || w.Consistency < 0 || w.Speed < 0 || w.Retention < 0 {
		return fmt.Errorf("weights must not be negative")
	}
	if w.Accuracy+w.Consistency+w.Speed+w.Retention <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	for _, tf := range []analyzer.Timeframe{analyzer.Daily, analyzer.Weekly, analyzer.Monthly, analyzer.Quarterly} {
		if _, err := c.Periods.Days(tf); err != nil {
			return fmt.Errorf("comparison_periods: %w", err)
		}
	}
	if _, err := analyzer.ParseTimeframe(c.Engine.SummaryTimeframe); err != nil {
		return fmt.Errorf("engine.summary_timeframe: %w", err)
	}
	for _, d := range c.Plan.ReviewIntervals {
		if d <= 0 {
			return fmt.Errorf("plan.review_intervals must be positive, got %d", d)
		}
	}
	return nil
}

// EngineConfig maps the file settings onto the engine's typed configuration.
func (c *Config) EngineConfig() engine.Config {
	tf, err := analyzer.ParseTimeframe(c.Engine.SummaryTimeframe)
	if err != nil {
		tf = analyzer.Weekly
	}
	return engine.Config{
		Weights: c.Weights,
		Periods: c.Periods,
		Weakness: weakness.Config{
			Thresholds:     c.Thresholds,
			MinSessions:    c.Detector.MinSessions,
			MinAssessments: c.Detector.MinAssessments,
			MaxActionPlans: c.Detector.MaxActionPlans,
		},
		Path: suggest.PathConfig{
			ReviewIntervals: c.Plan.ReviewIntervals,
			MaxDailyTasks:   c.Plan.MaxDailyTasks,
			MaxFocusAreas:   c.Plan.MaxFocusAreas,
		},
		MaxRecommendations: c.Plan.MaxRecommendations,
		MetricsTTL:         c.Engine.CacheTTL,
		ReportTTL:          c.Engine.ReportTTL,
		Debounce:           c.Engine.Debounce,
		SweepInterval:      c.Engine.SweepInterval,
		SummaryTimeframe:   tf,
	}
}

// SM2 returns the spaced-repetition scheduler for the configured settings.
func (c *Config) SM2() *retention.SM2 {
	sm := retention.NewSM2()
	if c.Retention.PassThreshold > 0 {
		sm.PassThreshold = retention.Quality(c.Retention.PassThreshold)
	}
	if c.Retention.MaxInterval > 0 {
		sm.MaxInterval = c.Retention.MaxInterval
	}
	if c.Retention.MasteredInterval > 0 {
		sm.MasteredInterval = c.Retention.MasteredInterval
	}
	return sm
}

// AdvisorOptions returns the Messages API client options. ok is false when
// no API key is configured.
func (c *Config) AdvisorOptions() (opts advisor.Options, ok bool) {
	if strings.TrimSpace(c.Anthropic.APIKey) == "" {
		return advisor.Options{}, false
	}
	return advisor.Options{
		APIKey:    c.Anthropic.APIKey,
		Model:     c.Anthropic.Model,
		MaxTokens: c.Anthropic.MaxTokens,
		BaseURL:   c.Anthropic.BaseURL,
	}, true
}

// DBPath returns the full path to the SQLite database.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DefaultDBName)
}

// ConfigDir returns the expanded configuration directory.
func ConfigDir() string {
	return expandPath(DefaultConfigDir)
}
