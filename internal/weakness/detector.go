package weakness

import (
	"context"
	"fmt"
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/logger"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// Detector runs the weakness rules and sub-analyzers over a record window.
type Detector struct {
	cfg       Config
	calc      *analyzer.Calculator
	primary   []Rule
	secondary []Rule
	sections  []section
	log       *logger.Logger
}

// NewDetector creates a detector using calc for the window's metrics.
func NewDetector(cfg Config, calc *analyzer.Calculator, log *logger.Logger) *Detector {
	d := DefaultConfig()
	if cfg.MinSessions <= 0 {
		cfg.MinSessions = d.MinSessions
	}
	if cfg.MinAssessments <= 0 {
		cfg.MinAssessments = d.MinAssessments
	}
	if cfg.MaxActionPlans <= 0 {
		cfg.MaxActionPlans = d.MaxActionPlans
	}
	return &Detector{
		cfg:       cfg,
		calc:      calc,
		primary:   PrimaryRules,
		secondary: SecondaryRules,
		sections:  defaultSections(),
		log:       logger.OrNop(log),
	}
}

// Analyze loads the timeframe window from src and classifies weaknesses.
// Too little data is reported in the result, never as an error.
func (d *Detector) Analyze(ctx context.Context, src records.Source, now time.Time, tf analyzer.Timeframe, subject string, flags Flags) (Report, error) {
	days, err := d.calc.Periods().Days(tf)
	if err != nil {
		return Report{}, err
	}
	set, err := records.Window(ctx, src, now, days, subject)
	if err != nil {
		return Report{}, fmt.Errorf("querying %s window: %w", tf, err)
	}

	report := Report{
		Timeframe:   tf,
		Subject:     subject,
		GeneratedAt: now,
		Weaknesses:  []Weakness{},
	}
	report.Metrics = d.calc.Compute(ctx, set, tf, days, subject, now)

	if unmet := d.unmet(set); len(unmet) > 0 {
		report.HasInsufficientData = true
		report.Unmet = unmet
		return report, nil
	}

	in := &Input{Metrics: report.Metrics, Set: set, Thresholds: d.cfg.Thresholds, Subject: subject}
	report.Weaknesses = append(report.Weaknesses, evaluate(d.primary, in)...)
	if flags.Secondary {
		report.Weaknesses = append(report.Weaknesses, evaluate(d.secondary, in)...)
	}
	Rank(report.Weaknesses)
	report.OverallScore = OverallScore(report.Weaknesses)

	if flags.Detailed {
		report.Breakdown = &Breakdown{}
		for _, s := range d.sections {
			if err := safeRun(s, set, report.Breakdown); err != nil {
				d.log.Warn("sub-analyzer failed", "section", s.name, "error", err)
				report.Partial = true
				report.FailedSections = append(report.FailedSections, s.name)
			}
		}
	}
	if flags.ActionPlans {
		report.ActionPlans = BuildActionPlans(report.Weaknesses, d.cfg.MaxActionPlans)
	}
	return report, nil
}

// unmet lists the data minimums the set falls short of.
func (d *Detector) unmet(set records.Set) []string {
	var out []string
	if n := len(set.Sessions); n < d.cfg.MinSessions {
		out = append(out, fmt.Sprintf("sessions: have %d, need %d", n, d.cfg.MinSessions))
	}
	if n := len(set.Assessments); n < d.cfg.MinAssessments {
		out = append(out, fmt.Sprintf("assessments: have %d, need %d", n, d.cfg.MinAssessments))
	}
	return out
}

func evaluate(rules []Rule, in *Input) []Weakness {
	var out []Weakness
	for _, rule := range rules {
		if w := rule(in); w != nil {
			out = append(out, *w)
		}
	}
	return out
}
