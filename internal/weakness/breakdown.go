package weakness

import (
	"fmt"
	"maps"
	"sort"
	"time"

	"github.com/blackwell-systems/examwatch/internal/analyzer"
	"github.com/blackwell-systems/examwatch/internal/records"
)

// Breakdown holds the reporting-only output of the sub-analyzers. A nil
// section means the analyzer did not run or failed.
type Breakdown struct {
	Accuracy    *AccuracyBreakdown    `json:"accuracy,omitempty"`
	Consistency *ConsistencyBreakdown `json:"consistency,omitempty"`
	Speed       *SpeedBreakdown       `json:"speed,omitempty"`
	Retention   *RetentionBreakdown   `json:"retention,omitempty"`
	Pattern     *PatternBreakdown     `json:"pattern,omitempty"`
}

// GroupStat is the accuracy of one group of assessments.
type GroupStat struct {
	Accuracy    float64 `json:"accuracy"`
	Questions   int     `json:"questions"`
	Assessments int     `json:"assessments"`
}

// Clone returns a deep copy of b. A nil Breakdown clones to nil.
func (b *Breakdown) Clone() *Breakdown {
	if b == nil {
		return nil
	}
	out := &Breakdown{}
	if b.Accuracy != nil {
		a := *b.Accuracy
		a.BySubject = maps.Clone(a.BySubject)
		a.ByDifficulty = maps.Clone(a.ByDifficulty)
		a.ByChapter = maps.Clone(a.ByChapter)
		out.Accuracy = &a
	}
	if b.Consistency != nil {
		c := *b.Consistency
		out.Consistency = &c
	}
	if b.Speed != nil {
		sp := *b.Speed
		sp.ByDifficulty = maps.Clone(sp.ByDifficulty)
		sp.BySubject = maps.Clone(sp.BySubject)
		out.Speed = &sp
	}
	if b.Retention != nil {
		r := *b.Retention
		r.BySubject = maps.Clone(r.BySubject)
		out.Retention = &r
	}
	if b.Pattern != nil {
		p := *b.Pattern
		p.ByTimeOfDay = maps.Clone(p.ByTimeOfDay)
		p.ByWeekday = maps.Clone(p.ByWeekday)
		out.Pattern = &p
	}
	return out
}

// AccuracyBreakdown is assessment accuracy grouped by subject, difficulty
// and chapter.
type AccuracyBreakdown struct {
	BySubject    map[string]GroupStat `json:"by_subject"`
	ByDifficulty map[string]GroupStat `json:"by_difficulty"`
	ByChapter    map[string]GroupStat `json:"by_chapter,omitempty"`
	Weakest      string               `json:"weakest,omitempty"`
}

// ConsistencyBreakdown describes study regularity and score spread.
type ConsistencyBreakdown struct {
	StudyDays int `json:"study_days"`

	// LongestGap is the most days between consecutive study days.
	LongestGap int `json:"longest_gap"`

	// Variability is the coefficient of variation of per-study-day minutes.
	Variability    float64 `json:"variability"`
	AccuracyStdDev float64 `json:"accuracy_std_dev"`
}

// SpeedBreakdown is answer time grouped by difficulty and subject.
type SpeedBreakdown struct {
	// Seconds per question.
	ByDifficulty map[string]float64 `json:"by_difficulty"`
	BySubject    map[string]float64 `json:"by_subject"`
	Slowest      string             `json:"slowest,omitempty"`
}

// RetentionBreakdown summarizes review outcomes.
type RetentionBreakdown struct {
	Reviews   int                `json:"reviews"`
	BySubject map[string]float64 `json:"by_subject"`

	// Decay is the pass rate of the older half of reviews minus the newer
	// half; positive means recall is slipping.
	Decay float64 `json:"decay"`
}

// PatternBreakdown shows when the learner studies and performs best.
type PatternBreakdown struct {
	// Accuracy per time-of-day slot (morning, afternoon, evening, night).
	ByTimeOfDay map[string]GroupStat `json:"by_time_of_day"`

	// Study minutes per weekday.
	ByWeekday map[string]float64 `json:"by_weekday"`
	BestSlot  string             `json:"best_slot,omitempty"`
	PeakDay   string             `json:"peak_day,omitempty"`
}

// section is a named sub-analyzer writing into a Breakdown.
type section struct {
	name string
	run  func(set records.Set, b *Breakdown) error
}

func defaultSections() []section {
	return []section{
		{"accuracy", func(set records.Set, b *Breakdown) error {
			b.Accuracy = analyzeAccuracy(set.Assessments)
			return nil
		}},
		{"consistency", func(set records.Set, b *Breakdown) error {
			b.Consistency = analyzeConsistency(set)
			return nil
		}},
		{"speed", func(set records.Set, b *Breakdown) error {
			b.Speed = analyzeSpeed(set.Assessments)
			return nil
		}},
		{"retention", func(set records.Set, b *Breakdown) error {
			b.Retention = analyzeRetention(set.Reviews)
			return nil
		}},
		{"pattern", func(set records.Set, b *Breakdown) error {
			b.Pattern = analyzePatterns(set)
			return nil
		}},
	}
}

func safeRun(s section, set records.Set, b *Breakdown) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s analyzer panicked: %v", s.name, r)
		}
	}()
	return s.run(set, b)
}

type tally struct {
	correct, total, count int
}

func (t tally) stat() GroupStat {
	s := GroupStat{Questions: t.total, Assessments: t.count}
	if t.total > 0 {
		s.Accuracy = float64(t.correct) / float64(t.total) * 100
	}
	return s
}

func groupAccuracy(as []records.AssessmentRecord, key func(records.AssessmentRecord) string) map[string]GroupStat {
	tallies := make(map[string]*tally)
	for _, a := range as {
		k := key(a)
		if k == "" {
			continue
		}
		t, ok := tallies[k]
		if !ok {
			t = &tally{}
			tallies[k] = t
		}
		t.correct += a.CorrectAnswers
		t.total += a.TotalQuestions
		t.count++
	}
	out := make(map[string]GroupStat, len(tallies))
	for k, t := range tallies {
		out[k] = t.stat()
	}
	return out
}

func analyzeAccuracy(as []records.AssessmentRecord) *AccuracyBreakdown {
	b := &AccuracyBreakdown{
		BySubject:    groupAccuracy(as, func(a records.AssessmentRecord) string { return a.Subject }),
		ByDifficulty: groupAccuracy(as, func(a records.AssessmentRecord) string { return string(a.Difficulty) }),
		ByChapter: groupAccuracy(as, func(a records.AssessmentRecord) string {
			if a.Chapter == "" {
				return ""
			}
			return a.Subject + "/" + a.Chapter
		}),
	}
	b.Weakest = lowestAccuracy(b.BySubject)
	return b
}

func lowestAccuracy(groups map[string]GroupStat) string {
	keys := sortedKeys(groups)
	best := ""
	for _, k := range keys {
		if groups[k].Questions == 0 {
			continue
		}
		if best == "" || groups[k].Accuracy < groups[best].Accuracy {
			best = k
		}
	}
	return best
}

func analyzeConsistency(set records.Set) *ConsistencyBreakdown {
	b := &ConsistencyBreakdown{}
	minutes := make(map[time.Time]float64)
	for _, s := range set.Sessions {
		y, m, d := s.Timestamp.Date()
		minutes[time.Date(y, m, d, 0, 0, 0, 0, s.Timestamp.Location())] += s.Duration / 60
	}
	b.StudyDays = len(minutes)

	days := make([]time.Time, 0, len(minutes))
	perDay := make([]float64, 0, len(minutes))
	for d, v := range minutes {
		days = append(days, d)
		perDay = append(perDay, v)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for i := 1; i < len(days); i++ {
		gap := int(days[i].Sub(days[i-1]).Hours()/24+0.5) - 1
		b.LongestGap = max(b.LongestGap, gap)
	}
	if mean := analyzer.Mean(perDay); mean > 0 {
		b.Variability = analyzer.StdDev(perDay) / mean
	}

	accuracies := make([]float64, 0, len(set.Assessments))
	for _, a := range set.Assessments {
		accuracies = append(accuracies, a.AccuracyPercent())
	}
	b.AccuracyStdDev = analyzer.StdDev(accuracies)
	return b
}

func secondsPerQuestion(as []records.AssessmentRecord, key func(records.AssessmentRecord) string) map[string]float64 {
	type acc struct {
		seconds   float64
		questions int
	}
	by := make(map[string]*acc)
	for _, a := range as {
		k := key(a)
		if k == "" || a.TimeSpent <= 0 || a.TotalQuestions == 0 {
			continue
		}
		v, ok := by[k]
		if !ok {
			v = &acc{}
			by[k] = v
		}
		v.seconds += a.TimeSpent
		v.questions += a.TotalQuestions
	}
	out := make(map[string]float64, len(by))
	for k, v := range by {
		out[k] = v.seconds / float64(v.questions)
	}
	return out
}

func analyzeSpeed(as []records.AssessmentRecord) *SpeedBreakdown {
	b := &SpeedBreakdown{
		ByDifficulty: secondsPerQuestion(as, func(a records.AssessmentRecord) string { return string(a.Difficulty) }),
		BySubject:    secondsPerQuestion(as, func(a records.AssessmentRecord) string { return a.Subject }),
	}
	for _, k := range sortedKeys(b.BySubject) {
		if b.Slowest == "" || b.BySubject[k] > b.BySubject[b.Slowest] {
			b.Slowest = k
		}
	}
	return b
}

func analyzeRetention(reviews []records.ReviewRecord) *RetentionBreakdown {
	b := &RetentionBreakdown{Reviews: len(reviews), BySubject: make(map[string]float64)}
	if len(reviews) == 0 {
		return b
	}

	type acc struct{ passed, total int }
	by := make(map[string]*acc)
	for _, r := range reviews {
		subj := r.Subject
		if subj == "" {
			subj = "unassigned"
		}
		v, ok := by[subj]
		if !ok {
			v = &acc{}
			by[subj] = v
		}
		v.total++
		if r.Quality >= 3 {
			v.passed++
		}
	}
	for k, v := range by {
		b.BySubject[k] = float64(v.passed) / float64(v.total) * 100
	}

	sorted := make([]records.ReviewRecord, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	pass := make([]float64, len(sorted))
	for i, r := range sorted {
		if r.Quality >= 3 {
			pass[i] = 100
		}
	}
	b.Decay = -analyzer.HalfDelta(pass)
	return b
}

// timeSlot buckets an hour of day.
func timeSlot(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

func analyzePatterns(set records.Set) *PatternBreakdown {
	b := &PatternBreakdown{
		ByTimeOfDay: groupAccuracy(set.Assessments, func(a records.AssessmentRecord) string {
			return timeSlot(a.Timestamp.Hour())
		}),
		ByWeekday: make(map[string]float64),
	}
	for _, s := range set.Sessions {
		b.ByWeekday[s.Timestamp.Weekday().String()] += s.Duration / 60
	}

	for _, k := range sortedKeys(b.ByTimeOfDay) {
		if b.ByTimeOfDay[k].Questions == 0 {
			continue
		}
		if b.BestSlot == "" || b.ByTimeOfDay[k].Accuracy > b.ByTimeOfDay[b.BestSlot].Accuracy {
			b.BestSlot = k
		}
	}
	for _, k := range sortedKeys(b.ByWeekday) {
		if b.PeakDay == "" || b.ByWeekday[k] > b.ByWeekday[b.PeakDay] {
			b.PeakDay = k
		}
	}
	return b
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
