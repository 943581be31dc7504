// Package retention tracks spaced-repetition progress with the SM-2
// algorithm and reports retention statistics for the metrics calculator.
package retention

import (
	"sort"
	"time"
)

// Quality is an SM-2 answer grade.
type Quality int

const (
	QualityBlackout          Quality = 0
	QualityIncorrect         Quality = 1
	QualityIncorrectFamiliar Quality = 2
	QualityCorrectDifficult  Quality = 3
	QualityCorrectHesitation Quality = 4
	QualityPerfect           Quality = 5
)

const minEasiness = 1.3

// Item is the scheduling state of one reviewed item.
type Item struct {
	ID             string    `json:"id"`
	Subject        string    `json:"subject,omitempty"`
	EasinessFactor float64   `json:"easiness_factor"`
	Interval       int       `json:"interval"` // days
	Repetitions    int       `json:"repetitions"`
	LastQuality    Quality   `json:"last_quality"`
	LastReview     time.Time `json:"last_review"`
	NextReview     time.Time `json:"next_review"`
	Reviews        int       `json:"reviews"`
}

// NewItem returns an unreviewed item with the initial easiness factor.
func NewItem(id, subject string) Item {
	return Item{ID: id, Subject: subject, EasinessFactor: 2.5}
}

// SM2 holds the scheduler settings.
type SM2 struct {
	// PassThreshold is the lowest quality counted as recalled.
	PassThreshold Quality

	// MaxInterval caps the review interval in days.
	MaxInterval int

	// InitialIntervals are used for the first successful repetitions
	// before the easiness factor takes over.
	InitialIntervals []int

	// MasteredInterval is the interval at which a passing item counts as mastered.
	MasteredInterval int
}

// NewSM2 returns a scheduler with the standard settings.
func NewSM2() *SM2 {
	return &SM2{
		PassThreshold:    QualityCorrectDifficult,
		MaxInterval:      365,
		InitialIntervals: []int{1, 3, 7, 14, 30},
		MasteredInterval: 30,
	}
}

// Review applies one graded review at time at.
func (sm *SM2) Review(item *Item, q Quality, at time.Time) {
	q = min(max(q, QualityBlackout), QualityPerfect)
	miss := float64(QualityPerfect - q)

	item.EasinessFactor = max(minEasiness, item.EasinessFactor+(0.1-miss*(0.08+miss*0.02)))
	item.LastQuality = q
	item.LastReview = at
	item.Reviews++

	if q >= sm.PassThreshold {
		if item.Repetitions < len(sm.InitialIntervals) {
			item.Interval = sm.InitialIntervals[item.Repetitions]
		} else {
			item.Interval = int(float64(item.Interval) * item.EasinessFactor)
		}
		item.Interval = min(item.Interval, sm.MaxInterval)
		item.Repetitions++
	} else {
		item.Repetitions = 0
		item.Interval = 1
	}
	item.NextReview = at.AddDate(0, 0, item.Interval)
}

// Passed reports whether the latest review was a recall.
func (sm *SM2) Passed(item Item) bool {
	return item.Reviews > 0 && item.LastQuality >= sm.PassThreshold
}

// IsMastered reports whether an item is considered learned.
func (sm *SM2) IsMastered(item Item) bool {
	return item.Repetitions >= 5 &&
		item.LastQuality >= QualityCorrectHesitation &&
		item.Interval >= sm.MasteredInterval
}

// Due returns items whose next review is at or before now, hardest first
// and then most overdue, limited to limit when limit > 0.
func (sm *SM2) Due(items []Item, now time.Time, limit int) []Item {
	var due []Item
	for _, it := range items {
		if !it.NextReview.After(now) {
			due = append(due, it)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].EasinessFactor != due[j].EasinessFactor {
			return due[i].EasinessFactor < due[j].EasinessFactor
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})
	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}
