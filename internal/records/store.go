package records

import (
	"context"
	"sync"
	"time"
)

// Store is an in-memory Source. Each kind of record is kept in append
// order and trimmed from the front once it exceeds its cap.
type Store struct {
	mu          sync.RWMutex
	caps        Caps
	now         func() time.Time
	sessions    []SessionRecord
	assessments []AssessmentRecord
	reviews     []ReviewRecord
}

// NewStore creates an empty in-memory store. Non-positive caps fall back
// to the defaults.
func NewStore(caps Caps) *Store {
	return &Store{
		caps: caps.Resolve(),
		now:  time.Now,
	}
}

// SetClock overrides the clock used for window queries and missing timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Caps returns the effective retention caps.
func (s *Store) Caps() Caps {
	return s.caps
}

// AppendSession stores a session, evicting the oldest-appended sessions
// beyond the cap.
func (s *Store) AppendSession(_ context.Context, rec SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = appendCapped(s.sessions, NormalizeSession(rec, s.now()), s.caps.Sessions)
	return nil
}

// AppendAssessment stores an assessment under the assessment cap.
func (s *Store) AppendAssessment(_ context.Context, rec AssessmentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assessments = appendCapped(s.assessments, NormalizeAssessment(rec, s.now()), s.caps.Assessments)
	return nil
}

// AppendReview stores a review under the review cap.
func (s *Store) AppendReview(_ context.Context, rec ReviewRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reviews = appendCapped(s.reviews, NormalizeReview(rec, s.now()), s.caps.Reviews)
	return nil
}

// QueryRange returns copies of all records inside [start, end] for the subject.
func (s *Store) QueryRange(_ context.Context, start, end time.Time, subject string) (Set, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out Set
	for _, r := range s.sessions {
		if inRange(r.Timestamp, start, end) && MatchSubject(r.Subject, subject) {
			out.Sessions = append(out.Sessions, r)
		}
	}
	for _, r := range s.assessments {
		if inRange(r.Timestamp, start, end) && MatchSubject(r.Subject, subject) {
			out.Assessments = append(out.Assessments, r)
		}
	}
	for _, r := range s.reviews {
		if inRange(r.Timestamp, start, end) && MatchSubject(r.Subject, subject) {
			out.Reviews = append(out.Reviews, r)
		}
	}
	return out, nil
}

// Query returns the records of the trailing window of windowDays days.
// A non-positive window returns everything retained.
func (s *Store) Query(ctx context.Context, windowDays int, subject string) (Set, error) {
	s.mu.RLock()
	now := s.now()
	s.mu.RUnlock()
	return Window(ctx, s, now, windowDays, subject)
}

// Counts returns the number of retained records of each kind.
func (s *Store) Counts() (sessions, assessments, reviews int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions), len(s.assessments), len(s.reviews)
}

// Window queries src for the trailing windowDays days ending at now.
func Window(ctx context.Context, src Source, now time.Time, windowDays int, subject string) (Set, error) {
	start := time.Time{}
	if windowDays > 0 {
		start = now.AddDate(0, 0, -windowDays)
	}
	return src.QueryRange(ctx, start, now, subject)
}

// appendCapped appends v and drops the oldest entries beyond limit. The
// backing array is reallocated when trimming so evicted records can be freed.
func appendCapped[T any](list []T, v T, limit int) []T {
	list = append(list, v)
	if over := len(list) - limit; over > 0 {
		trimmed := make([]T, limit)
		copy(trimmed, list[over:])
		return trimmed
	}
	return list
}
