package store

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/examwatch/internal/records"
)

var _ records.Source = (*DB)(nil)

// AppendSession normalizes and stores a session, evicting the
// oldest-appended sessions beyond the cap.
func (db *DB) AppendSession(ctx context.Context, rec records.SessionRecord) error {
	r := records.NormalizeSession(rec, db.clock())
	return db.appendCapped(ctx, "sessions", db.caps.Sessions,
		`INSERT INTO sessions
		(id, ts, duration, type, subject, chapter, attempted, correct, accuracy,
		 avg_response_time, focus_quality, completion_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UnixMilli(), r.Duration, r.Type, r.Subject, r.Chapter,
		r.Performance.Attempted, r.Performance.Correct, r.Performance.Accuracy,
		r.Performance.AvgResponseTime, r.FocusQuality, r.CompletionRate,
	)
}

// AppendAssessment stores an assessment under the assessment cap.
func (db *DB) AppendAssessment(ctx context.Context, rec records.AssessmentRecord) error {
	r := records.NormalizeAssessment(rec, db.clock())
	return db.appendCapped(ctx, "assessments", db.caps.Assessments,
		`INSERT INTO assessments
		(id, ts, type, subject, chapter, total_questions, correct_answers, accuracy,
		 time_spent, difficulty, score, max_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UnixMilli(), r.Type, r.Subject, r.Chapter,
		r.TotalQuestions, r.CorrectAnswers, r.Accuracy, r.TimeSpent,
		string(r.Difficulty), r.Score, r.MaxScore,
	)
}

// AppendReview stores a review under the review cap.
func (db *DB) AppendReview(ctx context.Context, rec records.ReviewRecord) error {
	r := records.NormalizeReview(rec, db.clock())
	return db.appendCapped(ctx, "reviews", db.caps.Reviews,
		`INSERT INTO reviews (id, ts, item_id, subject, quality) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Timestamp.UnixMilli(), r.ItemID, r.Subject, r.Quality,
	)
}

// appendCapped inserts one row and trims the table to the newest limit rows
// by seq inside a single transaction. table is always a package constant.
func (db *DB) appendCapped(ctx context.Context, table string, limit int, insert string, args ...any) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return fmt.Errorf("inserting into %s: %w", table, err)
	}
	evict := fmt.Sprintf(
		`DELETE FROM %[1]s WHERE seq NOT IN (SELECT seq FROM %[1]s ORDER BY seq DESC LIMIT ?)`, table)
	if _, err := tx.ExecContext(ctx, evict, limit); err != nil {
		return fmt.Errorf("evicting from %s: %w", table, err)
	}
	return tx.Commit()
}

// QueryRange returns the records inside [start, end] for the subject, in
// append order. The three tables are read concurrently.
func (db *DB) QueryRange(ctx context.Context, start, end time.Time, subject string) (records.Set, error) {
	from, to := start.UnixMilli(), end.UnixMilli()

	var (
		sessions    []sessionRow
		assessments []assessmentRow
		reviews     []reviewRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return db.conn.SelectContext(gctx, &sessions,
			"SELECT * FROM sessions WHERE ts BETWEEN ? AND ? ORDER BY seq", from, to)
	})
	g.Go(func() error {
		return db.conn.SelectContext(gctx, &assessments,
			"SELECT * FROM assessments WHERE ts BETWEEN ? AND ? ORDER BY seq", from, to)
	})
	g.Go(func() error {
		return db.conn.SelectContext(gctx, &reviews,
			"SELECT * FROM reviews WHERE ts BETWEEN ? AND ? ORDER BY seq", from, to)
	})
	if err := g.Wait(); err != nil {
		return records.Set{}, fmt.Errorf("querying records: %w", err)
	}

	var out records.Set
	for _, r := range sessions {
		if records.MatchSubject(r.Subject, subject) {
			out.Sessions = append(out.Sessions, r.record())
		}
	}
	for _, r := range assessments {
		if records.MatchSubject(r.Subject, subject) {
			out.Assessments = append(out.Assessments, r.record())
		}
	}
	for _, r := range reviews {
		if records.MatchSubject(r.Subject, subject) {
			out.Reviews = append(out.Reviews, r.record())
		}
	}
	return out, nil
}

// Query returns the records of the trailing window of windowDays days.
func (db *DB) Query(ctx context.Context, windowDays int, subject string) (records.Set, error) {
	return records.Window(ctx, db, db.clock(), windowDays, subject)
}

// Counts returns the number of retained records of each kind.
func (db *DB) Counts(ctx context.Context) (sessions, assessments, reviews int, err error) {
	err = db.conn.QueryRowxContext(ctx, `SELECT
		(SELECT COUNT(*) FROM sessions),
		(SELECT COUNT(*) FROM assessments),
		(SELECT COUNT(*) FROM reviews)`).Scan(&sessions, &assessments, &reviews)
	return sessions, assessments, reviews, err
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func (r sessionRow) record() records.SessionRecord {
	return records.SessionRecord{
		ID:        r.ID,
		Timestamp: fromMillis(r.TS),
		Duration:  r.Duration,
		Type:      r.Type,
		Subject:   r.Subject,
		Chapter:   r.Chapter,
		Performance: records.Performance{
			Attempted:       r.Attempted,
			Correct:         r.Correct,
			Accuracy:        r.Accuracy,
			AvgResponseTime: r.AvgResponseTime,
		},
		FocusQuality:   r.FocusQuality,
		CompletionRate: r.CompletionRate,
	}
}

func (r assessmentRow) record() records.AssessmentRecord {
	return records.AssessmentRecord{
		ID:             r.ID,
		Timestamp:      fromMillis(r.TS),
		Type:           r.Type,
		Subject:        r.Subject,
		Chapter:        r.Chapter,
		TotalQuestions: r.TotalQuestions,
		CorrectAnswers: r.CorrectAnswers,
		Accuracy:       r.Accuracy,
		TimeSpent:      r.TimeSpent,
		Difficulty:     records.Difficulty(r.Difficulty),
		Score:          r.Score,
		MaxScore:       r.MaxScore,
	}
}

func (r reviewRow) record() records.ReviewRecord {
	return records.ReviewRecord{
		ID:        r.ID,
		Timestamp: fromMillis(r.TS),
		ItemID:    r.ItemID,
		Subject:   r.Subject,
		Quality:   r.Quality,
	}
}
