package store

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"slices"
	"time"
)

// SaveSnapshot inserts s and its weaknesses and returns the new ID. A zero
// TakenAt is filled from the store clock.
func (db *DB) SaveSnapshot(ctx context.Context, s *Snapshot) (int64, error) {
	if s.TakenAt.IsZero() {
		s.TakenAt = db.clock().UTC()
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots
		(taken_at, timeframe, subject, composite_score, grade, accuracy, consistency_score,
		 retention_rate, weakness_score, recommendation_count, insufficient_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.TakenAt.Format(time.RFC3339), s.Timeframe, s.Subject, s.CompositeScore, s.Grade,
		s.Accuracy, s.ConsistencyScore, s.RetentionRate, s.WeaknessScore,
		s.RecommendationCount, s.InsufficientData,
	)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for i := range s.Weaknesses {
		w := &s.Weaknesses[i]
		w.SnapshotID = id
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO snapshot_weaknesses (snapshot_id, type, severity, current_value, target_value)
			VALUES (:snapshot_id, :type, :severity, :current_value, :target_value)`, w); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	s.ID = id
	return id, nil
}

type snapshotRow struct {
	Snapshot
	TakenAtText string `db:"taken_at"`
}

const snapshotColumns = `id, taken_at, timeframe, subject, composite_score, grade, accuracy,
	consistency_score, retention_rate, weakness_score, recommendation_count, insufficient_data`

// GetLatestSnapshot returns the most recent snapshot for the timeframe and
// subject, or nil if none exist.
func (db *DB) GetLatestSnapshot(ctx context.Context, timeframe, subject string) (*Snapshot, error) {
	return db.GetSnapshotN(ctx, timeframe, subject, 1)
}

// GetSnapshotN returns the Nth most recent snapshot (1 = latest, 2 = previous, etc.)
// for the timeframe and subject.
func (db *DB) GetSnapshotN(ctx context.Context, timeframe, subject string, n int) (*Snapshot, error) {
	var row snapshotRow
	err := db.conn.GetContext(ctx, &row,
		`SELECT `+snapshotColumns+` FROM snapshots
		 WHERE timeframe = ? AND subject = ? ORDER BY id DESC LIMIT 1 OFFSET ?`,
		timeframe, subject, max(n-1, 0),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s := row.Snapshot
	s.TakenAt, _ = time.Parse(time.RFC3339, row.TakenAtText)
	if err := db.conn.SelectContext(ctx, &s.Weaknesses,
		`SELECT snapshot_id, type, severity, current_value, target_value
		 FROM snapshot_weaknesses WHERE snapshot_id = ? ORDER BY id`, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

// CompareSnapshots computes metric deltas and the weakness types that
// appeared or disappeared between prev and cur.
func CompareSnapshots(prev, cur *Snapshot) SnapshotDiff {
	diff := SnapshotDiff{Previous: prev, Current: cur}
	if prev == nil || cur == nil {
		return diff
	}

	type metric struct {
		name          string
		prev, cur     float64
		lowerIsBetter bool
	}
	for _, m := range []metric{
		{"composite_score", prev.CompositeScore, cur.CompositeScore, false},
		{"accuracy", prev.Accuracy, cur.Accuracy, false},
		{"consistency_score", prev.ConsistencyScore, cur.ConsistencyScore, false},
		{"retention_rate", prev.RetentionRate, cur.RetentionRate, false},
		{"weakness_score", prev.WeaknessScore, cur.WeaknessScore, true},
	} {
		diff.Deltas = append(diff.Deltas, MetricDelta{
			Name:      m.name,
			Previous:  m.prev,
			Current:   m.cur,
			Delta:     m.cur - m.prev,
			Direction: direction(m.cur-m.prev, m.lowerIsBetter),
		})
	}

	before, after := weaknessTypes(prev), weaknessTypes(cur)
	for _, t := range after {
		if !slices.Contains(before, t) {
			diff.Introduced = append(diff.Introduced, t)
		}
	}
	for _, t := range before {
		if !slices.Contains(after, t) {
			diff.Resolved = append(diff.Resolved, t)
		}
	}
	return diff
}

func direction(delta float64, lowerIsBetter bool) string {
	if math.Abs(delta) < 0.05 {
		return "unchanged"
	}
	if (delta > 0) != lowerIsBetter {
		return "improved"
	}
	return "regressed"
}

func weaknessTypes(s *Snapshot) []string {
	out := make([]string, 0, len(s.Weaknesses))
	for _, w := range s.Weaknesses {
		out = append(out, w.Type)
	}
	return out
}
