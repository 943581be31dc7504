package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackwell-systems/examwatch/internal/records"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T, caps records.Caps) *DB {
	t.Helper()
	db, err := OpenInMemory(caps)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetClock(func() time.Time { return testNow })
	return db
}

func TestOpenInMemory_Migrates(t *testing.T) {
	db := openTestDB(t, records.Caps{})

	var version int
	require.NoError(t, db.Conn().Get(&version, "SELECT version FROM schema_version"))
	assert.Equal(t, currentSchemaVersion, version)
	assert.Equal(t, records.DefaultCaps(), db.Caps())

	// Running again is a no-op.
	require.NoError(t, db.Migrate())
}

func TestAppendSession_EvictsByInsertionOrder(t *testing.T) {
	db := openTestDB(t, records.Caps{Sessions: 3})
	ctx := context.Background()

	// Newer timestamps first: eviction must still drop the earliest appended.
	for i := range 5 {
		require.NoError(t, db.AppendSession(ctx, records.SessionRecord{
			ID:        fmt.Sprintf("s%d", i),
			Timestamp: testNow.Add(-time.Duration(i) * time.Hour),
			Duration:  1800,
			Subject:   "Math",
		}))
	}

	sessions, _, _, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, sessions)

	set, err := db.Query(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, set.Sessions, 3)
	assert.Equal(t, "s2", set.Sessions[0].ID)
	assert.Equal(t, "s4", set.Sessions[2].ID)
}

func TestAppendAssessmentAndReview_Caps(t *testing.T) {
	db := openTestDB(t, records.Caps{Assessments: 2, Reviews: 1})
	ctx := context.Background()

	for i := range 4 {
		require.NoError(t, db.AppendAssessment(ctx, records.AssessmentRecord{TotalQuestions: 10, CorrectAnswers: i}))
		require.NoError(t, db.AppendReview(ctx, records.ReviewRecord{ItemID: "card", Quality: i}))
	}

	_, assessments, reviews, err := db.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, assessments)
	assert.Equal(t, 1, reviews)
}

func TestQueryRange_WindowSubjectAndNormalization(t *testing.T) {
	db := openTestDB(t, records.Caps{})
	ctx := context.Background()

	require.NoError(t, db.AppendAssessment(ctx, records.AssessmentRecord{
		ID:             "recent",
		Timestamp:      testNow.AddDate(0, 0, -2),
		Subject:        " Chemistry ",
		TotalQuestions: 10,
		CorrectAnswers: 14,
		Difficulty:     "brutal",
		TimeSpent:      300,
	}))
	require.NoError(t, db.AppendAssessment(ctx, records.AssessmentRecord{
		ID:             "old",
		Timestamp:      testNow.AddDate(0, 0, -40),
		Subject:        "Chemistry",
		TotalQuestions: 10,
	}))
	require.NoError(t, db.AppendAssessment(ctx, records.AssessmentRecord{
		ID:             "other",
		Timestamp:      testNow.AddDate(0, 0, -1),
		Subject:        "Biology",
		TotalQuestions: 10,
	}))
	require.NoError(t, db.AppendReview(ctx, records.ReviewRecord{ItemID: "card", Quality: 9}))

	set, err := db.Query(ctx, 30, "chemistry")
	require.NoError(t, err)
	require.Len(t, set.Assessments, 1)

	a := set.Assessments[0]
	assert.Equal(t, "recent", a.ID)
	assert.Equal(t, "Chemistry", a.Subject)
	assert.Equal(t, 10, a.CorrectAnswers)
	assert.Equal(t, 100.0, a.Accuracy)
	assert.Equal(t, records.DifficultyMedium, a.Difficulty)
	assert.True(t, a.Timestamp.Equal(testNow.AddDate(0, 0, -2)))

	all, err := db.Query(ctx, 30, "")
	require.NoError(t, err)
	assert.Len(t, all.Assessments, 2)
	require.Len(t, all.Reviews, 1)
	assert.Equal(t, 5, all.Reviews[0].Quality)
	assert.NotEmpty(t, all.Reviews[0].ID)
	assert.True(t, all.Reviews[0].Timestamp.Equal(testNow))
}

func TestSnapshots_SaveAndCompare(t *testing.T) {
	db := openTestDB(t, records.Caps{})
	ctx := context.Background()

	none, err := db.GetLatestSnapshot(ctx, "weekly", "")
	require.NoError(t, err)
	assert.Nil(t, none)

	first := &Snapshot{
		Timeframe:      "weekly",
		CompositeScore: 60,
		Grade:          "C",
		Accuracy:       65,
		WeaknessScore:  80,
		Weaknesses: []SnapshotWeakness{
			{Type: "accuracy", Severity: "medium", CurrentValue: 65, TargetValue: 70},
			{Type: "speed", Severity: "low", CurrentValue: 125, TargetValue: 120},
		},
	}
	_, err = db.SaveSnapshot(ctx, first)
	require.NoError(t, err)

	second := &Snapshot{
		Timeframe:      "weekly",
		CompositeScore: 72,
		Grade:          "C",
		Accuracy:       74,
		WeaknessScore:  50,
		Weaknesses:     []SnapshotWeakness{{Type: "speed", Severity: "low"}, {Type: "retention", Severity: "medium"}},
	}
	_, err = db.SaveSnapshot(ctx, second)
	require.NoError(t, err)

	// Other timeframes are tracked separately.
	_, err = db.SaveSnapshot(ctx, &Snapshot{Timeframe: "monthly", Grade: "F"})
	require.NoError(t, err)

	cur, err := db.GetLatestSnapshot(ctx, "weekly", "")
	require.NoError(t, err)
	prev, err := db.GetSnapshotN(ctx, "weekly", "", 2)
	require.NoError(t, err)
	require.NotNil(t, cur)
	require.NotNil(t, prev)
	assert.Equal(t, 72.0, cur.CompositeScore)
	assert.True(t, cur.TakenAt.Equal(testNow))
	require.Len(t, prev.Weaknesses, 2)
	assert.Equal(t, "accuracy", prev.Weaknesses[0].Type)

	diff := CompareSnapshots(prev, cur)
	byName := map[string]MetricDelta{}
	for _, d := range diff.Deltas {
		byName[d.Name] = d
	}
	assert.Equal(t, "improved", byName["composite_score"].Direction)
	assert.InDelta(t, 12.0, byName["composite_score"].Delta, 1e-9)
	assert.Equal(t, "improved", byName["weakness_score"].Direction)
	assert.Equal(t, "unchanged", byName["retention_rate"].Direction)
	assert.Equal(t, []string{"retention"}, diff.Introduced)
	assert.Equal(t, []string{"accuracy"}, diff.Resolved)
}

func TestCompareSnapshots_NilPrevious(t *testing.T) {
	diff := CompareSnapshots(nil, &Snapshot{})
	assert.Empty(t, diff.Deltas)
}
