package store

import "fmt"

// currentSchemaVersion is the latest schema version.
const currentSchemaVersion = 1

// Migrate runs forward migrations to bring the database schema up to date.
func (db *DB) Migrate() error {
	if _, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	version := 0
	if err := db.conn.Get(&version, "SELECT version FROM schema_version LIMIT 1"); err != nil {
		// No rows means a fresh database.
		version = 0
	}

	if version < 1 {
		if err := db.migrateV1(); err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
	}

	return nil
}

// migrateV1 creates the record and snapshot tables. seq preserves append
// order, which is what cap eviction follows; ts is unix milliseconds.
func (db *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			seq               INTEGER PRIMARY KEY AUTOINCREMENT,
			id                TEXT NOT NULL,
			ts                INTEGER NOT NULL,
			duration          REAL NOT NULL,
			type              TEXT NOT NULL DEFAULT '',
			subject           TEXT NOT NULL DEFAULT '',
			chapter           TEXT NOT NULL DEFAULT '',
			attempted         INTEGER NOT NULL,
			correct           INTEGER NOT NULL,
			accuracy          REAL NOT NULL,
			avg_response_time REAL NOT NULL,
			focus_quality     REAL NOT NULL,
			completion_rate   REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS assessments (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL,
			ts              INTEGER NOT NULL,
			type            TEXT NOT NULL DEFAULT '',
			subject         TEXT NOT NULL DEFAULT '',
			chapter         TEXT NOT NULL DEFAULT '',
			total_questions INTEGER NOT NULL,
			correct_answers INTEGER NOT NULL,
			accuracy        REAL NOT NULL,
			time_spent      REAL NOT NULL,
			difficulty      TEXT NOT NULL,
			score           REAL NOT NULL,
			max_score       REAL NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS reviews (
			seq     INTEGER PRIMARY KEY AUTOINCREMENT,
			id      TEXT NOT NULL,
			ts      INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			subject TEXT NOT NULL DEFAULT '',
			quality INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			taken_at             TEXT NOT NULL,
			timeframe            TEXT NOT NULL,
			subject              TEXT NOT NULL DEFAULT '',
			composite_score      REAL NOT NULL,
			grade                TEXT NOT NULL,
			accuracy             REAL NOT NULL,
			consistency_score    REAL NOT NULL,
			retention_rate       REAL NOT NULL,
			weakness_score       REAL NOT NULL,
			recommendation_count INTEGER NOT NULL,
			insufficient_data    BOOLEAN NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS snapshot_weaknesses (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			snapshot_id   INTEGER NOT NULL REFERENCES snapshots(id),
			type          TEXT NOT NULL,
			severity      TEXT NOT NULL,
			current_value REAL NOT NULL,
			target_value  REAL NOT NULL
		)`,

		// Indexes.
		`CREATE INDEX IF NOT EXISTS idx_sessions_ts ON sessions(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_assessments_ts ON assessments(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_ts ON reviews(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_item ON reviews(item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshot_weaknesses_snapshot ON snapshot_weaknesses(snapshot_id)`,
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt[:40], err)
		}
	}

	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", currentSchemaVersion); err != nil {
		return err
	}

	return tx.Commit()
}
