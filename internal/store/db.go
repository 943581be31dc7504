package store

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/blackwell-systems/examwatch/internal/records"
)

// DB wraps a connection to the examwatch SQLite database. It implements
// records.Source with the same capped, insertion-ordered retention as the
// in-memory store.
type DB struct {
	conn *sqlx.DB
	caps records.Caps

	mu  sync.RWMutex
	now func() time.Time
}

// Open opens or creates the SQLite database at the given path.
// It creates the parent directory if it does not exist.
func Open(dbPath string, caps records.Caps) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	conn, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return newDB(conn, caps)
}

// OpenInMemory opens an in-memory SQLite database, useful for testing.
func OpenInMemory(caps records.Caps) (*DB, error) {
	conn, err := sqlx.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is its own database.
	conn.SetMaxOpenConns(1)
	return newDB(conn, caps)
}

func newDB(conn *sqlx.DB, caps records.Caps) (*DB, error) {
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn, caps: caps.Resolve(), now: time.Now}
	if err := db.Migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return db, nil
}

// SetClock overrides the clock used for missing timestamps, window queries
// and snapshot times.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

func (db *DB) clock() time.Time {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.now()
}

// Caps returns the effective retention caps.
func (db *DB) Caps() records.Caps {
	return db.caps
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying connection for advanced queries.
func (db *DB) Conn() *sqlx.DB {
	return db.conn
}
