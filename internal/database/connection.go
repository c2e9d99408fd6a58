package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Options selects and locates the database
type Options struct {
	// Type is "sqlite" or "postgres"
	Type string
	// Path is the sqlite file, ":memory:" for an in-memory database
	Path string
	// URL is the postgres connection string
	URL string
}

// DB is a database handle shared by the repositories
type DB struct {
	*sqlx.DB
}

// Open establishes a connection and creates the schema
func Open(opts Options) (*DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch opts.Type {
	case "", "sqlite", DriverSQLite:
		if opts.Path != ":memory:" {
			// Create data directory if it doesn't exist
			if dir := filepath.Dir(opts.Path); dir != "." {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create data directory: %v", err)
				}
			}
		}
		db, err = sqlx.Connect(DriverSQLite, opts.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %v", err)
		}

		// Enable foreign keys
		if _, err = db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %v", err)
		}

		// SQLite doesn't support multiple writers; one connection also keeps ":memory:" alive
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)

	case DriverPostgres:
		db, err = sqlx.Connect(DriverPostgres, opts.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetConnMaxIdleTime(5 * time.Minute)

	default:
		return nil, fmt.Errorf("unsupported database type %q", opts.Type)
	}

	handle := &DB{DB: db}
	if err := handle.initializeSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return handle, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db == nil || db.DB == nil {
		return nil
	}
	return db.DB.Close()
}

func (db *DB) isPostgres() bool {
	return db.DriverName() == DriverPostgres
}

// initializeSchema creates necessary tables if they don't exist.
// Times are unix milliseconds in UTC so due comparisons behave the same on both drivers.
func (db *DB) initializeSchema() error {
	statements := []struct {
		name  string
		query string
	}{
		{"decks table", `
			CREATE TABLE IF NOT EXISTS decks (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				name_key TEXT NOT NULL,
				archived BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL
			)`},
		{"decks name index", `
			CREATE INDEX IF NOT EXISTS idx_decks_name_key ON decks (name_key, archived)`},
		{"cards table", `
			CREATE TABLE IF NOT EXISTS cards (
				id TEXT PRIMARY KEY,
				deck_id TEXT NOT NULL REFERENCES decks(id),
				term TEXT NOT NULL,
				translation TEXT NOT NULL DEFAULT '',
				due_at BIGINT NOT NULL,
				interval_days DOUBLE PRECISION NOT NULL DEFAULT 0,
				ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
				lapses INTEGER NOT NULL DEFAULT 0,
				reps INTEGER NOT NULL DEFAULT 0,
				archived BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				UNIQUE (deck_id, term)
			)`},
		{"cards due index", `
			CREATE INDEX IF NOT EXISTS idx_cards_deck_due ON cards (deck_id, archived, due_at)`},
		{"library_entries table", `
			CREATE TABLE IF NOT EXISTS library_entries (
				kind TEXT NOT NULL,
				value TEXT NOT NULL,
				translation TEXT NOT NULL DEFAULT '',
				focus_level DOUBLE PRECISION NOT NULL,
				updated_at BIGINT NOT NULL,
				PRIMARY KEY (kind, value)
			)`},
		{"attempt_scores table", `
			CREATE TABLE IF NOT EXISTS attempt_scores (
				id TEXT PRIMARY KEY,
				seq BIGINT NOT NULL,
				lesson_id TEXT NOT NULL,
				item_id TEXT NOT NULL,
				spelling DOUBLE PRECISION NOT NULL,
				grammar DOUBLE PRECISION NOT NULL,
				created_at BIGINT NOT NULL
			)`},
		{"attempt_scores index", `
			CREATE INDEX IF NOT EXISTS idx_attempt_scores_seq ON attempt_scores (seq)`},
		{"lessons table", `
			CREATE TABLE IF NOT EXISTS lessons (
				id TEXT PRIMARY KEY,
				lesson_id TEXT NOT NULL,
				language TEXT NOT NULL,
				native_language TEXT NOT NULL,
				level TEXT NOT NULL,
				topic TEXT NOT NULL,
				item_count INTEGER NOT NULL,
				mean_spelling DOUBLE PRECISION NOT NULL,
				mean_grammar DOUBLE PRECISION NOT NULL,
				started_at BIGINT NOT NULL,
				completed_at BIGINT NOT NULL
			)`},
	}

	for _, st := range statements {
		if _, err := db.Exec(st.query); err != nil {
			return fmt.Errorf("failed to create %s: %v", st.name, err)
		}
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
