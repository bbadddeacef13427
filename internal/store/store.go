// Package store persists forms, submissions, and report definitions in
// SQLite. Submissions are append-only; form schemas are rewritten in place by
// the designer and by nested-form propagation.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors. Callers match with errors.Is.
var (
	ErrFormNotFound       = errors.New("form not found")
	ErrFormNotPublished   = errors.New("form not published")
	ErrReportNotFound     = errors.New("report not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNameTaken          = errors.New("form name already taken")

	// ErrConflict signals a lost-update race: the schema changed between
	// read and write. Callers retry with a fresh read.
	ErrConflict = errors.New("schema version conflict")
)

// Store wraps the SQLite database handle.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates or opens the form store at the given path. ":memory:" is
// accepted for tests.
func New(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, dbPath: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS forms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '[]',
		published INTEGER NOT NULL DEFAULT 0,
		visits INTEGER NOT NULL DEFAULT 0,
		submissions INTEGER NOT NULL DEFAULT 0,
		share_url TEXT NOT NULL UNIQUE,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(owner_id, name)
	);

	CREATE TABLE IF NOT EXISTS form_submissions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		form_id INTEGER NOT NULL REFERENCES forms(id),
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_submissions_form ON form_submissions(form_id, created_at);

	-- Reverse index over NestedForm references, maintained on every schema
	-- write so propagation never has to scan the whole forms table.
	CREATE TABLE IF NOT EXISTS nested_refs (
		form_id INTEGER NOT NULL REFERENCES forms(id),
		target_form_id INTEGER NOT NULL,
		PRIMARY KEY (form_id, target_form_id)
	);
	CREATE INDEX IF NOT EXISTS idx_nested_refs_target ON nested_refs(target_form_id);

	CREATE TABLE IF NOT EXISTS reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		form_id INTEGER NOT NULL REFERENCES forms(id),
		name TEXT NOT NULL,
		report_url TEXT NOT NULL UNIQUE,
		config TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}
