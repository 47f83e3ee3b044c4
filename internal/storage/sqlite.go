// Package storage persists crawl outcomes. The line-oriented text log is the
// primary record; an optional SQLite database mirrors it for querying.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/masahif/rebrandcrawl/internal/crawler"
	// SQLite database driver (CGO-free)
	_ "modernc.org/sqlite"
)

// MetaLastRunID is the crawl_meta key holding the most recent run id
const MetaLastRunID = "last_run_id"

// SQLiteStorage implements crawler.Recorder on top of SQLite. Every opened
// storage is a new run; rows are tagged with its id.
type SQLiteStorage struct {
	db            *sql.DB
	runID         string
	previousRunID string
}

// NewSQLiteStorage opens (or creates) the database and registers a new run
// for startURL.
func NewSQLiteStorage(dbPath, startURL string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - single connection prevents lock conflicts
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	storage := &SQLiteStorage{db: db, runID: uuid.NewString()}

	if err := storage.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := storage.startRun(startURL); err != nil {
		_ = db.Close()
		return nil, err
	}

	return storage, nil
}

// InitSchema creates the database schema
func (s *SQLiteStorage) InitSchema() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 30000", // 30 second timeout for locks
	}

	for _, pragma := range pragmas {
		if _, err := s.db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %s: %w", pragma, err)
		}
	}

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) startRun(startURL string) error {
	previous, err := s.GetMeta(MetaLastRunID)
	if err != nil {
		return err
	}
	s.previousRunID = previous

	if _, err := s.db.Exec(
		"INSERT INTO crawl_runs (id, start_url, started_at) VALUES (?, ?, ?)",
		s.runID, startURL, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to register run: %w", err)
	}
	return s.SetMeta(MetaLastRunID, s.runID)
}

// PreviousRunID returns the id of the run recorded before this one, or an
// empty string for a new database
func (s *SQLiteStorage) PreviousRunID() string {
	return s.previousRunID
}

// RunID returns the id of the run this storage records into
func (s *SQLiteStorage) RunID() string {
	return s.runID
}

// Close marks the run finished and closes the database connection
func (s *SQLiteStorage) Close() error {
	_, err := s.db.Exec("UPDATE crawl_runs SET finished_at = ? WHERE id = ?", time.Now().UTC(), s.runID)
	if err != nil {
		err = fmt.Errorf("failed to finish run: %w", err)
	}
	return errors.Join(err, s.db.Close())
}

// SaveChecked records a successfully fetched page
func (s *SQLiteStorage) SaveChecked(rec crawler.CheckedRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO checked_pages (run_id, url, checked_at) VALUES (?, ?, ?)",
		s.runID, rec.URL, rec.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save checked page: %w", err)
	}
	return nil
}

// SaveError records a URL that failed after all attempts
func (s *SQLiteStorage) SaveError(rec crawler.ErrorRecord) error {
	_, err := s.db.Exec(
		"INSERT INTO failed_pages (run_id, url, message, occurred_at) VALUES (?, ?, ?, ?)",
		s.runID, rec.URL, rec.Message, rec.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save error: %w", err)
	}
	return nil
}

// SaveNameChange records a page with name-change evidence
func (s *SQLiteStorage) SaveNameChange(ev crawler.NameChangeEvent) error {
	_, err := s.db.Exec(
		"INSERT INTO name_changes (run_id, url, detected_at) VALUES (?, ?, ?)",
		s.runID, ev.URL, ev.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save name change: %w", err)
	}
	return nil
}

// SaveStaleReferences stores every match of a finding in a single transaction
func (s *SQLiteStorage) SaveStaleReferences(f crawler.StaleReferenceFinding) error {
	if len(f.Matches) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		"INSERT INTO stale_references (run_id, url, position, finding) VALUES (?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, match := range f.Matches {
		if _, err := stmt.Exec(s.runID, f.URL, i, match); err != nil {
			return fmt.Errorf("failed to insert stale reference for %s: %w", f.URL, err)
		}
	}

	return tx.Commit()
}

// LoadChecked returns every URL checked by any run, in first-checked order
func (s *SQLiteStorage) LoadChecked() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT url FROM checked_pages
		GROUP BY url
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query checked pages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan checked page: %w", err)
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

// Counts returns the checked and error totals of the current run
func (s *SQLiteStorage) Counts() (checked int, errorCount int, err error) {
	err = s.db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM checked_pages WHERE run_id = ?),
			(SELECT COUNT(*) FROM failed_pages WHERE run_id = ?)
	`, s.runID, s.runID).Scan(&checked, &errorCount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count results: %w", err)
	}
	return checked, errorCount, nil
}

// GetMeta retrieves a metadata value
func (s *SQLiteStorage) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM crawl_meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (s *SQLiteStorage) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO crawl_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}
