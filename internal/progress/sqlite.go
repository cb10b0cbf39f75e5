// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package progress

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/sd-oa-harvest/pkg/types"
)

// SQLiteStore keeps the checkpoint as one row per completed unit, plus one
// row per pending unit. Both tables are read into memory at open so lookups
// never touch the database.
type SQLiteStore struct {
	db      *sql.DB
	h       history
	pending history
}

// OpenSQLite opens or creates the checkpoint database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating checkpoint directory: %v", types.ErrPersistence, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", types.ErrPersistence, err)
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, h: history{}, pending: history{}}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.load(`SELECT journal_id, year FROM completed_units ORDER BY rowid`, s.h); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.load(`SELECT journal_id, year FROM pending_units ORDER BY rowid`, s.pending); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS completed_units (
		journal_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		completed_at TEXT NOT NULL,
		PRIMARY KEY (journal_id, year)
	);
	CREATE TABLE IF NOT EXISTS pending_units (
		journal_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		PRIMARY KEY (journal_id, year)
	)`)
	if err != nil {
		return fmt.Errorf("%w: creating schema: %v", types.ErrCorruptCheckpoint, err)
	}
	return nil
}

func (s *SQLiteStore) load(query string, h history) error {
	rows, err := s.db.Query(query)
	if err != nil {
		return fmt.Errorf("%w: reading units: %v", types.ErrCorruptCheckpoint, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var year int
		if err := rows.Scan(&id, &year); err != nil {
			return fmt.Errorf("%w: scanning unit: %v", types.ErrCorruptCheckpoint, err)
		}
		h.add(id, year)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: reading units: %v", types.ErrCorruptCheckpoint, err)
	}
	return nil
}

// IsComplete reports whether the unit is in the checkpoint.
func (s *SQLiteStore) IsComplete(journalID string, year int) bool {
	return s.h.has(journalID, year)
}

// IsPending reports whether the unit has a pending row.
func (s *SQLiteStore) IsPending(journalID string, year int) bool {
	return s.pending.has(journalID, year)
}

// MarkStarted inserts a pending row for the unit.
func (s *SQLiteStore) MarkStarted(ctx context.Context, journalID string, year int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_units (journal_id, year, started_at) VALUES (?, ?, ?)`,
		journalID, year, now())
	if err != nil {
		return fmt.Errorf("%w: recording start of %s/%d: %v", types.ErrPersistence, journalID, year, err)
	}
	s.pending.add(journalID, year)
	return nil
}

// MarkComplete inserts the unit and deletes its pending row in one
// transaction, committed before returning.
func (s *SQLiteStore) MarkComplete(ctx context.Context, journalID string, year int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: recording %s/%d: %v", types.ErrPersistence, journalID, year, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO completed_units (journal_id, year, completed_at) VALUES (?, ?, ?)`,
		journalID, year, now()); err != nil {
		return fmt.Errorf("%w: recording %s/%d: %v", types.ErrPersistence, journalID, year, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pending_units WHERE journal_id = ? AND year = ?`, journalID, year); err != nil {
		return fmt.Errorf("%w: clearing pending %s/%d: %v", types.ErrPersistence, journalID, year, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing %s/%d: %v", types.ErrPersistence, journalID, year, err)
	}

	s.h.add(journalID, year)
	s.pending.remove(journalID, year)
	return nil
}

// Snapshot returns a copy of the checkpoint contents.
func (s *SQLiteStore) Snapshot() map[string][]int { return s.h.clone() }

// Pending returns a copy of the pending units.
func (s *SQLiteStore) Pending() map[string][]int { return s.pending.clone() }

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }
