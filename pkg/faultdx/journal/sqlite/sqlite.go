package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
	"github.com/cognicore/faultdx/pkg/faultdx/journal"
)

// timeLayout is fixed-width so that created_at sorts chronologically as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// sqliteJournal implements journal.Journal using SQLite
type sqliteJournal struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite journal with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (journal.Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	// pragmas below are per connection; batch writers share this one
	db.SetMaxOpenConns(1)

	// Enable WAL mode so history reads do not block a running batch
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteJournal{db: db}, nil
}

// Close closes the database connection
func (j *sqliteJournal) Close() error {
	return j.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	session_id TEXT PRIMARY KEY,
	mode TEXT NOT NULL,
	symptoms TEXT NOT NULL,
	found INTEGER NOT NULL,
	diagnosis TEXT,
	recommendation TEXT,
	rules TEXT NOT NULL,
	error TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS runs_diagnosis ON runs(diagnosis) WHERE found = 1;
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// Record inserts or replaces the entry for a session
func (j *sqliteJournal) Record(ctx context.Context, e journal.Entry) error {
	if e.SessionID == "" {
		return internalerr.ErrInvalidInput
	}

	symptoms, err := json.Marshal(nonNil(e.Symptoms))
	if err != nil {
		return err
	}
	rules, err := json.Marshal(nonNil(e.Rules))
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO runs (session_id, mode, symptoms, found, diagnosis, recommendation, rules, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
	mode=excluded.mode,
	symptoms=excluded.symptoms,
	found=excluded.found,
	diagnosis=excluded.diagnosis,
	recommendation=excluded.recommendation,
	rules=excluded.rules,
	error=excluded.error,
	created_at=excluded.created_at;
`

	_, err = j.db.ExecContext(ctx, stmt,
		e.SessionID,
		e.Mode,
		string(symptoms),
		boolToInt(e.Found),
		e.Diagnosis,
		e.Recommendation,
		string(rules),
		e.Error,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	return err
}

const selectColumns = `SELECT session_id, mode, symptoms, found, diagnosis, recommendation, rules, error, created_at FROM runs`

// Get returns the entry for a session
func (j *sqliteJournal) Get(ctx context.Context, sessionID string) (journal.Entry, error) {
	row := j.db.QueryRowContext(ctx, selectColumns+` WHERE session_id = ?`, sessionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Entry{}, internalerr.ErrNotFound
	}
	return e, err
}

// Recent returns up to limit entries, newest first
func (j *sqliteJournal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := j.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// CountByDiagnosis counts found diagnoses by name
func (j *sqliteJournal) CountByDiagnosis(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT diagnosis, COUNT(*) FROM runs WHERE found = 1 GROUP BY diagnosis`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var name string
		var n int64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (journal.Entry, error) {
	var (
		e                    journal.Entry
		symptoms, rules      string
		found                int
		diagnosis, rec, errS sql.NullString
		createdAt            string
	)
	if err := s.Scan(&e.SessionID, &e.Mode, &symptoms, &found, &diagnosis, &rec, &rules, &errS, &createdAt); err != nil {
		return journal.Entry{}, err
	}

	if err := json.Unmarshal([]byte(symptoms), &e.Symptoms); err != nil {
		return journal.Entry{}, fmt.Errorf("decode symptoms: %w", err)
	}
	if err := json.Unmarshal([]byte(rules), &e.Rules); err != nil {
		return journal.Entry{}, fmt.Errorf("decode rules: %w", err)
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return journal.Entry{}, fmt.Errorf("decode created_at: %w", err)
	}

	e.Found = found != 0
	e.Diagnosis = diagnosis.String
	e.Recommendation = rec.String
	e.Error = errS.String
	e.CreatedAt = t
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
