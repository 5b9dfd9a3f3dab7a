package journal

import (
	"context"
	"time"
)

// Journal records the outcome of completed diagnosis runs.
// It is an audit log: entries are never fed back into a session.
type Journal interface {
	Close() error

	// Record stores one entry, keyed by session ID. Recording the same
	// session twice replaces the earlier entry.
	Record(ctx context.Context, e Entry) error

	// Get returns the entry for a session, or internalerr.ErrNotFound
	Get(ctx context.Context, sessionID string) (Entry, error)

	// Recent returns up to limit entries, newest first
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// CountByDiagnosis counts found diagnoses by name
	CountByDiagnosis(ctx context.Context) (map[string]int64, error)
}

// Entry is one completed run
type Entry struct {
	SessionID      string
	Mode           string // forward, backward
	Symptoms       []string
	Found          bool
	Diagnosis      string
	Recommendation string
	Rules          []string // fired rules (forward) or proof rules (backward), in order
	Error          string
	CreatedAt      time.Time
}
