package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/faultdx/pkg/faultdx/internalerr"
	"github.com/cognicore/faultdx/pkg/faultdx/journal"
)

// Store is an in-memory implementation of journal.Journal
type Store struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string]stored
}

type stored struct {
	seq   int64
	entry journal.Entry
}

// New creates a new in-memory journal.
func New() *Store {
	return &Store{
		entries: make(map[string]stored),
	}
}

// Close implements journal.Journal.
func (s *Store) Close() error { return nil }

// Record stores an entry, replacing any earlier entry for the session.
func (s *Store) Record(ctx context.Context, e journal.Entry) error {
	if e.SessionID == "" {
		return internalerr.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.entries[e.SessionID] = stored{seq: s.seq, entry: copyEntry(e)}
	return nil
}

// Get returns the entry recorded for a session.
func (s *Store) Get(ctx context.Context, sessionID string) (journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.entries[sessionID]
	if !ok {
		return journal.Entry{}, internalerr.ErrNotFound
	}
	return copyEntry(st.entry), nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]stored, 0, len(s.entries))
	for _, st := range s.entries {
		all = append(all, st)
	}
	sort.Slice(all, func(i, j int) bool {
		ti, tj := all[i].entry.CreatedAt, all[j].entry.CreatedAt
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return all[i].seq > all[j].seq
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	out := make([]journal.Entry, len(all))
	for i, st := range all {
		out[i] = copyEntry(st.entry)
	}
	return out, nil
}

// CountByDiagnosis counts found diagnoses by name.
func (s *Store) CountByDiagnosis(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int64)
	for _, st := range s.entries {
		if st.entry.Found {
			counts[st.entry.Diagnosis]++
		}
	}
	return counts, nil
}

func copyEntry(e journal.Entry) journal.Entry {
	e.Symptoms = append([]string(nil), e.Symptoms...)
	e.Rules = append([]string(nil), e.Rules...)
	return e
}
