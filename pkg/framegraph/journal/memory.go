package journal

import (
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for testing and ephemeral runs.
// Records are lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[string][]Record
	closed bool
}

// NewMemoryStore creates a new in-memory journal store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: make(map[string][]Record),
	}
}

// Append implements Store.
func (s *MemoryStore) Append(rec Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	rec.Seq = int64(len(s.runs[rec.RunID])) + 1
	rec.Timestamp = time.Now().UTC()
	s.runs[rec.RunID] = append(s.runs[rec.RunID], rec)
	return rec.Seq, nil
}

// List implements Store.
func (s *MemoryStore) List(runID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	recs := s.runs[runID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out, nil
}

// DeleteRun implements Store.
func (s *MemoryStore) DeleteRun(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	delete(s.runs, runID)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
