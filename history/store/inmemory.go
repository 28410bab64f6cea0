package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/marqode/hybridrag/history"
)

// InMemoryStore keeps run records in process memory.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []*history.Record
}

// NewInMemoryStore creates an empty in-memory history store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Append adds a record.
func (s *InMemoryStore) Append(ctx context.Context, rec *history.Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		rec.ID = history.NewID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// Recent returns up to n records, newest first.
func (s *InMemoryStore) Recent(ctx context.Context, n int) ([]*history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n <= 0 || n > len(s.records) {
		n = len(s.records)
	}
	out := make([]*history.Record, 0, n)
	for i := len(s.records) - 1; i >= len(s.records)-n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Clear removes all records.
func (s *InMemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	return nil
}
