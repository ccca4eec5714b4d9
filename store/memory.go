// (c) Siemens AG 2023
//
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"sync"
)

// MemoryStore keeps a capped history of records in memory. When exceeding its
// capacity, it evicts the oldest finished record, or if there are no finished
// records, the oldest record.
type MemoryStore struct {
	max     int
	mu      sync.Mutex
	records map[string]*Record
	order   []string // record IDs, oldest first.
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns a new in-memory store keeping at most max records;
// max values below 1 select [DefaultHistory].
func NewMemoryStore(max int) *MemoryStore {
	if max < 1 {
		max = DefaultHistory
	}
	return &MemoryStore{
		max:     max,
		records: map[string]*Record{},
	}
}

// Put creates or replaces a record.
func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.ID]; !ok {
		s.order = append(s.order, rec.ID)
	}
	s.records[rec.ID] = rec.Clone()
	s.evict()
	return nil
}

// Get returns a copy of the record with the specified ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update atomically modifies the record with the specified ID.
func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Record) error) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated := rec.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	s.records[id] = updated
	return updated.Clone(), nil
}

// List returns up to limit records, newest first; a limit below 1 lists all
// records.
func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit < 1 || limit > len(s.order) {
		limit = len(s.order)
	}
	recs := make([]*Record, 0, limit)
	for idx := len(s.order) - 1; idx >= 0 && len(recs) < limit; idx-- {
		recs = append(recs, s.records[s.order[idx]].Clone())
	}
	return recs, nil
}

// evict records beyond the capacity. The caller must hold the lock.
func (s *MemoryStore) evict() {
	gone := victims(s.order, s.max, func(id string) bool {
		return s.records[id].Status.IsTerminal()
	})
	if len(gone) == 0 {
		return
	}
	for _, id := range gone {
		delete(s.records, id)
	}
	order := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.records[id]; ok {
			order = append(order, id)
		}
	}
	s.order = order
}
