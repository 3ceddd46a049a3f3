package ledger

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded map implementation of Store. It backs the
// tests and serves as a non-durable fallback when no database is available.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Get returns a copy of the record for ref, or ErrNotFound.
func (m *MemoryStore) Get(_ context.Context, ref string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[ref]
	if !ok {
		return nil, ErrNotFound
	}
	// Copy out so callers never see later writes mid-flight.
	out := rec
	return &out, nil
}

// Put replaces the record for ref.
func (m *MemoryStore) Put(_ context.Context, ref string, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[ref] = *rec
	return nil
}
