package localstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in memory. State is lost on restart.
type MemoryStore struct {
	mu       sync.Mutex
	visitors map[string]memoryVisitor
	now      func() time.Time
}

type memoryVisitor struct {
	items     map[string]string
	updatedAt time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{visitors: make(map[string]memoryVisitor), now: time.Now}
}

// GetItem retrieves one value.
func (m *MemoryStore) GetItem(_ context.Context, visitorID, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[visitorID].items[key]
	return v, ok, nil
}

// SetItems stores every item under one lock.
func (m *MemoryStore) SetItems(_ context.Context, visitorID string, items map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.visitors[visitorID]
	if !ok {
		v = memoryVisitor{items: make(map[string]string, len(items))}
	}
	for key, value := range items {
		v.items[key] = value
	}
	v.updatedAt = m.now()
	m.visitors[visitorID] = v
	return nil
}

// Clear erases everything stored for a visitor.
func (m *MemoryStore) Clear(_ context.Context, visitorID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.visitors, visitorID)
	return nil
}

// DeleteStale removes visitors last written before the cutoff.
// POST: Returns the number of items removed
func (m *MemoryStore) DeleteStale(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, v := range m.visitors {
		if v.updatedAt.Before(before) {
			n += int64(len(v.items))
			delete(m.visitors, id)
		}
	}
	return n, nil
}
