package meter

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory tracking record store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*TrackingRecord // by tenant ID
}

// NewMemoryStore creates a new in-memory tracking store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*TrackingRecord)}
}

func (m *MemoryStore) Create(_ context.Context, rec *TrackingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[rec.TenantID]; exists {
		return ErrRecordExists
	}
	cp := *rec
	m.records[rec.TenantID] = &cp
	return nil
}

func (m *MemoryStore) Get(_ context.Context, tenantID string) (*TrackingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[tenantID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, rec *TrackingRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.TenantID]; !ok {
		return ErrRecordNotFound
	}
	cp := *rec
	m.records[rec.TenantID] = &cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, tenantID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[tenantID]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, tenantID)
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]*TrackingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*TrackingRecord, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
