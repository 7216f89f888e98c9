package storage

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStorage is an in-memory Storage for tests and single-process runs.
// Records are stored as JSON so callers never share pointers with it.
type MockStorage struct {
	mu        sync.RWMutex
	trackers  map[uuid.UUID][]byte
	pingError error
	saves     int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

func NewMockStorage() *MockStorage {
	return &MockStorage{trackers: make(map[uuid.UUID][]byte)}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveTracker(ctx context.Context, rec *Record) error {
	if rec == nil || rec.Snapshot == nil {
		return errors.New("tracker record and snapshot are required")
	}
	rec.UpdatedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[rec.ID] = data
	m.saves++
	return nil
}

func (m *MockStorage) LoadTracker(ctx context.Context, id uuid.UUID) (*Record, error) {
	m.mu.RLock()
	data, ok := m.trackers[id]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (m *MockStorage) DeleteTracker(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.trackers, id)
	return nil
}

func (m *MockStorage) ListTrackers(ctx context.Context) ([]uuid.UUID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(m.trackers))
	for id := range m.trackers {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	return ids, nil
}

// Saves reports how many times SaveTracker succeeded.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}
