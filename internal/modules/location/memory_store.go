package location

import (
	"context"
	"sort"
	"sync"
	"time"

	"happyauto/internal/types"
)

// MemoryStore keeps drivers in process. Used with db.driver=memory and in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	drivers map[types.ID]Driver
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{drivers: map[types.ID]Driver{}}
}

func (m *MemoryStore) ListAvailable(_ context.Context) ([]Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		if d.Available {
			out = append(out, cloneDriver(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrDriverNotFound
	}
	cp := cloneDriver(d)
	return &cp, nil
}

func (m *MemoryStore) SetStatus(_ context.Context, id types.ID, available bool, status DriverStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drivers[id]
	d.ID, d.Available, d.Status, d.UpdatedAt = id, available, status, at
	m.drivers[id] = d
	return nil
}

func (m *MemoryStore) UpdateLocation(_ context.Context, id types.ID, p types.Point, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.drivers[id]
	d.ID, d.Location, d.UpdatedAt = id, &p, at
	if d.Status == "" {
		d.Status = StatusOffline
	}
	m.drivers[id] = d
	return nil
}

func cloneDriver(d Driver) Driver {
	if d.Location != nil {
		p := *d.Location
		d.Location = &p
	}
	return d
}
