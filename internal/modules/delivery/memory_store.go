// README: In-memory delivery store for dev mode and tests. Transactions are serialized and staged.
package delivery

import (
	"context"
	"sort"
	"sync"
	"time"

	"happyauto/internal/types"
)

type MemoryStore struct {
	mu         sync.Mutex
	deliveries map[types.ID]*Delivery
	events     []Event
	nextEvent  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{deliveries: map[types.ID]*Delivery{}}
}

// WithTx holds the store lock for the whole callback; staged writes are
// applied only when fn returns nil.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, staged: map[types.ID]*Delivery{}}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for id, d := range tx.staged {
		m.deliveries[id] = d
	}
	for _, e := range tx.events {
		m.nextEvent++
		e.ID = m.nextEvent
		m.events = append(m.events, e)
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, customerID types.ID) ([]*Delivery, error) {
	return m.filter(func(d *Delivery) bool { return listedForCustomer(d, customerID) }), nil
}

func (m *MemoryStore) ListByDriver(_ context.Context, driverID types.ID) ([]*Delivery, error) {
	return m.filter(func(d *Delivery) bool { return listedForDriver(d, driverID) }), nil
}

func (m *MemoryStore) ListUnassigned(_ context.Context) ([]*Delivery, error) {
	return m.filter(unassigned), nil
}

func (m *MemoryStore) ActiveForCustomer(_ context.Context, customerID types.ID) (*Delivery, error) {
	out := m.filter(func(d *Delivery) bool { return activeWithDriver(d, customerID) })
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (m *MemoryStore) ListEvents(_ context.Context, id types.ID) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.DeliveryID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// filter returns clones ordered newest first, then by id.
func (m *MemoryStore) filter(keep func(*Delivery) bool) []*Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Delivery
	for _, d := range m.deliveries {
		if keep(d) {
			out = append(out, d.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type memTx struct {
	store  *MemoryStore
	staged map[types.ID]*Delivery
	events []Event
}

func (t *memTx) current(id types.ID) (*Delivery, bool) {
	if d, ok := t.staged[id]; ok {
		return d, true
	}
	d, ok := t.store.deliveries[id]
	return d, ok
}

func (t *memTx) Get(_ context.Context, id types.ID) (*Delivery, error) {
	d, ok := t.current(id)
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (t *memTx) GetForUpdate(ctx context.Context, id types.ID) (*Delivery, error) {
	return t.Get(ctx, id)
}

func (t *memTx) Insert(_ context.Context, d *Delivery) error {
	if _, ok := t.current(d.ID); ok {
		return ErrConflict
	}
	t.staged[d.ID] = d.Clone()
	return nil
}

func (t *memTx) AssignDriver(_ context.Context, id, driverID types.ID, at time.Time) (bool, error) {
	cur, ok := t.current(id)
	if !ok || cur.DriverID != nil || cur.Status != StatusPending {
		return false, nil
	}
	next := cur.Clone()
	next.DriverID = cloneID(&driverID)
	next.Status = StatusAssigned
	next.StatusVersion++
	next.UpdatedAt = at
	t.staged[id] = next
	return true, nil
}

func (t *memTx) Update(_ context.Context, d *Delivery, expectedVersion int) (bool, error) {
	cur, ok := t.current(d.ID)
	if !ok || cur.StatusVersion != expectedVersion {
		return false, nil
	}
	next := cur.Clone()
	next.DriverID = cloneID(d.DriverID)
	next.Status = d.Status
	next.PaymentStatus = d.PaymentStatus
	next.ScheduledPickup = cloneTime(d.ScheduledPickup)
	next.ActualPickup = cloneTime(d.ActualPickup)
	next.ActualDelivery = cloneTime(d.ActualDelivery)
	next.CancelledAt = cloneTime(d.CancelledAt)
	next.UpdatedAt = d.UpdatedAt
	next.StatusVersion = expectedVersion + 1
	t.staged[d.ID] = next
	return true, nil
}

func (t *memTx) AppendEvent(_ context.Context, e *Event) error {
	cp := *e
	cp.ActorID = cloneID(e.ActorID)
	t.events = append(t.events, cp)
	return nil
}
