package delivery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"happyauto/internal/types"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testPolicy() Policy {
	return Policy{
		CancellationFine:  types.FromMajor(100, "INR"),
		FineWindow:        5 * time.Minute,
		DefaultPickupLead: 30 * time.Minute,
	}
}

func newTestService(t *testing.T, store Store) (*Service, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: t0}
	return NewService(store, testPolicy(), zerolog.Nop(), WithClock(clock.Now)), clock
}

func sampleRequest() Request {
	return Request{
		PickupAddress:  "MG Road, Bangalore",
		Pickup:         types.Point{Lat: 12.9716, Lng: 77.5946},
		DropoffAddress: "T Nagar, Chennai",
		Dropoff:        types.Point{Lat: 13.0827, Lng: 80.2707},
		Vehicle:        Vehicle{Make: "Maruti", Model: "Swift", Year: 2021},
		VehicleClass:   "auto",
	}
}

func sampleQuote() Quote {
	return Quote{
		DistanceKm:  290.2,
		DurationMin: 580.4,
		Cost:        types.FromMajor(4403, "INR"),
		Polyline:    "12.9716,77.5946;13.0827,80.2707",
		RouteSource: "fallback",
	}
}

func mustBook(t *testing.T, svc *Service, customer types.ID) *Delivery {
	t.Helper()
	d, err := svc.Create(context.Background(), CreateCommand{
		CustomerID: customer,
		Request:    sampleRequest(),
		Quote:      sampleQuote(),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return d
}

func assertStatus(t *testing.T, store Store, id types.ID, want Status) *Delivery {
	t.Helper()
	d, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("get delivery: %v", err)
	}
	if d.Status != want {
		t.Fatalf("expected status %s, got %s", want, d.Status)
	}
	return d
}
