package delivery

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"happyauto/internal/types"
)

// TestStateMachineSafety drives random operation sequences and checks the
// record invariants after every step, successful or not.
func TestStateMachineSafety(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	drivers := []types.ID{"d1", "d2", "d3"}
	customers := []types.ID{"c1", "c2"}
	ctx := context.Background()

	for run := 0; run < 200; run++ {
		store := NewMemoryStore()
		svc, clock := newTestService(t, store)
		d := mustBook(t, svc, "c1")
		quote := d.EstimatedCost

		for step := 0; step < 25; step++ {
			clock.Advance(time.Duration(rng.Intn(20)) * time.Minute)
			driver := drivers[rng.Intn(len(drivers))]
			customer := customers[rng.Intn(len(customers))]

			before, _ := store.Get(ctx, d.ID)
			var op string
			var err error
			switch rng.Intn(8) {
			case 0:
				op = "accept"
				_, err = svc.Accept(ctx, AcceptCommand{DeliveryID: d.ID, DriverID: driver})
			case 1:
				op = "start"
				_, err = svc.Start(ctx, DriverCommand{DeliveryID: d.ID, DriverID: driver})
			case 2:
				op = "complete"
				_, err = svc.Complete(ctx, DriverCommand{DeliveryID: d.ID, DriverID: driver})
			case 3:
				op = "driver_cancel"
				_, _, err = svc.DriverCancel(ctx, DriverCommand{DeliveryID: d.ID, DriverID: driver})
			case 4:
				op = "customer_cancel"
				_, err = svc.CustomerCancel(ctx, CustomerCommand{DeliveryID: d.ID, CustomerID: customer})
			case 5:
				op = "pay"
				_, err = svc.MarkPaid(ctx, CustomerCommand{DeliveryID: d.ID, CustomerID: customer})
			case 6:
				op = "reschedule"
				at := clock.Now().Add(time.Duration(rng.Intn(120)-30) * time.Minute)
				_, err = svc.Reschedule(ctx, RescheduleCommand{DeliveryID: d.ID, CustomerID: customer, ScheduledPickup: at})
			default:
				op = "accept"
				_, err = svc.Accept(ctx, AcceptCommand{DeliveryID: d.ID, DriverID: driver})
			}

			after, _ := store.Get(ctx, d.ID)
			where := fmt.Sprintf("run %d step %d %s", run, step, op)
			if err != nil && ErrorKind(err) == "error" {
				t.Fatalf("%s: untyped error %v", where, err)
			}
			if after.Status != before.Status && !CanTransition(before.Status, after.Status) {
				t.Fatalf("%s: illegal transition %s -> %s", where, before.Status, after.Status)
			}
			checkInvariants(t, where, after, quote)
		}
	}
}

func checkInvariants(t *testing.T, where string, d *Delivery, quote types.Money) {
	t.Helper()
	switch d.Status {
	case StatusAssigned, StatusInTransit, StatusCompleted:
		if d.DriverID == nil {
			t.Fatalf("%s: %s without driver", where, d.Status)
		}
	default:
		if d.DriverID != nil {
			t.Fatalf("%s: %s with driver %s", where, d.Status, *d.DriverID)
		}
	}
	switch d.Status {
	case StatusPending, StatusAssigned:
		if d.ActualPickup != nil {
			t.Fatalf("%s: actual_pickup set in %s", where, d.Status)
		}
	case StatusInTransit, StatusCompleted:
		if d.ActualPickup == nil {
			t.Fatalf("%s: actual_pickup missing in %s", where, d.Status)
		}
	}
	if (d.ActualDelivery != nil) != (d.Status == StatusCompleted) {
		t.Fatalf("%s: actual_delivery=%v in %s", where, d.ActualDelivery, d.Status)
	}
	if d.PaymentStatus == PaymentPaid && d.Status != StatusCompleted {
		t.Fatalf("%s: paid while %s", where, d.Status)
	}
	if d.EstimatedCost != quote {
		t.Fatalf("%s: estimated cost changed %v -> %v", where, quote, d.EstimatedCost)
	}
}
