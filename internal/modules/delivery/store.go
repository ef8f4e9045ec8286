// README: Persistence contracts for deliveries. Every read-then-write transition runs inside WithTx.
package delivery

import (
	"context"
	"time"

	"happyauto/internal/types"
)

// Tx is a transaction handle. It is only valid inside the WithTx callback.
type Tx interface {
	Get(ctx context.Context, id types.ID) (*Delivery, error)
	// GetForUpdate locks the row until the transaction ends.
	GetForUpdate(ctx context.Context, id types.ID) (*Delivery, error)
	Insert(ctx context.Context, d *Delivery) error
	// AssignDriver sets the driver only if none is set and the delivery is
	// pending. It reports whether the row was updated.
	AssignDriver(ctx context.Context, id, driverID types.ID, at time.Time) (bool, error)
	// Update writes the mutable fields if the stored status_version still
	// equals expectedVersion, and bumps the version.
	Update(ctx context.Context, d *Delivery, expectedVersion int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type Store interface {
	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Get(ctx context.Context, id types.ID) (*Delivery, error)
	// ListByCustomer returns active deliveries plus completed ones awaiting payment.
	ListByCustomer(ctx context.Context, customerID types.ID) ([]*Delivery, error)
	// ListByDriver returns every non-cancelled delivery assigned to the driver.
	ListByDriver(ctx context.Context, driverID types.ID) ([]*Delivery, error)
	ListUnassigned(ctx context.Context) ([]*Delivery, error)
	// ActiveForCustomer returns the newest assigned or in-transit delivery, or nil.
	ActiveForCustomer(ctx context.Context, customerID types.ID) (*Delivery, error)
	ListEvents(ctx context.Context, id types.ID) ([]Event, error)
}

// Listing predicates shared by the store implementations.

func listedForCustomer(d *Delivery, customerID types.ID) bool {
	if d.CustomerID != customerID {
		return false
	}
	switch d.Status {
	case StatusPending, StatusAssigned, StatusInTransit:
		return true
	case StatusCompleted:
		return d.PaymentStatus == PaymentPending
	}
	return false
}

func listedForDriver(d *Delivery, driverID types.ID) bool {
	return d.AssignedTo(driverID) && d.Status != StatusCancelled
}

func unassigned(d *Delivery) bool {
	return d.Status == StatusPending && d.DriverID == nil
}

func activeWithDriver(d *Delivery, customerID types.ID) bool {
	return d.CustomerID == customerID && d.DriverID != nil &&
		(d.Status == StatusAssigned || d.Status == StatusInTransit)
}
