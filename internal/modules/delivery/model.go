// README: Delivery aggregate, status definitions and the lifecycle transition table.
package delivery

import (
	"time"

	"happyauto/internal/types"
)

type Status string

const (
	StatusNone      Status = ""
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal statuses have no outgoing transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleSystem   Role = "system"
)

// Caller is the authenticated party invoking an operation.
type Caller struct {
	ID   types.ID
	Role Role
}

type Vehicle struct {
	Make  string
	Model string
	Year  int
	VIN   *string
}

type Delivery struct {
	ID                types.ID
	CustomerID        types.ID
	DriverID          *types.ID
	SuggestedDriverID *types.ID
	Status            Status
	StatusVersion     int
	PaymentStatus     PaymentStatus

	PickupAddress  string
	Pickup         types.Point
	DropoffAddress string
	Dropoff        types.Point

	Vehicle      Vehicle
	VehicleClass string

	EstimatedDistanceKm float64
	EstimatedTimeMin    float64
	EstimatedCost       types.Money
	RoutePolyline       string
	RouteSource         string

	ScheduledPickup *time.Time
	ActualPickup    *time.Time
	ActualDelivery  *time.Time
	CancelledAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Event is one row of the delivery audit trail.
type Event struct {
	ID         int64
	DeliveryID types.ID
	FromStatus Status
	ToStatus   Status
	Action     string
	ActorType  Role
	ActorID    *types.ID
	Fine       types.Money
	CreatedAt  time.Time
}

// AllowedTransitions represents the delivery state flow as code.
// ASSIGNED/IN_TRANSIT -> PENDING is a driver cancellation re-opening the delivery.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusAssigned, StatusCancelled},
	StatusAssigned:  {StatusInTransit, StatusPending, StatusCancelled},
	StatusInTransit: {StatusCompleted, StatusPending, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (d *Delivery) AssignedTo(driverID types.ID) bool {
	return d.DriverID != nil && *d.DriverID == driverID
}

// VisibleTo reports whether the caller may read the delivery.
func (d *Delivery) VisibleTo(c Caller) bool {
	switch c.Role {
	case RoleCustomer:
		return d.CustomerID == c.ID
	case RoleDriver:
		return d.AssignedTo(c.ID)
	}
	return false
}

// Clone returns a deep copy.
func (d *Delivery) Clone() *Delivery {
	cp := *d
	cp.DriverID = cloneID(d.DriverID)
	cp.SuggestedDriverID = cloneID(d.SuggestedDriverID)
	cp.ScheduledPickup = cloneTime(d.ScheduledPickup)
	cp.ActualPickup = cloneTime(d.ActualPickup)
	cp.ActualDelivery = cloneTime(d.ActualDelivery)
	cp.CancelledAt = cloneTime(d.CancelledAt)
	if d.Vehicle.VIN != nil {
		vin := *d.Vehicle.VIN
		cp.Vehicle.VIN = &vin
	}
	return &cp
}

func cloneID(id *types.ID) *types.ID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
