// README: Booking request validation and the quote frozen into a new delivery.
package delivery

import (
	"fmt"
	"strings"
	"time"

	"happyauto/internal/types"
)

type Request struct {
	PickupAddress   string
	Pickup          types.Point
	DropoffAddress  string
	Dropoff         types.Point
	Vehicle         Vehicle
	VehicleClass    string
	ScheduledPickup *time.Time
}

// Quote holds the booking-time estimates. They are never recomputed.
type Quote struct {
	DistanceKm  float64
	DurationMin float64
	Cost        types.Money
	Polyline    string
	RouteSource string
}

// Validate checks the request as of now. Errors wrap ErrValidation or ErrPastTime.
func (r Request) Validate(now time.Time) error {
	if err := r.Pickup.Validate(); err != nil {
		return fmt.Errorf("%w: pickup: %w", ErrValidation, err)
	}
	if err := r.Dropoff.Validate(); err != nil {
		return fmt.Errorf("%w: dropoff: %w", ErrValidation, err)
	}
	if strings.TrimSpace(r.PickupAddress) == "" {
		return fmt.Errorf("%w: pickup address is required", ErrValidation)
	}
	if strings.TrimSpace(r.DropoffAddress) == "" {
		return fmt.Errorf("%w: dropoff address is required", ErrValidation)
	}
	if strings.TrimSpace(r.Vehicle.Make) == "" || strings.TrimSpace(r.Vehicle.Model) == "" {
		return fmt.Errorf("%w: vehicle make and model are required", ErrValidation)
	}
	if r.Vehicle.Year < 1900 || r.Vehicle.Year > now.Year()+1 {
		return fmt.Errorf("%w: vehicle year %d out of range", ErrValidation, r.Vehicle.Year)
	}
	if r.ScheduledPickup != nil && !r.ScheduledPickup.After(now) {
		return ErrPastTime
	}
	return nil
}

// normalizedVIN maps placeholders ("", "TBD") to nil.
func normalizedVIN(vin *string) *string {
	if vin == nil {
		return nil
	}
	v := strings.TrimSpace(*vin)
	if v == "" || strings.EqualFold(v, "TBD") {
		return nil
	}
	return &v
}
