// README: Driver snapshot as seen by the matching core.
package location

import (
	"errors"
	"time"

	"happyauto/internal/types"
)

type DriverStatus string

const (
	StatusOffline DriverStatus = "offline"
	StatusOnline  DriverStatus = "online"
	StatusBusy    DriverStatus = "busy"
)

func (s DriverStatus) Valid() bool {
	switch s {
	case StatusOffline, StatusOnline, StatusBusy:
		return true
	}
	return false
}

// Driver is a read-only view of a driver profile. Location is nil when the
// driver has never reported a position.
type Driver struct {
	ID              types.ID
	Available       bool
	Status          DriverStatus
	Location        *types.Point
	Rating          float64
	TotalDeliveries int
	UpdatedAt       time.Time
}

// Ranked is one entry of a NearestAvailable result.
type Ranked struct {
	DriverID   types.ID
	DistanceKm float64
}

var (
	ErrDriverNotFound = errors.New("driver not found")
	ErrInvalidStatus  = errors.New("invalid driver status")
)
