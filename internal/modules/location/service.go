// README: Location service handles driver availability, position updates and customer-side tracking.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"happyauto/internal/types"
)

// ActiveDriverFinder resolves the driver assigned to a customer's active delivery.
type ActiveDriverFinder interface {
	ActiveDriverFor(ctx context.Context, customerID types.ID) (*types.ID, error)
}

type Service struct {
	store Store
	trips ActiveDriverFinder
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store Store, trips ActiveDriverFinder, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		trips: trips,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type StatusUpdate struct {
	DriverID  types.ID
	Available bool
	Status    DriverStatus
}

func (s *Service) SetStatus(ctx context.Context, u StatusUpdate) error {
	if u.DriverID == "" {
		return fmt.Errorf("%w: empty driver id", ErrInvalidStatus)
	}
	if !u.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, u.Status)
	}
	if err := s.store.SetStatus(ctx, u.DriverID, u.Available, u.Status, s.now()); err != nil {
		return err
	}
	s.log.Debug().
		Str("driver_id", string(u.DriverID)).
		Bool("available", u.Available).
		Str("status", string(u.Status)).
		Msg("driver status updated")
	return nil
}

func (s *Service) UpdateLocation(ctx context.Context, driverID types.ID, p types.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.store.UpdateLocation(ctx, driverID, p, s.now())
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

// DriverLocationFor returns the position of the driver assigned to the
// customer's active delivery. A nil point means there is nothing to track.
func (s *Service) DriverLocationFor(ctx context.Context, customerID types.ID) (*types.Point, *types.ID, error) {
	driverID, err := s.trips.ActiveDriverFor(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}
	if driverID == nil {
		return nil, nil, nil
	}
	d, err := s.store.Get(ctx, *driverID)
	if errors.Is(err, ErrDriverNotFound) {
		return nil, driverID, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return d.Location, driverID, nil
}
