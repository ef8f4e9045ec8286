// README: Delivery service implements the lifecycle state machine on top of a transactional store.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"happyauto/internal/config"
	"happyauto/internal/metrics"
	"happyauto/internal/types"
)

// Policy holds the configurable lifecycle rules.
type Policy struct {
	CancellationFine  types.Money
	FineWindow        time.Duration
	DefaultPickupLead time.Duration
	OperationTimeout  time.Duration
}

func PolicyFromConfig(cfg config.LifecycleConfig, currency string) Policy {
	return Policy{
		CancellationFine:  types.FromMajor(cfg.CancellationFine, currency),
		FineWindow:        cfg.FineWindow,
		DefaultPickupLead: cfg.DefaultPickupLead,
		OperationTimeout:  cfg.OperationTimeout,
	}
}

// FineFor returns the fine a driver owes for abandoning d at now.
func (p Policy) FineFor(d *Delivery, now time.Time) types.Money {
	none := types.Money{Currency: p.CancellationFine.Currency}
	if d.Status == StatusInTransit {
		return p.CancellationFine
	}
	if d.ScheduledPickup != nil && d.ScheduledPickup.Sub(now) <= p.FineWindow {
		return p.CancellationFine
	}
	return none
}

type Service struct {
	store   Store
	policy  Policy
	log     zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time
}

type Option func(*Service)

// WithClock replaces the wall clock. Returned instants are converted to UTC.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = func() time.Time { return now().UTC() } }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, policy Policy, log zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		store:  store,
		policy: policy,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now exposes the service clock so collaborators price and validate against the same instant.
func (s *Service) Now() time.Time {
	return s.now()
}

type CreateCommand struct {
	CustomerID        types.ID
	Request           Request
	Quote             Quote
	SuggestedDriverID *types.ID
}

type AcceptCommand struct {
	DeliveryID types.ID
	DriverID   types.ID
}

type DriverCommand struct {
	DeliveryID types.ID
	DriverID   types.ID
}

type CustomerCommand struct {
	DeliveryID types.ID
	CustomerID types.ID
}

type RescheduleCommand struct {
	DeliveryID      types.ID
	CustomerID      types.ID
	ScheduledPickup time.Time
}

var errUnchanged = errors.New("unchanged")

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.policy.OperationTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.policy.OperationTimeout)
}

// Create persists a PENDING delivery with the quoted estimates.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Delivery, error) {
	now := s.now()
	if cmd.CustomerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrValidation)
	}
	if err := cmd.Request.Validate(now); err != nil {
		return nil, err
	}

	req := cmd.Request
	scheduled := now.Add(s.policy.DefaultPickupLead)
	if req.ScheduledPickup != nil {
		scheduled = req.ScheduledPickup.UTC()
	}
	vehicle := req.Vehicle
	vehicle.VIN = normalizedVIN(vehicle.VIN)

	d := &Delivery{
		ID:                  types.ID(uuid.NewString()),
		CustomerID:          cmd.CustomerID,
		SuggestedDriverID:   cloneID(cmd.SuggestedDriverID),
		Status:              StatusPending,
		PaymentStatus:       PaymentPending,
		PickupAddress:       req.PickupAddress,
		Pickup:              req.Pickup,
		DropoffAddress:      req.DropoffAddress,
		Dropoff:             req.Dropoff,
		Vehicle:             vehicle,
		VehicleClass:        req.VehicleClass,
		EstimatedDistanceKm: cmd.Quote.DistanceKm,
		EstimatedTimeMin:    cmd.Quote.DurationMin,
		EstimatedCost:       cmd.Quote.Cost,
		RoutePolyline:       cmd.Quote.Polyline,
		RouteSource:         cmd.Quote.RouteSource,
		ScheduledPickup:     &scheduled,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	err := s.store.WithTx(ctx, func(tx Tx) error {
		if err := tx.Insert(ctx, d); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &Event{
			DeliveryID: d.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusPending,
			Action:     "book",
			ActorType:  RoleCustomer,
			ActorID:    cloneID(&cmd.CustomerID),
			CreatedAt:  now,
		})
	})
	s.record("book", d.ID, Caller{ID: cmd.CustomerID, Role: RoleCustomer}, err)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Accept assigns the driver if the delivery has none. Concurrent accepts are
// resolved by a conditional write: exactly one wins, the rest get ErrAlreadyAssigned.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := s.now()
	caller := Caller{ID: cmd.DriverID, Role: RoleDriver}

	var out *Delivery
	err := s.store.WithTx(ctx, func(tx Tx) error {
		d, err := tx.Get(ctx, cmd.DeliveryID)
		if err != nil {
			return err
		}
		if err := checkAcceptable(d); err != nil {
			return err
		}
		ok, err := tx.AssignDriver(ctx, d.ID, cmd.DriverID, now)
		if err != nil {
			return err
		}
		if !ok {
			cur, err := tx.Get(ctx, cmd.DeliveryID)
			if err != nil {
				return err
			}
			if err := checkAcceptable(cur); err != nil {
				return err
			}
			return ErrAlreadyAssigned
		}
		// the first read did not lock; the row may have moved before the CAS
		assigned, err := tx.Get(ctx, d.ID)
		if err != nil {
			return err
		}
		out = assigned
		return tx.AppendEvent(ctx, &Event{
			DeliveryID: d.ID,
			FromStatus: StatusPending,
			ToStatus:   StatusAssigned,
			Action:     "accept",
			ActorType:  RoleDriver,
			ActorID:    cloneID(&cmd.DriverID),
			CreatedAt:  now,
		})
	})
	s.record("accept", cmd.DeliveryID, caller, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func checkAcceptable(d *Delivery) error {
	if d.Status.Terminal() {
		return ErrInvalidTransition
	}
	if d.DriverID != nil {
		return ErrAlreadyAssigned
	}
	if d.Status != StatusPending {
		return ErrInvalidTransition
	}
	return nil
}

func (s *Service) Start(ctx context.Context, cmd DriverCommand) (*Delivery, error) {
	caller := Caller{ID: cmd.DriverID, Role: RoleDriver}
	return s.transition(ctx, "start", cmd.DeliveryID, caller, func(d *Delivery, _ *Event, now time.Time) error {
		if !d.AssignedTo(cmd.DriverID) || d.Status != StatusAssigned {
			return ErrInvalidTransition
		}
		d.Status = StatusInTransit
		d.ActualPickup = &now
		return nil
	})
}

func (s *Service) Complete(ctx context.Context, cmd DriverCommand) (*Delivery, error) {
	caller := Caller{ID: cmd.DriverID, Role: RoleDriver}
	return s.transition(ctx, "complete", cmd.DeliveryID, caller, func(d *Delivery, _ *Event, now time.Time) error {
		if !d.AssignedTo(cmd.DriverID) || d.Status != StatusInTransit {
			return ErrInvalidTransition
		}
		d.Status = StatusCompleted
		d.ActualDelivery = &now
		return nil
	})
}

// DriverCancel re-opens the delivery for other drivers and returns the fine
// owed by the cancelling driver.
func (s *Service) DriverCancel(ctx context.Context, cmd DriverCommand) (*Delivery, types.Money, error) {
	caller := Caller{ID: cmd.DriverID, Role: RoleDriver}
	var fine types.Money
	d, err := s.transition(ctx, "driver_cancel", cmd.DeliveryID, caller, func(d *Delivery, ev *Event, now time.Time) error {
		if !d.AssignedTo(cmd.DriverID) {
			return ErrForbidden
		}
		if d.Status == StatusCompleted {
			return ErrAlreadyCompleted
		}
		fine = s.policy.FineFor(d, now)
		d.Status = StatusPending
		d.DriverID = nil
		d.ActualPickup = nil
		ev.Fine = fine
		return nil
	})
	if err != nil {
		return nil, types.Money{}, err
	}
	if !fine.IsZero() {
		s.log.Info().
			Str("delivery_id", string(d.ID)).
			Str("driver_id", string(cmd.DriverID)).
			Str("fine", fine.String()).
			Msg("driver cancellation fined")
	}
	return d, fine, nil
}

func (s *Service) CustomerCancel(ctx context.Context, cmd CustomerCommand) (*Delivery, error) {
	caller := Caller{ID: cmd.CustomerID, Role: RoleCustomer}
	return s.transition(ctx, "customer_cancel", cmd.DeliveryID, caller, func(d *Delivery, _ *Event, now time.Time) error {
		if d.CustomerID != cmd.CustomerID {
			return ErrForbidden
		}
		switch d.Status {
		case StatusCompleted:
			return ErrAlreadyCompleted
		case StatusCancelled:
			return ErrInvalidTransition
		}
		d.Status = StatusCancelled
		d.DriverID = nil
		d.CancelledAt = &now
		return nil
	})
}

// MarkPaid is idempotent: paying a paid delivery returns it unchanged.
func (s *Service) MarkPaid(ctx context.Context, cmd CustomerCommand) (*Delivery, error) {
	caller := Caller{ID: cmd.CustomerID, Role: RoleCustomer}
	return s.transition(ctx, "pay", cmd.DeliveryID, caller, func(d *Delivery, _ *Event, _ time.Time) error {
		if d.CustomerID != cmd.CustomerID {
			return ErrForbidden
		}
		if d.Status != StatusCompleted {
			return ErrNotCompleted
		}
		if d.PaymentStatus == PaymentPaid {
			return errUnchanged
		}
		d.PaymentStatus = PaymentPaid
		return nil
	})
}

func (s *Service) Reschedule(ctx context.Context, cmd RescheduleCommand) (*Delivery, error) {
	caller := Caller{ID: cmd.CustomerID, Role: RoleCustomer}
	return s.transition(ctx, "reschedule", cmd.DeliveryID, caller, func(d *Delivery, _ *Event, now time.Time) error {
		if d.CustomerID != cmd.CustomerID {
			return ErrForbidden
		}
		if d.Status.Terminal() {
			return ErrInvalidTransition
		}
		if !cmd.ScheduledPickup.After(now) {
			return ErrPastTime
		}
		t := cmd.ScheduledPickup.UTC()
		d.ScheduledPickup = &t
		return nil
	})
}

type mutation func(d *Delivery, ev *Event, now time.Time) error

// transition loads the delivery under a row lock, applies mutate, and writes
// it back with a version check plus an audit event, all in one transaction.
func (s *Service) transition(ctx context.Context, action string, id types.ID, caller Caller, mutate mutation) (*Delivery, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	now := s.now()

	var out *Delivery
	err := s.store.WithTx(ctx, func(tx Tx) error {
		d, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		from, version := d.Status, d.StatusVersion
		ev := &Event{
			DeliveryID: id,
			FromStatus: from,
			Action:     action,
			ActorType:  caller.Role,
			ActorID:    cloneID(&caller.ID),
			CreatedAt:  now,
		}
		if err := mutate(d, ev, now); err != nil {
			if errors.Is(err, errUnchanged) {
				out = d
				return nil
			}
			return err
		}
		if d.Status != from && !CanTransition(from, d.Status) {
			return ErrInvalidTransition
		}
		d.UpdatedAt = now
		ok, err := tx.Update(ctx, d, version)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		d.StatusVersion = version + 1
		ev.ToStatus = d.Status
		out = d
		return tx.AppendEvent(ctx, ev)
	})
	s.record(action, id, caller, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) record(action string, id types.ID, caller Caller, err error) {
	kind := ErrorKind(err)
	s.metrics.Transition(action, kind)

	var evt *zerolog.Event
	switch kind {
	case "ok":
		evt = s.log.Info()
	case "error":
		evt = s.log.Error().Err(err)
	default:
		evt = s.log.Warn().Err(err)
	}
	evt.Str("transition", action).
		Str("delivery_id", string(id)).
		Str("actor_id", string(caller.ID)).
		Str("actor_role", string(caller.Role)).
		Str("result", kind).
		Msg("delivery transition")
}

// Get returns the delivery if the caller is its customer or assigned driver.
func (s *Service) Get(ctx context.Context, id types.ID, caller Caller) (*Delivery, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.VisibleTo(caller) {
		return nil, ErrForbidden
	}
	return d, nil
}

// ListByParty returns the caller's deliveries: active plus completed-unpaid
// for customers, every non-cancelled assignment for drivers.
func (s *Service) ListByParty(ctx context.Context, caller Caller) ([]*Delivery, error) {
	switch caller.Role {
	case RoleCustomer:
		return s.store.ListByCustomer(ctx, caller.ID)
	case RoleDriver:
		return s.store.ListByDriver(ctx, caller.ID)
	}
	return nil, ErrForbidden
}

func (s *Service) ListUnassigned(ctx context.Context) ([]*Delivery, error) {
	return s.store.ListUnassigned(ctx)
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]Event, error) {
	return s.store.ListEvents(ctx, id)
}

// ActiveDriverFor returns the driver on the customer's active delivery, or nil.
func (s *Service) ActiveDriverFor(ctx context.Context, customerID types.ID) (*types.ID, error) {
	d, err := s.store.ActiveForCustomer(ctx, customerID)
	if err != nil || d == nil {
		return nil, err
	}
	return cloneID(d.DriverID), nil
}
