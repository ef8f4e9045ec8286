// README: Delivery store backed by PostgreSQL (pgxpool). Transitions run through WithTx.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"happyauto/internal/types"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (s *PGStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(&pgTx{q: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

const deliveryColumns = `
        id, customer_id, driver_id, suggested_driver_id, status, status_version, payment_status,
        pickup_address, pickup_lat, pickup_lng, dropoff_address, dropoff_lat, dropoff_lng,
        vehicle_make, vehicle_model, vehicle_year, vehicle_vin, vehicle_class,
        estimated_distance_km, estimated_time_min, estimated_cost, currency, route_polyline, route_source,
        scheduled_pickup, actual_pickup, actual_delivery, cancelled_at, created_at, updated_at`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	return getDelivery(ctx, s.db, id, false)
}

func (s *PGStore) ListByCustomer(ctx context.Context, customerID types.ID) ([]*Delivery, error) {
	return listDeliveries(ctx, s.db, `
        WHERE customer_id = $1
          AND (status IN ('pending', 'assigned', 'in_transit')
               OR (status = 'completed' AND payment_status = 'pending'))
        ORDER BY created_at DESC, id`, string(customerID))
}

func (s *PGStore) ListByDriver(ctx context.Context, driverID types.ID) ([]*Delivery, error) {
	return listDeliveries(ctx, s.db, `
        WHERE driver_id = $1 AND status <> 'cancelled'
        ORDER BY created_at DESC, id`, string(driverID))
}

func (s *PGStore) ListUnassigned(ctx context.Context) ([]*Delivery, error) {
	return listDeliveries(ctx, s.db, `
        WHERE status = 'pending' AND driver_id IS NULL
        ORDER BY created_at DESC, id`)
}

func (s *PGStore) ActiveForCustomer(ctx context.Context, customerID types.ID) (*Delivery, error) {
	out, err := listDeliveries(ctx, s.db, `
        WHERE customer_id = $1 AND driver_id IS NOT NULL
          AND status IN ('assigned', 'in_transit')
        ORDER BY created_at DESC, id
        LIMIT 1`, string(customerID))
	if err != nil || len(out) == 0 {
		return nil, err
	}
	return out[0], nil
}

func (s *PGStore) ListEvents(ctx context.Context, id types.ID) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, delivery_id, from_status, to_status, action, actor_type, actor_id, fine, currency, created_at
        FROM delivery_events
        WHERE delivery_id = $1
        ORDER BY id`, string(id))
	if err != nil {
		return nil, fmt.Errorf("list delivery events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e               Event
			deliveryID      string
			from, to, actor string
			actorID         *string
		)
		if err := rows.Scan(&e.ID, &deliveryID, &from, &to, &e.Action, &actor, &actorID,
			&e.Fine.Amount, &e.Fine.Currency, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.DeliveryID = types.ID(deliveryID)
		e.FromStatus, e.ToStatus, e.ActorType = Status(from), Status(to), Role(actor)
		e.ActorID = toIDPtr(actorID)
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

type pgTx struct {
	q querier
}

func (t *pgTx) Get(ctx context.Context, id types.ID) (*Delivery, error) {
	return getDelivery(ctx, t.q, id, false)
}

func (t *pgTx) GetForUpdate(ctx context.Context, id types.ID) (*Delivery, error) {
	return getDelivery(ctx, t.q, id, true)
}

func (t *pgTx) Insert(ctx context.Context, d *Delivery) error {
	_, err := t.q.Exec(ctx, `
        INSERT INTO deliveries (`+deliveryColumns+`
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7,
            $8, $9, $10, $11, $12, $13,
            $14, $15, $16, $17, $18,
            $19, $20, $21, $22, $23, $24,
            $25, $26, $27, $28, $29, $30
        )`,
		string(d.ID), string(d.CustomerID), toStringPtr(d.DriverID), toStringPtr(d.SuggestedDriverID),
		string(d.Status), d.StatusVersion, string(d.PaymentStatus),
		d.PickupAddress, d.Pickup.Lat, d.Pickup.Lng, d.DropoffAddress, d.Dropoff.Lat, d.Dropoff.Lng,
		d.Vehicle.Make, d.Vehicle.Model, d.Vehicle.Year, d.Vehicle.VIN, d.VehicleClass,
		d.EstimatedDistanceKm, d.EstimatedTimeMin, d.EstimatedCost.Amount, d.EstimatedCost.Currency,
		d.RoutePolyline, d.RouteSource,
		d.ScheduledPickup, d.ActualPickup, d.ActualDelivery, d.CancelledAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert delivery: %w", err)
	}
	return nil
}

func (t *pgTx) AssignDriver(ctx context.Context, id, driverID types.ID, at time.Time) (bool, error) {
	tag, err := t.q.Exec(ctx, `
        UPDATE deliveries
        SET driver_id = $2, status = 'assigned', status_version = status_version + 1, updated_at = $3
        WHERE id = $1 AND driver_id IS NULL AND status = 'pending'`,
		string(id), string(driverID), at,
	)
	if err != nil {
		return false, fmt.Errorf("assign driver: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) Update(ctx context.Context, d *Delivery, expectedVersion int) (bool, error) {
	tag, err := t.q.Exec(ctx, `
        UPDATE deliveries
        SET driver_id = $2,
            status = $3,
            payment_status = $4,
            scheduled_pickup = $5,
            actual_pickup = $6,
            actual_delivery = $7,
            cancelled_at = $8,
            updated_at = $9,
            status_version = status_version + 1
        WHERE id = $1 AND status_version = $10`,
		string(d.ID), toStringPtr(d.DriverID), string(d.Status), string(d.PaymentStatus),
		d.ScheduledPickup, d.ActualPickup, d.ActualDelivery, d.CancelledAt, d.UpdatedAt,
		expectedVersion,
	)
	if err != nil {
		return false, fmt.Errorf("update delivery: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *pgTx) AppendEvent(ctx context.Context, e *Event) error {
	err := t.q.QueryRow(ctx, `
        INSERT INTO delivery_events (delivery_id, from_status, to_status, action, actor_type, actor_id, fine, currency, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id`,
		string(e.DeliveryID), string(e.FromStatus), string(e.ToStatus), e.Action,
		string(e.ActorType), toStringPtr(e.ActorID), e.Fine.Amount, e.Fine.Currency, e.CreatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("append delivery event: %w", err)
	}
	return nil
}

func getDelivery(ctx context.Context, q querier, id types.ID, forUpdate bool) (*Delivery, error) {
	sql := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	d, err := scanDelivery(q.QueryRow(ctx, sql, string(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery %s: %w", string(id), err)
	}
	return d, nil
}

func listDeliveries(ctx context.Context, q querier, where string, args ...any) ([]*Delivery, error) {
	rows, err := q.Query(ctx, `SELECT `+deliveryColumns+` FROM deliveries `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var out []*Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*Delivery, error) {
	var (
		d                                                          Delivery
		id, customerID, status, paymentStatus                      string
		driverID, suggestedID                                      *string
		scheduledPickup, actualPickup, actualDelivery, cancelledAt *time.Time
	)
	err := row.Scan(
		&id, &customerID, &driverID, &suggestedID, &status, &d.StatusVersion, &paymentStatus,
		&d.PickupAddress, &d.Pickup.Lat, &d.Pickup.Lng, &d.DropoffAddress, &d.Dropoff.Lat, &d.Dropoff.Lng,
		&d.Vehicle.Make, &d.Vehicle.Model, &d.Vehicle.Year, &d.Vehicle.VIN, &d.VehicleClass,
		&d.EstimatedDistanceKm, &d.EstimatedTimeMin, &d.EstimatedCost.Amount, &d.EstimatedCost.Currency,
		&d.RoutePolyline, &d.RouteSource,
		&scheduledPickup, &actualPickup, &actualDelivery, &cancelledAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.CustomerID = types.ID(customerID)
	d.DriverID = toIDPtr(driverID)
	d.SuggestedDriverID = toIDPtr(suggestedID)
	d.Status = Status(status)
	d.PaymentStatus = PaymentStatus(paymentStatus)
	d.ScheduledPickup = utcPtr(scheduledPickup)
	d.ActualPickup = utcPtr(actualPickup)
	d.ActualDelivery = utcPtr(actualDelivery)
	d.CancelledAt = utcPtr(cancelledAt)
	d.CreatedAt = d.CreatedAt.UTC()
	d.UpdatedAt = d.UpdatedAt.UTC()
	return &d, nil
}

func toStringPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
