// README: Driver directory contracts and the Postgres-backed implementation.
package location

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"happyauto/internal/types"
)

// Directory yields a snapshot of drivers currently marked available.
// No ordering is guaranteed.
type Directory interface {
	ListAvailable(ctx context.Context) ([]Driver, error)
}

// Store is a Directory that also accepts availability and location updates.
type Store interface {
	Directory
	Get(ctx context.Context, id types.ID) (*Driver, error)
	SetStatus(ctx context.Context, id types.ID, available bool, status DriverStatus, at time.Time) error
	UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `id, is_available, current_status, current_lat, current_lng,
               overall_rating, total_deliveries, updated_at`

func (s *PGStore) ListAvailable(ctx context.Context) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
        SELECT `+driverColumns+`
        FROM drivers
        WHERE is_available
        ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list available drivers: %w", err)
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
        SELECT `+driverColumns+`
        FROM drivers
        WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	return d, err
}

// SetStatus upserts so a driver shows up in the directory on first use.
func (s *PGStore) SetStatus(ctx context.Context, id types.ID, available bool, status DriverStatus, at time.Time) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO drivers (id, is_available, current_status, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET is_available = EXCLUDED.is_available,
            current_status = EXCLUDED.current_status,
            updated_at = EXCLUDED.updated_at`,
		string(id), available, string(status), at,
	)
	if err != nil {
		return fmt.Errorf("set driver status: %w", err)
	}
	return nil
}

func (s *PGStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO drivers (id, current_lat, current_lng, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE
        SET current_lat = EXCLUDED.current_lat,
            current_lng = EXCLUDED.current_lng,
            updated_at = EXCLUDED.updated_at`,
		string(id), p.Lat, p.Lng, at,
	)
	if err != nil {
		return fmt.Errorf("update driver location: %w", err)
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var (
		d        Driver
		id       string
		status   string
		lat, lng *float64
	)
	if err := row.Scan(&id, &d.Available, &status, &lat, &lng, &d.Rating, &d.TotalDeliveries, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.ID = types.ID(id)
	d.Status = DriverStatus(status)
	if lat != nil && lng != nil {
		d.Location = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &d, nil
}
