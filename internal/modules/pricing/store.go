// README: Pricing store backed by PostgreSQL. Rows in vehicle_rates override the configured rates.
package pricing

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) ListRates(ctx context.Context) ([]Rate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_class, base_fare, per_km
		FROM vehicle_rates
		ORDER BY vehicle_class`)
	if err != nil {
		return nil, fmt.Errorf("list vehicle rates: %w", err)
	}
	defer rows.Close()

	var out []Rate
	for rows.Next() {
		var r Rate
		if err := rows.Scan(&r.VehicleClass, &r.BaseFare, &r.PerKm); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) UpsertRate(ctx context.Context, r Rate) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO vehicle_rates (vehicle_class, base_fare, per_km)
		VALUES ($1, $2, $3)
		ON CONFLICT (vehicle_class) DO UPDATE
		SET base_fare = EXCLUDED.base_fare, per_km = EXCLUDED.per_km`,
		r.VehicleClass, r.BaseFare, r.PerKm,
	)
	return err
}
