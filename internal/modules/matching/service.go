// README: Matching service books deliveries: route estimate, fare, nearest-driver suggestion, then commit.
package matching

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"happyauto/internal/config"
	"happyauto/internal/metrics"
	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/pricing"
	"happyauto/internal/modules/route"
	"happyauto/internal/types"
)

type RouteEstimator interface {
	EstimateRoute(ctx context.Context, origin, destination types.Point) route.Estimate
}

type FareEstimator interface {
	EstimateAt(distanceKm float64, vehicleClass string, at time.Time) (pricing.Fare, error)
}

type DeliveryCreator interface {
	Create(ctx context.Context, cmd delivery.CreateCommand) (*delivery.Delivery, error)
	Now() time.Time
}

type Service struct {
	routes     RouteEstimator
	fares      FareEstimator
	drivers    location.Directory
	deliveries DeliveryCreator
	cfg        config.MatchingConfig
	log        zerolog.Logger
	metrics    *metrics.Collector
}

func NewService(
	routes RouteEstimator,
	fares FareEstimator,
	drivers location.Directory,
	deliveries DeliveryCreator,
	cfg config.MatchingConfig,
	log zerolog.Logger,
	m *metrics.Collector,
) *Service {
	return &Service{
		routes:     routes,
		fares:      fares,
		drivers:    drivers,
		deliveries: deliveries,
		cfg:        cfg,
		log:        log,
		metrics:    m,
	}
}

type Quote struct {
	Route route.Estimate
	Fare  pricing.Fare
}

type Booking struct {
	Delivery *delivery.Delivery
	Fare     pricing.Fare
	// Candidates is the ranked driver list the suggestion was taken from.
	Candidates []location.Ranked
}

// Quote prices a trip without booking it.
func (s *Service) Quote(ctx context.Context, pickup, dropoff types.Point, vehicleClass string) (Quote, error) {
	if err := pickup.Validate(); err != nil {
		return Quote{}, wrapValidation(err)
	}
	if err := dropoff.Validate(); err != nil {
		return Quote{}, wrapValidation(err)
	}
	est := s.routes.EstimateRoute(ctx, pickup, dropoff)
	fare, err := s.fares.EstimateAt(est.DistanceKm, vehicleClass, s.deliveries.Now())
	if err != nil {
		return Quote{}, err
	}
	return Quote{Route: est, Fare: fare}, nil
}

// Book validates the request, gathers every estimate and the driver
// suggestion, and only then commits the PENDING delivery. No external call
// happens inside the store transaction.
func (s *Service) Book(ctx context.Context, customerID types.ID, req delivery.Request) (*Booking, error) {
	now := s.deliveries.Now()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	est := s.routes.EstimateRoute(ctx, req.Pickup, req.Dropoff)
	fare, err := s.fares.EstimateAt(est.DistanceKm, req.VehicleClass, now)
	if err != nil {
		return nil, err
	}

	ranked := s.rankDrivers(ctx, req.Pickup)
	var suggested *types.ID
	if len(ranked) > 0 {
		id := ranked[0].DriverID
		suggested = &id
	}
	s.metrics.Suggestion(suggested != nil)

	req.VehicleClass = fare.VehicleClass
	d, err := s.deliveries.Create(ctx, delivery.CreateCommand{
		CustomerID: customerID,
		Request:    req,
		Quote: delivery.Quote{
			DistanceKm:  est.DistanceKm,
			DurationMin: est.DurationMin,
			Cost:        fare.Total,
			Polyline:    est.Polyline,
			RouteSource: string(est.Source),
		},
		SuggestedDriverID: suggested,
	})
	if err != nil {
		return nil, err
	}

	evt := s.log.Info().
		Str("delivery_id", string(d.ID)).
		Str("customer_id", string(customerID)).
		Str("route_source", string(est.Source)).
		Float64("distance_km", est.DistanceKm).
		Str("fare", fare.Total.String()).
		Bool("peak", fare.Peak).
		Int("candidates", len(ranked))
	if suggested != nil {
		evt = evt.Str("suggested_driver_id", string(*suggested))
	}
	evt.Msg("delivery booked")

	return &Booking{Delivery: d, Fare: fare, Candidates: ranked}, nil
}

// rankDrivers never fails the booking: the suggestion is advisory.
func (s *Service) rankDrivers(ctx context.Context, pickup types.Point) []location.Ranked {
	if s.drivers == nil {
		return nil
	}
	candidates, err := s.drivers.ListAvailable(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("driver directory unavailable, booking without suggestion")
		return nil
	}
	return location.NearestAvailable(pickup, candidates, s.cfg.RadiusKm)
}
