// README: GeoEstimator returns distance/duration for a trip, preferring an external provider and
// falling back to great-circle distance at a constant average speed.
package route

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"happyauto/internal/metrics"
	"happyauto/internal/modules/location"
	"happyauto/internal/types"
)

type Source string

const (
	SourceGoogleMaps Source = "google_maps"
	SourceFallback   Source = "fallback"
)

const DefaultAvgSpeedKmh = 30.0

type Estimate struct {
	DistanceKm  float64
	DurationMin float64
	// Polyline is the provider's encoded overview polyline, or "lat,lng;lat,lng" for the fallback.
	Polyline string
	Source   Source
}

// Provider is an external routing service. Any error makes the Estimator fall back.
type Provider interface {
	Route(ctx context.Context, origin, destination types.Point) (Estimate, error)
}

var errImplausibleRoute = errors.New("implausible route from provider")

type Estimator struct {
	provider    Provider
	avgSpeedKmh float64
	log         zerolog.Logger
	metrics     *metrics.Collector
}

// NewEstimator accepts a nil provider, in which case every estimate is a fallback.
func NewEstimator(provider Provider, avgSpeedKmh float64, log zerolog.Logger, m *metrics.Collector) *Estimator {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = DefaultAvgSpeedKmh
	}
	return &Estimator{provider: provider, avgSpeedKmh: avgSpeedKmh, log: log, metrics: m}
}

// EstimateRoute never fails: provider errors are logged and replaced by the fallback.
func (e *Estimator) EstimateRoute(ctx context.Context, origin, destination types.Point) Estimate {
	if e.provider != nil {
		est, err := e.provider.Route(ctx, origin, destination)
		if err == nil {
			err = checkPlausible(est)
		}
		if err == nil {
			est.Source = SourceGoogleMaps
			e.metrics.RouteEstimated(string(est.Source))
			return est
		}
		e.log.Warn().Err(err).
			Str("origin", origin.String()).
			Str("destination", destination.String()).
			Msg("route provider failed, using fallback")
	}
	est := Fallback(origin, destination, e.avgSpeedKmh)
	e.metrics.RouteEstimated(string(est.Source))
	return est
}

// Fallback estimates a straight-line trip. Distance is not rounded.
func Fallback(origin, destination types.Point, avgSpeedKmh float64) Estimate {
	dist := location.HaversineKm(origin, destination)
	return Estimate{
		DistanceKm:  dist,
		DurationMin: dist / avgSpeedKmh * 60,
		Polyline:    fmt.Sprintf("%f,%f;%f,%f", origin.Lat, origin.Lng, destination.Lat, destination.Lng),
		Source:      SourceFallback,
	}
}

func checkPlausible(est Estimate) error {
	if math.IsNaN(est.DistanceKm) || math.IsInf(est.DistanceKm, 0) || est.DistanceKm < 0 {
		return fmt.Errorf("%w: distance %v", errImplausibleRoute, est.DistanceKm)
	}
	if math.IsNaN(est.DurationMin) || est.DurationMin < 0 {
		return fmt.Errorf("%w: duration %v", errImplausibleRoute, est.DurationMin)
	}
	return nil
}
