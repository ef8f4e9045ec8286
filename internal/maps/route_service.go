package maps

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"happyauto/internal/modules/route"
	"happyauto/internal/types"
)

var ErrNoRoute = errors.New("no route found")

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
}

// NewRouteService creates a new RouteService with the given API Key.
// Extra options (e.g. maps.WithBaseURL) are passed to the client.
func NewRouteService(apiKey string, opts ...maps.ClientOption) (*RouteService, error) {
	opts = append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client}, nil
}

// Route requests driving directions with alternatives and keeps the route
// whose first leg is shortest.
func (s *RouteService) Route(ctx context.Context, origin, destination types.Point) (route.Estimate, error) {
	r := &maps.DirectionsRequest{
		Origin:       origin.String(),
		Destination:  destination.String(),
		Mode:         maps.TravelModeDriving,
		Alternatives: true,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return route.Estimate{}, fmt.Errorf("maps api error: %w", err)
	}

	var best *maps.Route
	for i := range routes {
		if len(routes[i].Legs) == 0 {
			continue
		}
		if best == nil || routes[i].Legs[0].Distance.Meters < best.Legs[0].Distance.Meters {
			best = &routes[i]
		}
	}
	if best == nil {
		return route.Estimate{}, ErrNoRoute
	}

	leg := best.Legs[0]
	return route.Estimate{
		DistanceKm:  float64(leg.Distance.Meters) / 1000,
		DurationMin: leg.Duration.Minutes(),
		Polyline:    best.OverviewPolyline.Points,
		Source:      route.SourceGoogleMaps,
	}, nil
}
