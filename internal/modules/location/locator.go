// README: DriverLocator ranks available drivers by great-circle distance to a pickup.
package location

import (
	"math"

	"happyauto/internal/types"
)

// DefaultMaxDistanceKm is the search radius used when callers pass a non-positive one.
const DefaultMaxDistanceKm = 10.0

// NearestAvailable returns available drivers within maxDistanceKm of pickup,
// closest first. Drivers without a location are treated as infinitely far and
// never returned. Ties keep the order of candidates.
func NearestAvailable(pickup types.Point, candidates []Driver, maxDistanceKm float64) []Ranked {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}
	ranked := make([]Ranked, 0, len(candidates))
	for _, d := range candidates {
		if !d.Available {
			continue
		}
		dist := distanceTo(pickup, d)
		if dist > maxDistanceKm {
			continue
		}
		ranked = append(ranked, Ranked{DriverID: d.ID, DistanceKm: dist})
	}
	sortByDistance(ranked, func(r Ranked) float64 { return r.DistanceKm })
	return ranked
}

func distanceTo(p types.Point, d Driver) float64 {
	if d.Location == nil {
		return math.Inf(1)
	}
	return HaversineKm(p, *d.Location)
}

// IDs projects a ranking onto driver ids, preserving order.
func IDs(ranked []Ranked) []types.ID {
	ids := make([]types.ID, len(ranked))
	for i, r := range ranked {
		ids[i] = r.DriverID
	}
	return ids
}
