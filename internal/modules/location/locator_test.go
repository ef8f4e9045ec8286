package location

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"happyauto/internal/types"
)

func pt(lat, lng float64) *types.Point {
	return &types.Point{Lat: lat, Lng: lng}
}

var bangalore = types.Point{Lat: 12.9716, Lng: 77.5946}

func TestNearestAvailable(t *testing.T) {
	candidates := []Driver{
		{ID: "far", Available: true, Location: pt(13.0827, 80.2707)},     // Chennai
		{ID: "busy", Available: false, Location: pt(12.9720, 77.5950)},   // next door, unavailable
		{ID: "nowhere", Available: true},                                 // no location
		{ID: "two-km", Available: true, Location: pt(12.9896, 77.5946)},  // ~2 km north
		{ID: "half-km", Available: true, Location: pt(12.9761, 77.5946)}, // ~0.5 km north
	}

	got := NearestAvailable(bangalore, candidates, 10)

	assert.Equal(t, []types.ID{"half-km", "two-km"}, IDs(got))
	assert.InDelta(t, 0.5, got[0].DistanceKm, 0.05)
}

func TestNearestAvailable_TiesKeepInputOrder(t *testing.T) {
	same := pt(12.98, 77.60)
	candidates := []Driver{
		{ID: "z", Available: true, Location: same},
		{ID: "a", Available: true, Location: same},
		{ID: "m", Available: true, Location: same},
	}
	assert.Equal(t, []types.ID{"z", "a", "m"}, IDs(NearestAvailable(bangalore, candidates, 10)))
}

func TestNearestAvailable_DefaultRadius(t *testing.T) {
	candidates := []Driver{
		{ID: "nine-km", Available: true, Location: pt(13.0525, 77.5946)},
		{ID: "eleven-km", Available: true, Location: pt(13.0705, 77.5946)},
	}
	assert.Equal(t, []types.ID{"nine-km"}, IDs(NearestAvailable(bangalore, candidates, 0)))
}

func TestNearestAvailable_Empty(t *testing.T) {
	got := NearestAvailable(bangalore, nil, 10)
	assert.Empty(t, got)
	assert.Empty(t, IDs(got))
}
