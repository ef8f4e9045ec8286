package route

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happyauto/internal/metrics"
	"happyauto/internal/types"
)

var (
	bangalore = types.Point{Lat: 12.9716, Lng: 77.5946}
	chennai   = types.Point{Lat: 13.0827, Lng: 80.2707}
)

type stubProvider struct {
	est   Estimate
	err   error
	calls int
}

func (s *stubProvider) Route(_ context.Context, _, _ types.Point) (Estimate, error) {
	s.calls++
	return s.est, s.err
}

func TestFallback(t *testing.T) {
	est := Fallback(bangalore, chennai, 30)
	assert.Equal(t, SourceFallback, est.Source)
	assert.InDelta(t, 290, est.DistanceKm, 2)
	assert.InDelta(t, est.DistanceKm*2, est.DurationMin, 1e-9)
	assert.Equal(t, "12.971600,77.594600;13.082700,80.270700", est.Polyline)
}

func TestFallback_SamePoint(t *testing.T) {
	est := Fallback(bangalore, bangalore, 30)
	assert.Zero(t, est.DistanceKm)
	assert.Zero(t, est.DurationMin)
}

func TestEstimateRoute_ProviderSuccess(t *testing.T) {
	p := &stubProvider{est: Estimate{DistanceKm: 346.2, DurationMin: 360, Polyline: "abc"}}
	e := NewEstimator(p, 30, zerolog.Nop(), nil)

	est := e.EstimateRoute(context.Background(), bangalore, chennai)
	assert.Equal(t, SourceGoogleMaps, est.Source)
	assert.Equal(t, 346.2, est.DistanceKm)
	assert.Equal(t, "abc", est.Polyline)
}

func TestEstimateRoute_FallsBack(t *testing.T) {
	cases := []struct {
		name string
		p    Provider
	}{
		{"no provider", nil},
		{"provider error", &stubProvider{err: errors.New("quota exceeded")}},
		{"negative distance", &stubProvider{est: Estimate{DistanceKm: -1}}},
		{"nan distance", &stubProvider{est: Estimate{DistanceKm: math.NaN()}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEstimator(tc.p, 30, zerolog.Nop(), nil)
			est := e.EstimateRoute(context.Background(), bangalore, chennai)
			assert.Equal(t, SourceFallback, est.Source)
			assert.InDelta(t, 290, est.DistanceKm, 2)
		})
	}
}

func TestEstimateRoute_CountsSources(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	e := NewEstimator(&stubProvider{err: errors.New("down")}, 0, zerolog.Nop(), m)
	e.EstimateRoute(context.Background(), bangalore, chennai)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		if f.GetName() == "route_estimates_total" {
			found = true
			assert.Equal(t, "fallback", f.GetMetric()[0].GetLabel()[0].GetValue())
		}
	}
	assert.True(t, found)
}
