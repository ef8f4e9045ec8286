package matching

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happyauto/internal/config"
	"happyauto/internal/metrics"
	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/pricing"
	"happyauto/internal/modules/route"
	"happyauto/internal/types"
)

var (
	bangalore = types.Point{Lat: 12.9716, Lng: 77.5946}
	chennai   = types.Point{Lat: 13.0827, Lng: 80.2707}
	// 2026-03-02 12:00 UTC, off-peak
	noon = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

type stubDirectory struct {
	drivers []location.Driver
	err     error
}

func (s stubDirectory) ListAvailable(context.Context) ([]location.Driver, error) {
	return s.drivers, s.err
}

type countingRoutes struct {
	inner RouteEstimator
	calls int
}

func (c *countingRoutes) EstimateRoute(ctx context.Context, origin, destination types.Point) route.Estimate {
	c.calls++
	return c.inner.EstimateRoute(ctx, origin, destination)
}

type fixture struct {
	svc        *Service
	deliveries *delivery.Service
	store      *delivery.MemoryStore
	routes     *countingRoutes
	fares      *pricing.Service
	clock      *clock
	reg        *prometheus.Registry
}

func newFixture(t *testing.T, dir location.Directory) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	cfg := config.Defaults()
	fares, err := pricing.NewService(cfg.Pricing)
	require.NoError(t, err)

	c := &clock{now: noon}
	store := delivery.NewMemoryStore()
	deliveries := delivery.NewService(store,
		delivery.PolicyFromConfig(cfg.Lifecycle, cfg.Pricing.Currency),
		zerolog.Nop(),
		delivery.WithClock(c.Now),
		delivery.WithMetrics(m),
	)
	routes := &countingRoutes{inner: route.NewEstimator(nil, cfg.Route.AvgSpeedKmh, zerolog.Nop(), m)}

	return &fixture{
		svc:        NewService(routes, fares, dir, deliveries, cfg.Matching, zerolog.Nop(), m),
		deliveries: deliveries,
		store:      store,
		routes:     routes,
		fares:      fares,
		clock:      c,
		reg:        reg,
	}
}

func request() delivery.Request {
	return delivery.Request{
		PickupAddress:  "MG Road, Bangalore",
		Pickup:         bangalore,
		DropoffAddress: "T Nagar, Chennai",
		Dropoff:        chennai,
		Vehicle:        delivery.Vehicle{Make: "Tata", Model: "Nexon", Year: 2023},
		VehicleClass:   "auto",
	}
}

func at(lat, lng float64) *types.Point {
	return &types.Point{Lat: lat, Lng: lng}
}

func nearbyDrivers() []location.Driver {
	return []location.Driver{
		{ID: "three-km", Available: true, Location: at(12.9986, 77.5946)},
		{ID: "one-km", Available: true, Location: at(12.9806, 77.5946)},
		{ID: "busy-next-door", Available: false, Location: at(12.9717, 77.5946)},
		{ID: "in-chennai", Available: true, Location: at(13.0827, 80.2707)},
	}
}

func TestBook_SuggestsNearestAvailableDriver(t *testing.T) {
	f := newFixture(t, stubDirectory{drivers: nearbyDrivers()})

	b, err := f.svc.Book(context.Background(), "cust-1", request())
	require.NoError(t, err)

	d := b.Delivery
	assert.Equal(t, delivery.StatusPending, d.Status)
	assert.Nil(t, d.DriverID)
	require.NotNil(t, d.SuggestedDriverID)
	assert.Equal(t, types.ID("one-km"), *d.SuggestedDriverID)
	assert.Equal(t, []types.ID{"one-km", "three-km"}, location.IDs(b.Candidates))

	assert.Equal(t, string(route.SourceFallback), d.RouteSource)
	assert.InDelta(t, 290, d.EstimatedDistanceKm, 2)
	assert.InDelta(t, d.EstimatedDistanceKm*2, d.EstimatedTimeMin, 1e-9)

	want, err := f.fares.EstimateAt(d.EstimatedDistanceKm, "auto", noon)
	require.NoError(t, err)
	assert.Equal(t, want.Total, d.EstimatedCost)
	assert.Equal(t, want.Total, b.Fare.Total)
	assert.False(t, b.Fare.Peak)

	require.NotNil(t, d.ScheduledPickup)
	assert.Equal(t, noon.Add(30*time.Minute), *d.ScheduledPickup)

	expected := `
# HELP driver_suggestions_total Bookings by driver suggestion outcome.
# TYPE driver_suggestions_total counter
driver_suggestions_total{outcome="suggested"} 1
`
	assert.NoError(t, promtest.GatherAndCompare(f.reg, strings.NewReader(expected), "driver_suggestions_total"))
}

func TestBook_NoDriverInRange(t *testing.T) {
	f := newFixture(t, stubDirectory{drivers: []location.Driver{
		{ID: "in-chennai", Available: true, Location: at(13.0827, 80.2707)},
	}})

	b, err := f.svc.Book(context.Background(), "cust-1", request())
	require.NoError(t, err)
	assert.Nil(t, b.Delivery.SuggestedDriverID)
	assert.Empty(t, b.Candidates)
	assert.Equal(t, delivery.StatusPending, b.Delivery.Status)
}

func TestBook_DirectoryErrorStillBooks(t *testing.T) {
	f := newFixture(t, stubDirectory{err: errors.New("redis: connection refused")})

	b, err := f.svc.Book(context.Background(), "cust-1", request())
	require.NoError(t, err)
	assert.Nil(t, b.Delivery.SuggestedDriverID)

	expected := `
# HELP driver_suggestions_total Bookings by driver suggestion outcome.
# TYPE driver_suggestions_total counter
driver_suggestions_total{outcome="none"} 1
`
	assert.NoError(t, promtest.GatherAndCompare(f.reg, strings.NewReader(expected), "driver_suggestions_total"))
}

func TestBook_RejectsBeforeEstimating(t *testing.T) {
	past := noon.Add(-time.Minute)
	cases := []struct {
		name   string
		mutate func(r *delivery.Request)
		want   error
	}{
		{"bad pickup", func(r *delivery.Request) { r.Pickup = types.Point{Lat: 95, Lng: 0} }, delivery.ErrValidation},
		{"missing dropoff address", func(r *delivery.Request) { r.DropoffAddress = " " }, delivery.ErrValidation},
		{"pickup in the past", func(r *delivery.Request) { r.ScheduledPickup = &past }, delivery.ErrPastTime},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, stubDirectory{drivers: nearbyDrivers()})
			req := request()
			tc.mutate(&req)

			_, err := f.svc.Book(context.Background(), "cust-1", req)
			require.ErrorIs(t, err, tc.want)
			assert.Zero(t, f.routes.calls)

			listed, err := f.store.ListByCustomer(context.Background(), "cust-1")
			require.NoError(t, err)
			assert.Empty(t, listed)
		})
	}
}

func TestBook_PeakFareIsFrozen(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	f.clock.now = time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)

	b, err := f.svc.Book(context.Background(), "cust-1", request())
	require.NoError(t, err)
	require.True(t, b.Fare.Peak)
	assert.Equal(t, 1.2, b.Fare.Multiplier)
	booked := b.Delivery.EstimatedCost

	// Later, off-peak: the stored quote is untouched.
	f.clock.now = noon.Add(2 * time.Hour)
	got, err := f.deliveries.Get(context.Background(), b.Delivery.ID,
		delivery.Caller{ID: "cust-1", Role: delivery.RoleCustomer})
	require.NoError(t, err)
	assert.Equal(t, booked, got.EstimatedCost)

	offPeak, err := f.fares.EstimateAt(got.EstimatedDistanceKm, "auto", f.clock.now)
	require.NoError(t, err)
	assert.Less(t, offPeak.Total.Amount, booked.Amount)
}

func TestBook_UnknownClassStoresResolvedClass(t *testing.T) {
	f := newFixture(t, stubDirectory{})
	req := request()
	req.VehicleClass = "hovercraft"

	b, err := f.svc.Book(context.Background(), "cust-1", req)
	require.NoError(t, err)
	assert.Equal(t, "auto", b.Delivery.VehicleClass)
	assert.Equal(t, "auto", b.Fare.VehicleClass)
}

func TestQuote(t *testing.T) {
	f := newFixture(t, stubDirectory{})

	q1, err := f.svc.Quote(context.Background(), bangalore, chennai, "truck")
	require.NoError(t, err)
	q2, err := f.svc.Quote(context.Background(), bangalore, chennai, "truck")
	require.NoError(t, err)
	assert.Equal(t, q1, q2)
	assert.Equal(t, "truck", q1.Fare.VehicleClass)
	assert.Equal(t, route.SourceFallback, q1.Route.Source)

	_, err = f.svc.Quote(context.Background(), bangalore, types.Point{Lat: 0, Lng: 200}, "truck")
	assert.ErrorIs(t, err, delivery.ErrValidation)

	listed, err := f.store.ListUnassigned(context.Background())
	require.NoError(t, err)
	assert.Empty(t, listed, "quoting must not book")
}

func TestBookingScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubDirectory{drivers: nearbyDrivers()})

	req := request()
	req.Pickup = types.Point{Lat: 12.97, Lng: 77.59}
	req.Dropoff = types.Point{Lat: 12.98, Lng: 77.64}

	b, err := f.svc.Book(ctx, "cust-1", req)
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusPending, b.Delivery.Status)
	assert.InDelta(t, 6.5, b.Delivery.EstimatedDistanceKm, 1)
	assert.Positive(t, b.Delivery.EstimatedCost.Amount)
	id := b.Delivery.ID
	driver := *b.Delivery.SuggestedDriverID

	open, err := f.deliveries.ListUnassigned(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)

	accepted, err := f.deliveries.Accept(ctx, delivery.AcceptCommand{DeliveryID: id, DriverID: driver})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusAssigned, accepted.Status)
	assert.Equal(t, driver, *accepted.DriverID)
	_, err = f.deliveries.Accept(ctx, delivery.AcceptCommand{DeliveryID: id, DriverID: "three-km"})
	require.ErrorIs(t, err, delivery.ErrAlreadyAssigned)

	f.clock.now = f.clock.now.Add(20 * time.Minute)
	started, err := f.deliveries.Start(ctx, delivery.DriverCommand{DeliveryID: id, DriverID: driver})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusInTransit, started.Status)
	assert.NotNil(t, started.ActualPickup)

	f.clock.now = f.clock.now.Add(9 * time.Hour)
	done, err := f.deliveries.Complete(ctx, delivery.DriverCommand{DeliveryID: id, DriverID: driver})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusCompleted, done.Status)
	assert.NotNil(t, done.ActualDelivery)
	assert.Equal(t, b.Delivery.EstimatedCost, done.EstimatedCost)

	_, err = f.deliveries.CustomerCancel(ctx, delivery.CustomerCommand{DeliveryID: id, CustomerID: "cust-1"})
	require.ErrorIs(t, err, delivery.ErrAlreadyCompleted)

	paid, err := f.deliveries.MarkPaid(ctx, delivery.CustomerCommand{DeliveryID: id, CustomerID: "cust-1"})
	require.NoError(t, err)
	assert.Equal(t, delivery.PaymentPaid, paid.PaymentStatus)

	events, err := f.deliveries.Events(ctx, id)
	require.NoError(t, err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{"book", "accept", "start", "complete", "pay"}, actions)
}
