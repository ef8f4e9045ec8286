package location

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"happyauto/internal/types"
)

type stubTrips struct {
	driver *types.ID
	err    error
}

func (s stubTrips) ActiveDriverFor(_ context.Context, _ types.ID) (*types.ID, error) {
	return s.driver, s.err
}

func TestService_SetStatusAndLocation(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, stubTrips{}, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, svc.SetStatus(ctx, StatusUpdate{DriverID: "d1", Available: true, Status: StatusOnline}))
	require.NoError(t, svc.UpdateLocation(ctx, "d1", types.Point{Lat: 12.97, Lng: 77.59}))

	d, err := svc.Get(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, d.Available)
	assert.Equal(t, StatusOnline, d.Status)
	require.NotNil(t, d.Location)
	assert.Equal(t, 12.97, d.Location.Lat)
}

func TestService_RejectsBadInput(t *testing.T) {
	svc := NewService(NewMemoryStore(), stubTrips{}, zerolog.Nop())
	ctx := context.Background()

	err := svc.SetStatus(ctx, StatusUpdate{DriverID: "d1", Status: "napping"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	err = svc.UpdateLocation(ctx, "d1", types.Point{Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, types.ErrInvalidCoordinates)
}

func TestService_DriverLocationFor(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpdateLocation(ctx, "d1", types.Point{Lat: 1, Lng: 2}, time.Now()))

	driver := types.ID("d1")
	svc := NewService(store, stubTrips{driver: &driver}, zerolog.Nop())
	p, id, err := svc.DriverLocationFor(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, types.Point{Lat: 1, Lng: 2}, *p)
	assert.Equal(t, driver, *id)

	idle := NewService(store, stubTrips{}, zerolog.Nop())
	p, id, err = idle.DriverLocationFor(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.Nil(t, id)

	boom := errors.New("boom")
	_, _, err = NewService(store, stubTrips{err: boom}, zerolog.Nop()).DriverLocationFor(ctx, "c1")
	assert.ErrorIs(t, err, boom)
}

// wrappingStore wraps lookup misses the way the remote stores do.
type wrappingStore struct {
	*MemoryStore
}

func (w wrappingStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := w.MemoryStore.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading driver %s: %w", id, err)
	}
	return d, nil
}

func TestService_DriverLocationFor_WrappedMiss(t *testing.T) {
	driver := types.ID("gone")
	svc := NewService(wrappingStore{NewMemoryStore()}, stubTrips{driver: &driver}, zerolog.Nop())

	p, id, err := svc.DriverLocationFor(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, p)
	require.NotNil(t, id)
	assert.Equal(t, driver, *id)
}

func coord(v float64) *float64 { return &v }

func TestDriversFromRTDB(t *testing.T) {
	data := map[string]rtdbDriverEntry{
		"b": {Lat: coord(1), Lng: coord(1), Status: "online", Timestamp: 1700000000000},
		"a": {Lat: coord(2), Lng: coord(2), Status: "online"},
		"c": {Lat: coord(3), Lng: coord(3), Status: "busy"},
	}
	got := driversFromRTDB(data)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("a"), got[0].ID)
	assert.Equal(t, types.ID("b"), got[1].ID)
	assert.True(t, got[1].Available)
	assert.Equal(t, int64(1700000000000), got[1].UpdatedAt.UnixMilli())
	require.NotNil(t, got[1].Location)
	assert.Equal(t, 1.0, got[1].Location.Lat)
}

func TestDriversFromRTDB_MissingCoordinatesAreNeverRanked(t *testing.T) {
	data := map[string]rtdbDriverEntry{
		"d-noloc":   {Status: "online"},
		"d-halfloc": {Lat: coord(0.01), Status: "online"},
	}
	got := driversFromRTDB(data)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Nil(t, d.Location, "driver %s", d.ID)
	}

	ranked := NearestAvailable(types.Point{Lat: 0.01, Lng: 0.01}, got, 10)
	assert.Empty(t, ranked)
}

func TestMemoryStore_ListAvailable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.SetStatus(ctx, "z", true, StatusOnline, now))
	require.NoError(t, store.SetStatus(ctx, "a", true, StatusOnline, now))
	require.NoError(t, store.SetStatus(ctx, "off", false, StatusOffline, now))
	require.NoError(t, store.UpdateLocation(ctx, "a", types.Point{Lat: 1, Lng: 1}, now))

	got, err := store.ListAvailable(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.ID("a"), got[0].ID)
	assert.Equal(t, types.ID("z"), got[1].ID)

	got[0].Location.Lat = 50
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.0, again.Location.Lat)

	_, err = store.Get(ctx, "ghost")
	assert.ErrorIs(t, err, ErrDriverNotFound)
}
