// README: Driver directory backed by Redis GEO (positions) plus a set of available drivers.
package location

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"happyauto/internal/types"
)

const (
	driverGeoKey       = "drivers:geo"
	driverAvailableKey = "drivers:available"
	driverStateFmt     = "drivers:state:%s"
)

type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redis *redis.Client) *RedisStore {
	return &RedisStore{redis: redis}
}

func stateKey(id types.ID) string {
	return fmt.Sprintf(driverStateFmt, string(id))
}

func (s *RedisStore) SetStatus(ctx context.Context, id types.ID, available bool, status DriverStatus, at time.Time) error {
	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, stateKey(id),
		"available", strconv.FormatBool(available),
		"status", string(status),
		"updated_at", at.UTC().Format(time.RFC3339Nano),
	)
	if available {
		pipe.SAdd(ctx, driverAvailableKey, string(id))
	} else {
		pipe.SRem(ctx, driverAvailableKey, string(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set driver status: %w", err)
	}
	return nil
}

func (s *RedisStore) UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) error {
	pipe := s.redis.TxPipeline()
	pipe.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	pipe.HSet(ctx, stateKey(id), "updated_at", at.UTC().Format(time.RFC3339Nano))
	// first contact registers the driver offline
	pipe.HSetNX(ctx, stateKey(id), "status", string(StatusOffline))
	pipe.HSetNX(ctx, stateKey(id), "available", "false")
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis update driver location: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	state, err := s.redis.HGetAll(ctx, stateKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get driver: %w", err)
	}
	if len(state) == 0 {
		return nil, ErrDriverNotFound
	}
	positions, err := s.redis.GeoPos(ctx, driverGeoKey, string(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis get driver position: %w", err)
	}
	d := driverFromState(id, state)
	if len(positions) == 1 && positions[0] != nil {
		d.Location = &types.Point{Lat: positions[0].Latitude, Lng: positions[0].Longitude}
	}
	return &d, nil
}

// ListAvailable returns available drivers sorted by id; drivers that never
// reported a position come back with a nil Location.
func (s *RedisStore) ListAvailable(ctx context.Context) ([]Driver, error) {
	members, err := s.redis.SMembers(ctx, driverAvailableKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list available drivers: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}
	sort.Strings(members)

	positions, err := s.redis.GeoPos(ctx, driverGeoKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis driver positions: %w", err)
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(members))
	for i, m := range members {
		cmds[i] = pipe.HGetAll(ctx, stateKey(types.ID(m)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("redis driver states: %w", err)
	}
	states := make([]map[string]string, len(members))
	for i, cmd := range cmds {
		states[i] = cmd.Val()
	}
	return availableFromRedis(members, states, positions), nil
}

// availableFromRedis joins the availability set with the state hashes and GEO
// positions, all indexed like members. A member whose hash says unavailable is
// dropped; a member with no hash is taken as online.
func availableFromRedis(members []string, states []map[string]string, positions []*redis.GeoPos) []Driver {
	out := make([]Driver, 0, len(members))
	for i, m := range members {
		var state map[string]string
		if i < len(states) {
			state = states[i]
		}
		d := driverFromState(types.ID(m), state)
		if len(state) == 0 {
			d.Available, d.Status = true, StatusOnline
		}
		if !d.Available {
			continue
		}
		if i < len(positions) && positions[i] != nil {
			d.Location = &types.Point{Lat: positions[i].Latitude, Lng: positions[i].Longitude}
		}
		out = append(out, d)
	}
	return out
}

func driverFromState(id types.ID, state map[string]string) Driver {
	d := Driver{ID: id, Status: DriverStatus(state["status"])}
	d.Available, _ = strconv.ParseBool(state["available"])
	if ts, err := time.Parse(time.RFC3339Nano, state["updated_at"]); err == nil {
		d.UpdatedAt = ts
	}
	return d
}
