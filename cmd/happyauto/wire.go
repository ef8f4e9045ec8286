package main

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"happyauto/internal/config"
	"happyauto/internal/infra"
	"happyauto/internal/logx"
	mapsvc "happyauto/internal/maps"
	"happyauto/internal/metrics"
	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/matching"
	"happyauto/internal/modules/pricing"
	"happyauto/internal/modules/route"
)

type app struct {
	pool  *pgxpool.Pool
	redis *redis.Client

	registry *prometheus.Registry
	verifier infra.TokenVerifier

	deliveries *delivery.Service
	matching   *matching.Service
	location   *location.Service
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// buildApp wires stores and services from cfg. On error everything opened so far is closed.
func buildApp(ctx context.Context, cfg config.Config, log zerolog.Logger) (_ *app, err error) {
	a := &app{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, err
	}

	fbApp, err := infra.NewFirebaseApp(ctx, cfg.Firebase)
	if err != nil {
		return nil, err
	}
	if a.verifier, err = infra.NewFirebaseVerifier(ctx, fbApp); err != nil {
		return nil, err
	}

	var store delivery.Store
	switch cfg.DB.Driver {
	case "postgres":
		if a.pool, err = infra.NewDB(ctx, cfg.DB.DSN); err != nil {
			return nil, err
		}
		store = delivery.NewPGStore(a.pool)
	default:
		log.Warn().Msg("using in-memory delivery store; data is lost on restart")
		store = delivery.NewMemoryStore()
	}

	fares, err := pricing.NewService(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	if a.pool != nil {
		n, err := fares.LoadRates(ctx, pricing.NewStore(a.pool))
		if err != nil {
			return nil, fmt.Errorf("load vehicle rates: %w", err)
		}
		log.Info().Int("rates", n).Msg("vehicle rates loaded")
	}

	a.deliveries = delivery.NewService(store,
		delivery.PolicyFromConfig(cfg.Lifecycle, cfg.Pricing.Currency),
		logx.Component(log, "delivery"),
		delivery.WithMetrics(m),
	)

	drivers, directory, err := a.driverStores(ctx, cfg, fbApp, log)
	if err != nil {
		return nil, err
	}
	a.location = location.NewService(drivers, a.deliveries, logx.Component(log, "location"))

	var provider route.Provider
	if cfg.Route.Provider == "google" {
		rs, err := mapsvc.NewRouteService(cfg.Route.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		provider = rs
	}
	estimator := route.NewEstimator(provider, cfg.Route.AvgSpeedKmh, logx.Component(log, "route"), m)

	a.matching = matching.NewService(estimator, fares, directory, a.deliveries,
		cfg.Matching, logx.Component(log, "matching"), m)
	return a, nil
}

// driverStores returns the store receiving driver updates and the directory
// matching reads from. They differ only for the firebase source.
func (a *app) driverStores(ctx context.Context, cfg config.Config, fbApp *firebase.App, log zerolog.Logger) (location.Store, location.Directory, error) {
	var store location.Store
	switch {
	case cfg.Matching.DriverSource == "redis":
		client, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			return nil, nil, err
		}
		a.redis = client
		store = location.NewRedisStore(client)
	case a.pool != nil:
		store = location.NewPGStore(a.pool)
	default:
		log.Warn().Msg("using in-memory driver store")
		store = location.NewMemoryStore()
	}

	if cfg.Matching.DriverSource != "firebase" {
		return store, store, nil
	}
	rtdb, err := infra.NewRealtimeDB(ctx, fbApp)
	if err != nil {
		return nil, nil, err
	}
	return store, location.NewFirebaseDirectory(rtdb), nil
}
