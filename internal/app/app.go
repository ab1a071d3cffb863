// Package app assembles the engine: the reactor with its rule table and every
// domain service that feeds it. The api, cron-worker and seed binaries share
// this wiring so every entry point propagates mutations the same way.
package app

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vehiclesync-backend/internal/battery"
	"github.com/angelmondragon/vehiclesync-backend/internal/custody"
	"github.com/angelmondragon/vehiclesync-backend/internal/deliveries"
	"github.com/angelmondragon/vehiclesync-backend/internal/incidents"
	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/internal/lifecycle"
	"github.com/angelmondragon/vehiclesync-backend/internal/photographers"
	"github.com/angelmondragon/vehiclesync-backend/internal/photos"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor"
	"github.com/angelmondragon/vehiclesync-backend/internal/reactor/rules"
	"github.com/angelmondragon/vehiclesync-backend/internal/sales"
	"github.com/angelmondragon/vehiclesync-backend/internal/snapshots"
	"github.com/angelmondragon/vehiclesync-backend/internal/stock"
	"github.com/angelmondragon/vehiclesync-backend/internal/vehiclelock"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/redis"
)

// Params are the process-level dependencies the engine is built from.
type Params struct {
	Config *config.Config
	DB     *db.Client
	Logger *logger.Logger

	// Redis enables distributed vehicle and ingestion locks. Nil falls back
	// to in-process locks, which is only safe with a single replica.
	Redis *redis.Client

	// Source overrides the configured HTTP listing. Nil with an empty source
	// URL leaves the engine without an ingestion adapter.
	Source   ingestion.Source
	Archiver ingestion.Archiver

	Registerer prometheus.Registerer
}

// Engine holds the wired services.
type Engine struct {
	Reactor       *reactor.Engine
	Outbox        *outbox.Service
	Events        *outbox.Repository
	DeadLetters   *outbox.DLQRepository
	Describer     *lifecycle.Describer
	Locks         vehiclelock.Locker
	Snapshots     *snapshots.Repository
	Ingestion     *ingestion.Adapter
	Stock         stock.Service
	Photos        photos.Service
	Battery       battery.Service
	Sales         sales.Service
	Deliveries    deliveries.Service
	Custody       custody.Service
	Incidents     incidents.Service
	Photographers photographers.Service
}

// New wires the engine. Every service shares one reactor so the rule table
// is the single place propagation happens.
func New(p Params) (*Engine, error) {
	if p.Config == nil {
		return nil, errors.New("config required")
	}
	if p.DB == nil {
		return nil, errors.New("db client required")
	}
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	cfg := p.Config
	conn := p.DB.DB()

	locks, runLock, err := buildLocks(p)
	if err != nil {
		return nil, err
	}

	events := outbox.NewRepository(conn)
	emitter := outbox.NewService(events, p.Logger)
	resolver, err := incidents.NewResolver(emitter)
	if err != nil {
		return nil, err
	}
	table, err := rules.New(rules.Deps{
		Ingestion: cfg.Ingestion,
		Battery:   cfg.Battery,
		Outbox:    emitter,
		Resolver:  resolver,
	})
	if err != nil {
		return nil, err
	}
	engine, err := reactor.New(p.Logger, metrics.NewReactorMetrics(p.Registerer), table...)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		Reactor:     engine,
		Outbox:      emitter,
		Events:      events,
		DeadLetters: outbox.NewDLQRepository(conn),
		Describer:   lifecycle.NewDescriber(conn, cfg.Battery),
		Locks:       locks,
		Snapshots:   snapshots.NewRepository(conn),
	}

	if e.Stock, err = stock.NewService(stock.NewRepository(conn), p.DB, engine, locks); err != nil {
		return nil, err
	}
	photoRepo := photos.NewRepository(conn)
	if e.Photos, err = photos.NewService(photoRepo, p.DB, locks); err != nil {
		return nil, err
	}
	if e.Battery, err = battery.NewService(battery.ServiceParams{
		Repo:   battery.NewRepository(conn),
		Tx:     p.DB,
		Locks:  locks,
		Outbox: emitter,
		Config: cfg.Battery,
		Logger: p.Logger,
	}); err != nil {
		return nil, err
	}
	if e.Sales, err = sales.NewService(sales.NewRepository(conn), p.DB, engine, emitter, locks); err != nil {
		return nil, err
	}
	if e.Deliveries, err = deliveries.NewService(deliveries.ServiceParams{
		Repo:     deliveries.NewRepository(conn),
		Tx:       p.DB,
		Reactor:  engine,
		Outbox:   emitter,
		Resolver: resolver,
		Locks:    locks,
		Custody:  cfg.Custody,
		Logger:   p.Logger,
	}); err != nil {
		return nil, err
	}
	if e.Custody, err = custody.NewService(custody.NewRepository(conn), p.DB, engine, emitter, locks, cfg.Custody); err != nil {
		return nil, err
	}
	if e.Incidents, err = incidents.NewService(incidents.NewRepository(conn), p.DB, resolver, locks); err != nil {
		return nil, err
	}
	if e.Photographers, err = photographers.NewService(photographers.ServiceParams{
		Repo:   photographers.NewRepository(conn),
		Photos: photoRepo,
		Tx:     p.DB,
		Locks:  locks,
		Outbox: emitter,
		Logger: p.Logger,
		Window: cfg.Photographers.StatsWindow,
	}); err != nil {
		return nil, err
	}

	source := p.Source
	if source == nil && cfg.Ingestion.SourceURL != "" {
		httpSource, err := ingestion.NewHTTPSource(cfg.Ingestion)
		if err != nil {
			return nil, err
		}
		source = httpSource
	}
	if source != nil {
		if e.Ingestion, err = ingestion.NewAdapter(ingestion.AdapterParams{
			Repo:     e.Snapshots,
			Tx:       p.DB,
			Source:   source,
			Reactor:  engine,
			Outbox:   emitter,
			Lock:     runLock,
			Archiver: p.Archiver,
			Config:   cfg.Ingestion,
			Metrics:  metrics.NewIngestionMetrics(p.Registerer),
			Logger:   p.Logger,
		}); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func buildLocks(p Params) (vehiclelock.Locker, ingestion.RunLock, error) {
	if p.Redis == nil {
		return vehiclelock.NewLocal(0), &ingestion.LocalLock{}, nil
	}
	locks, err := vehiclelock.NewRedis(p.Redis.Raw(), p.Redis, p.Config.Locks.VehicleTTL)
	if err != nil {
		return nil, nil, err
	}
	ttl := p.Config.Locks.IngestionTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	runLock, err := ingestion.NewRedisRunLock(p.Redis.Raw(), p.Redis.IngestionLockKey(), ttl)
	if err != nil {
		return nil, nil, err
	}
	return locks, runLock, nil
}
