package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vehiclesync-backend/internal/app"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	"github.com/angelmondragon/vehiclesync-backend/pkg/migrate"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/vehiclesync-backend/pkg/outbox/registry"
	"github.com/angelmondragon/vehiclesync-backend/pkg/pubsub"
	"github.com/angelmondragon/vehiclesync-backend/pkg/redis"
)

const serviceKind = "outbox-publisher"

func main() {
	cfg, logg, err := app.Boot(serviceKind)
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceKind}).Error(context.Background(), "failed to boot", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shut down")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "pubsub client", pubsubClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	guard, err := idempotency.NewManager(redisClient, cfg.Outbox.PublishGuardTTL)
	if err != nil {
		return err
	}
	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         dbClient,
		Broker:     newGCPBroker(pubsubClient, cfg.PubSub.LifecycleTopic),
		Repository: outbox.NewRepository(dbClient.DB()),
		Registry:   eventRegistry,
		DeadLetter: outbox.NewDLQRepository(dbClient.DB()),
		Guard:      guard,
		Metrics:    metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return err
	}

	if addr := cfg.Service.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(ctx, "metrics listener stopped", err)
			}
		}()
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"topic":  cfg.PubSub.LifecycleTopic,
		"events": len(eventRegistry.Descriptors()),
	}), "starting outbox publisher")
	return service.Run(ctx)
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
