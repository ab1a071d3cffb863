package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vehiclesync-backend/internal/app"
	"github.com/angelmondragon/vehiclesync-backend/internal/cron"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
)

func main() {
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	cfg, logg, err := app.Boot("cron-worker")
	if err != nil {
		logger.New(logger.Options{ServiceName: "cron-worker"}).Error(context.Background(), "failed to boot", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logg, app.OpenOptions{Archive: true})
	if err != nil {
		logg.Error(ctx, "failed to open stores", err)
		os.Exit(1)
	}

	code := run(ctx, rt, *once)
	rt.Close(context.Background())
	if code != 0 {
		os.Exit(code)
	}
}

// run returns the process exit code: 1 for a broken worker, 2 when a single
// cycle finished with failed jobs.
func run(ctx context.Context, rt *app.Runtime, once bool) int {
	cfg, logg := rt.Config, rt.Logger

	engine, err := rt.Engine(prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(ctx, "failed to wire engine", err)
		return 1
	}

	registry, err := buildRegistry(cfg, logg, engine)
	if err != nil {
		logg.Error(ctx, "failed to register cron jobs", err)
		return 1
	}
	logg.Info(logg.WithField(ctx, "jobs", registry.Names()), "cron jobs registered")

	lock, err := cron.NewRedisLock(rt.Redis, rt.Redis.CronLockKey(cfg.App.Env), cfg.Locks.CronTTL)
	if err != nil {
		logg.Error(ctx, "failed to create cron lock", err)
		return 1
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   registry,
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Locks.CronInterval,
		JobTimeout: cfg.Locks.CronJobLimit,
	})
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return 1
	}

	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"interval":    cfg.Locks.CronInterval.String(),
	})

	if once {
		report, err := service.RunOnce(ctx)
		if err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			return 1
		}
		if len(report.Failed) > 0 {
			return 2
		}
		return 0
	}

	if addr := cfg.Service.MetricsAddr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr, prometheus.DefaultGatherer); err != nil {
				logg.Error(logg.WithField(ctx, "addr", addr), "metrics listener stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		return 1
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return 0
}

// buildRegistry orders the jobs so a cycle ingests first, then checks
// batteries against the fresh stock, then spreads new photo work.
func buildRegistry(cfg *config.Config, logg *logger.Logger, engine *app.Engine) (*cron.Registry, error) {
	registry := cron.NewRegistry()

	if engine.Ingestion != nil {
		job, err := cron.NewSnapshotIngestionJob(cron.SnapshotIngestionJobParams{
			Logger:  logg,
			Adapter: engine.Ingestion,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(job); err != nil {
			return nil, err
		}
	} else {
		logg.Warn(context.Background(), "no listing source configured; snapshot ingestion disabled")
	}

	batteryJob, err := cron.NewBatteryMonitorJob(cron.BatteryMonitorJobParams{
		Logger:  logg,
		Battery: engine.Battery,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(batteryJob); err != nil {
		return nil, err
	}

	if cfg.Photographers.Rebalance {
		rebalanceJob, err := cron.NewPhotoRebalanceJob(cron.PhotoRebalanceJobParams{
			Logger:   logg,
			Balancer: engine.Photographers,
		})
		if err != nil {
			return nil, err
		}
		if err := registry.Register(rebalanceJob); err != nil {
			return nil, err
		}
	}

	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:       logg,
		Published:    engine.Events,
		DeadLetters:  engine.DeadLetters,
		Retention:    cfg.Outbox.RetentionDays,
		DLQRetention: cfg.Outbox.DLQRetention,
	})
	if err != nil {
		return nil, err
	}
	if err := registry.Register(retentionJob); err != nil {
		return nil, err
	}

	return registry, nil
}
