package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vehiclesync-backend/internal/ingestion"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/migrate"
	"github.com/angelmondragon/vehiclesync-backend/pkg/redis"
)

// Boot reads an optional .env file, loads configuration and builds the logger
// for a binary of the given kind.
func Boot(kind string) (*config.Config, *logger.Logger, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, nil, fmt.Errorf("reading .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	cfg.Service.Kind = kind
	logg := logger.New(logger.Options{
		ServiceName: kind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	return cfg, logg, nil
}

// Runtime is the infrastructure a long-running binary holds open.
type Runtime struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Archiver ingestion.Archiver

	closers []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

// OpenOptions selects the optional stores.
type OpenOptions struct {
	Archive bool
}

// Open connects the database (running dev migrations), Redis and, when asked,
// the snapshot archive. Whatever was opened before a failure is closed again.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts OpenOptions) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg, Logger: logg}
	defer func() {
		if err != nil {
			rt.Close(ctx)
			rt = nil
		}
	}()

	if rt.DB, err = db.New(ctx, cfg.DB, logg); err != nil {
		return rt, fmt.Errorf("bootstrap database: %w", err)
	}
	rt.onClose("database", rt.DB.Close)

	if err = migrate.MaybeRunDev(ctx, cfg, logg, rt.DB); err != nil {
		return rt, fmt.Errorf("dev migrations: %w", err)
	}

	if rt.Redis, err = redis.New(ctx, cfg.Redis, logg); err != nil {
		return rt, fmt.Errorf("bootstrap redis: %w", err)
	}
	rt.onClose("redis", rt.Redis.Close)

	if opts.Archive {
		archiver, closeArchiver, archiveErr := OpenArchiver(ctx, cfg, logg)
		if archiveErr != nil {
			return rt, fmt.Errorf("bootstrap snapshot archive: %w", archiveErr)
		}
		rt.Archiver = archiver
		rt.onClose("snapshot archive", closeArchiver)
	}
	return rt, nil
}

func (r *Runtime) onClose(name string, fn func() error) {
	r.closers = append(r.closers, namedCloser{name: name, fn: fn})
}

// Engine wires the domain services on top of the runtime's stores.
func (r *Runtime) Engine(reg prometheus.Registerer) (*Engine, error) {
	return New(Params{
		Config:     r.Config,
		DB:         r.DB,
		Logger:     r.Logger,
		Redis:      r.Redis,
		Archiver:   r.Archiver,
		Registerer: reg,
	})
}

// Close releases stores in reverse opening order and logs failures.
func (r *Runtime) Close(ctx context.Context) {
	if r == nil {
		return
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		c := r.closers[i]
		if err := c.fn(); err != nil && r.Logger != nil {
			r.Logger.Error(ctx, "error closing "+c.name, err)
		}
	}
	r.closers = nil
}
