package migrate

import (
	"context"
	"fmt"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type startupMode int

const (
	startupSkip startupMode = iota
	// SQLite gets AutoMigrate from the models: the goose files are Postgres SQL.
	startupAutoMigrate
	startupGooseUp
)

func startupModeFor(cfg *config.Config) startupMode {
	switch {
	case cfg.FeatureFlags.UseSQLite:
		return startupAutoMigrate
	case cfg.App.IsDev() && cfg.FeatureFlags.AutoMigrate:
		return startupGooseUp
	default:
		return startupSkip
	}
}

// MaybeRunDev brings the schema up at process start for local setups: SQLite
// always, Postgres only in dev with auto-migrate enabled. Other environments
// run cmd/migrate explicitly.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	switch startupModeFor(cfg) {
	case startupAutoMigrate:
		logg.Info(logg.WithField(ctx, "driver", config.DriverSQLite), "auto-migrating sqlite schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(models.All()...); err != nil {
			return fmt.Errorf("sqlite automigrate: %w", err)
		}
		return nil
	case startupGooseUp:
		sqlDB, err := client.DB().DB()
		if err != nil {
			return fmt.Errorf("extracting sql.DB: %w", err)
		}
		ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dir": DefaultDir})
		logg.Info(ctx, "applying pending migrations at startup")
		if err := Run(ctx, sqlDB, DefaultDir, CommandUp); err != nil {
			return fmt.Errorf("running goose up: %w", err)
		}
		logg.Info(ctx, "startup migrations applied")
	}
	return nil
}
