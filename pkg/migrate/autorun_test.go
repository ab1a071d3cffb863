package migrate

import (
	"context"
	"io"
	"testing"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/dbtest"
	"github.com/angelmondragon/vehiclesync-backend/pkg/db/models"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

func TestStartupModeFor(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.Config
		want startupMode
	}{
		{"sqlite wins everywhere", config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true}}, startupAutoMigrate},
		{"dev with auto migrate", config.Config{App: config.AppConfig{Env: "DEV"}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}, startupGooseUp},
		{"dev without auto migrate", config.Config{App: config.AppConfig{Env: config.AppEnvDev}}, startupSkip},
		{"prod never migrates on boot", config.Config{App: config.AppConfig{Env: config.AppEnvProd}, FeatureFlags: config.FeatureFlagsConfig{AutoMigrate: true}}, startupSkip},
	}
	for _, tc := range cases {
		if got := startupModeFor(&tc.cfg); got != tc.want {
			t.Fatalf("%s: got mode %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestMaybeRunDevAutoMigratesSQLite(t *testing.T) {
	client := dbtest.Client(t)
	logg := logger.New(logger.Options{ServiceName: "migrate-test", Output: io.Discard})
	cfg := &config.Config{FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true}}

	if err := MaybeRunDev(context.Background(), cfg, logg, client); err != nil {
		t.Fatalf("MaybeRunDev: %v", err)
	}
	for _, model := range models.All() {
		if !client.DB().Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}

	skip := &config.Config{App: config.AppConfig{Env: config.AppEnvProd}}
	if err := MaybeRunDev(context.Background(), skip, logg, nil); err != nil {
		t.Fatalf("skip mode must not touch the database: %v", err)
	}
}
