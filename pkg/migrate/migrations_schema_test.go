package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/angelmondragon/vehiclesync-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMovementLogMigrationIsAppendOnlyAndIndexed(t *testing.T) {
	content := readMigration(t, "create_custody_tables")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS movement_events",
		"ON movement_events (entity_type, entity_id, occurred_at)",
		"BEFORE UPDATE OR DELETE ON movement_events",
		"DROP TABLE IF EXISTS movement_events",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestSnapshotMigrationKeysRowsByVersion(t *testing.T) {
	content := readMigration(t, "create_snapshot_tables")

	checks := []string{
		"PRIMARY KEY (snapshot_version, vehicle_id)",
		"CONSTRAINT ux_snapshot_runs_version UNIQUE (snapshot_version)",
		"DROP TABLE IF EXISTS scraped_records",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAllocationMigrationBoundsPercentage(t *testing.T) {
	content := readMigration(t, "create_photographer_allocations")
	if !strings.Contains(content, "CHECK (percentage >= 0 AND percentage <= 100)") {
		t.Fatalf("percentage bounds missing")
	}
}

func TestCreateSQLMigrationProducesValidFile(t *testing.T) {
	dir := t.TempDir()

	path, err := migrate.CreateSQLMigration(dir, "Add Stock Notes!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_stock_notes.sql") {
		t.Fatalf("unexpected migration path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
	if _, err := migrate.CreateSQLMigration(dir, "!!!"); err == nil {
		t.Fatalf("expected unusable name to fail")
	}
}

func TestParseCommandAndPlan(t *testing.T) {
	if _, err := migrate.ParseCommand("reset"); err == nil {
		t.Fatalf("reset must not be exposed")
	}
	if cmd, err := migrate.ParseCommand("status"); err != nil || cmd != migrate.CommandStatus {
		t.Fatalf("unexpected parse result %q, %v", cmd, err)
	}

	if _, err := migrate.ParseVersion("2026-03-01"); err == nil {
		t.Fatalf("expected malformed version to fail")
	}
	target, err := migrate.ParseVersion("20260301090300")
	if err != nil {
		t.Fatalf("parse version: %v", err)
	}

	cases := map[int64]migrate.Direction{
		20260301090000: migrate.DirectionUp,
		20260301090300: migrate.DirectionNone,
		20260301090500: migrate.DirectionDown,
	}
	for current, want := range cases {
		if got := migrate.Plan(current, target); got != want {
			t.Fatalf("plan from %d: got %v want %v", current, got, want)
		}
	}
}
