package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/pressly/goose/v3"
)

const DefaultDir = "pkg/migrate/migrations"

// Command is a goose subcommand that needs a live database.
type Command string

const (
	CommandUp     Command = "up"
	CommandDown   Command = "down"
	CommandStatus Command = "status"
	CommandRedo   Command = "redo"
)

var dbCommands = map[Command]bool{
	CommandUp:     true,
	CommandDown:   true,
	CommandStatus: true,
	CommandRedo:   true,
}

// ParseCommand accepts only the subcommands the migrate binary exposes.
func ParseCommand(raw string) (Command, error) {
	cmd := Command(raw)
	if !dbCommands[cmd] {
		return "", fmt.Errorf("unsupported migration command %q", raw)
	}
	return cmd, nil
}

// Run applies cmd against db using the postgres dialect.
func Run(ctx context.Context, db *sql.DB, dir string, cmd Command) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if !dbCommands[cmd] {
		return fmt.Errorf("unsupported migration command %q", cmd)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.RunContext(ctx, string(cmd), db, dir); err != nil {
		return fmt.Errorf("goose %s: %w", cmd, err)
	}
	return nil
}

// Direction says which way a versioned migration has to travel.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

// ParseVersion reads a YYYYMMDDHHMMSS migration version.
func ParseVersion(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("target version is required")
	}
	target, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || target < 0 {
		return 0, fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", raw)
	}
	return target, nil
}

// Plan compares the applied version with target.
func Plan(current, target int64) Direction {
	switch {
	case current < target:
		return DirectionUp
	case current > target:
		return DirectionDown
	default:
		return DirectionNone
	}
}

// ToVersion moves the schema up or down until it sits at target.
func ToVersion(ctx context.Context, db *sql.DB, dir string, target int64) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	current, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}
	switch Plan(current, target) {
	case DirectionUp:
		err = goose.UpToContext(ctx, db, dir, target)
	case DirectionDown:
		err = goose.DownToContext(ctx, db, dir, target)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("goose to %d (from %d): %w", target, current, err)
	}
	return nil
}
