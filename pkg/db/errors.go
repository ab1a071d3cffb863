package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique-constraint failure,
// optionally on a specific constraint. SQLite has no SQLSTATE, so its
// message text is matched instead.
func IsUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return constraint == ""
	}
	if pg, ok := pkgerrors.Postgres(err); ok {
		return pg.Code == pkgerrors.PGUniqueViolation && (constraint == "" || pg.Constraint == constraint)
	}
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") && !strings.Contains(msg, "duplicate key value") {
		return false
	}
	return constraint == "" || strings.Contains(msg, constraint)
}
