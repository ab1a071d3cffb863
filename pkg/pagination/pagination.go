package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Cursor is a keyset position. Key is the row's ordering column (a vehicle
// id or a uuid string); CreatedAt is only set for listings ordered by time
// first, and is omitted from the token otherwise.
type Cursor struct {
	CreatedAt time.Time
	Key       string
}

type token struct {
	Key string     `json:"k"`
	At  *time.Time `json:"t,omitempty"`
}

// NormalizeLimit clamps limit into [1, MaxLimit], using DefaultLimit for
// non-positive input.
func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// LimitWithBuffer asks for one extra row so Split can tell whether another
// page exists.
func LimitWithBuffer(limit int) int {
	return NormalizeLimit(limit) + 1
}

// Split trims rows fetched with LimitWithBuffer back to limit and returns the
// cursor of the last kept row, or nil on the final page.
func Split[T any](rows []T, limit int, position func(T) Cursor) ([]T, *Cursor) {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return rows, nil
	}
	next := position(rows[limit-1])
	return rows[:limit], &next
}

// EncodeCursor renders an opaque, URL-safe token.
func EncodeCursor(cursor Cursor) string {
	t := token{Key: cursor.Key}
	if !cursor.CreatedAt.IsZero() {
		at := cursor.CreatedAt.UTC()
		t.At = &at
	}
	raw, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// ParseCursor decodes a token from EncodeCursor. A blank value means the
// first page and yields a nil cursor.
func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	var t token
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}
	if t.Key == "" {
		return nil, errors.New("cursor has no key")
	}
	cursor := &Cursor{Key: t.Key}
	if t.At != nil {
		cursor.CreatedAt = *t.At
	}
	return cursor, nil
}
