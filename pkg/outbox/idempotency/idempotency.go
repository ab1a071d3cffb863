package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vehiclesync-backend/pkg/redis"
)

// Manager remembers which outbox events a named publisher has already shipped.
// Keys follow the `vs:idempotency:evt:published:<publisher>:<event_id>` pattern.
type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

// NewManager builds a guard that remembers published events for ttl.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{
		store: store,
		ttl:   ttl,
	}, nil
}

// Published reports whether the event was already shipped by publisher.
func (m *Manager) Published(ctx context.Context, publisher string, eventID uuid.UUID) (bool, error) {
	key, err := m.publishedKey(publisher, eventID)
	if err != nil {
		return false, err
	}
	value, err := m.store.Get(ctx, key)
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value != "", nil
}

// MarkPublished records a successful publish. Marking twice is not an error.
func (m *Manager) MarkPublished(ctx context.Context, publisher string, eventID uuid.UUID) error {
	key, err := m.publishedKey(publisher, eventID)
	if err != nil {
		return err
	}
	_, err = m.store.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), m.ttl)
	return err
}

func (m *Manager) publishedKey(publisher string, eventID uuid.UUID) (string, error) {
	if publisher == "" {
		return "", errors.New("publisher name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:published:%s", publisher)
	return m.store.IdempotencyKey(scope, eventID.String()), nil
}
