package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// A cycle that outlives the lease is assumed dead; the next worker may start.
const defaultLease = 30 * time.Minute

// Lock keeps two cron workers from running the same cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a SETNX lease tagged with a per-acquire token so a worker
// never releases a lease another worker took over.
type RedisLock struct {
	store lockStore
	key   string
	lease time.Duration
	token string
}

func NewRedisLock(store lockStore, key string, lease time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for cron lock")
	case key == "":
		return nil, errors.New("cron lock key is required")
	}
	if lease <= 0 {
		lease = defaultLease
	}
	return &RedisLock{store: store, key: key, lease: lease}, nil
}

// Held reports whether this instance currently owns the lease.
func (l *RedisLock) Held() bool {
	return l.token != ""
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	if l.Held() {
		return false, fmt.Errorf("cron lock %q already held by this worker", l.key)
	}
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.lease)
	if err != nil {
		return false, fmt.Errorf("acquire cron lock: %w", err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

// Release drops the lease if it is still ours. An expired or stolen lease
// is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if !l.Held() {
		return nil
	}
	token := l.token
	l.token = ""

	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("read cron lock: %w", err)
	case current != token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("release cron lock: %w", err)
	}
	return nil
}
