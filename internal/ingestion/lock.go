package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
)

// RunLock guards against overlapping runs.
type RunLock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLock is a RunLock for a single process.
type LocalLock struct {
	mu sync.Mutex
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	return l.mu.TryLock(), nil
}

func (l *LocalLock) Release(context.Context) error {
	l.mu.Unlock()
	return nil
}

// RedisRunLock shares the in-flight marker across replicas. It never waits:
// a held lock means another run is active and the caller is refused.
type RedisRunLock struct {
	client *redislock.Client
	key    string
	ttl    time.Duration

	mu   sync.Mutex
	held *redislock.Lock
}

func NewRedisRunLock(client redislock.RedisClient, key string, ttl time.Duration) (*RedisRunLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for ingestion lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRunLock{client: redislock.New(client), key: key, ttl: ttl}, nil
}

func (l *RedisRunLock) Acquire(ctx context.Context) (bool, error) {
	lock, err := l.client.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("obtain ingestion lock: %w", err)
	}
	l.mu.Lock()
	l.held = lock
	l.mu.Unlock()
	return true, nil
}

func (l *RedisRunLock) Release(ctx context.Context) error {
	l.mu.Lock()
	lock := l.held
	l.held = nil
	l.mu.Unlock()
	if lock == nil {
		return nil
	}
	if err := lock.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
		return fmt.Errorf("release ingestion lock: %w", err)
	}
	return nil
}
