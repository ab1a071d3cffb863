package vehiclelock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

const (
	defaultTTL  = 30 * time.Second
	defaultWait = 2 * time.Second
	retryStep   = 50 * time.Millisecond
)

// Unlock releases a held vehicle lock.
type Unlock func(ctx context.Context)

// Locker serializes mutations on a single vehicle id. Mutations on different
// ids never contend.
type Locker interface {
	Lock(ctx context.Context, vehicleID string) (Unlock, error)
}

// With runs fn while holding the lock for vehicleID.
func With(ctx context.Context, locker Locker, vehicleID string, fn func(ctx context.Context) error) error {
	if locker == nil {
		return fn(ctx)
	}
	unlock, err := locker.Lock(ctx, vehicleID)
	if err != nil {
		return err
	}
	defer unlock(ctx)
	return fn(ctx)
}

func normalize(vehicleID string) string {
	return strings.ToUpper(strings.TrimSpace(vehicleID))
}

func busy(vehicleID string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "vehicle is being modified by another operation").
		WithDetails(map[string]any{"vehicle_id": vehicleID})
}

type keyBuilder interface {
	VehicleLockKey(vehicleID string) string
}

// Redis locks vehicles across processes with bsm/redislock.
type Redis struct {
	locker *redislock.Client
	keys   keyBuilder
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis builds a distributed vehicle locker on top of a go-redis client.
func NewRedis(client redislock.RedisClient, keys keyBuilder, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis client required for vehicle lock")
	}
	if keys == nil {
		return nil, errors.New("lock key builder required")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{
		locker: redislock.New(client),
		keys:   keys,
		ttl:    ttl,
		wait:   defaultWait,
	}, nil
}

func (r *Redis) Lock(ctx context.Context, vehicleID string) (Unlock, error) {
	id := normalize(vehicleID)
	attempts := int(r.wait / retryStep)
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(retryStep), attempts),
	}
	lock, err := r.locker.Obtain(ctx, r.keys.VehicleLockKey(id), r.ttl, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, busy(id)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain vehicle lock")
	}
	return func(ctx context.Context) {
		_ = lock.Release(ctx)
	}, nil
}

// Local locks vehicles within one process. Used in SQLite mode and tests.
type Local struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
	wait  time.Duration
}

// NewLocal builds an in-process locker. A zero wait uses the default.
func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = defaultWait
	}
	return &Local{slots: make(map[string]chan struct{}), wait: wait}
}

func (l *Local) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

func (l *Local) Lock(ctx context.Context, vehicleID string) (Unlock, error) {
	id := normalize(vehicleID)
	ch := l.slot(id)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func(context.Context) { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("vehicle lock: %w", ctx.Err())
	case <-timer.C:
		return nil, busy(id)
	}
}
