package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	values  map[string]string
	lastTTL time.Duration
	getErr  error
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.lastTTL = ttl
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func TestRedisLockLeaseLifecycle(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()

	first, err := NewRedisLock(store, "vs:cron:test", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "vs:cron:test", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, first.Held())
	assert.Equal(t, defaultLease, store.lastTTL)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = first.Acquire(ctx)
	assert.Error(t, err)

	require.NoError(t, second.Release(ctx))
	assert.Contains(t, store.values, "vs:cron:test")

	require.NoError(t, first.Release(ctx))
	assert.False(t, first.Held())
	assert.NotContains(t, store.values, "vs:cron:test")
}

func TestRedisLockLeavesTakenOverLease(t *testing.T) {
	store := &memoryLockStore{values: map[string]string{}}
	ctx := context.Background()
	lock, err := NewRedisLock(store, "vs:cron:test", time.Minute)
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	store.values["vs:cron:test"] = "another-worker"
	require.NoError(t, lock.Release(ctx))
	assert.Equal(t, "another-worker", store.values["vs:cron:test"])

	store.values = map[string]string{}
	ok, err = lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	store.getErr = errors.New("redis down")
	assert.Error(t, lock.Release(ctx))
	assert.False(t, lock.Held())

	_, err = NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(store, "", time.Minute)
	assert.Error(t, err)
}
