package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
)

func TestSetNXHoldsFirstWriter(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	ok, err := client.SetNX(ctx, client.IngestionLockKey(), "owner-a", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected first setnx to win")
	}

	ok, err = client.SetNX(ctx, client.IngestionLockKey(), "owner-b", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected second setnx to lose")
	}

	owner, err := client.Get(ctx, client.IngestionLockKey())
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if owner != "owner-a" {
		t.Fatalf("expected owner-a, got %q", owner)
	}

	if err := client.Del(ctx, client.IngestionLockKey()); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, client.IngestionLockKey()); err != redis.Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if _, err := client.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on nil raw should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.VehicleLockKey(" 1234abc "); got != "vs:lock:vehicle:1234ABC" {
		t.Fatalf("unexpected vehicle lock key %s", got)
	}
	if got := client.IngestionLockKey(); got != "vs:lock:ingestion" {
		t.Fatalf("unexpected ingestion lock key %s", got)
	}
	if got := client.CronLockKey("cron-worker"); got != "vs:lock:cron:cron-worker" {
		t.Fatalf("unexpected cron lock key %s", got)
	}
	if got := client.IdempotencyKey("POST|/api/v1/sales", "abc"); got != "vs:idempotency:POST|/api/v1/sales:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.LockKey("scope", "", "id"); got != "vs:lock:scope:id" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestKeyspaceNamespace(t *testing.T) {
	staging := NewKeyspace(" staging: ")
	if got := staging.CronLockKey("staging"); got != "staging:lock:cron:staging" {
		t.Fatalf("unexpected namespaced key %s", got)
	}
	client := &Client{Keyspace: NewKeyspace("")}
	if got := client.IngestionLockKey(); got != "vs:lock:ingestion" {
		t.Fatalf("blank namespace should fall back to vs, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{
		URL:         "redis://:secret@cache:6380/4",
		DB:          9,
		PoolSize:    20,
		DialTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" {
		t.Fatalf("url fields not parsed: %+v", opts)
	}
	if opts.DB != 4 {
		t.Fatalf("url db should win over config db, got %d", opts.DB)
	}
	if opts.PoolSize != 20 || opts.DialTimeout != 2*time.Second {
		t.Fatalf("config should fill unset pool settings: %+v", opts)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6379" || opts.DB != 2 {
		t.Fatalf("address config not applied: %+v", opts)
	}

	if _, err := optionsFromConfig(config.RedisConfig{URL: "://bad"}); err == nil {
		t.Fatalf("expected url parse error")
	}
}

type mockCmdable struct {
	data map[string]string
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: make(map[string]string)}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
