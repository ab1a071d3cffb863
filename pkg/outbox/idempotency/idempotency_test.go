package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

type fakeStore struct {
	values   map[string]string
	getErr   error
	setNXErr error
	lastTTL  time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{values: map[string]string{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	v, ok := f.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if f.setNXErr != nil {
		return false, f.setNXErr
	}
	f.lastTTL = ttl
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "vs:idempotency:" + scope + ":" + id
}

func TestMarkThenPublished(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	eventID := uuid.New()
	ctx := context.Background()

	seen, err := manager.Published(ctx, "outbox-publisher", eventID)
	if err != nil {
		t.Fatalf("Published: %v", err)
	}
	if seen {
		t.Fatalf("expected unseen event before marking")
	}

	if err := manager.MarkPublished(ctx, "outbox-publisher", eventID); err != nil {
		t.Fatalf("MarkPublished: %v", err)
	}
	if err := manager.MarkPublished(ctx, "outbox-publisher", eventID); err != nil {
		t.Fatalf("second MarkPublished should be a no-op: %v", err)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl %v", store.lastTTL)
	}

	key := "vs:idempotency:evt:published:outbox-publisher:" + eventID.String()
	if _, ok := store.values[key]; !ok {
		t.Fatalf("expected key %q to be stored", key)
	}

	seen, err = manager.Published(ctx, "outbox-publisher", eventID)
	if err != nil {
		t.Fatalf("Published: %v", err)
	}
	if !seen {
		t.Fatalf("expected event to be seen after marking")
	}

	seen, err = manager.Published(ctx, "other-publisher", eventID)
	if err != nil {
		t.Fatalf("Published: %v", err)
	}
	if seen {
		t.Fatalf("publishers must not share marks")
	}
}

func TestPublishedPropagatesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("redis down")
	manager, _ := NewManager(store, time.Hour)

	if _, err := manager.Published(context.Background(), "outbox-publisher", uuid.New()); err == nil {
		t.Fatalf("expected store error")
	}
}

func TestValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatalf("expected nil store to fail")
	}
	if _, err := NewManager(newFakeStore(), -time.Second); err == nil {
		t.Fatalf("expected negative ttl to fail")
	}

	manager, _ := NewManager(newFakeStore(), time.Hour)
	if err := manager.MarkPublished(context.Background(), "", uuid.New()); err == nil {
		t.Fatalf("expected missing publisher to fail")
	}
	if err := manager.MarkPublished(context.Background(), "outbox-publisher", uuid.Nil); err == nil {
		t.Fatalf("expected nil event id to fail")
	}
}
