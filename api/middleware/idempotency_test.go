package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	pkgerrors "github.com/angelmondragon/vehiclesync-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func keyedRequest(method, target, body, key string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func TestIdempotencyTTLSelection(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, "/api/v1/sales", saleFlowTTL, true},
		{http.MethodPost, "/api/v1/sales/5b0c/validate", saleFlowTTL, true},
		{http.MethodPost, "/api/v1/sales/5b0c/deliveries", saleFlowTTL, true},
		{http.MethodPost, "/api/v1/deliveries/77aa/complete", saleFlowTTL, true},
		{http.MethodPost, "/api/v1/custody/items/91ee/movements", logWriteTTL, true},
		{http.MethodPost, "/api/v1/vehicles/1234ABC/battery/charges", logWriteTTL, true},
		{http.MethodPost, "/api/v1/sales//validate", 0, false},
		{http.MethodPost, "/api/v1/sales/5b0c/validate/extra", 0, false},
		{http.MethodDelete, "/api/v1/sales/5b0c", 0, false},
		{http.MethodPost, "/api/v1/snapshots/ingest", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := idempotencyTTL(tt.method, tt.path)
		if ok != tt.ok || ttl != tt.want {
			t.Fatalf("%s %s: got (%v, %v) want (%v, %v)", tt.method, tt.path, ttl, ok, tt.want, tt.ok)
		}
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/sales", `{"vehicle_id":"1234ABC"}`, ""))
	if rec.Code != http.StatusBadRequest || called {
		t.Fatalf("expected 400 without running the handler, got %d (called=%v)", rec.Code, called)
	}
}

func TestIdempotencyReplaysThroughChiRouter(t *testing.T) {
	store := newFakeStore()
	calls := 0
	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, nil))
		r.Post("/sales/{saleId}/validate", func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"data":{"validated":true}}`))
		})
	})

	first := httptest.NewRecorder()
	r.ServeHTTP(first, keyedRequest(http.MethodPost, "/api/v1/sales/5b0c/validate", `{}`, "abc"))
	second := httptest.NewRecorder()
	r.ServeHTTP(second, keyedRequest(http.MethodPost, "/api/v1/sales/5b0c/validate", `{}`, "abc"))

	if calls != 1 {
		t.Fatalf("handler ran %d times, expected 1", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay mismatch: %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(replayedHeader) != "true" || second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("replay headers missing: %v", second.Header())
	}
	for _, ttl := range store.ttls {
		if ttl != saleFlowTTL {
			t.Fatalf("expected sale flow ttl, got %v", ttl)
		}
	}
}

func TestIdempotencyDoesNotRecordServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/sales", `{}`, "retry-me"))
	}
	if calls != 2 || len(store.data) != 0 {
		t.Fatalf("expected both attempts to run unrecorded, calls=%d stored=%d", calls, len(store.data))
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), keyedRequest(http.MethodPost, "/api/v1/sales", `{"vehicle_id":"1234ABC"}`, "xyz"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, keyedRequest(http.MethodPost, "/api/v1/sales", `{"vehicle_id":"9999ZZZ"}`, "xyz"))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeIdempotency) {
		t.Fatalf("expected %s got %s", pkgerrors.CodeIdempotency, payload.Error.Code)
	}
}
