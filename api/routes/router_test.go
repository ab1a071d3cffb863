package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/vehiclesync-backend/api/controllers"
	"github.com/angelmondragon/vehiclesync-backend/internal/app"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryIdempotencyStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryIdempotencyStore) IdempotencyKey(scope, key string) string {
	return scope + ":" + key
}

func (m *memoryIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = value.(string)
	return true, nil
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test", CORSOrigins: []string{"http://localhost:3000"}}}
}

func newTestRouter(store *memoryIdempotencyStore) http.Handler {
	deps := Dependencies{
		Pingers: map[string]controllers.Pinger{"db": stubPinger{}},
		Metrics: promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{}),
	}
	if store != nil {
		deps.Idempotency = store
	}
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(testConfig(), logg, &app.Engine{}, deps)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	router := newTestRouter(nil)
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestLifecycleRoutesAreMounted(t *testing.T) {
	router := newTestRouter(nil)
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/v1/stock"},
		{http.MethodGet, "/api/v1/vehicles/ABC123"},
		{http.MethodPost, "/api/v1/vehicles/ABC123/receive"},
		{http.MethodPost, "/api/v1/vehicles/ABC123/body-readiness"},
		{http.MethodPost, "/api/v1/vehicles/ABC123/battery/charges"},
		{http.MethodGet, "/api/v1/vehicles/ABC123/movements"},
		{http.MethodGet, "/api/v1/photos/pending"},
		{http.MethodPost, "/api/v1/vehicles/ABC123/photos/assign"},
		{http.MethodGet, "/api/v1/photographers/allocations"},
		{http.MethodPost, "/api/v1/photographers/rebalance"},
		{http.MethodPost, "/api/v1/sales"},
		{http.MethodPost, "/api/v1/deliveries/8a4c7a51-3c7b-4f38-9f8a-0d6a9d2fd0a1/complete"},
		{http.MethodPost, "/api/v1/custody/items"},
		{http.MethodGet, "/api/v1/snapshots/runs"},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(tc.method, tc.path, strings.NewReader(`{}`)))
		if resp.Code == http.StatusNotFound || resp.Code == http.StatusMethodNotAllowed {
			t.Fatalf("%s %s: route not mounted (%d)", tc.method, tc.path, resp.Code)
		}
	}
}

func TestSnapshotRoutesWithoutSourceReportDependency(t *testing.T) {
	router := newTestRouter(nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/snapshots/ingest", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a snapshot source got %d", resp.Code)
	}
}

func TestCriticalRoutesRequireIdempotencyKey(t *testing.T) {
	router := newTestRouter(&memoryIdempotencyStore{data: map[string]string{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", strings.NewReader(`{"vehicle_id":"ABC123","customer":"Ana","price":"100"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without Idempotency-Key got %d", resp.Code)
	}

	read := httptest.NewRequest(http.MethodGet, "/api/v1/stock", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, read)
	if resp.Code == http.StatusBadRequest {
		t.Fatalf("reads must not require an idempotency key")
	}
}
