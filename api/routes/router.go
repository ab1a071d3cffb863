package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/vehiclesync-backend/api/controllers"
	"github.com/angelmondragon/vehiclesync-backend/api/middleware"
	"github.com/angelmondragon/vehiclesync-backend/internal/app"
	"github.com/angelmondragon/vehiclesync-backend/pkg/config"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/vehiclesync-backend/pkg/redis"
)

// Dependencies are the process handles the router needs besides the engine.
// Nil entries are skipped by readiness and idempotency.
type Dependencies struct {
	Idempotency pkgredis.IdempotencyStore
	Pingers     map[string]controllers.Pinger
	Metrics     http.Handler
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, engine *app.Engine, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, deps.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	metricsHandler := deps.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Pingers))
	})
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	var snapshotRunner controllers.SnapshotRunner
	if engine.Ingestion != nil {
		snapshotRunner = engine.Ingestion
	}
	var deadLetters controllers.DeadLetterReader
	if engine.DeadLetters != nil {
		deadLetters = engine.DeadLetters
	}
	var describer controllers.VehicleDescriber
	if engine.Describer != nil {
		describer = engine.Describer
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Actor(logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Get("/stock", controllers.StockList(engine.Stock, logg))
		r.Get("/photos/pending", controllers.PhotosPending(engine.Photos, logg))

		r.Route("/vehicles/{vehicleId}", func(r chi.Router) {
			r.Get("/", controllers.VehicleDescribe(describer, logg))
			r.Post("/receive", controllers.VehicleReceive(engine.Stock, logg))
			r.Post("/body-readiness", controllers.VehicleBodyReadiness(engine.Stock, logg))
			r.Get("/movements", controllers.VehicleMovements(engine.Custody, logg))
			r.Get("/battery", controllers.BatteryStatus(engine.Battery, logg))
			r.Post("/battery/charges", controllers.BatteryCharge(engine.Battery, logg))
			r.Post("/photos/assign", controllers.PhotoAssign(engine.Photos, logg))
			r.Post("/photos/complete", controllers.PhotoComplete(engine.Photos, logg))
			r.Post("/photos/error", controllers.PhotoError(engine.Photos, logg))
		})

		r.Route("/photographers", func(r chi.Router) {
			r.Get("/allocations", controllers.PhotographersList(engine.Photographers, logg))
			r.Put("/allocations", controllers.PhotographersReplace(engine.Photographers, logg))
			r.Post("/allocations/distribute", controllers.PhotographersDistribute(engine.Photographers, logg))
			r.Put("/allocations/{userId}", controllers.PhotographerUpsert(engine.Photographers, logg))
			r.Post("/rebalance", controllers.PhotographersRebalance(engine.Photographers, logg))
			r.Get("/stats", controllers.PhotographersStats(engine.Photographers, logg))
		})

		r.Post("/sales", controllers.SaleCreate(engine.Sales, logg))
		r.Delete("/sales/{saleId}", controllers.SaleDelete(engine.Sales, logg))
		r.Post("/sales/{saleId}/validate", controllers.SaleValidate(engine.Sales, logg))
		r.Post("/sales/{saleId}/deliveries", controllers.DeliverySchedule(engine.Deliveries, logg))

		r.Post("/deliveries/{deliveryId}/complete", controllers.DeliveryComplete(engine.Deliveries, logg))
		r.Get("/deliveries/{deliveryId}/incidents", controllers.DeliveryIncidents(engine.Incidents, logg))
		r.Post("/deliveries/{deliveryId}/incidents", controllers.DeliveryOpenIncident(engine.Incidents, logg))

		r.Post("/custody/items", controllers.CustodyRegister(engine.Custody, logg))
		r.Post("/custody/items/{itemId}/movements", controllers.CustodyMove(engine.Custody, logg))

		r.Post("/snapshots/ingest", controllers.SnapshotIngest(snapshotRunner, logg))
		r.Get("/snapshots/runs", controllers.SnapshotRuns(snapshotRunner, logg))

		r.Get("/outbox/dead-letters", controllers.OutboxDeadLetters(deadLetters, logg))
	})

	return r
}
