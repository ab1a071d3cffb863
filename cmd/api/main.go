package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/vehiclesync-backend/api/controllers"
	"github.com/angelmondragon/vehiclesync-backend/api/routes"
	"github.com/angelmondragon/vehiclesync-backend/internal/app"
	"github.com/angelmondragon/vehiclesync-backend/pkg/env"
	"github.com/angelmondragon/vehiclesync-backend/pkg/logger"
	"github.com/angelmondragon/vehiclesync-backend/pkg/metrics"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, logg, err := app.Boot("api")
	if err != nil {
		logger.New(logger.Options{ServiceName: "api"}).Error(context.Background(), "failed to boot", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := app.Open(ctx, cfg, logg, app.OpenOptions{Archive: true})
	if err != nil {
		logg.Error(ctx, "failed to open stores", err)
		os.Exit(1)
	}
	defer rt.Close(context.Background())

	if err := serve(ctx, rt); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		rt.Close(context.Background())
		os.Exit(1)
	}
}

func serve(ctx context.Context, rt *app.Runtime) error {
	cfg, logg := rt.Config, rt.Logger
	engine, err := rt.Engine(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	pingers := map[string]controllers.Pinger{
		"db":    rt.DB,
		"redis": rt.Redis,
	}
	if p, ok := rt.Archiver.(controllers.Pinger); ok {
		pingers["gcs"] = p
	}

	// PORT and DYNO are set by the hosting platform.
	addr := ":" + env.Get(cfg.App.Port, "PORT")
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"addr":      addr,
		"instance":  env.Get("local", "DYNO"),
		"ingestion": engine.Ingestion != nil,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, engine, routes.Dependencies{
			Idempotency: rt.Redis,
			Pingers:     pingers,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logg.Info(ctx, "api server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info(ctx, "api server stopped")
	return nil
}
