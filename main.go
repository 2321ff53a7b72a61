package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sellerhub/stockengine/config"
	applowstock "github.com/sellerhub/stockengine/internal/application/lowstock"
	apporder "github.com/sellerhub/stockengine/internal/application/order"
	appproduct "github.com/sellerhub/stockengine/internal/application/product"
	appstock "github.com/sellerhub/stockengine/internal/application/stock"
	"github.com/sellerhub/stockengine/internal/domain/storage"
	"github.com/sellerhub/stockengine/internal/infrastructure/id"
	"github.com/sellerhub/stockengine/internal/infrastructure/memory"
	"github.com/sellerhub/stockengine/internal/infrastructure/observability/oteltrace"
	"github.com/sellerhub/stockengine/internal/infrastructure/observability/prometrics"
	"github.com/sellerhub/stockengine/internal/infrastructure/observability/telemetry"
	"github.com/sellerhub/stockengine/internal/infrastructure/observability/zaplogger"
	"github.com/sellerhub/stockengine/internal/infrastructure/outbox"
	"github.com/sellerhub/stockengine/internal/infrastructure/postgres"
	"github.com/sellerhub/stockengine/internal/observability"
	httppresentation "github.com/sellerhub/stockengine/internal/presentation/http"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	baseLogger := zaplogger.New(
		observability.F("service", cfg.Server.ServiceName),
		observability.F("env", cfg.Server.AppEnv),
	)
	defer func() { _ = baseLogger.Sync() }()

	metrics := prometrics.New("", "")
	counters := map[string]observability.Counter{
		observability.MUsecaseRequests: metrics.Counter(
			observability.MUsecaseRequests,
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: metrics.Counter(
			observability.MHTTPRequests,
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MStockRestoreSkipped: metrics.Counter(
			observability.MStockRestoreSkipped,
			"Stock restores skipped because the product record was gone.",
		),
		observability.MLowStockAlerts: metrics.Counter(
			observability.MLowStockAlerts,
			"Low stock alerts raised by the watcher.",
		),
	}
	histograms := map[string]observability.Histogram{
		observability.MUsecaseDuration: metrics.Histogram(
			observability.MUsecaseDuration,
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: metrics.Histogram(
			observability.MHTTPRequestDuration,
			"Duration of HTTP requests in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
	}

	tel := telemetry.New(
		oteltrace.New(cfg.Server.ServiceName),
		baseLogger,
		counters,
		histograms,
	)
	systemLogger := tel.Logger().With(observability.F("component", "main"))

	store, cleanup, err := buildStore(cfg)
	if err != nil {
		systemLogger.Error("store_init_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	bus := outbox.NewBus(tel.Logger())
	bus.Start(context.Background())
	defer bus.Stop(context.Background())

	idGenerator := id.NewUUIDGenerator()
	coordinator := appstock.NewCoordinator(tel)
	orderService := apporder.NewService(store, coordinator, idGenerator, bus, tel)
	productService := appproduct.NewService(store, coordinator, idGenerator, bus, tel)

	applowstock.New(bus, tel).Start()

	handler := httppresentation.NewHandler(orderService, productService, tel.Logger(), tel)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		systemLogger.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store_backend", cfg.Store.Backend),
		)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			systemLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		systemLogger.Info("http_server_stopped")
	}
}

func buildStore(cfg *config.Config) (storage.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(cfg.Postgres.DSN())
		if err != nil {
			return nil, nil, err
		}
		db.SetMaxOpenConns(cfg.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Postgres.MaxIdleConns)
		return postgres.NewStore(db), func() { _ = db.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
