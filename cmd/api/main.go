package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cronback-io/cronback/config"
	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/dispatch"
	"github.com/cronback-io/cronback/internal/eventlog"
	"github.com/cronback-io/cronback/internal/health"
	ctxlog "github.com/cronback-io/cronback/internal/log"
	"github.com/cronback-io/cronback/internal/metrics"
	"github.com/cronback-io/cronback/internal/postgres"
	httptransport "github.com/cronback-io/cronback/internal/transport/http"
	"github.com/cronback-io/cronback/internal/transport/http/handler"
	"github.com/cronback-io/cronback/internal/usecase"
	"github.com/cronback-io/cronback/internal/webhook"
	"github.com/cronback-io/cronback/pkg/clock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := newLogger(cfg.Env, cfg.SlogLevel())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		stop()
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	triggerRepo := postgres.NewTriggerRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	projectRepo := postgres.NewProjectRepository(pool)
	eventSink := postgres.NewEventSink(pool)

	// The API process dispatches ad-hoc "run now" requests outside of the
	// spinner's own schedule-driven dispatch, so it needs its own active
	// trigger map and dispatch manager even though it never ticks a spinner.
	active := activemap.New(cfg.DangerousFastForward)
	events := eventlog.New(eventSink, logger)
	executor := webhook.NewExecutor(logger, webhook.WithAllowNonRoutable(cfg.AllowNonRoutableWebhooks))
	manager := dispatch.NewManager(runRepo, executor, events, logger, cfg.MaxInFlightDispatches)

	authUsecase := usecase.NewAuthUsecase(projectRepo, []byte(cfg.JWTSigningKey))
	authHandler := handler.NewAuthHandler(authUsecase, logger)

	triggerUsecase := usecase.NewTriggerUsecase(triggerRepo, active, clock.RealClock{}, cfg.CellID)
	triggerHandler := handler.NewTriggerHandler(triggerUsecase, logger)

	runUsecase := usecase.NewRunUsecase(triggerRepo, runRepo, manager)
	runHandler := handler.NewRunHandler(runUsecase, logger)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)

	srv := http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httptransport.NewRouter(triggerHandler, runHandler, authHandler, []byte(cfg.JWTSigningKey), logger),
	}

	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)

	go func() {
		logger.Info("api server started", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("api server shutdown", "error", err)
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}
}

func newLogger(env string, level slog.Level) *slog.Logger {
	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(ctxlog.NewContextHandler(inner))
}
