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
	"github.com/cronback-io/cronback/internal/spinner"
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

	if err := postgres.Migrate(migrationURL(cfg.DatabaseURL)); err != nil {
		stop()
		log.Fatalf("migrate: %v", err)
	}

	logger.Info("db connected", "cell_id", cfg.CellID)

	metrics.Register()
	checker := health.NewChecker(pool, logger, prometheus.DefaultRegisterer)
	metricsSrv := metrics.NewServer(":"+cfg.MetricsPort, checker)
	go func() {
		logger.Info("metrics server started", "port", cfg.MetricsPort)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	triggerRepo := postgres.NewTriggerRepository(pool)
	runRepo := postgres.NewRunRepository(pool)
	eventSink := postgres.NewEventSink(pool)

	active := activemap.New(cfg.DangerousFastForward)

	triggers, err := triggerRepo.ListActiveByCell(ctx, cfg.CellID)
	if err != nil {
		stop()
		log.Fatalf("load active triggers: %v", err)
	}
	now := time.Now()
	for _, t := range triggers {
		if !t.Schedulable() {
			continue
		}
		if err := active.Install(t, now); err != nil {
			logger.Warn("skipping trigger with no future occurrence", "trigger_id", t.ID, "error", err)
		}
	}
	logger.Info("active trigger map populated", "count", active.Len())

	events := eventlog.New(eventSink, logger)
	executor := webhook.NewExecutor(logger, webhook.WithAllowNonRoutable(cfg.AllowNonRoutableWebhooks))
	manager := dispatch.NewManager(runRepo, executor, events, logger, cfg.MaxInFlightDispatches)

	sp := spinner.New(active, clock.RealClock{}, manager, triggerRepo, logger, spinner.Config{
		TickFloor:          time.Duration(cfg.SpinnerYieldMaxMS) * time.Millisecond,
		MaxTriggersPerTick: cfg.MaxTriggersPerTick,
		CheckpointInterval: time.Duration(cfg.DBFlushS) * time.Second,
		// One worker per semaphore slot: the spinner's own dispatch pool
		// is sized to the same budget the manager enforces, so the
		// hand-off channel is what actually saturates first.
		DispatchWorkers: int(cfg.MaxInFlightDispatches),
	})

	go sp.Run(ctx)

	<-ctx.Done()
	stop()
	sp.Shutdown()

	// give the spinner one more tick floor to flush its final checkpoint
	time.Sleep(time.Duration(cfg.SpinnerYieldMaxMS) * time.Millisecond)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown", "error", err)
	}

	logger.Info("spinner cell shut down")
}

// migrationURL rewrites a plain postgres:// DSN to the pgx5:// scheme
// golang-migrate's pgx/v5 driver expects.
func migrationURL(databaseURL string) string {
	const from = "postgres://"
	const to = "pgx5://"
	if len(databaseURL) >= len(from) && databaseURL[:len(from)] == from {
		return to + databaseURL[len(from):]
	}
	return databaseURL
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
