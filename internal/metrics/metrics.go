package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cronback-io/cronback/internal/health"
)

var (
	// Spinner metrics

	SpinnerTickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cronback",
		Name:      "spinner_tick_duration_seconds",
		Help:      "Time taken to drain and dispatch one spinner tick.",
		Buckets:   prometheus.DefBuckets,
	})

	SpinnerActiveTriggers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cronback",
		Name:      "spinner_active_triggers",
		Help:      "Number of triggers currently carried in the active trigger map.",
	})

	SpinnerTriggersDueTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cronback",
		Name:      "spinner_triggers_due_total",
		Help:      "Total triggers drained from the active trigger map as due.",
	})

	SpinnerCheckpointDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cronback",
		Name:      "spinner_checkpoint_duration_seconds",
		Help:      "Time taken to flush dirty active trigger map entries to the store.",
		Buckets:   prometheus.DefBuckets,
	})

	// Dispatch metrics

	DispatchInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cronback",
		Name:      "dispatch_runs_in_flight",
		Help:      "Number of runs the dispatch manager is currently attempting.",
	})

	DispatchRunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cronback",
		Name:      "dispatch_runs_completed_total",
		Help:      "Total runs reaching a terminal status, by outcome.",
	}, []string{"outcome"})

	DispatchAttemptDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cronback",
		Name:      "dispatch_attempt_duration_seconds",
		Help:      "Duration of a single webhook attempt.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cronback",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cronback",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		SpinnerTickDuration,
		SpinnerActiveTriggers,
		SpinnerTriggersDueTotal,
		SpinnerCheckpointDuration,
		DispatchInFlight,
		DispatchRunsCompletedTotal,
		DispatchAttemptDuration,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics alongside /healthz and /readyz, so both the
// spinner and API binaries expose one port for scraping and liveness
// probes.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		if result.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(result)
	})
	return &http.Server{Addr: addr, Handler: mux}
}
