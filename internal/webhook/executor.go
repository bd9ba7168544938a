// Package webhook executes a single HTTP attempt against a trigger's
// configured webhook action.
package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/projectid"
	"github.com/cronback-io/cronback/internal/requestid"
)

// Executor performs one HTTP attempt per call, validating the destination
// and classifying the outcome. A single Executor is shared across all
// dispatch goroutines in a cell; its client pools connections per
// destination.
type Executor struct {
	client          *http.Client
	logger          *slog.Logger
	allowNonRoutable bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithAllowNonRoutable disables destination-routability validation. It
// exists for local testing against loopback webhook receivers; production
// configuration leaves it false.
func WithAllowNonRoutable(allow bool) Option {
	return func(e *Executor) { e.allowNonRoutable = allow }
}

// NewExecutor builds an Executor with a pooled client that never follows
// redirects — the spec requires exactly one HTTP attempt per call.
func NewExecutor(logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
			CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger.With("component", "webhook_executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attempt is the outcome of a single webhook call.
type Attempt struct {
	ResponseCode *int
	Latency      time.Duration
	Err          error
}

// Succeeded reports whether the response code (if any) is in [200,299].
func (a Attempt) Succeeded() bool {
	return a.Err == nil && a.ResponseCode != nil && *a.ResponseCode >= 200 && *a.ResponseCode < 300
}

// Execute runs one attempt: validate destination, build and send the
// request, classify the response. ctx should already carry the per-attempt
// deadline from the trigger's action TimeoutSeconds.
func (e *Executor) Execute(ctx context.Context, runID, attemptProjectID string, attemptNumber int, action domain.Action, payload *domain.Payload) Attempt {
	start := time.Now()

	if !e.allowNonRoutable {
		if err := ValidateDestination(action.URL); err != nil {
			return Attempt{Err: err, Latency: time.Since(start)}
		}
	}

	var body io.Reader
	if payload != nil && len(payload.Body) > 0 {
		body = bytes.NewReader(payload.Body)
	}

	req, err := http.NewRequestWithContext(ctx, action.Method, action.URL, body)
	if err != nil {
		return Attempt{Err: fmt.Errorf("build request: %w", err), Latency: time.Since(start)}
	}

	if payload != nil {
		for k, v := range payload.Headers {
			req.Header.Set(k, v)
		}
	}
	req.Header.Set("Content-Type", payload.EffectiveContentType())
	req.Header.Set("x-cronback-delivery-attempt-number", strconv.Itoa(attemptNumber))
	req.Header.Set("x-cronback-run-id", runID)
	req.Header.Set("x-cronback-project-id", attemptProjectID)
	if reqID := requestid.FromContext(ctx); reqID != "" {
		req.Header.Set("x-cronback-request-id", reqID)
	}

	ctx = projectid.WithProjectID(ctx, attemptProjectID)

	e.logger.InfoContext(ctx, "sending webhook attempt",
		"run_id", runID, "attempt_number", attemptNumber, "method", action.Method, "url", action.URL)

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.WarnContext(ctx, "webhook attempt failed",
			"run_id", runID, "attempt_number", attemptNumber, "error", err)
		return Attempt{Err: err, Latency: time.Since(start)}
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	latency := time.Since(start)
	code := resp.StatusCode
	e.logger.InfoContext(ctx, "received webhook response",
		"run_id", runID, "attempt_number", attemptNumber, "status", code, "latency", latency)

	return Attempt{ResponseCode: &code, Latency: latency}
}
