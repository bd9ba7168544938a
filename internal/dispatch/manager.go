// Package dispatch owns a run's lifecycle from the moment the spinner hands
// it off to a terminal status: persist the run, execute attempts through
// the retry policy, record attempts, and emit lifecycle events.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/eventlog"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/internal/retry"
	"github.com/cronback-io/cronback/internal/webhook"
)

// executor is the subset of webhook.Executor the manager needs; defined at
// the point of use so tests can inject a fake.
type executor interface {
	Execute(ctx context.Context, runID, projectID string, attemptNumber int, action domain.Action, payload *domain.Payload) webhook.Attempt
}

// Manager runs on the regular goroutine pool, bounding in-flight attempts
// with a semaphore. When the semaphore is saturated, Dispatch blocks; the
// spinner's own bounded hand-off channel and fixed dispatch worker pool
// (internal/spinner) are what actually propagate that block back into the
// tick loop.
type Manager struct {
	runs     repository.RunRepository
	executor executor
	events   *eventlog.Log
	logger   *slog.Logger
	sem      *semaphore.Weighted

	shutdownGrace time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithShutdownGrace sets how long Close waits for in-flight dispatches to
// release their semaphore slots before returning.
func WithShutdownGrace(d time.Duration) Option {
	return func(m *Manager) { m.shutdownGrace = d }
}

// NewManager builds a Manager whose concurrency is bounded by maxInFlight.
func NewManager(runs repository.RunRepository, exec executor, events *eventlog.Log, logger *slog.Logger, maxInFlight int64, opts ...Option) *Manager {
	m := &Manager{
		runs:          runs,
		executor:      exec,
		events:        events,
		logger:        logger.With("component", "dispatch_manager"),
		sem:           semaphore.NewWeighted(maxInFlight),
		shutdownGrace: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// reasonShutdown is the error_message recorded when a run is aborted by
// cooperative shutdown mid-retry-sleep.
const reasonShutdown = "scheduler_shutdown"

// Dispatch takes ownership of run until it reaches a terminal status. It
// acquires a semaphore slot before doing any work, so a saturated manager
// makes the caller (the spinner's hand-off) block rather than grow
// unbounded in-flight work.
func (m *Manager) Dispatch(ctx context.Context, run domain.Run, trigger domain.Trigger) error {
	if err := m.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer m.sem.Release(1)

	run.Status = domain.RunAttempting
	stored, err := m.runs.Create(ctx, run)
	if err != nil {
		return err
	}
	m.events.RunCreatedEvent(ctx, stored.ProjectID, stored.TriggerID, stored.ID)

	// A panic past this point marks the run Failed with reason
	// "dispatch_panic" instead of taking down the calling goroutine.
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "dispatch panicked", "run_id", stored.ID, "panic", r)
			_ = m.finish(ctx, stored, domain.RunFailed, "dispatch_panic")
		}
	}()

	it := retry.NewIterator(trigger.RetryPolicy)
	attemptNumber := 1

	for {
		attempt, err := m.runAttempt(ctx, stored, attemptNumber)
		if err != nil {
			m.logger.ErrorContext(ctx, "persist attempt failed", "run_id", stored.ID, "error", err)
		}

		if attempt.Succeeded() {
			return m.finish(ctx, stored, domain.RunSucceeded, "")
		}

		delay, ok := it.NextDelay()
		if !ok {
			return m.finish(ctx, stored, domain.RunFailed, attemptFailureReason(attempt))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return m.finish(ctx, stored, domain.RunFailed, reasonShutdown)
		}
		attemptNumber++
	}
}

func (m *Manager) runAttempt(ctx context.Context, run domain.Run, attemptNumber int) (webhook.Attempt, error) {
	attemptID := domain.NewAttemptID(run.ProjectID)
	m.events.AttemptCreatedEvent(ctx, run.ProjectID, run.TriggerID, run.ID, attemptID, attemptNumber)

	timeout := time.Duration(run.Action.TimeoutSeconds) * time.Second
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := m.executor.Execute(attemptCtx, run.ID, run.ProjectID, attemptNumber, run.Action, run.Payload)

	details := domain.WebhookAttemptDetails{
		ResponseCode:     result.ResponseCode,
		ResponseLatencyS: result.Latency.Seconds(),
	}
	if result.Err != nil {
		msg := result.Err.Error()
		details.ErrorMessage = &msg
	}

	a := domain.Attempt{
		ID:             attemptID,
		RunID:          run.ID,
		Number:         attemptNumber,
		WebhookDetails: details,
		StartedAt:      time.Now().UTC(),
	}
	if _, err := m.runs.CreateAttempt(ctx, a); err != nil {
		return result, err
	}
	if err := m.runs.CompleteAttempt(ctx, run.ProjectID, attemptID, details); err != nil {
		return result, err
	}
	if err := m.runs.SetStatus(ctx, run.ProjectID, run.ID, domain.RunAttempting, attemptID); err != nil {
		return result, err
	}

	m.events.AttemptCompletedEvent(ctx, run.ProjectID, run.TriggerID, run.ID, attemptID, result.ResponseCode, result.Latency.Seconds())
	return result, nil
}

func (m *Manager) finish(ctx context.Context, run domain.Run, status domain.RunStatus, reason string) error {
	if err := m.runs.SetStatus(ctx, run.ProjectID, run.ID, status, ""); err != nil {
		return err
	}
	if status == domain.RunSucceeded {
		m.events.RunSucceededEvent(ctx, run.ProjectID, run.TriggerID, run.ID)
		return nil
	}
	m.events.RunFailedEvent(ctx, run.ProjectID, run.TriggerID, run.ID, reason)
	return nil
}

func attemptFailureReason(a webhook.Attempt) string {
	if a.Err != nil {
		return a.Err.Error()
	}
	if a.ResponseCode != nil {
		return "non-2xx response"
	}
	return "unknown failure"
}

// Close waits up to the configured grace period for in-flight attempts to
// release their semaphore slots, then returns regardless.
func (m *Manager) Close(maxInFlight int64) {
	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownGrace)
	defer cancel()
	_ = m.sem.Acquire(ctx, maxInFlight)
}
