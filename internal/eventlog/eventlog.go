// Package eventlog emits the structured, append-only lifecycle event stream
// consumed by metric collectors and notification fan-out external to the
// scheduler core.
package eventlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind discriminates the event types the scheduler core emits.
type Kind string

const (
	RunCreated          Kind = "run_created"
	AttemptCreated       Kind = "attempt_created"
	AttemptCompleted     Kind = "attempt_completed"
	RunSucceeded         Kind = "run_succeeded"
	RunFailed            Kind = "run_failed"
	TriggerStatusChanged Kind = "trigger_status_changed"
)

// Event is one append-only record. Details carries kind-specific fields
// (e.g. attempt_number, response_code, previous_status) and is marshaled
// as-is by the sink.
type Event struct {
	ID        string    `json:"id"`
	Kind      Kind      `json:"kind"`
	ProjectID string    `json:"project_id"`
	TriggerID string    `json:"trigger_id"`
	RunID     string    `json:"run_id,omitempty"`
	AttemptID string    `json:"attempt_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Details   any       `json:"details,omitempty"`
}

// Sink durably appends an event. Implementations must not mutate past
// records: the log is write-once.
type Sink interface {
	Append(ctx context.Context, e Event) error
}

// Log is the component-facing API: it mints event ids, fills in
// CreatedAt, and writes through to Sink. A write failure is logged and
// swallowed — the scheduler's dispatch pipeline must never block run
// progress on the event log being available, mirroring the at-least-once
// posture the rest of the system already accepts for delivery.
type Log struct {
	sink   Sink
	logger *slog.Logger
}

// New constructs a Log writing through to sink.
func New(sink Sink, logger *slog.Logger) *Log {
	return &Log{sink: sink, logger: logger.With("component", "eventlog")}
}

func (l *Log) emit(ctx context.Context, kind Kind, projectID, triggerID, runID, attemptID string, details any) {
	e := Event{
		ID:        ulid.Make().String(),
		Kind:      kind,
		ProjectID: projectID,
		TriggerID: triggerID,
		RunID:     runID,
		AttemptID: attemptID,
		CreatedAt: time.Now().UTC(),
		Details:   details,
	}
	if err := l.sink.Append(ctx, e); err != nil {
		l.logger.ErrorContext(ctx, "event log append failed",
			"kind", kind, "project_id", projectID, "trigger_id", triggerID, "run_id", runID, "error", err)
	}
}

// RunCreatedEvent records that a run was persisted as Attempting.
func (l *Log) RunCreatedEvent(ctx context.Context, projectID, triggerID, runID string) {
	l.emit(ctx, RunCreated, projectID, triggerID, runID, "", nil)
}

// AttemptCreatedEvent records that an attempt is about to execute.
func (l *Log) AttemptCreatedEvent(ctx context.Context, projectID, triggerID, runID, attemptID string, attemptNumber int) {
	l.emit(ctx, AttemptCreated, projectID, triggerID, runID, attemptID, map[string]any{"attempt_number": attemptNumber})
}

// AttemptCompletedEvent records an attempt's outcome.
func (l *Log) AttemptCompletedEvent(ctx context.Context, projectID, triggerID, runID, attemptID string, responseCode *int, latencySeconds float64) {
	l.emit(ctx, AttemptCompleted, projectID, triggerID, runID, attemptID, map[string]any{
		"response_code":     responseCode,
		"response_latency_s": latencySeconds,
	})
}

// RunSucceededEvent records a run's terminal success.
func (l *Log) RunSucceededEvent(ctx context.Context, projectID, triggerID, runID string) {
	l.emit(ctx, RunSucceeded, projectID, triggerID, runID, "", nil)
}

// RunFailedEvent records a run's terminal failure.
func (l *Log) RunFailedEvent(ctx context.Context, projectID, triggerID, runID, reason string) {
	l.emit(ctx, RunFailed, projectID, triggerID, runID, "", map[string]any{"reason": reason})
}

// TriggerStatusChangedEvent records a trigger moving between states.
func (l *Log) TriggerStatusChangedEvent(ctx context.Context, projectID, triggerID, from, to string) {
	l.emit(ctx, TriggerStatusChanged, projectID, triggerID, "", "", map[string]any{"from": from, "to": to})
}
