package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cronback-io/cronback/internal/eventlog"
)

// EventSink persists the lifecycle event stream to the events table. It
// implements eventlog.Sink.
type EventSink struct {
	pool *pgxpool.Pool
}

func NewEventSink(pool *pgxpool.Pool) *EventSink {
	return &EventSink{pool: pool}
}

func (s *EventSink) Append(ctx context.Context, e eventlog.Event) error {
	payload, err := json.Marshal(e.Details)
	if err != nil {
		return fmt.Errorf("marshal event details: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO events (id, project_id, kind, trigger_id, run_id, attempt_id, payload_json, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)`,
		e.ID, e.ProjectID, e.Kind, e.TriggerID, e.RunID, e.AttemptID, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}
