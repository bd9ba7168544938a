package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
)

type TriggerRepository struct {
	pool *pgxpool.Pool
}

func NewTriggerRepository(pool *pgxpool.Pool) *TriggerRepository {
	return &TriggerRepository{pool: pool}
}

type triggerRow struct {
	ID           string
	ProjectID    string
	CellID       string
	Name         string
	Status       domain.Status
	ActionJSON   []byte
	PayloadJSON  []byte
	ScheduleJSON []byte
	Remaining    int
	NextDue      *time.Time
	LastRanAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
	Version      int64
}

func (r triggerRow) toDomain() (domain.Trigger, error) {
	t := domain.Trigger{
		ID:        r.ID,
		ProjectID: r.ProjectID,
		CellID:    r.CellID,
		Name:      r.Name,
		Status:    r.Status,
		LastRanAt: r.LastRanAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		ETag:      fmt.Sprintf("%d", r.Version),
	}
	if err := json.Unmarshal(r.ActionJSON, &t.Action); err != nil {
		return domain.Trigger{}, fmt.Errorf("unmarshal action: %w", err)
	}
	if len(r.PayloadJSON) > 0 {
		var p domain.Payload
		if err := json.Unmarshal(r.PayloadJSON, &p); err != nil {
			return domain.Trigger{}, fmt.Errorf("unmarshal payload: %w", err)
		}
		t.Payload = &p
	}
	if len(r.ScheduleJSON) > 0 {
		var s domain.Schedule
		if err := json.Unmarshal(r.ScheduleJSON, &s); err != nil {
			return domain.Trigger{}, fmt.Errorf("unmarshal schedule: %w", err)
		}
		s.Remaining = r.Remaining
		t.Schedule = &s
	}
	return t, nil
}

const triggerColumns = `id, project_id, cell_id, name, status, action_json, payload_json, schedule_json,
	remaining, next_due, last_ran_at, created_at, updated_at, version`

func scanTrigger(row pgx.Row) (domain.Trigger, error) {
	var tr triggerRow
	err := row.Scan(&tr.ID, &tr.ProjectID, &tr.CellID, &tr.Name, &tr.Status, &tr.ActionJSON, &tr.PayloadJSON,
		&tr.ScheduleJSON, &tr.Remaining, &tr.NextDue, &tr.LastRanAt, &tr.CreatedAt, &tr.UpdatedAt, &tr.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trigger{}, domain.ErrTriggerNotFound
		}
		return domain.Trigger{}, err
	}
	return tr.toDomain()
}

func marshalTrigger(t domain.Trigger) (actionJSON, payloadJSON, scheduleJSON []byte, remaining int, err error) {
	actionJSON, err = json.Marshal(t.Action)
	if err != nil {
		return nil, nil, nil, 0, fmt.Errorf("marshal action: %w", err)
	}
	if t.Payload != nil {
		payloadJSON, err = json.Marshal(t.Payload)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("marshal payload: %w", err)
		}
	}
	if t.Schedule != nil {
		scheduleJSON, err = json.Marshal(t.Schedule)
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("marshal schedule: %w", err)
		}
		remaining = t.Schedule.Remaining
	}
	return actionJSON, payloadJSON, scheduleJSON, remaining, nil
}

// bodyUnchanged reports whether next's action, payload, and schedule are
// identical to the stored row's, ignoring fields (status, Remaining) that
// the scheduling core owns rather than the caller. A PUT that resubmits an
// unchanged body is a no-op: it should not bump version or updated_at.
func bodyUnchanged(next, existing domain.Trigger) bool {
	if next.Action != existing.Action {
		return false
	}
	if !reflect.DeepEqual(next.Payload, existing.Payload) {
		return false
	}
	return scheduleBodyEqual(next.Schedule, existing.Schedule)
}

func scheduleBodyEqual(a, b *domain.Schedule) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind || a.Cron != b.Cron || a.Timezone != b.Timezone {
		return false
	}
	if (a.Limit == nil) != (b.Limit == nil) {
		return false
	}
	if a.Limit != nil && *a.Limit != *b.Limit {
		return false
	}
	return reflect.DeepEqual(a.Timepoints, b.Timepoints)
}

// Upsert applies precondition against the existing (project_id, name) row.
func (r *TriggerRepository) Upsert(ctx context.Context, t domain.Trigger, precondition repository.Precondition) (domain.Trigger, repository.UpsertEffect, error) {
	existing, err := r.GetByName(ctx, t.ProjectID, t.Name)
	found := err == nil
	if err != nil && !errors.Is(err, domain.ErrTriggerNotFound) {
		return domain.Trigger{}, "", err
	}

	switch precondition.Kind {
	case repository.PreconditionMustExist:
		if !found {
			return domain.Trigger{}, "", domain.ErrTriggerNotFound
		}
		if precondition.ETag != "" && precondition.ETag != existing.ETag {
			return domain.Trigger{}, "", domain.ErrPreconditionFailed
		}
	case repository.PreconditionMustNotExist:
		if found {
			return domain.Trigger{}, "", domain.ErrDuplicateName
		}
	}

	if found && bodyUnchanged(t, existing) {
		return existing, repository.EffectNotModified, nil
	}

	actionJSON, payloadJSON, scheduleJSON, remaining, err := marshalTrigger(t)
	if err != nil {
		return domain.Trigger{}, "", err
	}

	if found {
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	}

	query := fmt.Sprintf(`
		INSERT INTO triggers (id, project_id, cell_id, name, status, action_json, payload_json, schedule_json,
			remaining, next_due, last_ran_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), 1)
		ON CONFLICT (project_id, name) DO UPDATE SET
			status = EXCLUDED.status, action_json = EXCLUDED.action_json,
			payload_json = EXCLUDED.payload_json, schedule_json = EXCLUDED.schedule_json,
			remaining = EXCLUDED.remaining, updated_at = NOW(), version = triggers.version + 1
		RETURNING %s`, triggerColumns)

	row := r.pool.QueryRow(ctx, query, t.ID, t.ProjectID, t.CellID, t.Name, t.Status, actionJSON, payloadJSON,
		scheduleJSON, remaining, t.LastRanAt, t.LastRanAt, t.CreatedAt)

	stored, err := scanTrigger(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.Trigger{}, "", domain.ErrDuplicateName
		}
		return domain.Trigger{}, "", err
	}

	effect := repository.EffectCreated
	if found {
		effect = repository.EffectModified
	}
	return stored, effect, nil
}

func (r *TriggerRepository) GetByID(ctx context.Context, projectID, id string) (domain.Trigger, error) {
	query := fmt.Sprintf(`SELECT %s FROM triggers WHERE project_id = $1 AND id = $2`, triggerColumns)
	return scanTrigger(r.pool.QueryRow(ctx, query, projectID, id))
}

func (r *TriggerRepository) GetByName(ctx context.Context, projectID, name string) (domain.Trigger, error) {
	query := fmt.Sprintf(`SELECT %s FROM triggers WHERE project_id = $1 AND name = $2`, triggerColumns)
	return scanTrigger(r.pool.QueryRow(ctx, query, projectID, name))
}

func (r *TriggerRepository) List(ctx context.Context, projectID string, page repository.Page, filter repository.ListFilter) (repository.PageResult, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM triggers WHERE project_id = $1`, triggerColumns)
	args := []any{projectID}

	if page.Cursor != "" {
		args = append(args, page.Cursor)
		query += fmt.Sprintf(` AND id <= $%d`, len(args))
	}
	if len(filter.Statuses) > 0 {
		args = append(args, filter.Statuses)
		query += fmt.Sprintf(` AND status = ANY($%d)`, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repository.PageResult{}, fmt.Errorf("list triggers: %w", err)
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return repository.PageResult{}, err
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return repository.PageResult{}, err
	}

	var next string
	if len(triggers) == limit+1 {
		next = triggers[limit].ID
		triggers = triggers[:limit]
	}
	return repository.PageResult{Triggers: triggers, NextCursor: next}, nil
}

func (r *TriggerRepository) ListActiveByCell(ctx context.Context, cellID string) ([]domain.Trigger, error) {
	query := fmt.Sprintf(`SELECT %s FROM triggers
		WHERE cell_id = $1 AND status IN ('active', 'paused')
		ORDER BY next_due ASC`, triggerColumns)

	rows, err := r.pool.Query(ctx, query, cellID)
	if err != nil {
		return nil, fmt.Errorf("list active by cell: %w", err)
	}
	defer rows.Close()

	var triggers []domain.Trigger
	for rows.Next() {
		t, err := scanTrigger(rows)
		if err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	return triggers, rows.Err()
}

func (r *TriggerRepository) Checkpoint(ctx context.Context, batch []repository.CheckpointRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin checkpoint tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, row := range batch {
		_, err := tx.Exec(ctx, `
			UPDATE triggers
			SET next_due = to_timestamp($2), remaining = $3, status = $4, last_ran_at = to_timestamp($5), updated_at = NOW()
			WHERE id = $1`,
			row.TriggerID, row.NextDue, row.Remaining, row.Status, row.LastRanAt)
		if err != nil {
			return fmt.Errorf("checkpoint trigger %s: %w", row.TriggerID, err)
		}
	}
	return tx.Commit(ctx)
}

func (r *TriggerRepository) SetStatus(ctx context.Context, projectID, id string, status domain.Status, expectedPrev *domain.Status) (domain.Trigger, error) {
	query := `UPDATE triggers SET status = $3, updated_at = NOW(), version = version + 1
		WHERE project_id = $1 AND id = $2`
	args := []any{projectID, id, status}
	if expectedPrev != nil {
		args = append(args, *expectedPrev)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += fmt.Sprintf(` RETURNING %s`, triggerColumns)

	row := r.pool.QueryRow(ctx, query, args...)
	return scanTrigger(row)
}

func (r *TriggerRepository) Delete(ctx context.Context, projectID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM triggers WHERE project_id = $1 AND id = $2`, projectID, id)
	if err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTriggerNotFound
	}
	return nil
}
