package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `id, trigger_id, project_id, action_json, payload_json, status, latest_attempt_id, created_at`

func scanRun(row pgx.Row) (domain.Run, error) {
	var (
		r           domain.Run
		actionJSON  []byte
		payloadJSON []byte
	)
	err := row.Scan(&r.ID, &r.TriggerID, &r.ProjectID, &actionJSON, &payloadJSON, &r.Status, &r.LatestAttemptID, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Run{}, domain.ErrRunNotFound
		}
		return domain.Run{}, err
	}
	if err := json.Unmarshal(actionJSON, &r.Action); err != nil {
		return domain.Run{}, fmt.Errorf("unmarshal action: %w", err)
	}
	if len(payloadJSON) > 0 {
		var p domain.Payload
		if err := json.Unmarshal(payloadJSON, &p); err != nil {
			return domain.Run{}, fmt.Errorf("unmarshal payload: %w", err)
		}
		r.Payload = &p
	}
	return r, nil
}

func (r *RunRepository) Create(ctx context.Context, run domain.Run) (domain.Run, error) {
	actionJSON, err := json.Marshal(run.Action)
	if err != nil {
		return domain.Run{}, fmt.Errorf("marshal action: %w", err)
	}
	var payloadJSON []byte
	if run.Payload != nil {
		payloadJSON, err = json.Marshal(run.Payload)
		if err != nil {
			return domain.Run{}, fmt.Errorf("marshal payload: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO runs (id, trigger_id, project_id, action_json, payload_json, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING %s`, runColumns)

	row := r.pool.QueryRow(ctx, query, run.ID, run.TriggerID, run.ProjectID, actionJSON, payloadJSON, run.Status)
	return scanRun(row)
}

func (r *RunRepository) GetByID(ctx context.Context, projectID, id string) (domain.Run, error) {
	query := fmt.Sprintf(`SELECT %s FROM runs WHERE project_id = $1 AND id = $2`, runColumns)
	return scanRun(r.pool.QueryRow(ctx, query, projectID, id))
}

func (r *RunRepository) ListByTrigger(ctx context.Context, projectID, triggerID string, page repository.Page) (repository.RunPageResult, error) {
	limit := page.Limit
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM runs WHERE project_id = $1 AND trigger_id = $2`, runColumns)
	args := []any{projectID, triggerID}

	if page.Cursor != "" {
		args = append(args, page.Cursor)
		query += fmt.Sprintf(` AND id <= $%d`, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return repository.RunPageResult{}, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return repository.RunPageResult{}, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return repository.RunPageResult{}, err
	}

	var next string
	if len(runs) == limit+1 {
		next = runs[limit].ID
		runs = runs[:limit]
	}
	return repository.RunPageResult{Runs: runs, NextCursor: next}, nil
}

func (r *RunRepository) SetStatus(ctx context.Context, projectID, id string, status domain.RunStatus, latestAttemptID string) error {
	var attemptID *string
	if latestAttemptID != "" {
		attemptID = &latestAttemptID
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE runs SET status = $3, latest_attempt_id = COALESCE($4, latest_attempt_id)
		WHERE project_id = $1 AND id = $2`,
		projectID, id, status, attemptID)
	if err != nil {
		return fmt.Errorf("set run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *RunRepository) CreateAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error) {
	query := `
		INSERT INTO attempts (id, run_id, attempt_number, started_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, run_id, attempt_number, started_at, completed_at,
		          response_code, response_latency_s, error_message`

	row := r.pool.QueryRow(ctx, query, a.ID, a.RunID, a.Number, a.StartedAt)
	return scanAttempt(row)
}

func (r *RunRepository) CompleteAttempt(ctx context.Context, projectID, attemptID string, details domain.WebhookAttemptDetails) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE attempts SET completed_at = NOW(), response_code = $3,
			response_latency_s = $4, error_message = $5
		WHERE run_id IN (SELECT id FROM runs WHERE project_id = $2) AND id = $1`,
		attemptID, projectID, details.ResponseCode, details.ResponseLatencyS, details.ErrorMessage)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (r *RunRepository) ListAttempts(ctx context.Context, projectID, runID string) ([]domain.Attempt, error) {
	query := `
		SELECT a.id, a.run_id, a.attempt_number, a.started_at, a.completed_at,
		       a.response_code, a.response_latency_s, a.error_message
		FROM attempts a
		JOIN runs r ON r.id = a.run_id
		WHERE r.project_id = $1 AND a.run_id = $2
		ORDER BY a.attempt_number ASC`

	rows, err := r.pool.Query(ctx, query, projectID, runID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []domain.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		a           domain.Attempt
		completedAt *time.Time
	)
	err := row.Scan(&a.ID, &a.RunID, &a.Number, &a.StartedAt, &completedAt,
		&a.WebhookDetails.ResponseCode, &a.WebhookDetails.ResponseLatencyS, &a.WebhookDetails.ErrorMessage)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Attempt{}, domain.ErrAttemptNotFound
		}
		return domain.Attempt{}, fmt.Errorf("scan attempt: %w", err)
	}
	a.CompletedAt = completedAt
	return a, nil
}
