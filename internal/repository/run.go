package repository

import (
	"context"

	"github.com/cronback-io/cronback/internal/domain"
)

// RunRepository persists runs and their attempts. A run row is created
// before the first attempt and is immutable except for status and
// latest_attempt_id. An attempt row is inserted by CreateAttempt with its
// number and start time, then updated once by CompleteAttempt with its
// outcome; it is not written again after that.
type RunRepository interface {
	Create(ctx context.Context, r domain.Run) (domain.Run, error)
	GetByID(ctx context.Context, projectID, id string) (domain.Run, error)
	ListByTrigger(ctx context.Context, projectID, triggerID string, page Page) (RunPageResult, error)

	SetStatus(ctx context.Context, projectID, id string, status domain.RunStatus, latestAttemptID string) error

	CreateAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error)
	CompleteAttempt(ctx context.Context, projectID, attemptID string, details domain.WebhookAttemptDetails) error
	ListAttempts(ctx context.Context, projectID, runID string) ([]domain.Attempt, error)
}

// RunPageResult carries a page of runs plus the next opaque cursor.
type RunPageResult struct {
	Runs       []domain.Run
	NextCursor string
}
