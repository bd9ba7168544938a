package repository

import (
	"context"

	"github.com/cronback-io/cronback/internal/domain"
)

// Precondition gates an upsert on the existing row's state.
type Precondition struct {
	Kind PreconditionKind
	// ETag is required for MustExist when the caller wants optimistic
	// concurrency; empty means "must exist, any version".
	ETag string
}

type PreconditionKind int

const (
	PreconditionNone PreconditionKind = iota
	PreconditionMustExist
	PreconditionMustNotExist
)

// UpsertEffect reports what Upsert actually did.
type UpsertEffect string

const (
	EffectCreated      UpsertEffect = "created"
	EffectModified     UpsertEffect = "modified"
	EffectNotModified  UpsertEffect = "not_modified"
)

// ListFilter narrows TriggerRepository.List.
type ListFilter struct {
	Statuses []domain.Status
}

// Page is an opaque cursor-paginated request: Cursor is the id the page
// starts at, inclusive (list is ordered by id descending), Limit bounds the
// page size.
type Page struct {
	Cursor string
	Limit  int
}

// PageResult carries the next cursor (the id of the first row of the next
// page), empty when there are no more rows.
type PageResult struct {
	Triggers   []domain.Trigger
	NextCursor string
}

// TriggerRepository is the durable store of trigger definitions and
// scheduling state. UseCase code and the spinner's startup replay both
// depend on this interface rather than a concrete store, so either can be
// exercised against a fake in tests.
type TriggerRepository interface {
	// Upsert applies precondition against the existing (project_id, name)
	// row, if any, and returns the stored row plus what happened.
	Upsert(ctx context.Context, t domain.Trigger, precondition Precondition) (domain.Trigger, UpsertEffect, error)

	GetByID(ctx context.Context, projectID, id string) (domain.Trigger, error)
	GetByName(ctx context.Context, projectID, name string) (domain.Trigger, error)

	List(ctx context.Context, projectID string, page Page, filter ListFilter) (PageResult, error)

	// ListActiveByCell returns every non-terminal trigger assigned to
	// cellID, used once at spinner startup to repopulate the active
	// trigger map.
	ListActiveByCell(ctx context.Context, cellID string) ([]domain.Trigger, error)

	// Checkpoint applies a batch of scheduling-state updates atomically
	// per trigger; besides the scheduling-state columns it only refreshes
	// updated_at.
	Checkpoint(ctx context.Context, batch []CheckpointRow) error

	// SetStatus transitions a trigger's status, optionally requiring the
	// row to currently be in expectedPrev.
	SetStatus(ctx context.Context, projectID, id string, status domain.Status, expectedPrev *domain.Status) (domain.Trigger, error)

	Delete(ctx context.Context, projectID, id string) error
}

// CheckpointRow is one trigger's scheduling-state update, mirroring
// activemap.CheckpointEntry but decoupled so the store package never
// imports the in-memory map package.
type CheckpointRow struct {
	TriggerID string
	NextDue   int64 // unix seconds
	Remaining int
	Status    domain.Status
	LastRanAt int64 // unix seconds
}
