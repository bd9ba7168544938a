package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/pkg/clock"
)

// TriggerUsecase owns trigger CRUD and keeps the active trigger map in sync
// with what is durably stored: every mutation that changes scheduling
// eligibility is written to the store first, then reflected into the map.
type TriggerUsecase struct {
	triggers repository.TriggerRepository
	active   *activemap.Map
	clock    clock.Clock
	cellID   string
}

func NewTriggerUsecase(triggers repository.TriggerRepository, active *activemap.Map, clk clock.Clock, cellID string) *TriggerUsecase {
	return &TriggerUsecase{triggers: triggers, active: active, clock: clk, cellID: cellID}
}

// CreateTriggerInput is the caller-supplied shape of a new trigger.
type CreateTriggerInput struct {
	ProjectID   string
	Name        string
	Schedule    *domain.Schedule
	Action      domain.Action
	Payload     *domain.Payload
	RetryPolicy domain.RetryPolicy
}

func (u *TriggerUsecase) validate(in CreateTriggerInput) error {
	if err := domain.ValidateName(in.Name); err != nil {
		return err
	}
	if err := in.Action.Validate(); err != nil {
		return err
	}
	if err := in.Payload.Validate(); err != nil {
		return err
	}
	if err := in.Schedule.Validate(); err != nil {
		return err
	}
	return in.RetryPolicy.Validate()
}

// Upsert creates or replaces the named trigger under precondition, matching
// the store's PUT semantics. It returns the stored row and what happened.
func (u *TriggerUsecase) Upsert(ctx context.Context, in CreateTriggerInput, precondition repository.Precondition) (domain.Trigger, repository.UpsertEffect, error) {
	if err := u.validate(in); err != nil {
		return domain.Trigger{}, "", err
	}

	now := u.clock.Now()
	t := domain.Trigger{
		ID:          domain.NewTriggerID(in.ProjectID),
		ProjectID:   in.ProjectID,
		CellID:      u.cellID,
		Name:        in.Name,
		Schedule:    in.Schedule,
		Action:      in.Action,
		Payload:     in.Payload,
		RetryPolicy: in.RetryPolicy,
		Status:      domain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.Schedule != nil && in.Schedule.Kind == domain.RunAtSchedule {
		t.Schedule.Remaining = len(in.Schedule.Timepoints)
	}

	stored, effect, err := u.triggers.Upsert(ctx, t, precondition)
	if err != nil {
		return domain.Trigger{}, "", fmt.Errorf("upsert trigger: %w", err)
	}

	if effect != repository.EffectNotModified && stored.Schedulable() {
		if err := u.installOrUpdate(stored, now); err != nil {
			return domain.Trigger{}, "", err
		}
	}
	return stored, effect, nil
}

func (u *TriggerUsecase) installOrUpdate(t domain.Trigger, now time.Time) error {
	if err := u.active.Install(t, now); err != nil {
		if err == domain.ErrNoFutureOccurrence {
			return nil
		}
		return err
	}
	return nil
}

func (u *TriggerUsecase) Get(ctx context.Context, projectID, name string) (domain.Trigger, error) {
	t, err := u.triggers.GetByName(ctx, projectID, name)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("get trigger: %w", err)
	}
	return t, nil
}

type ListTriggersInput struct {
	ProjectID string
	Cursor    string
	Limit     int
	Statuses  []domain.Status
}

func (u *TriggerUsecase) List(ctx context.Context, in ListTriggersInput) (repository.PageResult, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	res, err := u.triggers.List(ctx, in.ProjectID, repository.Page{Cursor: in.Cursor, Limit: limit}, repository.ListFilter{Statuses: in.Statuses})
	if err != nil {
		return repository.PageResult{}, fmt.Errorf("list triggers: %w", err)
	}
	return res, nil
}

func (u *TriggerUsecase) Pause(ctx context.Context, projectID, name string) (domain.Trigger, error) {
	t, err := u.triggers.GetByName(ctx, projectID, name)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("get trigger: %w", err)
	}
	if err := t.CanPause(); err != nil {
		return domain.Trigger{}, err
	}

	paused := domain.StatusPaused
	stored, err := u.triggers.SetStatus(ctx, projectID, t.ID, paused, &t.Status)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("pause trigger: %w", err)
	}
	u.active.Pause(t.ID)
	return stored, nil
}

func (u *TriggerUsecase) Resume(ctx context.Context, projectID, name string) (domain.Trigger, error) {
	t, err := u.triggers.GetByName(ctx, projectID, name)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("get trigger: %w", err)
	}
	if err := t.CanResume(); err != nil {
		return domain.Trigger{}, err
	}

	active := domain.StatusActive
	prev := domain.StatusPaused
	stored, err := u.triggers.SetStatus(ctx, projectID, t.ID, active, &prev)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("resume trigger: %w", err)
	}

	now := u.clock.Now()
	if stored.Schedulable() {
		if err := u.active.Resume(t.ID, now); err != nil && err != domain.ErrNoFutureOccurrence {
			return domain.Trigger{}, err
		}
	}
	return stored, nil
}

func (u *TriggerUsecase) Cancel(ctx context.Context, projectID, name string) (domain.Trigger, error) {
	t, err := u.triggers.GetByName(ctx, projectID, name)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("get trigger: %w", err)
	}
	if err := t.CanCancel(); err != nil {
		return domain.Trigger{}, err
	}

	cancelled := domain.StatusCancelled
	stored, err := u.triggers.SetStatus(ctx, projectID, t.ID, cancelled, nil)
	if err != nil {
		return domain.Trigger{}, fmt.Errorf("cancel trigger: %w", err)
	}
	u.active.Remove(t.ID)
	return stored, nil
}

func (u *TriggerUsecase) Delete(ctx context.Context, projectID, name string) error {
	t, err := u.triggers.GetByName(ctx, projectID, name)
	if err != nil {
		return fmt.Errorf("get trigger: %w", err)
	}
	if err := u.triggers.Delete(ctx, projectID, t.ID); err != nil {
		return fmt.Errorf("delete trigger: %w", err)
	}
	u.active.Remove(t.ID)
	return nil
}
