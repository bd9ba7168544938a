package usecase

import (
	"context"
	"fmt"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
)

// dispatcher is the subset of dispatch.Manager a run request needs.
type dispatcher interface {
	Dispatch(ctx context.Context, run domain.Run, trigger domain.Trigger) error
}

// RunMode selects whether RunUsecase.Run waits for the run to reach a
// terminal status before returning.
type RunMode string

const (
	RunAsync RunMode = "async"
	RunSync  RunMode = "sync"
)

// RunUsecase services explicit run requests (the trigger's own schedule, if
// any, still fires independently through the spinner) and read access to
// run/attempt history.
type RunUsecase struct {
	triggers repository.TriggerRepository
	runs     repository.RunRepository
	dispatch dispatcher
}

func NewRunUsecase(triggers repository.TriggerRepository, runs repository.RunRepository, dispatch dispatcher) *RunUsecase {
	return &RunUsecase{triggers: triggers, runs: runs, dispatch: dispatch}
}

// Run fires triggerName once, outside of its schedule. In RunAsync mode it
// returns as soon as the run id is minted; the caller polls GetRun for the
// outcome. In RunSync mode it blocks until Dispatch returns.
func (u *RunUsecase) Run(ctx context.Context, projectID, triggerName string, mode RunMode) (domain.Run, error) {
	trigger, err := u.triggers.GetByName(ctx, projectID, triggerName)
	if err != nil {
		return domain.Run{}, fmt.Errorf("get trigger: %w", err)
	}

	run := domain.Run{
		ID:        domain.NewRunID(projectID),
		TriggerID: trigger.ID,
		ProjectID: projectID,
		Action:    trigger.Action,
		Payload:   trigger.Payload,
		Status:    domain.RunAttempting,
	}

	if mode == RunSync {
		if err := u.dispatch.Dispatch(ctx, run, trigger); err != nil {
			return domain.Run{}, fmt.Errorf("dispatch run: %w", err)
		}
		return u.runs.GetByID(ctx, projectID, run.ID)
	}

	go func() {
		_ = u.dispatch.Dispatch(context.Background(), run, trigger)
	}()
	return run, nil
}

func (u *RunUsecase) GetRun(ctx context.Context, projectID, id string) (domain.Run, []domain.Attempt, error) {
	run, err := u.runs.GetByID(ctx, projectID, id)
	if err != nil {
		return domain.Run{}, nil, fmt.Errorf("get run: %w", err)
	}
	attempts, err := u.runs.ListAttempts(ctx, projectID, id)
	if err != nil {
		return domain.Run{}, nil, fmt.Errorf("list attempts: %w", err)
	}
	return run, attempts, nil
}

func (u *RunUsecase) ListRuns(ctx context.Context, projectID, triggerName string, page repository.Page) (repository.RunPageResult, error) {
	trigger, err := u.triggers.GetByName(ctx, projectID, triggerName)
	if err != nil {
		return repository.RunPageResult{}, fmt.Errorf("get trigger: %w", err)
	}
	res, err := u.runs.ListByTrigger(ctx, projectID, trigger.ID, page)
	if err != nil {
		return repository.RunPageResult{}, fmt.Errorf("list runs: %w", err)
	}
	return res, nil
}
