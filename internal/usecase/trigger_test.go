package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/internal/usecase"
	"github.com/cronback-io/cronback/pkg/clock"
)

type fakeTriggerRepo struct {
	byName map[string]domain.Trigger
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{byName: make(map[string]domain.Trigger)}
}

func (r *fakeTriggerRepo) Upsert(_ context.Context, t domain.Trigger, precondition repository.Precondition) (domain.Trigger, repository.UpsertEffect, error) {
	existing, ok := r.byName[t.Name]
	switch precondition.Kind {
	case repository.PreconditionMustExist:
		if !ok {
			return domain.Trigger{}, "", domain.ErrTriggerNotFound
		}
	case repository.PreconditionMustNotExist:
		if ok {
			return domain.Trigger{}, "", domain.ErrDuplicateName
		}
	}
	if ok {
		t.ID = existing.ID
		r.byName[t.Name] = t
		return t, repository.EffectModified, nil
	}
	r.byName[t.Name] = t
	return t, repository.EffectCreated, nil
}

func (r *fakeTriggerRepo) GetByID(_ context.Context, _, id string) (domain.Trigger, error) {
	for _, t := range r.byName {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.Trigger{}, domain.ErrTriggerNotFound
}

func (r *fakeTriggerRepo) GetByName(_ context.Context, _, name string) (domain.Trigger, error) {
	t, ok := r.byName[name]
	if !ok {
		return domain.Trigger{}, domain.ErrTriggerNotFound
	}
	return t, nil
}

func (r *fakeTriggerRepo) List(_ context.Context, _ string, _ repository.Page, _ repository.ListFilter) (repository.PageResult, error) {
	var out []domain.Trigger
	for _, t := range r.byName {
		out = append(out, t)
	}
	return repository.PageResult{Triggers: out}, nil
}

func (r *fakeTriggerRepo) ListActiveByCell(_ context.Context, _ string) ([]domain.Trigger, error) {
	return nil, nil
}

func (r *fakeTriggerRepo) Checkpoint(_ context.Context, _ []repository.CheckpointRow) error {
	return nil
}

func (r *fakeTriggerRepo) SetStatus(_ context.Context, _, id string, status domain.Status, expectedPrev *domain.Status) (domain.Trigger, error) {
	for name, t := range r.byName {
		if t.ID != id {
			continue
		}
		if expectedPrev != nil && t.Status != *expectedPrev {
			return domain.Trigger{}, domain.ErrPreconditionFailed
		}
		t.Status = status
		r.byName[name] = t
		return t, nil
	}
	return domain.Trigger{}, domain.ErrTriggerNotFound
}

func (r *fakeTriggerRepo) Delete(_ context.Context, _, id string) error {
	for name, t := range r.byName {
		if t.ID == id {
			delete(r.byName, name)
			return nil
		}
	}
	return domain.ErrTriggerNotFound
}

func newTriggerUsecase(repo *fakeTriggerRepo) (*usecase.TriggerUsecase, *activemap.Map) {
	active := activemap.New(false)
	return usecase.NewTriggerUsecase(repo, active, clock.RealClock{}, "cell-1"), active
}

func validCreateInput(name string) usecase.CreateTriggerInput {
	return usecase.CreateTriggerInput{
		ProjectID: "prj_1",
		Name:      name,
		Action: domain.Action{
			Kind:           domain.WebhookActionKind,
			URL:            "https://example.com/hook",
			Method:         "POST",
			TimeoutSeconds: 10,
		},
		RetryPolicy: domain.RetryPolicy{Kind: domain.RetryNone},
	}
}

func TestUpsert_CreatesOnDemandTrigger(t *testing.T) {
	uc, active := newTriggerUsecase(newFakeTriggerRepo())

	stored, effect, err := uc.Upsert(context.Background(), validCreateInput("hook-a"), repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)
	assert.Equal(t, repository.EffectCreated, effect)
	assert.Equal(t, domain.StatusActive, stored.Status)

	// On-demand triggers (no schedule) never enter the active trigger map.
	_, ok := active.NextEarliestDue()
	assert.False(t, ok)
}

func TestUpsert_RecurringTriggerInstallsIntoActiveMap(t *testing.T) {
	uc, active := newTriggerUsecase(newFakeTriggerRepo())

	in := validCreateInput("hook-recurring")
	in.Schedule = &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "* * * * *", Timezone: "UTC"}

	_, _, err := uc.Upsert(context.Background(), in, repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)

	_, ok := active.NextEarliestDue()
	assert.True(t, ok)
}

func TestUpsert_MustNotExistRejectsDuplicate(t *testing.T) {
	repo := newFakeTriggerRepo()
	uc, _ := newTriggerUsecase(repo)

	ctx := context.Background()
	_, _, err := uc.Upsert(ctx, validCreateInput("hook-dup"), repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)

	_, _, err = uc.Upsert(ctx, validCreateInput("hook-dup"), repository.Precondition{Kind: repository.PreconditionMustNotExist})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)
}

func TestUpsert_InvalidActionRejected(t *testing.T) {
	uc, _ := newTriggerUsecase(newFakeTriggerRepo())

	in := validCreateInput("hook-bad")
	in.Action.Method = "TRACE"

	_, _, err := uc.Upsert(context.Background(), in, repository.Precondition{Kind: repository.PreconditionNone})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestPause_RemovesFromActiveMapDueIndex(t *testing.T) {
	repo := newFakeTriggerRepo()
	uc, active := newTriggerUsecase(repo)
	ctx := context.Background()

	in := validCreateInput("hook-pause")
	in.Schedule = &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "* * * * *", Timezone: "UTC"}
	_, _, err := uc.Upsert(ctx, in, repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)

	_, err = uc.Pause(ctx, "prj_1", "hook-pause")
	require.NoError(t, err)

	_, ok := active.NextEarliestDue()
	assert.False(t, ok)
}

func TestPause_AlreadyPausedReturnsError(t *testing.T) {
	repo := newFakeTriggerRepo()
	uc, _ := newTriggerUsecase(repo)
	ctx := context.Background()

	_, _, err := uc.Upsert(ctx, validCreateInput("hook-p2"), repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)
	_, err = uc.Pause(ctx, "prj_1", "hook-p2")
	require.NoError(t, err)

	_, err = uc.Pause(ctx, "prj_1", "hook-p2")
	assert.ErrorIs(t, err, domain.ErrTriggerAlreadyPaused)
}

func TestCancel_IsTerminalAndRemovesFromMap(t *testing.T) {
	repo := newFakeTriggerRepo()
	uc, active := newTriggerUsecase(repo)
	ctx := context.Background()

	in := validCreateInput("hook-cancel")
	in.Schedule = &domain.Schedule{Kind: domain.RecurringSchedule, Cron: "* * * * *", Timezone: "UTC"}
	_, _, err := uc.Upsert(ctx, in, repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)

	_, err = uc.Cancel(ctx, "prj_1", "hook-cancel")
	require.NoError(t, err)

	_, ok := active.NextEarliestDue()
	assert.False(t, ok)

	_, err = uc.Cancel(ctx, "prj_1", "hook-cancel")
	assert.ErrorIs(t, err, domain.ErrTriggerTerminal)
}

func TestDelete_PropagatesNotFound(t *testing.T) {
	uc, _ := newTriggerUsecase(newFakeTriggerRepo())
	err := uc.Delete(context.Background(), "prj_1", "missing")
	assert.True(t, errors.Is(err, domain.ErrTriggerNotFound))
}

func TestUpsert_RunAtScheduleSetsRemainingFromTimepoints(t *testing.T) {
	uc, _ := newTriggerUsecase(newFakeTriggerRepo())

	in := validCreateInput("hook-runat")
	in.Schedule = &domain.Schedule{
		Kind:       domain.RunAtSchedule,
		Timepoints: []time.Time{time.Now().Add(time.Hour), time.Now().Add(2 * time.Hour)},
	}

	stored, _, err := uc.Upsert(context.Background(), in, repository.Precondition{Kind: repository.PreconditionNone})
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Schedule.Remaining)
}
