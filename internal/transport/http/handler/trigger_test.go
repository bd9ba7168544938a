package handler_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cronback-io/cronback/internal/activemap"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/projectid"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/internal/transport/http/handler"
	"github.com/cronback-io/cronback/internal/usecase"
	"github.com/cronback-io/cronback/pkg/clock"
)

// fakeTriggerRepo is a minimal repository.TriggerRepository for exercising
// the handler's request binding and error-to-status translation.
type fakeTriggerRepo struct {
	byName map[string]domain.Trigger
}

func newFakeTriggerRepo() *fakeTriggerRepo {
	return &fakeTriggerRepo{byName: make(map[string]domain.Trigger)}
}

func (r *fakeTriggerRepo) Upsert(_ context.Context, t domain.Trigger, precondition repository.Precondition) (domain.Trigger, repository.UpsertEffect, error) {
	_, ok := r.byName[t.Name]
	if precondition.Kind == repository.PreconditionMustNotExist && ok {
		return domain.Trigger{}, "", domain.ErrDuplicateName
	}
	effect := repository.EffectCreated
	if ok {
		effect = repository.EffectModified
	}
	t.ETag = "etag-1"
	r.byName[t.Name] = t
	return t, effect, nil
}

func (r *fakeTriggerRepo) GetByID(context.Context, string, string) (domain.Trigger, error) {
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

func (r *fakeTriggerRepo) ListActiveByCell(context.Context, string) ([]domain.Trigger, error) {
	return nil, nil
}

func (r *fakeTriggerRepo) Checkpoint(context.Context, []repository.CheckpointRow) error { return nil }

func (r *fakeTriggerRepo) SetStatus(_ context.Context, _, id string, status domain.Status, _ *domain.Status) (domain.Trigger, error) {
	for name, t := range r.byName {
		if t.ID == id {
			t.Status = status
			r.byName[name] = t
			return t, nil
		}
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

func newTestTriggerEngine(repo *fakeTriggerRepo) *gin.Engine {
	active := activemap.New(false)
	uc := usecase.NewTriggerUsecase(repo, active, clock.RealClock{}, "cell-1")
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := handler.NewTriggerHandler(uc, logger)

	r := gin.New()
	r.Use(withProjectID("prj_1"))
	r.PUT("/triggers/:name", h.Upsert)
	r.GET("/triggers/:name", h.Get)
	r.DELETE("/triggers/:name", h.Delete)
	r.POST("/triggers/:name/pause", h.Pause)
	r.POST("/triggers/:name/resume", h.Resume)
	return r
}

func withProjectID(id string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := projectid.WithProjectID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

const validTriggerBody = `{"action":{"url":"https://example.com/hook","method":"POST"}}`

func TestUpsertTrigger_Create_Returns201WithETag(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/triggers/hook-a", strings.NewReader(validTriggerBody))
	req.Header.Set("Content-Type", "application/json")
	newTestTriggerEngine(newFakeTriggerRepo()).ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("ETag"))
}

func TestUpsertTrigger_InvalidURL_Returns400(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/triggers/hook-b", strings.NewReader(`{"action":{"url":"not-a-url"}}`))
	req.Header.Set("Content-Type", "application/json")
	newTestTriggerEngine(newFakeTriggerRepo()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpsertTrigger_IfNoneMatchStarOnExisting_Returns409(t *testing.T) {
	repo := newFakeTriggerRepo()
	engine := newTestTriggerEngine(repo)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPut, "/triggers/hook-c", strings.NewReader(validTriggerBody))
	req1.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodPut, "/triggers/hook-c", strings.NewReader(validTriggerBody))
	req2.Header.Set("Content-Type", "application/json")
	req2.Header.Set("If-None-Match", "*")
	engine.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusConflict, w2.Code)
}

func TestGetTrigger_Missing_Returns404(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/triggers/missing", nil)
	newTestTriggerEngine(newFakeTriggerRepo()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPauseThenPauseAgain_Returns409(t *testing.T) {
	repo := newFakeTriggerRepo()
	engine := newTestTriggerEngine(repo)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPut, "/triggers/hook-d", strings.NewReader(validTriggerBody))
	req1.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, httptest.NewRequest(http.MethodPost, "/triggers/hook-d/pause", nil))
	require.Equal(t, http.StatusOK, w2.Code)

	w3 := httptest.NewRecorder()
	engine.ServeHTTP(w3, httptest.NewRequest(http.MethodPost, "/triggers/hook-d/pause", nil))
	assert.Equal(t, http.StatusConflict, w3.Code)
}

func TestDeleteTrigger_Success_Returns204(t *testing.T) {
	repo := newFakeTriggerRepo()
	engine := newTestTriggerEngine(repo)

	w1 := httptest.NewRecorder()
	req1 := httptest.NewRequest(http.MethodPut, "/triggers/hook-e", strings.NewReader(validTriggerBody))
	req1.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(w1, req1)
	require.Equal(t, http.StatusCreated, w1.Code)

	w2 := httptest.NewRecorder()
	engine.ServeHTTP(w2, httptest.NewRequest(http.MethodDelete, "/triggers/hook-e", nil))
	assert.Equal(t, http.StatusNoContent, w2.Code)
}
