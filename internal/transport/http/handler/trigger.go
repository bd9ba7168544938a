package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/projectid"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/internal/usecase"
)

type TriggerHandler struct {
	uc     *usecase.TriggerUsecase
	logger *slog.Logger
}

func NewTriggerHandler(uc *usecase.TriggerUsecase, logger *slog.Logger) *TriggerHandler {
	return &TriggerHandler{uc: uc, logger: logger.With("component", "trigger_handler")}
}

type actionRequest struct {
	URL            string `json:"url"             binding:"required,url,max=2048"`
	Method         string `json:"method"           binding:"omitempty,oneof=GET POST PUT PATCH DELETE HEAD"`
	TimeoutSeconds int    `json:"timeout_seconds"  binding:"omitempty,min=1,max=30"`
}

type scheduleRequest struct {
	Kind       domain.ScheduleKind `json:"kind"       binding:"required,oneof=recurring run_at"`
	Cron       string              `json:"cron"`
	Timezone   string              `json:"timezone"`
	Limit      *int                `json:"limit"`
	Timepoints []time.Time         `json:"timepoints"`
}

type payloadRequest struct {
	Headers     map[string]string `json:"headers,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Body        []byte            `json:"body,omitempty"`
}

type retryPolicyRequest struct {
	Kind            domain.RetryPolicyKind `json:"kind"              binding:"omitempty,oneof=none simple exponential"`
	MaxNumAttempts  int                    `json:"max_num_attempts"`
	DelaySeconds    int                    `json:"delay_seconds"`
	MaxDelaySeconds int                    `json:"max_delay_seconds"`
}

type createTriggerRequest struct {
	Name        string              `json:"name"         binding:"max=64"`
	Schedule    *scheduleRequest    `json:"schedule,omitempty"`
	Action      actionRequest       `json:"action"       binding:"required"`
	Payload     *payloadRequest     `json:"payload,omitempty"`
	RetryPolicy *retryPolicyRequest `json:"retry_policy,omitempty"`
}

func toUsecaseInput(projectID string, req createTriggerRequest) usecase.CreateTriggerInput {
	method := req.Action.Method
	if method == "" {
		method = "POST"
	}
	timeout := req.Action.TimeoutSeconds
	if timeout == 0 {
		timeout = 30
	}

	var schedule *domain.Schedule
	if req.Schedule != nil {
		schedule = &domain.Schedule{
			Kind:       req.Schedule.Kind,
			Cron:       req.Schedule.Cron,
			Timezone:   req.Schedule.Timezone,
			Limit:      req.Schedule.Limit,
			Timepoints: req.Schedule.Timepoints,
		}
	}

	var payload *domain.Payload
	if req.Payload != nil {
		payload = &domain.Payload{
			Headers:     req.Payload.Headers,
			ContentType: req.Payload.ContentType,
			Body:        req.Payload.Body,
		}
	}

	retryPolicy := domain.RetryPolicy{Kind: domain.RetryNone}
	if req.RetryPolicy != nil {
		retryPolicy = domain.RetryPolicy{
			Kind:            req.RetryPolicy.Kind,
			MaxNumAttempts:  req.RetryPolicy.MaxNumAttempts,
			DelaySeconds:    req.RetryPolicy.DelaySeconds,
			MaxDelaySeconds: req.RetryPolicy.MaxDelaySeconds,
		}
	}

	return usecase.CreateTriggerInput{
		ProjectID: projectID,
		Name:      req.Name,
		Schedule:  schedule,
		Action: domain.Action{
			Kind:           domain.WebhookActionKind,
			URL:            req.Action.URL,
			Method:         method,
			TimeoutSeconds: timeout,
		},
		Payload:     payload,
		RetryPolicy: retryPolicy,
	}
}

func translateUpsertErr(ctx *gin.Context, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrDuplicateName):
		ctx.JSON(http.StatusConflict, gin.H{"error": errDuplicateName})
	case errors.Is(err, domain.ErrPreconditionFailed):
		ctx.JSON(http.StatusPreconditionFailed, gin.H{"error": errPreconditionFailed})
	case errors.Is(err, domain.ErrTriggerNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
	case errors.Is(err, domain.ErrInvalidAction), errors.Is(err, domain.ErrInvalidCron),
		errors.Is(err, domain.ErrInvalidTimezone), errors.Is(err, domain.ErrPayloadTooLarge),
		errors.Is(err, domain.ErrInvalidRetryPolicy):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error("upsert trigger", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}

// PUT /triggers/:name — create-or-replace, idempotent by name.
func (h *TriggerHandler) Upsert(ctx *gin.Context) {
	var req createTriggerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.Name = ctx.Param("name")

	precondition := repository.Precondition{Kind: repository.PreconditionNone}
	if ifMatch := ctx.GetHeader("If-Match"); ifMatch != "" {
		precondition = repository.Precondition{Kind: repository.PreconditionMustExist, ETag: ifMatch}
	}
	if ctx.GetHeader("If-None-Match") == "*" {
		precondition = repository.Precondition{Kind: repository.PreconditionMustNotExist}
	}

	stored, effect, err := h.uc.Upsert(ctx.Request.Context(), toUsecaseInput(projectid.FromContext(ctx.Request.Context()), req), precondition)
	if err != nil {
		translateUpsertErr(ctx, h.logger, err)
		return
	}

	ctx.Header("ETag", stored.ETag)
	if effect == repository.EffectNotModified {
		// RFC 7232 304 responses carry no body.
		ctx.Status(http.StatusNotModified)
		return
	}

	status := http.StatusOK
	if effect == repository.EffectCreated {
		status = http.StatusCreated
	}
	ctx.JSON(status, stored)
}

func (h *TriggerHandler) Get(ctx *gin.Context) {
	t, err := h.uc.Get(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"))
	if err != nil {
		if errors.Is(err, domain.ErrTriggerNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
			return
		}
		h.logger.Error("get trigger", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.Header("ETag", t.ETag)
	ctx.JSON(http.StatusOK, t)
}

func (h *TriggerHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.List(ctx.Request.Context(), usecase.ListTriggersInput{
		ProjectID: projectid.FromContext(ctx.Request.Context()),
		Cursor:    ctx.Query("cursor"),
		Limit:     limit,
	})
	if err != nil {
		h.logger.Error("list triggers", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"triggers": result.Triggers, "next_cursor": result.NextCursor})
}

func (h *TriggerHandler) Pause(ctx *gin.Context) {
	t, err := h.uc.Pause(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"))
	if err != nil {
		h.translateStateErr(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, t)
}

func (h *TriggerHandler) Resume(ctx *gin.Context) {
	t, err := h.uc.Resume(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"))
	if err != nil {
		h.translateStateErr(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, t)
}

func (h *TriggerHandler) Cancel(ctx *gin.Context) {
	t, err := h.uc.Cancel(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"))
	if err != nil {
		h.translateStateErr(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, t)
}

func (h *TriggerHandler) Delete(ctx *gin.Context) {
	err := h.uc.Delete(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"))
	if err != nil {
		if errors.Is(err, domain.ErrTriggerNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
			return
		}
		h.logger.Error("delete trigger", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.Status(http.StatusNoContent)
}

func (h *TriggerHandler) translateStateErr(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrTriggerNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
	case errors.Is(err, domain.ErrTriggerTerminal):
		ctx.JSON(http.StatusConflict, gin.H{"error": errTriggerTerminal})
	case errors.Is(err, domain.ErrTriggerNotPaused):
		ctx.JSON(http.StatusConflict, gin.H{"error": errTriggerNotPaused})
	case errors.Is(err, domain.ErrTriggerAlreadyPaused):
		ctx.JSON(http.StatusConflict, gin.H{"error": errTriggerAlreadyPaused})
	default:
		h.logger.Error("trigger state transition", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
	}
}
