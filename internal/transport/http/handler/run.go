package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/projectid"
	"github.com/cronback-io/cronback/internal/repository"
	"github.com/cronback-io/cronback/internal/usecase"
)

type RunHandler struct {
	uc     *usecase.RunUsecase
	logger *slog.Logger
}

func NewRunHandler(uc *usecase.RunUsecase, logger *slog.Logger) *RunHandler {
	return &RunHandler{uc: uc, logger: logger.With("component", "run_handler")}
}

// POST /triggers/:name/run?mode=sync|async (default async)
func (h *RunHandler) Run(ctx *gin.Context) {
	mode := usecase.RunAsync
	if ctx.Query("mode") == "sync" {
		mode = usecase.RunSync
	}

	run, err := h.uc.Run(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"), mode)
	if err != nil {
		if errors.Is(err, domain.ErrTriggerNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
			return
		}
		h.logger.Error("run trigger", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	status := http.StatusAccepted
	if mode == usecase.RunSync {
		status = http.StatusOK
	}
	ctx.JSON(status, run)
}

func (h *RunHandler) Get(ctx *gin.Context) {
	run, attempts, err := h.uc.GetRun(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errRunNotFound})
			return
		}
		h.logger.Error("get run", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"run": run, "attempts": attempts})
}

func (h *RunHandler) List(ctx *gin.Context) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))

	result, err := h.uc.ListRuns(ctx.Request.Context(), projectid.FromContext(ctx.Request.Context()), ctx.Param("name"), repository.Page{
		Cursor: ctx.Query("cursor"),
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTriggerNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": errTriggerNotFound})
			return
		}
		h.logger.Error("list runs", "error", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"runs": result.Runs, "next_cursor": result.NextCursor})
}
