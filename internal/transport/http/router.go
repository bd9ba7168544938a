package httptransport

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/cronback-io/cronback/internal/transport/http/handler"
	"github.com/cronback-io/cronback/internal/transport/http/middleware"
)

func NewRouter(triggerHandler *handler.TriggerHandler, runHandler *handler.RunHandler, authHandler *handler.AuthHandler, jwtKey []byte, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), sloggin.New(logger), middleware.RequestID(), middleware.Metrics())

	// Public auth route
	r.POST("/auth/token", authHandler.ExchangeAPIKey)

	// Protected trigger routes
	triggers := r.Group("/triggers", middleware.Auth(jwtKey))
	triggers.GET("", triggerHandler.List)
	triggers.PUT("/:name", triggerHandler.Upsert)
	triggers.GET("/:name", triggerHandler.Get)
	triggers.DELETE("/:name", triggerHandler.Delete)
	triggers.POST("/:name/pause", triggerHandler.Pause)
	triggers.POST("/:name/resume", triggerHandler.Resume)
	triggers.POST("/:name/cancel", triggerHandler.Cancel)
	triggers.POST("/:name/run", runHandler.Run)
	triggers.GET("/:name/runs", runHandler.List)

	// Protected run routes
	runs := r.Group("/runs", middleware.Auth(jwtKey))
	runs.GET("/:id", runHandler.Get)

	return r
}
