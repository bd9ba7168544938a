package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cronback-io/cronback/internal/domain"
)

// authUsecaser is the subset of AuthUsecase the handler needs.
// Defined here (point of use) so tests can inject a fake.
type authUsecaser interface {
	ExchangeAPIKey(ctx context.Context, rawKey string) (string, error)
}

type AuthHandler struct {
	authUsecase authUsecaser
	logger      *slog.Logger
}

func NewAuthHandler(authUsecase authUsecaser, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		logger:      logger.With("component", "auth_handler"),
	}
}

type exchangeAPIKeyRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// POST /auth/token exchanges a long-lived sk_<opaque> API key for a
// short-lived JWT used to authenticate every subsequent admin API request.
func (h *AuthHandler) ExchangeAPIKey(c *gin.Context) {
	var req exchangeAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, err := h.authUsecase.ExchangeAPIKey(c.Request.Context(), req.APIKey)
	if err != nil {
		if errors.Is(err, domain.ErrAPIKeyInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": errAPIKeyInvalid})
			return
		}
		h.logger.Error("exchange api key", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errInternalServer})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}
