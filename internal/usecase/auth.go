package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cronback-io/cronback/internal/apikey"
	"github.com/cronback-io/cronback/internal/domain"
	"github.com/cronback-io/cronback/internal/repository"
)

const defaultJWTTTL = 15 * time.Minute

// AuthUsecase exchanges a project's long-lived sk_<opaque> API key for a
// short-lived JWT carrying the project id, so the admin API's request path
// only ever verifies a cheap HMAC rather than running bcrypt per request.
type AuthUsecase struct {
	projects repository.ProjectRepository
	jwtKey   []byte
	jwtTTL   time.Duration
}

func NewAuthUsecase(projects repository.ProjectRepository, jwtKey []byte) *AuthUsecase {
	return &AuthUsecase{projects: projects, jwtKey: jwtKey, jwtTTL: defaultJWTTTL}
}

// ExchangeAPIKey verifies rawKey against the project it names and returns a
// signed JWT scoped to that project.
func (u *AuthUsecase) ExchangeAPIKey(ctx context.Context, rawKey string) (string, error) {
	prefix, err := apikey.LookupPrefix(rawKey)
	if err != nil {
		return "", domain.ErrAPIKeyInvalid
	}

	candidates, err := u.projects.FindByAPIKeyPrefix(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("find by api key prefix: %w", err)
	}

	var project *domain.Project
	for i := range candidates {
		if apikey.Verify(rawKey, candidates[i].APIKeyHash) {
			project = &candidates[i]
			break
		}
	}
	if project == nil {
		return "", domain.ErrAPIKeyInvalid
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": project.ID,
		"iat": now.Unix(),
		"exp": now.Add(u.jwtTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.jwtKey)
	if err != nil {
		return "", fmt.Errorf("sign jwt: %w", err)
	}
	return signed, nil
}
