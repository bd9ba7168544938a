package repository

import (
	"context"

	"github.com/cronback-io/cronback/internal/domain"
)

// ProjectRepository persists tenants and their hashed API keys.
type ProjectRepository interface {
	Create(ctx context.Context, p domain.Project) (domain.Project, error)
	GetByID(ctx context.Context, id string) (domain.Project, error)

	// FindByAPIKeyPrefix narrows the bcrypt comparison to a small
	// candidate set; the full key is still verified with bcrypt against
	// APIKeyHash by the caller. An empty slice means no candidates.
	FindByAPIKeyPrefix(ctx context.Context, prefix string) ([]domain.Project, error)
}
