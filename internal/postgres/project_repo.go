package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cronback-io/cronback/internal/domain"
)

type ProjectRepository struct {
	pool *pgxpool.Pool
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{pool: pool}
}

const projectColumns = `id, name, cell_id, api_key_hash, api_key_prefix, created_at`

func scanProject(row pgx.Row) (domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.CellID, &p.APIKeyHash, &p.APIKeyPrefix, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Project{}, domain.ErrProjectNotFound
		}
		return domain.Project{}, fmt.Errorf("scan project: %w", err)
	}
	return p, nil
}

func (r *ProjectRepository) Create(ctx context.Context, p domain.Project) (domain.Project, error) {
	query := fmt.Sprintf(`
		INSERT INTO projects (id, name, cell_id, api_key_hash, api_key_prefix, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING %s`, projectColumns)

	row := r.pool.QueryRow(ctx, query, p.ID, p.Name, p.CellID, p.APIKeyHash, p.APIKeyPrefix)
	return scanProject(row)
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (domain.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE id = $1`, projectColumns)
	return scanProject(r.pool.QueryRow(ctx, query, id))
}

// FindByAPIKeyPrefix returns every project whose stored lookup prefix
// matches; the caller still runs bcrypt against each candidate's full hash.
func (r *ProjectRepository) FindByAPIKeyPrefix(ctx context.Context, prefix string) ([]domain.Project, error) {
	query := fmt.Sprintf(`SELECT %s FROM projects WHERE api_key_prefix = $1`, projectColumns)

	rows, err := r.pool.Query(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("find by api key prefix: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
