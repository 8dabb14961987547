package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProjectRepository handles persistence for yearly projects.
type ProjectRepository struct {
	db *pgxpool.Pool
}

// NewProjectRepository constructs a ProjectRepository.
func NewProjectRepository(db *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project.
func (r *ProjectRepository) Create(ctx context.Context, year int, name string, enrolmentLimit int, singleEventsAllowed bool) (*model.Project, error) {
	p := &model.Project{
		ID:                  uuid.New(),
		Year:                year,
		Name:                name,
		EnrolmentLimit:      enrolmentLimit,
		SingleEventsAllowed: singleEventsAllowed,
		CreatedAt:           time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO projects (id, year, name, enrolment_limit, single_events_allowed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		p.ID, p.Year, p.Name, p.EnrolmentLimit, p.SingleEventsAllowed, p.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return p, nil
}

// GetByID returns a single project.
func (r *ProjectRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	return r.get(ctx, `WHERE id = $1`, id)
}

// GetByYear returns the project bound to a calendar year. This is the
// ResolveProject lookup used once at child creation.
func (r *ProjectRepository) GetByYear(ctx context.Context, year int) (*model.Project, error) {
	return r.get(ctx, `WHERE year = $1`, year)
}

func (r *ProjectRepository) get(ctx context.Context, where string, arg any) (*model.Project, error) {
	var p model.Project
	err := r.db.QueryRow(ctx,
		`SELECT id, year, name, enrolment_limit, single_events_allowed, created_at
		 FROM projects `+where,
		arg,
	).Scan(&p.ID, &p.Year, &p.Name, &p.EnrolmentLimit, &p.SingleEventsAllowed, &p.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("project")
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// List returns all projects ordered by year descending.
func (r *ProjectRepository) List(ctx context.Context) ([]model.Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, year, name, enrolment_limit, single_events_allowed, created_at
		 FROM projects
		 ORDER BY year DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Year, &p.Name, &p.EnrolmentLimit, &p.SingleEventsAllowed, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
