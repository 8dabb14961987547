package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChildRepository handles persistence for children and their guardians.
type ChildRepository struct {
	db *pgxpool.Pool
}

// NewChildRepository constructs a ChildRepository.
func NewChildRepository(db *pgxpool.Pool) *ChildRepository {
	return &ChildRepository{db: db}
}

// Create inserts a new child bound to the given project.
func (r *ChildRepository) Create(ctx context.Context, projectID uuid.UUID, name string, birthdate time.Time) (*model.Child, error) {
	c := &model.Child{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Birthdate: birthdate,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO children (id, project_id, name, birthdate, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.ProjectID, c.Name, c.Birthdate, c.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert child: %w", err)
	}
	return c, nil
}

// GetByID returns a single child.
func (r *ChildRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Child, error) {
	var c model.Child
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, name, birthdate, created_at
		 FROM children WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ProjectID, &c.Name, &c.Birthdate, &c.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("child")
		}
		return nil, fmt.Errorf("get child: %w", err)
	}
	return &c, nil
}

// CreateGuardian inserts a new guardian.
func (r *ChildRepository) CreateGuardian(ctx context.Context, name, email string) (*model.Guardian, error) {
	g := &model.Guardian{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO guardians (id, name, email, created_at) VALUES ($1, $2, $3, $4)`,
		g.ID, g.Name, g.Email, g.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert guardian: %w", err)
	}
	return g, nil
}

// LinkGuardian records the child/guardian relationship with its type.
func (r *ChildRepository) LinkGuardian(ctx context.Context, childID, guardianID uuid.UUID, relType string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO children_guardians (child_id, guardian_id, type)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (child_id, guardian_id) DO UPDATE SET type = EXCLUDED.type`,
		childID, guardianID, relType,
	)
	if err != nil {
		return fmt.Errorf("link guardian: %w", err)
	}
	return nil
}
