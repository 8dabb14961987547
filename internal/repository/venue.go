package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VenueRepository handles persistence for venues.
type VenueRepository struct {
	db *pgxpool.Pool
}

// NewVenueRepository constructs a VenueRepository.
func NewVenueRepository(db *pgxpool.Pool) *VenueRepository {
	return &VenueRepository{db: db}
}

// Create inserts a new venue.
func (r *VenueRepository) Create(ctx context.Context, projectID uuid.UUID, name, address string) (*model.Venue, error) {
	v := &model.Venue{
		ID:        uuid.New(),
		ProjectID: projectID,
		Name:      name,
		Address:   address,
		CreatedAt: time.Now().UTC(),
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO venues (id, project_id, name, address, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		v.ID, v.ProjectID, v.Name, v.Address, v.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert venue: %w", err)
	}
	return v, nil
}

// GetByID returns a single venue.
func (r *VenueRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Venue, error) {
	var v model.Venue
	err := r.db.QueryRow(ctx,
		`SELECT id, project_id, name, address, created_at
		 FROM venues WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.ProjectID, &v.Name, &v.Address, &v.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, notFound("venue")
		}
		return nil, fmt.Errorf("get venue: %w", err)
	}
	return &v, nil
}
