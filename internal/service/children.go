package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/google/uuid"
)

// ResolveProject maps a birth year to its project. Called once at child
// creation; the binding is never re-derived afterwards.
func (s *Service) ResolveProject(ctx context.Context, birthYear int) (*model.Project, error) {
	project, err := s.projects.GetByYear(ctx, birthYear)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeObjectDoesNotExist) {
			return nil, apperr.New(apperr.CodeDataValidation, "illegal birthdate")
		}
		return nil, err
	}
	return project, nil
}

// CreateChild creates a child bound to the project of its birth year.
func (s *Service) CreateChild(ctx context.Context, actor *auth.Actor, name string, birthdate time.Time) (*model.Child, error) {
	if actor == nil {
		return nil, permissionDenied("create a child")
	}
	if birthdate.After(s.now()) {
		return nil, apperr.New(apperr.CodeDataValidation, "illegal birthdate")
	}

	project, err := s.ResolveProject(ctx, birthdate.Year())
	if err != nil {
		return nil, err
	}

	child, err := s.children.Create(ctx, project.ID, name, birthdate)
	if err != nil {
		return nil, err
	}

	slog.Info("child created", "actor", actor.ID, "child", child.ID, "project", project.ID)
	return child, nil
}

// AddGuardian creates a guardian and links it to the child with the given
// relationship type.
func (s *Service) AddGuardian(ctx context.Context, actor *auth.Actor, childID uuid.UUID, name, email, relType string) (*model.Guardian, error) {
	if actor == nil {
		return nil, permissionDenied("add a guardian")
	}
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return nil, err
	}

	guardian, err := s.children.CreateGuardian(ctx, name, email)
	if err != nil {
		return nil, err
	}
	if err := s.children.LinkGuardian(ctx, childID, guardian.ID, relType); err != nil {
		return nil, err
	}

	slog.Info("guardian linked", "actor", actor.ID, "child", childID, "guardian", guardian.ID)
	return guardian, nil
}

// CreateProject creates a yearly project. Provisioning operation guarded only
// by authentication; year uniqueness is enforced by the store.
func (s *Service) CreateProject(ctx context.Context, actor *auth.Actor, year int, name string, enrolmentLimit int, singleEventsAllowed bool) (*model.Project, error) {
	if actor == nil {
		return nil, permissionDenied("create a project")
	}
	if enrolmentLimit <= 0 {
		return nil, apperr.New(apperr.CodeDataValidation, "enrolment limit must be positive")
	}
	project, err := s.projects.Create(ctx, year, name, enrolmentLimit, singleEventsAllowed)
	if err != nil {
		return nil, err
	}
	slog.Info("project created", "actor", actor.ID, "project", project.ID, "year", year)
	return project, nil
}

// ListProjects returns all projects.
func (s *Service) ListProjects(ctx context.Context, actor *auth.Actor) ([]model.Project, error) {
	if actor == nil {
		return nil, permissionDenied("list projects")
	}
	return s.projects.List(ctx)
}

// CreateVenue creates a venue in a project.
func (s *Service) CreateVenue(ctx context.Context, actor *auth.Actor, projectID uuid.UUID, name, address string) (*model.Venue, error) {
	if _, err := s.projects.GetByID(ctx, projectID); err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, projectID, "project"); err != nil {
		return nil, err
	}
	venue, err := s.venues.Create(ctx, projectID, name, address)
	if err != nil {
		return nil, err
	}
	slog.Info("venue created", "actor", actor.ID, "venue", venue.ID, "project", projectID)
	return venue, nil
}
