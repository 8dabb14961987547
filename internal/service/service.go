// Package service implements business orchestration between HTTP handlers and
// the repository layer: existence resolution, actor capability checks,
// reference minting and notification dispatch. Rule evaluation itself lives
// in the repositories' locked transactions.
package service

import (
	"context"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/culturekids/enrolment-service/internal/notify"
	"github.com/culturekids/enrolment-service/internal/reference"
	"github.com/culturekids/enrolment-service/internal/repository"
	"github.com/google/uuid"
)

// ProjectStore is the project persistence the service depends on.
type ProjectStore interface {
	Create(ctx context.Context, year int, name string, enrolmentLimit int, singleEventsAllowed bool) (*model.Project, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Project, error)
	GetByYear(ctx context.Context, year int) (*model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
}

// ChildStore is the child persistence the service depends on.
type ChildStore interface {
	Create(ctx context.Context, projectID uuid.UUID, name string, birthdate time.Time) (*model.Child, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Child, error)
	CreateGuardian(ctx context.Context, name, email string) (*model.Guardian, error)
	LinkGuardian(ctx context.Context, childID, guardianID uuid.UUID, relType string) error
}

// VenueStore is the venue persistence the service depends on.
type VenueStore interface {
	Create(ctx context.Context, projectID uuid.UUID, name, address string) (*model.Venue, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Venue, error)
}

// EventStore is the event/group/occurrence persistence the service depends on.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event, translations []model.EventTranslation) (*model.Event, error)
	UpdateEvent(ctx context.Context, e *model.Event, translations []model.EventTranslation) error
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	DeleteEvent(ctx context.Context, id uuid.UUID) error
	PublishEvent(ctx context.Context, id uuid.UUID, now time.Time) (*model.Event, error)
	CreateGroup(ctx context.Context, projectID uuid.UUID, translations []model.EventTranslation) (*model.EventGroup, error)
	GetGroup(ctx context.Context, id uuid.UUID) (*model.EventGroup, error)
	PublishGroup(ctx context.Context, id uuid.UUID, now time.Time) (*model.EventGroup, error)
	CreateOccurrence(ctx context.Context, o *model.Occurrence) (*model.Occurrence, error)
	UpdateOccurrence(ctx context.Context, o *model.Occurrence) error
	GetOccurrence(ctx context.Context, id uuid.UUID) (*model.Occurrence, error)
	ListOccurrences(ctx context.Context, eventID uuid.UUID) ([]model.Occurrence, error)
	DeleteOccurrence(ctx context.Context, id uuid.UUID) error
}

// EnrolmentStore is the enrolment persistence the service depends on.
type EnrolmentStore interface {
	Enrol(ctx context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error)
	Unenrol(ctx context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Enrolment, error)
	SetAttendance(ctx context.Context, id uuid.UUID, attended *bool) (*model.Enrolment, error)
	CountForOccurrence(ctx context.Context, occurrenceID uuid.UUID) (int, error)
	GetTicketDetails(ctx context.Context, enrolmentID uuid.UUID, language string) (*repository.TicketDetails, error)
}

// PasswordStore is the credential pool persistence the service depends on.
type PasswordStore interface {
	Import(ctx context.Context, eventID uuid.UUID, values []string) (int, error)
	Assign(ctx context.Context, eventID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error)
	Reassign(ctx context.Context, passwordID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error)
	CountFree(ctx context.Context, eventID uuid.UUID) (int, error)
}

// Service orchestrates all domain operations.
type Service struct {
	projects   ProjectStore
	children   ChildStore
	venues     VenueStore
	events     EventStore
	enrolments EnrolmentStore
	passwords  PasswordStore

	codec           *reference.Codec
	notifier        notify.Notifier
	defaultLanguage string

	// now is swappable for tests.
	now func() time.Time
}

// New constructs a Service with its dependencies.
func New(
	projects ProjectStore,
	children ChildStore,
	venues VenueStore,
	events EventStore,
	enrolments EnrolmentStore,
	passwords PasswordStore,
	codec *reference.Codec,
	notifier notify.Notifier,
	defaultLanguage string,
) *Service {
	return &Service{
		projects:        projects,
		children:        children,
		venues:          venues,
		events:          events,
		enrolments:      enrolments,
		passwords:       passwords,
		codec:           codec,
		notifier:        notifier,
		defaultLanguage: defaultLanguage,
		now:             time.Now,
	}
}

func permissionDenied(what string) error {
	return apperr.New(apperr.CodePermissionDenied, "no permission to "+what)
}

// requireAdmin checks project administration capability. Failing the check on
// an existing object is reported as absence so out-of-scope records never
// leak their existence.
func requireAdmin(actor *auth.Actor, projectID uuid.UUID, what string) error {
	if actor == nil || !actor.CanAdministerProject(projectID) {
		return apperr.New(apperr.CodeObjectDoesNotExist, what+" does not exist")
	}
	return nil
}

// EnrolmentView is the enrolment presentation returned at the API boundary,
// carrying the derived opaque reference.
type EnrolmentView struct {
	ID           uuid.UUID `json:"id"`
	ChildID      uuid.UUID `json:"child_id"`
	OccurrenceID uuid.UUID `json:"occurrence_id"`
	Attended     *bool     `json:"attended"`
	CreatedAt    time.Time `json:"created_at"`
	ReferenceID  string    `json:"reference_id"`
}

func (s *Service) enrolmentView(e *model.Enrolment) (*EnrolmentView, error) {
	ref, err := s.codec.Encode(e.ID)
	if err != nil {
		return nil, err
	}
	return &EnrolmentView{
		ID:           e.ID,
		ChildID:      e.ChildID,
		OccurrenceID: e.OccurrenceID,
		Attended:     e.Attended,
		CreatedAt:    e.CreatedAt,
		ReferenceID:  ref,
	}, nil
}
