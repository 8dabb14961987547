package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/culturekids/enrolment-service/internal/reference"
	"github.com/google/uuid"
)

// PasswordView is the assignment result returned at the API boundary.
type PasswordView struct {
	Value   string    `json:"value"`
	ChildID uuid.UUID `json:"child_id"`
	EventID uuid.UUID `json:"event_id"`
}

// AssignPassword hands one of the event's free ticket system passwords to the
// child, idempotently for repeated calls with the same child.
func (s *Service) AssignPassword(ctx context.Context, actor *auth.Actor, eventID, childID uuid.UUID) (*PasswordView, error) {
	if actor == nil {
		return nil, permissionDenied("assign a password")
	}
	if _, err := s.events.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return nil, err
	}

	password, err := s.passwords.Assign(ctx, eventID, childID, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("ticket system password assigned",
		"actor", actor.ID, "event", eventID, "child", childID)
	return &PasswordView{Value: password.Value, ChildID: childID, EventID: eventID}, nil
}

// ReassignPassword binds a specific password to a child, for repairing or
// pre-seeding assignments. Unlike AssignPassword's pool draw, targeting a
// password already held by another child is an error.
func (s *Service) ReassignPassword(ctx context.Context, actor *auth.Actor, passwordID, childID uuid.UUID) (*PasswordView, error) {
	if actor == nil {
		return nil, permissionDenied("reassign a password")
	}
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return nil, err
	}

	password, err := s.passwords.Reassign(ctx, passwordID, childID, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("ticket system password reassigned",
		"actor", actor.ID, "password", passwordID, "child", childID)
	return &PasswordView{Value: password.Value, ChildID: childID, EventID: password.EventID}, nil
}

// ImportPasswords adds credential inventory to an event's pool.
func (s *Service) ImportPasswords(ctx context.Context, actor *auth.Actor, eventID uuid.UUID, values []string) (int, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, apperr.New(apperr.CodeDataValidation, "no passwords given")
	}

	imported, err := s.passwords.Import(ctx, eventID, values)
	if err != nil {
		return 0, err
	}

	slog.Info("ticket system passwords imported",
		"actor", actor.ID, "event", eventID, "count", imported)
	return imported, nil
}

// TicketVerificationView is the public verification result. It never exposes
// internal identifiers.
type TicketVerificationView struct {
	EventName      string    `json:"event_name"`
	OccurrenceTime time.Time `json:"occurrence_time"`
	VenueName      string    `json:"venue_name"`
	Valid          bool      `json:"valid"`
}

// VerifyTicket decodes a reference and reports the ticket's validity. The
// endpoint is unauthenticated-safe: a malformed reference and a reference to
// a deleted enrolment are distinct error codes, but neither leaks ids.
func (s *Service) VerifyTicket(ctx context.Context, referenceID string) (*TicketVerificationView, error) {
	enrolmentID, err := s.codec.Decode(referenceID)
	if err != nil {
		return nil, err
	}

	details, err := s.enrolments.GetTicketDetails(ctx, enrolmentID, s.defaultLanguage)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeObjectDoesNotExist) {
			return nil, apperr.New(apperr.CodeEnrolmentNotFound, "enrolment no longer exists")
		}
		return nil, err
	}

	return &TicketVerificationView{
		EventName:      details.EventName,
		OccurrenceTime: details.OccurrenceTime,
		VenueName:      details.VenueName,
		Valid:          reference.VerifyValidity(details.OccurrenceTime, s.now()),
	}, nil
}
