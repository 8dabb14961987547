package service

import (
	"context"
	"log/slog"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/auth"
	"github.com/culturekids/enrolment-service/internal/notify"
	"github.com/google/uuid"
)

// Enrol enrols a child in an occurrence. The full rule sequence and the
// insert run atomically in the store; on success the enrolment view carries a
// freshly minted reference id.
func (s *Service) Enrol(ctx context.Context, actor *auth.Actor, childID, occurrenceID uuid.UUID) (*EnrolmentView, error) {
	if actor == nil {
		return nil, permissionDenied("enrol")
	}
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return nil, err
	}

	e, err := s.enrolments.Enrol(ctx, childID, occurrenceID, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("child enrolled",
		"actor", actor.ID, "child", childID, "occurrence", occurrenceID)
	return s.enrolmentView(e)
}

// Unenrol removes a child's enrolment in an occurrence and notifies the
// household. The notification is fire-and-forget: it is dispatched after the
// delete commits and its failure cannot undo the unenrolment.
func (s *Service) Unenrol(ctx context.Context, actor *auth.Actor, childID, occurrenceID uuid.UUID) error {
	if actor == nil {
		return permissionDenied("unenrol")
	}
	if _, err := s.children.GetByID(ctx, childID); err != nil {
		return err
	}

	deleted, err := s.enrolments.Unenrol(ctx, childID, occurrenceID, s.now())
	if err != nil {
		return err
	}

	s.notifier.Notify(childID, notify.TemplateUnenrolment, notify.Payload{
		"child_id":      childID.String(),
		"occurrence_id": occurrenceID.String(),
		"enrolled_at":   deleted.CreatedAt,
	})

	slog.Info("child unenrolled",
		"actor", actor.ID, "child", childID, "occurrence", occurrenceID)
	return nil
}

// SetAttendance records the tri-state attended flag on an enrolment.
// provided distinguishes an explicit null from an absent field.
func (s *Service) SetAttendance(ctx context.Context, actor *auth.Actor, enrolmentID uuid.UUID, attended *bool, provided bool) (*EnrolmentView, error) {
	if !provided {
		return nil, apperr.New(apperr.CodeDataValidation, `"attended" is required`)
	}

	e, err := s.enrolments.GetByID(ctx, enrolmentID)
	if err != nil {
		return nil, err
	}
	o, err := s.events.GetOccurrence(ctx, e.OccurrenceID)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetEvent(ctx, o.EventID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, event.ProjectID, "enrolment"); err != nil {
		return nil, err
	}

	updated, err := s.enrolments.SetAttendance(ctx, enrolmentID, attended)
	if err != nil {
		return nil, err
	}

	slog.Info("enrolment attendance set",
		"actor", actor.ID, "enrolment", enrolmentID, "attended", attended)
	return s.enrolmentView(updated)
}
