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

// EventInput carries the writable event fields.
type EventInput struct {
	ProjectID                    uuid.UUID
	EventGroupID                 *uuid.UUID
	TicketSystem                 model.TicketSystem
	CapacityPerOccurrence        *int
	Duration                     *int
	ReadyForEventGroupPublishing bool
	Translations                 []model.EventTranslation
}

func validateTicketSystemFields(system model.TicketSystem, capacity *int) error {
	if !system.Valid() {
		return apperr.New(apperr.CodeDataValidation, "invalid ticket system")
	}
	if system == model.TicketSystemInternal && capacity == nil {
		return apperr.New(apperr.CodeDataValidation,
			"capacity per occurrence is required for internal ticket system events")
	}
	return nil
}

// CreateEvent creates a draft event.
func (s *Service) CreateEvent(ctx context.Context, actor *auth.Actor, in EventInput) (*model.Event, error) {
	project, err := s.projects.GetByID(ctx, in.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, project.ID, "project"); err != nil {
		return nil, err
	}

	if in.EventGroupID == nil && !project.SingleEventsAllowed {
		return nil, apperr.New(apperr.CodeSingleEventsDisallowed,
			"single events are not allowed in this project")
	}
	if in.EventGroupID != nil {
		group, err := s.events.GetGroup(ctx, *in.EventGroupID)
		if err != nil {
			return nil, err
		}
		if group.ProjectID != project.ID {
			return nil, apperr.New(apperr.CodeDataValidation,
				"event group belongs to a different project")
		}
	}
	if err := validateTicketSystemFields(in.TicketSystem, in.CapacityPerOccurrence); err != nil {
		return nil, err
	}

	event, err := s.events.CreateEvent(ctx, &model.Event{
		ProjectID:                    in.ProjectID,
		EventGroupID:                 in.EventGroupID,
		TicketSystem:                 in.TicketSystem,
		CapacityPerOccurrence:        in.CapacityPerOccurrence,
		Duration:                     in.Duration,
		ReadyForEventGroupPublishing: in.ReadyForEventGroupPublishing,
	}, in.Translations)
	if err != nil {
		return nil, err
	}

	slog.Info("event created", "actor", actor.ID, "event", event.ID, "project", project.ID)
	return event, nil
}

// UpdateEvent updates a draft or published event. The ticket system may only
// change while the event is unpublished, and switching to the internal system
// must not leave the capacity silently absent.
func (s *Service) UpdateEvent(ctx context.Context, actor *auth.Actor, id uuid.UUID, in EventInput) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
		return nil, err
	}

	if in.TicketSystem != event.TicketSystem && event.Published() {
		return nil, apperr.New(apperr.CodeDataValidation,
			"ticket system can be changed only while the event is unpublished")
	}
	if err := validateTicketSystemFields(in.TicketSystem, in.CapacityPerOccurrence); err != nil {
		return nil, err
	}

	event.TicketSystem = in.TicketSystem
	event.CapacityPerOccurrence = in.CapacityPerOccurrence
	event.Duration = in.Duration
	event.ReadyForEventGroupPublishing = in.ReadyForEventGroupPublishing
	if in.EventGroupID != nil {
		event.EventGroupID = in.EventGroupID
	}

	if err := s.events.UpdateEvent(ctx, event, in.Translations); err != nil {
		return nil, err
	}

	slog.Info("event updated", "actor", actor.ID, "event", event.ID)
	return event, nil
}

// DeleteEvent removes an event and everything it owns.
func (s *Service) DeleteEvent(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
		return err
	}
	if err := s.events.DeleteEvent(ctx, id); err != nil {
		return err
	}
	slog.Info("event deleted", "actor", actor.ID, "event", id)
	return nil
}

// PublishEvent transitions an event from draft to published.
func (s *Service) PublishEvent(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
		return nil, err
	}
	if !actor.CanPublish(event.ProjectID) {
		return nil, permissionDenied("publish the event")
	}

	published, err := s.events.PublishEvent(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("event published", "actor", actor.ID, "event", id)
	return published, nil
}

// CreateEventGroup creates a draft event group.
func (s *Service) CreateEventGroup(ctx context.Context, actor *auth.Actor, projectID uuid.UUID, translations []model.EventTranslation) (*model.EventGroup, error) {
	project, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, project.ID, "project"); err != nil {
		return nil, err
	}
	if !actor.CanManageEventGroups(project.ID) {
		return nil, permissionDenied("manage event groups")
	}

	group, err := s.events.CreateGroup(ctx, projectID, translations)
	if err != nil {
		return nil, err
	}

	slog.Info("event group created", "actor", actor.ID, "event_group", group.ID)
	return group, nil
}

// PublishEventGroup publishes a group and promotes its unpublished, ready
// member events. Group publication implies member publication, never the
// reverse.
func (s *Service) PublishEventGroup(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*model.EventGroup, error) {
	group, err := s.events.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, group.ProjectID, "event group"); err != nil {
		return nil, err
	}
	if !actor.CanPublish(group.ProjectID) {
		return nil, permissionDenied("publish the event group")
	}

	published, err := s.events.PublishGroup(ctx, id, s.now())
	if err != nil {
		return nil, err
	}

	slog.Info("event group published", "actor", actor.ID, "event_group", id)
	return published, nil
}

// OccurrenceInput carries the writable occurrence fields.
type OccurrenceInput struct {
	VenueID          uuid.UUID
	Time             time.Time
	CapacityOverride *int
	TicketSystemURL  string
}

// CreateOccurrence adds an occurrence to an event.
func (s *Service) CreateOccurrence(ctx context.Context, actor *auth.Actor, eventID uuid.UUID, in OccurrenceInput) (*model.Occurrence, error) {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
		return nil, err
	}
	if _, err := s.venues.GetByID(ctx, in.VenueID); err != nil {
		return nil, err
	}

	occurrence, err := s.events.CreateOccurrence(ctx, &model.Occurrence{
		EventID:          eventID,
		VenueID:          in.VenueID,
		Time:             in.Time,
		CapacityOverride: in.CapacityOverride,
		TicketSystemURL:  in.TicketSystemURL,
	})
	if err != nil {
		return nil, err
	}

	slog.Info("occurrence created", "actor", actor.ID, "occurrence", occurrence.ID, "event", eventID)
	return occurrence, nil
}

// UpdateOccurrence updates an occurrence.
func (s *Service) UpdateOccurrence(ctx context.Context, actor *auth.Actor, id uuid.UUID, in OccurrenceInput) (*model.Occurrence, error) {
	occurrence, err := s.events.GetOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetEvent(ctx, occurrence.EventID)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(actor, event.ProjectID, "occurrence"); err != nil {
		return nil, err
	}
	if _, err := s.venues.GetByID(ctx, in.VenueID); err != nil {
		return nil, err
	}

	occurrence.VenueID = in.VenueID
	occurrence.Time = in.Time
	occurrence.CapacityOverride = in.CapacityOverride
	occurrence.TicketSystemURL = in.TicketSystemURL

	if err := s.events.UpdateOccurrence(ctx, occurrence); err != nil {
		return nil, err
	}

	slog.Info("occurrence updated", "actor", actor.ID, "occurrence", id)
	return occurrence, nil
}

// DeleteOccurrence removes an occurrence and, explicitly, its enrolments.
func (s *Service) DeleteOccurrence(ctx context.Context, actor *auth.Actor, id uuid.UUID) error {
	occurrence, err := s.events.GetOccurrence(ctx, id)
	if err != nil {
		return err
	}
	event, err := s.events.GetEvent(ctx, occurrence.EventID)
	if err != nil {
		return err
	}
	if err := requireAdmin(actor, event.ProjectID, "occurrence"); err != nil {
		return err
	}

	if err := s.events.DeleteOccurrence(ctx, id); err != nil {
		return err
	}
	slog.Info("occurrence deleted", "actor", actor.ID, "occurrence", id)
	return nil
}

// GetEvent returns an event. Unpublished events are visible only to project
// admins; everyone else sees absence.
func (s *Service) GetEvent(ctx context.Context, actor *auth.Actor, id uuid.UUID) (*model.Event, error) {
	event, err := s.events.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !event.Published() {
		if err := requireAdmin(actor, event.ProjectID, "event"); err != nil {
			return nil, err
		}
	}
	return event, nil
}

// ListOccurrences returns the occurrences of a visible event ordered by time.
func (s *Service) ListOccurrences(ctx context.Context, actor *auth.Actor, eventID uuid.UUID) ([]model.Occurrence, error) {
	if _, err := s.GetEvent(ctx, actor, eventID); err != nil {
		return nil, err
	}
	return s.events.ListOccurrences(ctx, eventID)
}

// OccurrenceCapacityView reports the computed capacity numbers of an
// occurrence. Remaining is nil for uncapped occurrences.
type OccurrenceCapacityView struct {
	EffectiveCapacity *int `json:"effective_capacity"`
	EnrolmentCount    int  `json:"enrolment_count"`
	RemainingCapacity *int `json:"remaining_capacity"`
}

// OccurrenceCapacity computes effective and remaining capacity for an
// occurrence from the live enrolment count.
func (s *Service) OccurrenceCapacity(ctx context.Context, id uuid.UUID) (*OccurrenceCapacityView, error) {
	occurrence, err := s.events.GetOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := s.events.GetEvent(ctx, occurrence.EventID)
	if err != nil {
		return nil, err
	}
	count, err := s.enrolments.CountForOccurrence(ctx, id)
	if err != nil {
		return nil, err
	}

	effective := occurrence.EffectiveCapacity(event)
	return &OccurrenceCapacityView{
		EffectiveCapacity: effective,
		EnrolmentCount:    count,
		RemainingCapacity: model.RemainingCapacity(effective, count),
	}, nil
}
