// Package model defines the core domain types for the enrolment service.
package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketSystem selects how access to an event is controlled.
type TicketSystem string

const (
	// TicketSystemInternal gates access by computed capacity; no external code.
	TicketSystemInternal TicketSystem = "internal"
	// TicketSystemTicketmaster delegates access to an external ticket shop,
	// optionally backed by a pool of pre-provisioned passwords.
	TicketSystemTicketmaster TicketSystem = "ticketmaster"
)

// Valid reports whether t is a known ticket system.
func (t TicketSystem) Valid() bool {
	return t == TicketSystemInternal || t == TicketSystemTicketmaster
}

// Project is a yearly administrative scope owning events, event groups and
// venues. Children born in the project's year are bound to it at creation.
type Project struct {
	ID                  uuid.UUID `json:"id"`
	Year                int       `json:"year"`
	Name                string    `json:"name"`
	EnrolmentLimit      int       `json:"enrolment_limit"`
	SingleEventsAllowed bool      `json:"single_events_allowed"`
	CreatedAt           time.Time `json:"created_at"`
}

// Child is a participant. The project binding is derived once from the birth
// year at creation time and never re-derived.
type Child struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Birthdate time.Time `json:"birthdate"`
	CreatedAt time.Time `json:"created_at"`
}

// Guardian is an adult responsible for one or more children.
type Guardian struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Relationship links a guardian to a child with a relationship type
// (parent, legal guardian, and so on).
type Relationship struct {
	ChildID    uuid.UUID `json:"child_id"`
	GuardianID uuid.UUID `json:"guardian_id"`
	Type       string    `json:"type"`
}

// Venue is a location where occurrences take place.
type Venue struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
}

// EventGroup bundles events that publish together once every unpublished
// member is flagged ready.
type EventGroup struct {
	ID          uuid.UUID  `json:"id"`
	ProjectID   uuid.UUID  `json:"project_id"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Published reports whether the group has been published at least once.
func (g *EventGroup) Published() bool {
	return g.PublishedAt != nil
}

// Event is an enrollable activity belonging to a project and optionally to an
// event group.
type Event struct {
	ID                           uuid.UUID    `json:"id"`
	ProjectID                    uuid.UUID    `json:"project_id"`
	EventGroupID                 *uuid.UUID   `json:"event_group_id"`
	TicketSystem                 TicketSystem `json:"ticket_system"`
	CapacityPerOccurrence        *int         `json:"capacity_per_occurrence"`
	Duration                     *int         `json:"duration"`
	PublishedAt                  *time.Time   `json:"published_at"`
	ReadyForEventGroupPublishing bool         `json:"ready_for_event_group_publishing"`
	CreatedAt                    time.Time    `json:"created_at"`
}

// Published reports whether the event is visible to guardians.
func (e *Event) Published() bool {
	return e.PublishedAt != nil
}

// TicketSystemInfo is the resolved, variant form of an event's ticket system.
// Exactly one of Internal and Ticketmaster is set, decided once at the model
// boundary instead of re-checking the discriminator per field.
type TicketSystemInfo struct {
	Internal     *InternalTicketSystem
	Ticketmaster *TicketmasterTicketSystem
}

// InternalTicketSystem carries the capacity gate of an internal event.
type InternalTicketSystem struct {
	CapacityPerOccurrence int
}

// TicketmasterTicketSystem marks an event whose access lives in an external
// shop; per-occurrence URLs are stored on the occurrences themselves.
type TicketmasterTicketSystem struct{}

// ResolveTicketSystem converts the stored discriminator into its variant form.
// Returns nil when an internal event is missing its capacity, which publish
// validation treats as a data error.
func (e *Event) ResolveTicketSystem() *TicketSystemInfo {
	switch e.TicketSystem {
	case TicketSystemInternal:
		if e.CapacityPerOccurrence == nil {
			return nil
		}
		return &TicketSystemInfo{Internal: &InternalTicketSystem{
			CapacityPerOccurrence: *e.CapacityPerOccurrence,
		}}
	case TicketSystemTicketmaster:
		return &TicketSystemInfo{Ticketmaster: &TicketmasterTicketSystem{}}
	default:
		return nil
	}
}

// EventTranslation is one language's text content for an event.
type EventTranslation struct {
	EventID          uuid.UUID `json:"event_id"`
	LanguageCode     string    `json:"language_code"`
	Name             string    `json:"name"`
	ShortDescription string    `json:"short_description"`
	Description      string    `json:"description"`
}

// Occurrence is one scheduled instance (time and venue) of an event.
type Occurrence struct {
	ID               uuid.UUID `json:"id"`
	EventID          uuid.UUID `json:"event_id"`
	VenueID          uuid.UUID `json:"venue_id"`
	Time             time.Time `json:"time"`
	CapacityOverride *int      `json:"capacity_override"`
	TicketSystemURL  string    `json:"ticket_system_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// EffectiveCapacity returns the occurrence's capacity: the override when set
// (zero included), else the event's per-occurrence capacity. Nil means this
// subsystem imposes no cap (possible only for non-internal events).
func (o *Occurrence) EffectiveCapacity(event *Event) *int {
	if o.CapacityOverride != nil {
		return o.CapacityOverride
	}
	return event.CapacityPerOccurrence
}

// RemainingCapacity returns effective capacity minus the live enrolment count,
// or nil when capacity is uncapped. Counts must come fresh from the store.
func RemainingCapacity(effective *int, enrolmentCount int) *int {
	if effective == nil {
		return nil
	}
	remaining := *effective - enrolmentCount
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Enrolment links one child to one occurrence. Attended is tri-state:
// nil = unknown, otherwise the recorded attendance.
type Enrolment struct {
	ID           uuid.UUID `json:"id"`
	ChildID      uuid.UUID `json:"child_id"`
	OccurrenceID uuid.UUID `json:"occurrence_id"`
	Attended     *bool     `json:"attended"`
	CreatedAt    time.Time `json:"created_at"`
}

// TicketSystemPassword is a scarce pre-provisioned access code for one event.
// ChildID is nil while the password is free; once assigned it stays assigned
// even if the child later unenrols.
type TicketSystemPassword struct {
	ID         uuid.UUID  `json:"id"`
	EventID    uuid.UUID  `json:"event_id"`
	Value      string     `json:"value"`
	ChildID    *uuid.UUID `json:"child_id"`
	AssignedAt *time.Time `json:"assigned_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Assigned reports whether the password has been handed to a child.
func (p *TicketSystemPassword) Assigned() bool {
	return p.ChildID != nil
}
