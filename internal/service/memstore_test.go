package service

import (
	"context"
	"sync"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/enrolment"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/culturekids/enrolment-service/internal/publishing"
	"github.com/culturekids/enrolment-service/internal/repository"
	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the pgx repositories. A single mutex
// plays the role of the database's row locks: every check-then-act sequence
// holds it end to end, which is the same serialization the SQL layer gets
// from SELECT ... FOR UPDATE.
type memStore struct {
	mu sync.Mutex

	projects     map[uuid.UUID]*model.Project
	children     map[uuid.UUID]*model.Child
	guardians    map[uuid.UUID]*model.Guardian
	venues       map[uuid.UUID]*model.Venue
	groups       map[uuid.UUID]*model.EventGroup
	events       map[uuid.UUID]*model.Event
	translations map[uuid.UUID]map[string]model.EventTranslation
	occurrences  map[uuid.UUID]*model.Occurrence
	enrolments   map[uuid.UUID]*model.Enrolment
	passwords    map[uuid.UUID]*model.TicketSystemPassword

	defaultLanguage string
}

func newMemStore() *memStore {
	return &memStore{
		projects:        make(map[uuid.UUID]*model.Project),
		children:        make(map[uuid.UUID]*model.Child),
		guardians:       make(map[uuid.UUID]*model.Guardian),
		venues:          make(map[uuid.UUID]*model.Venue),
		groups:          make(map[uuid.UUID]*model.EventGroup),
		events:          make(map[uuid.UUID]*model.Event),
		translations:    make(map[uuid.UUID]map[string]model.EventTranslation),
		occurrences:     make(map[uuid.UUID]*model.Occurrence),
		enrolments:      make(map[uuid.UUID]*model.Enrolment),
		passwords:       make(map[uuid.UUID]*model.TicketSystemPassword),
		defaultLanguage: "fi",
	}
}

func memNotFound(what string) error {
	return apperr.New(apperr.CodeObjectDoesNotExist, what+" does not exist")
}

var (
	_ ProjectStore   = memProjects{}
	_ ChildStore     = memChildren{}
	_ VenueStore     = memVenues{}
	_ EventStore     = memEvents{}
	_ EnrolmentStore = memEnrolments{}
	_ PasswordStore  = memPasswords{}
)


type memProjects struct{ s *memStore }

func (m memProjects) Create(_ context.Context, year int, name string, limit int, single bool) (*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p := &model.Project{
		ID: uuid.New(), Year: year, Name: name,
		EnrolmentLimit: limit, SingleEventsAllowed: single,
		CreatedAt: time.Now().UTC(),
	}
	m.s.projects[p.ID] = p
	return p, nil
}

func (m memProjects) GetByID(_ context.Context, id uuid.UUID) (*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if p, ok := m.s.projects[id]; ok {
		clone := *p
		return &clone, nil
	}
	return nil, memNotFound("project")
}

func (m memProjects) GetByYear(_ context.Context, year int) (*model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range m.s.projects {
		if p.Year == year {
			clone := *p
			return &clone, nil
		}
	}
	return nil, memNotFound("project")
}

func (m memProjects) List(_ context.Context) ([]model.Project, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make([]model.Project, 0, len(m.s.projects))
	for _, p := range m.s.projects {
		out = append(out, *p)
	}
	return out, nil
}

type memChildren struct{ s *memStore }

func (m memChildren) Create(_ context.Context, projectID uuid.UUID, name string, birthdate time.Time) (*model.Child, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c := &model.Child{
		ID: uuid.New(), ProjectID: projectID, Name: name,
		Birthdate: birthdate, CreatedAt: time.Now().UTC(),
	}
	m.s.children[c.ID] = c
	return c, nil
}

func (m memChildren) GetByID(_ context.Context, id uuid.UUID) (*model.Child, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.children[id]; ok {
		clone := *c
		return &clone, nil
	}
	return nil, memNotFound("child")
}

func (m memChildren) CreateGuardian(_ context.Context, name, email string) (*model.Guardian, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	g := &model.Guardian{ID: uuid.New(), Name: name, Email: email, CreatedAt: time.Now().UTC()}
	m.s.guardians[g.ID] = g
	return g, nil
}

func (m memChildren) LinkGuardian(context.Context, uuid.UUID, uuid.UUID, string) error {
	return nil
}

type memVenues struct{ s *memStore }

func (m memVenues) Create(_ context.Context, projectID uuid.UUID, name, address string) (*model.Venue, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	v := &model.Venue{ID: uuid.New(), ProjectID: projectID, Name: name, Address: address, CreatedAt: time.Now().UTC()}
	m.s.venues[v.ID] = v
	return v, nil
}

func (m memVenues) GetByID(_ context.Context, id uuid.UUID) (*model.Venue, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if v, ok := m.s.venues[id]; ok {
		clone := *v
		return &clone, nil
	}
	return nil, memNotFound("venue")
}

type memEvents struct{ s *memStore }

func (m memEvents) CreateEvent(_ context.Context, e *model.Event, translations []model.EventTranslation) (*model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now().UTC()
	clone := *e
	m.s.events[e.ID] = &clone
	m.s.setTranslations(e.ID, translations)
	return e, nil
}

func (s *memStore) setTranslations(eventID uuid.UUID, translations []model.EventTranslation) {
	if s.translations[eventID] == nil {
		s.translations[eventID] = make(map[string]model.EventTranslation)
	}
	for _, t := range translations {
		t.EventID = eventID
		s.translations[eventID][t.LanguageCode] = t
	}
}

func (m memEvents) UpdateEvent(_ context.Context, e *model.Event, translations []model.EventTranslation) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.events[e.ID]
	if !ok {
		return memNotFound("event")
	}
	stored.TicketSystem = e.TicketSystem
	stored.CapacityPerOccurrence = e.CapacityPerOccurrence
	stored.Duration = e.Duration
	stored.ReadyForEventGroupPublishing = e.ReadyForEventGroupPublishing
	stored.EventGroupID = e.EventGroupID
	m.s.setTranslations(e.ID, translations)
	return nil
}

func (m memEvents) GetEvent(_ context.Context, id uuid.UUID) (*model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e, ok := m.s.events[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, memNotFound("event")
}

func (m memEvents) DeleteEvent(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[id]; !ok {
		return memNotFound("event")
	}
	for oid, o := range m.s.occurrences {
		if o.EventID != id {
			continue
		}
		for eid, e := range m.s.enrolments {
			if e.OccurrenceID == oid {
				delete(m.s.enrolments, eid)
			}
		}
		delete(m.s.occurrences, oid)
	}
	for pid, p := range m.s.passwords {
		if p.EventID == id {
			delete(m.s.passwords, pid)
		}
	}
	delete(m.s.translations, id)
	delete(m.s.events, id)
	return nil
}

func (s *memStore) eventOccurrencesLocked(eventID uuid.UUID) []model.Occurrence {
	var out []model.Occurrence
	for _, o := range s.occurrences {
		if o.EventID == eventID {
			out = append(out, *o)
		}
	}
	return out
}

func (s *memStore) hasDefaultTranslationLocked(eventID uuid.UUID) bool {
	t, ok := s.translations[eventID][s.defaultLanguage]
	return ok && t.Name != ""
}

func (s *memStore) publishEventLocked(event *model.Event, now time.Time) error {
	err := publishing.CheckEventPublishable(event,
		s.eventOccurrencesLocked(event.ID), s.hasDefaultTranslationLocked(event.ID))
	if err != nil {
		return err
	}
	published := now
	event.PublishedAt = &published
	return nil
}

func (m memEvents) PublishEvent(_ context.Context, id uuid.UUID, now time.Time) (*model.Event, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	event, ok := m.s.events[id]
	if !ok {
		return nil, memNotFound("event")
	}
	if err := m.s.publishEventLocked(event, now); err != nil {
		return nil, err
	}
	clone := *event
	return &clone, nil
}

func (m memEvents) CreateGroup(_ context.Context, projectID uuid.UUID, _ []model.EventTranslation) (*model.EventGroup, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	g := &model.EventGroup{ID: uuid.New(), ProjectID: projectID, CreatedAt: time.Now().UTC()}
	m.s.groups[g.ID] = g
	clone := *g
	return &clone, nil
}

func (m memEvents) GetGroup(_ context.Context, id uuid.UUID) (*model.EventGroup, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if g, ok := m.s.groups[id]; ok {
		clone := *g
		return &clone, nil
	}
	return nil, memNotFound("event group")
}

func (m memEvents) PublishGroup(_ context.Context, id uuid.UUID, now time.Time) (*model.EventGroup, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	group, ok := m.s.groups[id]
	if !ok {
		return nil, memNotFound("event group")
	}

	var members []model.Event
	var memberPtrs []*model.Event
	for _, e := range m.s.events {
		if e.EventGroupID != nil && *e.EventGroupID == id {
			members = append(members, *e)
			memberPtrs = append(memberPtrs, e)
		}
	}

	if err := publishing.CheckGroupPublishable(group, members); err != nil {
		return nil, err
	}
	// Validate every promotable member before mutating anything.
	for _, e := range memberPtrs {
		if e.Published() {
			continue
		}
		err := publishing.CheckEventPublishable(e,
			m.s.eventOccurrencesLocked(e.ID), m.s.hasDefaultTranslationLocked(e.ID))
		if err != nil {
			return nil, err
		}
	}
	for _, e := range memberPtrs {
		if e.Published() {
			continue
		}
		if err := m.s.publishEventLocked(e, now); err != nil {
			return nil, err
		}
	}
	if !group.Published() {
		published := now
		group.PublishedAt = &published
	}
	clone := *group
	return &clone, nil
}

func (m memEvents) CreateOccurrence(_ context.Context, o *model.Occurrence) (*model.Occurrence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	event, ok := m.s.events[o.EventID]
	if !ok {
		return nil, memNotFound("event")
	}
	for _, existing := range m.s.eventOccurrencesLocked(o.EventID) {
		if existing.Time.Year() != o.Time.Year() {
			return nil, apperr.New(apperr.CodeOccurrenceYearMismatch,
				"occurrence has different year than the rest of the event occurrences")
		}
	}
	if event.TicketSystem == model.TicketSystemTicketmaster && event.Published() && o.TicketSystemURL == "" {
		return nil, apperr.New(apperr.CodeTicketSystemURLMissing,
			"occurrence of a published ticketmaster event requires a ticket system URL")
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now().UTC()
	clone := *o
	m.s.occurrences[o.ID] = &clone
	return o, nil
}

func (m memEvents) UpdateOccurrence(_ context.Context, o *model.Occurrence) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.occurrences[o.ID]
	if !ok {
		return memNotFound("occurrence")
	}
	for _, existing := range m.s.eventOccurrencesLocked(o.EventID) {
		if existing.ID != o.ID && existing.Time.Year() != o.Time.Year() {
			return apperr.New(apperr.CodeOccurrenceYearMismatch,
				"occurrence has different year than the rest of the event occurrences")
		}
	}
	stored.VenueID = o.VenueID
	stored.Time = o.Time
	stored.CapacityOverride = o.CapacityOverride
	stored.TicketSystemURL = o.TicketSystemURL
	return nil
}

func (m memEvents) GetOccurrence(_ context.Context, id uuid.UUID) (*model.Occurrence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if o, ok := m.s.occurrences[id]; ok {
		clone := *o
		return &clone, nil
	}
	return nil, memNotFound("occurrence")
}

func (m memEvents) ListOccurrences(_ context.Context, eventID uuid.UUID) ([]model.Occurrence, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.eventOccurrencesLocked(eventID), nil
}

func (m memEvents) DeleteOccurrence(_ context.Context, id uuid.UUID) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.occurrences[id]; !ok {
		return memNotFound("occurrence")
	}
	for eid, e := range m.s.enrolments {
		if e.OccurrenceID == id {
			delete(m.s.enrolments, eid)
		}
	}
	delete(m.s.occurrences, id)
	return nil
}

type memEnrolments struct{ s *memStore }

func (m memEnrolments) Enrol(_ context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	o, ok := m.s.occurrences[occurrenceID]
	if !ok {
		return nil, memNotFound("occurrence")
	}
	event := m.s.events[o.EventID]
	child, ok := m.s.children[childID]
	if !ok {
		return nil, memNotFound("child")
	}
	project := m.s.projects[event.ProjectID]

	facts := enrolment.Facts{
		EventPublished:    event.Published(),
		SameProject:       child.ProjectID == event.ProjectID,
		EffectiveCapacity: o.EffectiveCapacity(event),
		OccurrenceTime:    o.Time,
		EnrolmentLimit:    project.EnrolmentLimit,
	}
	for _, e := range m.s.enrolments {
		if e.ChildID != childID {
			continue
		}
		other := m.s.occurrences[e.OccurrenceID]
		if other.EventID == event.ID {
			facts.AlreadyInEvent = true
		}
		otherEvent := m.s.events[other.EventID]
		if event.EventGroupID != nil && otherEvent.EventGroupID != nil &&
			*otherEvent.EventGroupID == *event.EventGroupID {
			facts.AlreadyInGroup = true
		}
	}
	for _, e := range m.s.enrolments {
		if e.OccurrenceID == occurrenceID {
			facts.EnrolmentCount++
		}
	}
	facts.YearlyCount = m.s.yearlyCountLocked(childID, o.Time.Year())

	if err := enrolment.Validate(facts, now); err != nil {
		return nil, err
	}

	created := &model.Enrolment{
		ID: uuid.New(), ChildID: childID, OccurrenceID: occurrenceID,
		CreatedAt: now.UTC(),
	}
	m.s.enrolments[created.ID] = created
	clone := *created
	return &clone, nil
}

func (s *memStore) yearlyCountLocked(childID uuid.UUID, year int) int {
	count := 0
	for _, e := range s.enrolments {
		if e.ChildID == childID && s.occurrences[e.OccurrenceID].Time.Year() == year {
			count++
		}
	}
	for _, p := range s.passwords {
		if p.ChildID == nil || *p.ChildID != childID {
			continue
		}
		passwordYear := 0
		if occurrences := s.eventOccurrencesLocked(p.EventID); len(occurrences) > 0 {
			passwordYear = occurrences[0].Time.Year()
		} else if p.AssignedAt != nil {
			passwordYear = p.AssignedAt.Year()
		}
		if passwordYear == year {
			count++
		}
	}
	return count
}

func (m memEnrolments) Unenrol(_ context.Context, childID, occurrenceID uuid.UUID, now time.Time) (*model.Enrolment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	o, ok := m.s.occurrences[occurrenceID]
	if !ok {
		return nil, memNotFound("occurrence")
	}
	for id, e := range m.s.enrolments {
		if e.ChildID == childID && e.OccurrenceID == occurrenceID {
			if err := enrolment.ValidateUnenrolment(o.Time, now); err != nil {
				return nil, err
			}
			deleted := *e
			delete(m.s.enrolments, id)
			return &deleted, nil
		}
	}
	return nil, memNotFound("enrolment")
}

func (m memEnrolments) GetByID(_ context.Context, id uuid.UUID) (*model.Enrolment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if e, ok := m.s.enrolments[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, memNotFound("enrolment")
}

func (m memEnrolments) SetAttendance(_ context.Context, id uuid.UUID, attended *bool) (*model.Enrolment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.enrolments[id]
	if !ok {
		return nil, memNotFound("enrolment")
	}
	e.Attended = attended
	clone := *e
	return &clone, nil
}

func (m memEnrolments) CountForOccurrence(_ context.Context, occurrenceID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	count := 0
	for _, e := range m.s.enrolments {
		if e.OccurrenceID == occurrenceID {
			count++
		}
	}
	return count, nil
}

func (m memEnrolments) GetTicketDetails(_ context.Context, enrolmentID uuid.UUID, language string) (*repository.TicketDetails, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	e, ok := m.s.enrolments[enrolmentID]
	if !ok {
		return nil, memNotFound("enrolment")
	}
	o := m.s.occurrences[e.OccurrenceID]
	venue := m.s.venues[o.VenueID]
	return &repository.TicketDetails{
		EventName:      m.s.translations[o.EventID][language].Name,
		OccurrenceTime: o.Time,
		VenueName:      venue.Name,
	}, nil
}

type memPasswords struct{ s *memStore }

func (m memPasswords) Import(_ context.Context, eventID uuid.UUID, values []string) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	imported := 0
	for _, value := range values {
		exists := false
		for _, p := range m.s.passwords {
			if p.EventID == eventID && p.Value == value {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		p := &model.TicketSystemPassword{
			ID: uuid.New(), EventID: eventID, Value: value, CreatedAt: time.Now().UTC(),
		}
		m.s.passwords[p.ID] = p
		imported++
	}
	return imported, nil
}

func (m memPasswords) Assign(_ context.Context, eventID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, p := range m.s.passwords {
		if p.EventID == eventID && p.ChildID != nil && *p.ChildID == childID {
			clone := *p
			return &clone, nil
		}
	}
	for _, p := range m.s.passwords {
		if p.EventID == eventID && p.ChildID == nil {
			assignedAt := now.UTC()
			p.ChildID = &childID
			p.AssignedAt = &assignedAt
			clone := *p
			return &clone, nil
		}
	}
	return nil, apperr.New(apperr.CodeNoFreePasswords, "all passwords are already assigned")
}

func (m memPasswords) Reassign(_ context.Context, passwordID, childID uuid.UUID, now time.Time) (*model.TicketSystemPassword, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.passwords[passwordID]
	if !ok {
		return nil, memNotFound("ticket system password")
	}
	if p.ChildID != nil && *p.ChildID != childID {
		return nil, apperr.New(apperr.CodePasswordAlreadyAssigned,
			"password is already assigned to another child")
	}
	assignedAt := now.UTC()
	p.ChildID = &childID
	p.AssignedAt = &assignedAt
	clone := *p
	return &clone, nil
}

func (m memPasswords) CountFree(_ context.Context, eventID uuid.UUID) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	count := 0
	for _, p := range m.s.passwords {
		if p.EventID == eventID && p.ChildID == nil {
			count++
		}
	}
	return count, nil
}
