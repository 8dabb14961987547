// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/culturekids/enrolment-service/internal/apperr"
	"github.com/culturekids/enrolment-service/internal/model"
	"github.com/culturekids/enrolment-service/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// Handler holds all HTTP handlers for the enrolment API.
type Handler struct {
	svc *service.Service
}

// New constructs a Handler.
func New(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

// errorResponse is the standard JSON error envelope.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func urlUUID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// writeDomainError maps an error's domain code to an HTTP status.
func writeDomainError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	status := http.StatusInternalServerError
	msg := err.Error()

	switch code {
	case apperr.CodeObjectDoesNotExist, apperr.CodeEnrolmentNotFound:
		status = http.StatusNotFound
	case apperr.CodePermissionDenied:
		status = http.StatusForbidden
	case apperr.CodeDataValidation, apperr.CodeMalformedReference:
		status = http.StatusBadRequest
	case apperr.CodeEventNotPublished,
		apperr.CodeIneligibleEnrolment,
		apperr.CodeChildAlreadyJoined,
		apperr.CodeOccurrenceFull,
		apperr.CodePastOccurrence,
		apperr.CodePastEnrolment,
		apperr.CodeNoFreePasswords,
		apperr.CodePasswordAlreadyAssigned,
		apperr.CodeEventAlreadyPublished,
		apperr.CodeEventGroupAlreadyPublished,
		apperr.CodeEventGroupNotReadyForPublishing,
		apperr.CodeTicketSystemURLMissing,
		apperr.CodeMissingDefaultTranslation,
		apperr.CodeOccurrenceYearMismatch,
		apperr.CodeSingleEventsDisallowed:
		status = http.StatusConflict
	case apperr.CodeUnknown:
		msg = "internal error"
	}

	writeError(w, status, string(code), msg)
}

// ─── Projects and venues ──────────────────────────────────────────────────────

type createProjectRequest struct {
	Year                int    `json:"year"`
	Name                string `json:"name"`
	EnrolmentLimit      int    `json:"enrolment_limit"`
	SingleEventsAllowed bool   `json:"single_events_allowed"`
}

// CreateProject handles POST /projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	project, err := h.svc.CreateProject(r.Context(), actorFrom(r), req.Year, req.Name, req.EnrolmentLimit, req.SingleEventsAllowed)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// ListProjects handles GET /projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context(), actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

type createVenueRequest struct {
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
}

// CreateVenue handles POST /venues
func (h *Handler) CreateVenue(w http.ResponseWriter, r *http.Request) {
	var req createVenueRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	venue, err := h.svc.CreateVenue(r.Context(), actorFrom(r), req.ProjectID, req.Name, req.Address)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, venue)
}

// ─── Children ─────────────────────────────────────────────────────────────────

type createChildRequest struct {
	Name      string `json:"name"`
	Birthdate string `json:"birthdate"` // YYYY-MM-DD
}

// CreateChild handles POST /children
func (h *Handler) CreateChild(w http.ResponseWriter, r *http.Request) {
	var req createChildRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	birthdate, err := time.Parse("2006-01-02", req.Birthdate)
	if err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "birthdate must be YYYY-MM-DD")
		return
	}
	child, err := h.svc.CreateChild(r.Context(), actorFrom(r), req.Name, birthdate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

type addGuardianRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

// AddGuardian handles POST /children/{id}/guardians
func (h *Handler) AddGuardian(w http.ResponseWriter, r *http.Request) {
	childID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid child id")
		return
	}
	var req addGuardianRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	guardian, err := h.svc.AddGuardian(r.Context(), actorFrom(r), childID, req.Name, req.Email, req.Type)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, guardian)
}

// ─── Events ───────────────────────────────────────────────────────────────────

type translationInput struct {
	LanguageCode     string `json:"language_code"`
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
	Description      string `json:"description"`
}

func toTranslations(in []translationInput) []model.EventTranslation {
	out := make([]model.EventTranslation, 0, len(in))
	for _, t := range in {
		out = append(out, model.EventTranslation{
			LanguageCode:     t.LanguageCode,
			Name:             t.Name,
			ShortDescription: t.ShortDescription,
			Description:      t.Description,
		})
	}
	return out
}

type eventRequest struct {
	ProjectID                    uuid.UUID          `json:"project_id"`
	EventGroupID                 *uuid.UUID         `json:"event_group_id"`
	TicketSystem                 string             `json:"ticket_system"`
	CapacityPerOccurrence        *int               `json:"capacity_per_occurrence"`
	Duration                     *int               `json:"duration"`
	ReadyForEventGroupPublishing bool               `json:"ready_for_event_group_publishing"`
	Translations                 []translationInput `json:"translations"`
}

func (req eventRequest) toInput() service.EventInput {
	return service.EventInput{
		ProjectID:                    req.ProjectID,
		EventGroupID:                 req.EventGroupID,
		TicketSystem:                 model.TicketSystem(req.TicketSystem),
		CapacityPerOccurrence:        req.CapacityPerOccurrence,
		Duration:                     req.Duration,
		ReadyForEventGroupPublishing: req.ReadyForEventGroupPublishing,
		Translations:                 toTranslations(req.Translations),
	}
}

// CreateEvent handles POST /events
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	event, err := h.svc.CreateEvent(r.Context(), actorFrom(r), req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// GetEvent handles GET /events/{id}
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	event, err := h.svc.GetEvent(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ListOccurrences handles GET /events/{id}/occurrences
func (h *Handler) ListOccurrences(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	occurrences, err := h.svc.ListOccurrences(r.Context(), actorFrom(r), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrences)
}

// UpdateEvent handles PATCH /events/{id}
func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	var req eventRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	event, err := h.svc.UpdateEvent(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	if err := h.svc.DeleteEvent(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PublishEvent handles POST /events/{id}/publish
func (h *Handler) PublishEvent(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	event, err := h.svc.PublishEvent(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// ─── Event groups ─────────────────────────────────────────────────────────────

type eventGroupRequest struct {
	ProjectID    uuid.UUID          `json:"project_id"`
	Translations []translationInput `json:"translations"`
}

// CreateEventGroup handles POST /event-groups
func (h *Handler) CreateEventGroup(w http.ResponseWriter, r *http.Request) {
	var req eventGroupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	group, err := h.svc.CreateEventGroup(r.Context(), actorFrom(r), req.ProjectID, toTranslations(req.Translations))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, group)
}

// PublishEventGroup handles POST /event-groups/{id}/publish
func (h *Handler) PublishEventGroup(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event group id")
		return
	}
	group, err := h.svc.PublishEventGroup(r.Context(), actorFrom(r), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

// ─── Occurrences ──────────────────────────────────────────────────────────────

type occurrenceRequest struct {
	VenueID          uuid.UUID `json:"venue_id"`
	Time             time.Time `json:"time"`
	CapacityOverride *int      `json:"capacity_override"`
	TicketSystemURL  string    `json:"ticket_system_url"`
}

func (req occurrenceRequest) toInput() service.OccurrenceInput {
	return service.OccurrenceInput{
		VenueID:          req.VenueID,
		Time:             req.Time,
		CapacityOverride: req.CapacityOverride,
		TicketSystemURL:  req.TicketSystemURL,
	}
}

// CreateOccurrence handles POST /events/{id}/occurrences
func (h *Handler) CreateOccurrence(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	var req occurrenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	occurrence, err := h.svc.CreateOccurrence(r.Context(), actorFrom(r), eventID, req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, occurrence)
}

// UpdateOccurrence handles PATCH /occurrences/{id}
func (h *Handler) UpdateOccurrence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid occurrence id")
		return
	}
	var req occurrenceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	occurrence, err := h.svc.UpdateOccurrence(r.Context(), actorFrom(r), id, req.toInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, occurrence)
}

// DeleteOccurrence handles DELETE /occurrences/{id}
func (h *Handler) DeleteOccurrence(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid occurrence id")
		return
	}
	if err := h.svc.DeleteOccurrence(r.Context(), actorFrom(r), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetOccurrenceCapacity handles GET /occurrences/{id}/capacity
func (h *Handler) GetOccurrenceCapacity(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid occurrence id")
		return
	}
	capacity, err := h.svc.OccurrenceCapacity(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, capacity)
}

// ─── Enrolments ───────────────────────────────────────────────────────────────

type enrolRequest struct {
	ChildID uuid.UUID `json:"child_id"`
}

// Enrol handles POST /occurrences/{id}/enrol
func (h *Handler) Enrol(w http.ResponseWriter, r *http.Request) {
	occurrenceID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid occurrence id")
		return
	}
	var req enrolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	view, err := h.svc.Enrol(r.Context(), actorFrom(r), req.ChildID, occurrenceID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Unenrol handles POST /occurrences/{id}/unenrol
func (h *Handler) Unenrol(w http.ResponseWriter, r *http.Request) {
	occurrenceID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid occurrence id")
		return
	}
	var req enrolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	if err := h.svc.Unenrol(r.Context(), actorFrom(r), req.ChildID, occurrenceID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetAttendance handles PUT /enrolments/{id}/attendance
// The attended field is required but may be explicitly null.
func (h *Handler) SetAttendance(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid enrolment id")
		return
	}

	var raw map[string]json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	rawAttended, provided := raw["attended"]
	var attended *bool
	if provided && string(rawAttended) != "null" {
		var b bool
		if err := json.Unmarshal(rawAttended, &b); err != nil {
			writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "attended must be a boolean or null")
			return
		}
		attended = &b
	}

	view, err := h.svc.SetAttendance(r.Context(), actorFrom(r), id, attended, provided)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ─── Ticket system passwords ──────────────────────────────────────────────────

type importPasswordsRequest struct {
	Passwords []string `json:"passwords"`
}

// ImportPasswords handles POST /events/{id}/passwords
func (h *Handler) ImportPasswords(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	var req importPasswordsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	imported, err := h.svc.ImportPasswords(r.Context(), actorFrom(r), eventID, req.Passwords)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int{"imported": imported})
}

type assignPasswordRequest struct {
	ChildID uuid.UUID `json:"child_id"`
}

// AssignPassword handles POST /events/{id}/assign-password
func (h *Handler) AssignPassword(w http.ResponseWriter, r *http.Request) {
	eventID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid event id")
		return
	}
	var req assignPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	view, err := h.svc.AssignPassword(r.Context(), actorFrom(r), eventID, req.ChildID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ReassignPassword handles POST /passwords/{id}/assign
func (h *Handler) ReassignPassword(w http.ResponseWriter, r *http.Request) {
	passwordID, ok := urlUUID(r, "id")
	if !ok {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid password id")
		return
	}
	var req assignPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, string(apperr.CodeDataValidation), "invalid request body: "+err.Error())
		return
	}
	view, err := h.svc.ReassignPassword(r.Context(), actorFrom(r), passwordID, req.ChildID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ─── Ticket verification (public) ─────────────────────────────────────────────

// VerifyTicket handles GET /tickets/{referenceId}
// Unauthenticated; never reveals internal ids.
func (h *Handler) VerifyTicket(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.VerifyTicket(r.Context(), chi.URLParam(r, "referenceId"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
