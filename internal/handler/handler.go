// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the service layer.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/repository"
	"github.com/tgardela/event-manager/internal/service"
)

// EventHandler holds the HTTP handlers for events and their rosters.
type EventHandler struct {
	svc *service.EventService
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty body")
		}
		return invalidBody(err)
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return invalidBody(errors.New("unexpected data after JSON object"))
	}
	return nil
}

func invalidBody(err error) error {
	return &service.ValidationError{Code: service.CodeInvalidBody, Message: "invalid request body: " + err.Error()}
}

// pathID returns the {id} URL parameter. Anything that is not a UUID cannot
// name a stored resource, so it is reported as not found.
func pathID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		return "", repository.ErrNotFound
	}
	return id, nil
}

// respondError maps service and repository errors onto HTTP responses.
// Server errors are logged with the request logger; details stay out of
// the response body.
func respondError(w http.ResponseWriter, r *http.Request, resource string, err error) {
	logger := zerolog.Ctx(r.Context())
	var ve *service.ValidationError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: ve.Message, Code: string(ve.Code), Fields: ve.Fields})
	case errors.Is(err, service.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, service.ErrPermissionDenied.Error())
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, resource+" not found")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, service.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		unauthorized(w, r, err)
	case errors.Is(err, service.ErrBusy):
		logger.Warn().Err(err).Msg("event write abandoned")
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, service.ErrBusy.Error())
	default:
		logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// unauthorized is also the failure callback of auth.Middleware.
func unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	msg := "Given token not valid for any token type"
	if errors.Is(err, auth.ErrMissingToken) {
		msg = "Authentication credentials were not provided."
	}
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func actor(r *http.Request) auth.Principal {
	p, _ := auth.CurrentUser(r.Context())
	return p
}

// ─── Handlers ─────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// The authenticated user becomes the creator.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "event", err)
		return
	}

	event, err := h.svc.CreateEvent(r.Context(), actor(r), req)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events?date=YYYY-MM-DD&past=bool&future=bool
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := service.ParseFilter(r.URL.Query())
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// GetEvent handles GET /events/{id}
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	event, err := h.svc.GetEvent(r.Context(), id)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// UpdateEvent handles PUT /events/{id}
// Replaces every editable field. Creator only.
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}
	var req model.EventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "event", err)
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), actor(r), id, req)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// PatchEvent handles PATCH /events/{id}
// Changes only the fields present in the body. Creator only.
func (h *EventHandler) PatchEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}
	var patch model.EventPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, "event", err)
		return
	}

	event, err := h.svc.PatchEvent(r.Context(), actor(r), id, patch)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// Register handles POST /events/{id}/register
// A full or already started event is reported in the outcome with 200.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	outcome, err := h.svc.Register(r.Context(), id, actor(r))
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Unregister handles POST /events/{id}/unregister
func (h *EventHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	outcome, err := h.svc.Unregister(r.Context(), id, actor(r))
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// Attendees handles GET /events/{id}/attendees
// Returns the registered users in join order.
func (h *EventHandler) Attendees(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	users, err := h.svc.Attendees(r.Context(), id)
	if err != nil {
		respondError(w, r, "event", err)
		return
	}

	if users == nil {
		users = []model.User{}
	}

	writeJSON(w, http.StatusOK, users)
}
