// Package model defines the core domain types for the event manager.
package model

import (
	"slices"
	"time"
)

// Event is a scheduled gathering with a bounded attendee roster.
type Event struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Capacity    int       `json:"capacity"`
	// Attendees holds user IDs in the order they joined. Only the roster
	// methods below mutate it.
	Attendees []string  `json:"attendees"`
	CreatorID string    `json:"creator_id"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendeeCount returns the current roster size.
func (e *Event) AttendeeCount() int {
	return len(e.Attendees)
}

// IsFull returns true when no places remain.
func (e *Event) IsFull() bool {
	return len(e.Attendees) >= e.Capacity
}

// HasAttendee reports whether userID is on the roster.
func (e *Event) HasAttendee(userID string) bool {
	return slices.Contains(e.Attendees, userID)
}

// AddAttendee puts userID on the roster. It returns false if the user was
// already there.
func (e *Event) AddAttendee(userID string) bool {
	if e.HasAttendee(userID) {
		return false
	}
	e.Attendees = append(e.Attendees, userID)
	return true
}

// RemoveAttendee takes userID off the roster. It returns false if the user
// was not there.
func (e *Event) RemoveAttendee(userID string) bool {
	i := slices.Index(e.Attendees, userID)
	if i < 0 {
		return false
	}
	e.Attendees = slices.Delete(e.Attendees, i, i+1)
	return true
}

// Clone returns a deep copy so callers can mutate without aliasing the roster.
func (e *Event) Clone() *Event {
	c := *e
	c.Attendees = slices.Clone(e.Attendees)
	if c.Attendees == nil {
		c.Attendees = []string{}
	}
	return &c
}

// EventRequest is the payload for creating or fully replacing an event.
// There is no creator field: ownership comes from the caller's
// identity.
type EventRequest struct {
	Name        string    `json:"name" validate:"required,max=100"`
	Description string    `json:"description"`
	StartTime   time.Time `json:"start_time" validate:"required"`
	EndTime     time.Time `json:"end_time" validate:"required"`
	Capacity    *int      `json:"capacity" validate:"required,min=0,max=2147483647"`
}

// EventPatch is the payload for a partial update. Nil fields keep their
// current value.
type EventPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Capacity    *int       `json:"capacity"`
}

// Apply overlays the patch on the request built from the stored event.
func (p EventPatch) Apply(req EventRequest) EventRequest {
	if p.Name != nil {
		req.Name = *p.Name
	}
	if p.Description != nil {
		req.Description = *p.Description
	}
	if p.StartTime != nil {
		req.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		req.EndTime = *p.EndTime
	}
	if p.Capacity != nil {
		req.Capacity = p.Capacity
	}
	return req
}

// RequestFromEvent returns the replaceable fields of e as a request.
func RequestFromEvent(e *Event) EventRequest {
	capacity := e.Capacity
	return EventRequest{
		Name:        e.Name,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Capacity:    &capacity,
	}
}

// EventFilter selects a subset of events. Set criteria are AND-combined.
type EventFilter struct {
	// Date matches events starting on this UTC calendar day.
	Date   *time.Time
	Past   bool
	Future bool
}

// Empty reports whether no criteria are set.
func (f EventFilter) Empty() bool {
	return f.Date == nil && !f.Past && !f.Future
}

// OutcomeKind classifies the result of a roster operation.
type OutcomeKind string

const (
	OutcomeRegistered     OutcomeKind = "registered"
	OutcomeFull           OutcomeKind = "full"
	OutcomeAlreadyStarted OutcomeKind = "already_started"
	OutcomeUnregistered   OutcomeKind = "unregistered"
)

// RosterOutcome is the response to register/unregister. A refused
// registration is still a successful request; Kind and Message say why.
type RosterOutcome struct {
	Kind    OutcomeKind `json:"outcome"`
	Message string      `json:"message"`
	EventID string      `json:"event_id"`
	UserID  string      `json:"user_id"`
}

// User is an account known to the authentication provider.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	PasswordHash  string    `json:"-"`
	CreatedEvents []string  `json:"created_events"`
	CreatedAt     time.Time `json:"created_at"`
}

// RegisterUserRequest is the sign-up payload.
type RegisterUserRequest struct {
	Username  string `json:"username" validate:"required,max=150"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	Password2 string `json:"password2" validate:"required,eqfield=Password"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
}

// LoginRequest exchanges credentials for a token pair.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest exchanges a refresh token for a new access token.
type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

// TokenPair is returned by login. Refresh is omitted on refresh responses.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}
