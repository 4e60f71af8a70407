// Package service implements business logic, validation, and orchestration
// between HTTP handlers and the repository layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/clock"
	"github.com/tgardela/event-manager/internal/metrics"
	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/repository"
)

var tracer = otel.Tracer("github.com/tgardela/event-manager/internal/service")

// ErrBusy is returned when an event write keeps losing to concurrent
// transactions after every retry.
var ErrBusy = errors.New("event is busy, try again")

// EventStore persists events and their rosters.
type EventStore interface {
	CreateEvent(ctx context.Context, e *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context) ([]model.Event, error)
	ModifyEvent(ctx context.Context, id string, fn repository.MutateFunc) (*model.Event, error)
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UsersByIDs(ctx context.Context, ids []string) ([]model.User, error)
}

// EventService orchestrates event-related business operations.
type EventService struct {
	events      EventStore
	users       UserStore
	clock       clock.Clock
	logger      zerolog.Logger
	maxAttempts int
	backoff     time.Duration
}

// Option configures an EventService.
type Option func(*EventService)

// WithRetry sets how many times a conflicting event write is attempted and
// the base delay between attempts.
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *EventService) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		s.backoff = backoff
	}
}

// NewEventService constructs an EventService with its dependencies.
func NewEventService(events EventStore, users UserStore, clk clock.Clock, logger zerolog.Logger, opts ...Option) *EventService {
	s := &EventService{
		events:      events,
		users:       users,
		clock:       clk,
		logger:      logger.With().Str("component", "events").Logger(),
		maxAttempts: 3,
		backoff:     20 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent validates req and stores a new event owned by actor.
func (s *EventService) CreateEvent(ctx context.Context, actor auth.Principal, req model.EventRequest) (*model.Event, error) {
	ctx, span := tracer.Start(ctx, "EventService.CreateEvent")
	defer span.End()

	req = NormalizeEvent(req)
	now := s.clock.Now()
	if err := ValidateEvent(req, now); err != nil {
		metrics.EventWrites.WithLabelValues("create", "invalid").Inc()
		return nil, err
	}

	stamp := now.Truncate(time.Microsecond)
	e := &model.Event{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Capacity:    *req.Capacity,
		Attendees:   []string{},
		CreatorID:   actor.UserID,
		CreatedBy:   actor.Username,
		CreatedAt:   stamp,
		UpdatedAt:   stamp,
	}
	if err := s.events.CreateEvent(ctx, e); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create event")
		return nil, fmt.Errorf("create event: %w", err)
	}

	metrics.EventWrites.WithLabelValues("create", "ok").Inc()
	span.SetAttributes(attribute.String("event.id", e.ID))
	s.logger.Info().
		Str("event_id", e.ID).
		Str("creator_id", e.CreatorID).
		Int("capacity", e.Capacity).
		Msg("event created")
	return e, nil
}

// GetEvent returns a single event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := s.events.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns the events matching f in creation order.
func (s *EventService) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	events, err := s.events.ListEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return Filter(events, f, s.clock.Now()), nil
}

// UpdateEvent replaces the editable fields of event id. Only the creator
// may do this.
func (s *EventService) UpdateEvent(ctx context.Context, actor auth.Principal, id string, req model.EventRequest) (*model.Event, error) {
	return s.update(ctx, "UpdateEvent", actor, id, func(*model.Event) model.EventRequest {
		return req
	})
}

// PatchEvent changes the fields set in patch and keeps the rest.
func (s *EventService) PatchEvent(ctx context.Context, actor auth.Principal, id string, patch model.EventPatch) (*model.Event, error) {
	return s.update(ctx, "PatchEvent", actor, id, func(current *model.Event) model.EventRequest {
		return patch.Apply(model.RequestFromEvent(current))
	})
}

// update runs the guard and then validation against the locked event, so
// the capacity check sees the roster as it is at commit time.
func (s *EventService) update(
	ctx context.Context,
	op string,
	actor auth.Principal,
	id string,
	build func(current *model.Event) model.EventRequest,
) (*model.Event, error) {
	ctx, span := tracer.Start(ctx, "EventService."+op, trace.WithAttributes(attribute.String("event.id", id)))
	defer span.End()

	var changed bool
	updated, err := s.modify(ctx, id, func(e *model.Event) error {
		if err := AuthorizeMutation(e, actor); err != nil {
			return err
		}
		req := NormalizeEvent(build(e))
		now := s.clock.Now()
		if err := ValidateEvent(req, now); err != nil {
			return err
		}
		if *req.Capacity < e.AttendeeCount() {
			return ErrCapacityBelowAttendees
		}

		changed = e.Name != req.Name ||
			e.Description != req.Description ||
			!e.StartTime.Equal(req.StartTime) ||
			!e.EndTime.Equal(req.EndTime) ||
			e.Capacity != *req.Capacity
		if !changed {
			return nil
		}
		e.Name = req.Name
		e.Description = req.Description
		e.StartTime = req.StartTime
		e.EndTime = req.EndTime
		e.Capacity = *req.Capacity
		e.UpdatedAt = now.Truncate(time.Microsecond)
		return nil
	})

	switch {
	case err == nil:
		metrics.EventWrites.WithLabelValues("update", "ok").Inc()
	case errors.Is(err, ErrPermissionDenied):
		metrics.EventWrites.WithLabelValues("update", "denied").Inc()
		s.logger.Warn().Str("event_id", id).Str("actor_id", actor.UserID).Msg("update denied")
		return nil, err
	case IsValidation(err):
		metrics.EventWrites.WithLabelValues("update", "invalid").Inc()
		return nil, err
	case errors.Is(err, repository.ErrNotFound):
		return nil, repository.ErrNotFound
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, "update event")
		return nil, err
	}

	if changed {
		s.logger.Info().Str("event_id", id).Str("actor_id", actor.UserID).Msg("event updated")
	}
	return updated, nil
}

// Attendees returns the users registered for event id, in join order.
func (s *EventService) Attendees(ctx context.Context, id string) ([]model.User, error) {
	e, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	users, err := s.users.UsersByIDs(ctx, e.Attendees)
	if err != nil {
		return nil, fmt.Errorf("load attendees: %w", err)
	}
	return users, nil
}

// modify calls ModifyEvent and retries while it reports a transient
// conflict. After maxAttempts it gives up with ErrBusy.
func (s *EventService) modify(ctx context.Context, id string, fn repository.MutateFunc) (*model.Event, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		e, err := s.events.ModifyEvent(ctx, id, fn)
		if !errors.Is(err, repository.ErrTransient) {
			return e, err
		}
		lastErr = err

		if attempt == s.maxAttempts {
			break
		}
		metrics.RosterRetries.Inc()
		s.logger.Warn().Err(err).Str("event_id", id).Int("attempt", attempt).Msg("retrying event write")

		timer := time.NewTimer(s.backoff * time.Duration(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	metrics.RosterBusy.Inc()
	s.logger.Error().Err(lastErr).Str("event_id", id).Int("attempts", s.maxAttempts).Msg("event write abandoned")
	return nil, fmt.Errorf("%w: %v", ErrBusy, lastErr)
}
