package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/metrics"
	"github.com/tgardela/event-manager/internal/model"
)

// decideRegistration picks the outcome of registering for e at now. A full
// roster wins over a started event.
func decideRegistration(e *model.Event, now time.Time) model.OutcomeKind {
	switch {
	case e.IsFull():
		return model.OutcomeFull
	case e.StartTime.Before(now):
		return model.OutcomeAlreadyStarted
	default:
		return model.OutcomeRegistered
	}
}

func newOutcome(kind model.OutcomeKind, eventID, userID string) model.RosterOutcome {
	var msg string
	switch kind {
	case model.OutcomeFull:
		msg = "The attendance list for this event is full. You cannot register at this time."
	case model.OutcomeAlreadyStarted:
		msg = "The event has already started, you cannot register to it."
	case model.OutcomeRegistered:
		msg = fmt.Sprintf("Registered user: %s for event: %s", userID, eventID)
	case model.OutcomeUnregistered:
		msg = fmt.Sprintf("Unregistered user: %s for event: %s", userID, eventID)
	}
	return model.RosterOutcome{Kind: kind, Message: msg, EventID: eventID, UserID: userID}
}

// Register adds actor to the roster of event id when there is room and the
// event has not started. Refusals are outcomes, not errors. Registering
// twice is a no-op that reports success.
func (s *EventService) Register(ctx context.Context, id string, actor auth.Principal) (*model.RosterOutcome, error) {
	return s.roster(ctx, "EventService.Register", id, actor, func(e *model.Event, now time.Time) model.OutcomeKind {
		kind := decideRegistration(e, now)
		if kind == model.OutcomeRegistered && e.AddAttendee(actor.UserID) {
			e.UpdatedAt = now.Truncate(time.Microsecond)
		}
		return kind
	})
}

// Unregister removes actor from the roster of event id. Removing someone
// who is not registered still reports success.
func (s *EventService) Unregister(ctx context.Context, id string, actor auth.Principal) (*model.RosterOutcome, error) {
	return s.roster(ctx, "EventService.Unregister", id, actor, func(e *model.Event, now time.Time) model.OutcomeKind {
		if e.RemoveAttendee(actor.UserID) {
			e.UpdatedAt = now.Truncate(time.Microsecond)
		}
		return model.OutcomeUnregistered
	})
}

func (s *EventService) roster(
	ctx context.Context,
	spanName, id string,
	actor auth.Principal,
	apply func(e *model.Event, now time.Time) model.OutcomeKind,
) (*model.RosterOutcome, error) {
	ctx, span := tracer.Start(ctx, spanName, trace.WithAttributes(
		attribute.String("event.id", id),
		attribute.String("user.id", actor.UserID),
	))
	defer span.End()

	var outcome model.RosterOutcome
	_, err := s.modify(ctx, id, func(e *model.Event) error {
		kind := apply(e, s.clock.Now())
		outcome = newOutcome(kind, e.ID, actor.UserID)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "roster write")
		return nil, err
	}

	metrics.RosterOutcomes.WithLabelValues(string(outcome.Kind)).Inc()
	span.SetAttributes(attribute.String("roster.outcome", string(outcome.Kind)))
	s.logger.Info().
		Str("event_id", outcome.EventID).
		Str("user_id", outcome.UserID).
		Str("outcome", string(outcome.Kind)).
		Msg("roster operation")
	return &outcome, nil
}
