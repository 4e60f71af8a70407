// Package repository implements persistence for events, rosters and users.
// It uses pgx directly (no ORM); MemoryStore offers the same contract
// in-process for tests and local runs.
package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tgardela/event-manager/internal/model"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrTransient marks a write that lost a race with a concurrent transaction
// (serialization failure or deadlock). Retrying may succeed.
var ErrTransient = errors.New("transient conflict")

// ErrUsernameTaken and ErrEmailTaken report unique-key collisions on users.
var (
	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")
)

// MutateFunc edits a locked copy of an event. Returning an error aborts the
// write. Leaving the copy unchanged skips it.
type MutateFunc func(e *model.Event) error

const eventColumns = `e.id::text, e.name, e.description, e.start_time, e.end_time, e.capacity,
	e.created_by::text, u.username, e.created_at, e.updated_at`

// EventRepository handles persistence for events and their rosters.
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository constructs an EventRepository.
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

// CreateEvent inserts e. The caller assigns ID and timestamps.
func (r *EventRepository) CreateEvent(ctx context.Context, e *model.Event) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO events (id, name, description, start_time, end_time, capacity, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Name, e.Description, e.StartTime, e.EndTime, e.Capacity, e.CreatorID, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", classify(err))
	}
	return nil
}

// ListEvents returns all events in insertion order with their rosters.
func (r *EventRepository) ListEvents(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+eventColumns+`
		 FROM events e JOIN users u ON u.id = e.created_by
		 ORDER BY e.created_at ASC, e.id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}

	rosters, err := r.allRosters(ctx)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if ids, ok := rosters[events[i].ID]; ok {
			events[i].Attendees = ids
		}
	}
	return events, nil
}

// GetEvent returns a single event with its roster or ErrNotFound.
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return getEvent(ctx, r.db, id, false)
}

// ModifyEvent applies fn to event id as one atomic unit.
//
// The event row is locked with SELECT … FOR UPDATE before the roster is read,
// so concurrent modifications of the same event queue behind each other and
// a capacity check inside fn cannot be invalidated before the write commits.
// Events other than id are not locked.
func (r *EventRepository) ModifyEvent(ctx context.Context, id string, fn MutateFunc) (*model.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var before *model.Event
	before, err = getEvent(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	after := before.Clone()
	if err = fn(after); err != nil {
		return nil, err
	}

	if fieldsChanged(before, after) {
		_, err = tx.Exec(ctx,
			`UPDATE events
			 SET name = $2, description = $3, start_time = $4, end_time = $5, capacity = $6, updated_at = $7
			 WHERE id = $1`,
			id, after.Name, after.Description, after.StartTime, after.EndTime, after.Capacity, after.UpdatedAt,
		)
		if err != nil {
			err = fmt.Errorf("update event: %w", classify(err))
			return nil, err
		}
	}

	added, removed := diffRoster(before.Attendees, after.Attendees)
	for _, userID := range removed {
		if _, err = tx.Exec(ctx,
			`DELETE FROM event_attendees WHERE event_id = $1 AND user_id = $2`,
			id, userID,
		); err != nil {
			err = fmt.Errorf("remove attendee: %w", classify(err))
			return nil, err
		}
	}
	for _, userID := range added {
		if _, err = tx.Exec(ctx,
			`INSERT INTO event_attendees (event_id, user_id) VALUES ($1, $2)
			 ON CONFLICT (event_id, user_id) DO NOTHING`,
			id, userID,
		); err != nil {
			err = fmt.Errorf("add attendee: %w", classify(err))
			return nil, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		err = fmt.Errorf("commit transaction: %w", classify(err))
		return nil, err
	}
	return after, nil
}

// Ping checks the database is reachable.
func (r *EventRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getEvent(ctx context.Context, q querier, id string, forUpdate bool) (*model.Event, error) {
	query := `SELECT ` + eventColumns + `
		 FROM events e JOIN users u ON u.id = e.created_by
		 WHERE e.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF e`
	}

	rows, err := q.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", classify(err))
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanEvent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", classify(err))
	}

	attendees, err := roster(ctx, q, id)
	if err != nil {
		return nil, err
	}
	e.Attendees = attendees
	return &e, nil
}

func scanEvent(row pgx.CollectableRow) (model.Event, error) {
	var e model.Event
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.StartTime, &e.EndTime, &e.Capacity,
		&e.CreatorID, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	e.Attendees = []string{}
	return e, err
}

func roster(ctx context.Context, q querier, eventID string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id::text FROM event_attendees
		 WHERE event_id = $1
		 ORDER BY joined_at ASC, user_id ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", classify(err))
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan roster: %w", err)
	}
	return ids, nil
}

func (r *EventRepository) allRosters(ctx context.Context) (map[string][]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_id::text, user_id::text FROM event_attendees
		 ORDER BY joined_at ASC, user_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load rosters: %w", err)
	}
	defer rows.Close()

	rosters := make(map[string][]string)
	for rows.Next() {
		var eventID, userID string
		if err := rows.Scan(&eventID, &userID); err != nil {
			return nil, fmt.Errorf("scan roster: %w", err)
		}
		rosters[eventID] = append(rosters[eventID], userID)
	}
	return rosters, rows.Err()
}

func fieldsChanged(a, b *model.Event) bool {
	return a.Name != b.Name ||
		a.Description != b.Description ||
		!a.StartTime.Equal(b.StartTime) ||
		!a.EndTime.Equal(b.EndTime) ||
		a.Capacity != b.Capacity ||
		!a.UpdatedAt.Equal(b.UpdatedAt)
}

func diffRoster(before, after []string) (added, removed []string) {
	for _, id := range after {
		if !slices.Contains(before, id) {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !slices.Contains(after, id) {
			removed = append(removed, id)
		}
	}
	return added, removed
}

// classify maps PostgreSQL error codes onto repository errors.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%w: %s", ErrTransient, pgErr.Message)
	case "22P02": // invalid_text_representation, e.g. a malformed uuid
		return ErrNotFound
	case "23505": // unique_violation
		switch pgErr.ConstraintName {
		case "users_username_key":
			return ErrUsernameTaken
		case "users_email_key":
			return ErrEmailTaken
		}
	}
	return err
}
