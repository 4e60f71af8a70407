package repository

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/tgardela/event-manager/internal/database"
	"github.com/tgardela/event-manager/internal/model"
	"golang.org/x/sync/errgroup"
)

var (
	sharedOnce    sync.Once
	sharedInitErr error
	sharedPool    *pgxpool.Pool
)

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedPool != nil {
		sharedPool.Close()
	}
	os.Exit(code)
}

// setupPostgres starts (once) a disposable PostgreSQL, applies migrations and
// truncates all tables. It skips when -short is set or Docker is missing.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	sharedOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("events"),
			postgres.WithUsername("events"),
			postgres.WithPassword("events"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(time.Minute),
			),
		)
		if err != nil {
			sharedInitErr = err
			return
		}

		dbURL, err := container.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			sharedInitErr = err
			return
		}
		if err := database.MigrateUp(dbURL); err != nil {
			sharedInitErr = err
			return
		}
		sharedPool, sharedInitErr = pgxpool.New(ctx, dbURL)
	})
	if sharedInitErr != nil {
		t.Skipf("postgres unavailable: %v", sharedInitErr)
	}

	_, err := sharedPool.Exec(context.Background(), `TRUNCATE event_attendees, events, users`)
	require.NoError(t, err)
	return sharedPool
}

func seedUser(t *testing.T, users *UserRepository, name string) *model.User {
	t.Helper()
	u := &model.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, users.CreateUser(context.Background(), u))
	return u
}

func seedEvent(t *testing.T, events *EventRepository, creator *model.User, capacity int) *model.Event {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	e := &model.Event{
		ID:        uuid.NewString(),
		Name:      "Meetup",
		StartTime: now.Add(24 * time.Hour),
		EndTime:   now.Add(26 * time.Hour),
		Capacity:  capacity,
		CreatorID: creator.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, events.CreateEvent(context.Background(), e))
	return e
}

func TestPostgresEventRoundTrip(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	events := NewEventRepository(pool)

	alice := seedUser(t, users, "alice")
	e := seedEvent(t, events, alice, 5)

	got, err := events.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Meetup", got.Name)
	assert.Equal(t, "alice", got.CreatedBy)
	assert.Equal(t, alice.ID, got.CreatorID)
	assert.True(t, e.StartTime.Equal(got.StartTime))
	assert.Equal(t, []string{}, got.Attendees)

	_, err = events.GetEvent(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = events.GetEvent(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)

	fetched, err := users.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, fetched.CreatedEvents)
}

func TestPostgresModifyEventRoster(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	events := NewEventRepository(pool)

	alice := seedUser(t, users, "alice")
	bob := seedUser(t, users, "bob")
	e := seedEvent(t, events, alice, 5)

	_, err := events.ModifyEvent(ctx, e.ID, func(ev *model.Event) error {
		ev.AddAttendee(alice.ID)
		ev.AddAttendee(bob.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = events.ModifyEvent(ctx, e.ID, func(ev *model.Event) error {
		ev.RemoveAttendee(alice.ID)
		ev.Name = "Renamed"
		return nil
	})
	require.NoError(t, err)

	got, err := events.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, []string{bob.ID}, got.Attendees)

	list, err := events.ListEvents(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{bob.ID}, list[0].Attendees)
}

func TestPostgresModifyEventHoldsCapacityUnderContention(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	events := NewEventRepository(pool)

	creator := seedUser(t, users, "creator")
	const capacity = 3
	e := seedEvent(t, events, creator, capacity)

	var attendees []*model.User
	for i := 0; i < 12; i++ {
		attendees = append(attendees, seedUser(t, users, fmt.Sprintf("user%d", i)))
	}

	var g errgroup.Group
	for _, u := range attendees {
		g.Go(func() error {
			_, err := events.ModifyEvent(ctx, e.ID, func(ev *model.Event) error {
				if !ev.IsFull() {
					ev.AddAttendee(u.ID)
				}
				return nil
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := events.GetEvent(ctx, e.ID)
	require.NoError(t, err)
	assert.Len(t, got.Attendees, capacity)
}

func TestPostgresUserUniqueness(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)

	seedUser(t, users, "alice")

	err := users.CreateUser(ctx, &model.User{ID: uuid.NewString(), Username: "alice", Email: "new@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	err = users.CreateUser(ctx, &model.User{ID: uuid.NewString(), Username: "alice2", Email: "ALICE@example.com", PasswordHash: "x", CreatedAt: time.Now()})
	assert.ErrorIs(t, err, ErrEmailTaken)

	found, err := users.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	byID, err := users.UsersByIDs(ctx, []string{found.ID, uuid.NewString()})
	require.NoError(t, err)
	require.Len(t, byID, 1)

	all, err := users.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
