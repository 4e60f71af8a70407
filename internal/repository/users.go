package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tgardela/event-manager/internal/model"
)

const userColumns = `id::text, username, email, first_name, last_name, password_hash, created_at`

// UserRepository handles persistence for accounts.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser inserts u. Username and e-mail (case-insensitive) are unique.
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, username, email, first_name, last_name, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Username, u.Email, u.FirstName, u.LastName, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		err = classify(err)
		if errors.Is(err, ErrUsernameTaken) || errors.Is(err, ErrEmailTaken) {
			return err
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a user with the IDs of the events they created.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return r.getUserWhere(ctx, `id = $1`, id)
}

// GetUserByUsername looks a user up by login name.
func (r *UserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getUserWhere(ctx, `username = $1`, username)
}

// ListUsers returns all users ordered by sign-up time.
func (r *UserRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	created, err := r.createdEvents(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range users {
		if ids, ok := created[users[i].ID]; ok {
			users[i].CreatedEvents = ids
		}
	}
	return users, nil
}

// UsersByIDs returns the users whose IDs are listed, in the order given.
// Unknown IDs are skipped.
func (r *UserRepository) UsersByIDs(ctx context.Context, ids []string) ([]model.User, error) {
	if len(ids) == 0 {
		return []model.User{}, nil
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE id::text = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("users by id: %w", err)
	}
	found, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	byID := make(map[string]model.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	users := make([]model.User, 0, len(found))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *UserRepository) getUserWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	created, err := r.createdEvents(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if ids, ok := created[u.ID]; ok {
		u.CreatedEvents = ids
	}
	return &u, nil
}

// createdEvents maps creator IDs to the events they own. An empty userID
// loads every creator.
func (r *UserRepository) createdEvents(ctx context.Context, userID string) (map[string][]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT created_by::text, id::text FROM events
		 WHERE $1 = '' OR created_by::text = $1
		 ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("created events: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var creator, eventID string
		if err := rows.Scan(&creator, &eventID); err != nil {
			return nil, fmt.Errorf("scan created event: %w", err)
		}
		out[creator] = append(out[creator], eventID)
	}
	return out, rows.Err()
}

func scanUser(row pgx.CollectableRow) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash, &u.CreatedAt)
	u.CreatedEvents = []string{}
	return u, err
}
