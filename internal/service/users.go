package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/clock"
	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/repository"
)

// ErrInvalidCredentials is returned by Login for an unknown user or a wrong
// password. The two cases are not distinguished.
var ErrInvalidCredentials = errors.New("No active account found with the given credentials")

// DefaultBcryptCost is the bcrypt work factor for new passwords.
const DefaultBcryptCost = 12

// UserService handles sign-up, login and account lookups.
type UserService struct {
	users      UserStore
	tokens     *auth.JWTManager
	clock      clock.Clock
	logger     zerolog.Logger
	bcryptCost int
	// dummyHash is compared against on unknown usernames so a failed
	// login costs the same whether or not the account exists.
	dummyHash func() []byte
}

// UserOption configures a UserService.
type UserOption func(*UserService)

// WithBcryptCost overrides the password hashing cost. Tests use
// bcrypt.MinCost.
func WithBcryptCost(cost int) UserOption {
	return func(s *UserService) {
		s.bcryptCost = cost
	}
}

func NewUserService(users UserStore, tokens *auth.JWTManager, clk clock.Clock, logger zerolog.Logger, opts ...UserOption) *UserService {
	s := &UserService{
		users:      users,
		tokens:     tokens,
		clock:      clk,
		logger:     logger.With().Str("component", "users").Logger(),
		bcryptCost: DefaultBcryptCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.dummyHash = sync.OnceValue(func() []byte {
		hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.bcryptCost)
		if err != nil {
			panic(fmt.Sprintf("generate dummy password hash: %v", err))
		}
		return hash
	})
	return s
}

// Register creates an account. Username and email must be unused and both
// password fields must match.
func (s *UserService) Register(ctx context.Context, req model.RegisterUserRequest) (*model.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, fieldError("password", "Ensure this field has no more than 72 bytes.")
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:            uuid.NewString(),
		Username:      req.Username,
		Email:         req.Email,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		PasswordHash:  string(hash),
		CreatedEvents: []string{},
		CreatedAt:     s.clock.Now().Truncate(time.Microsecond),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, fieldError("username", "A user with that username already exists.")
		case errors.Is(err, repository.ErrEmailTaken):
			return nil, fieldError("email", "A user with that email already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info().Str("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// Login checks the credentials and issues an access and refresh token.
func (s *UserService) Login(ctx context.Context, req model.LoginRequest) (*model.TokenPair, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	u, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(req.Password))
			s.logger.Warn().Str("username", req.Username).Msg("login failed")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		s.logger.Warn().Str("username", req.Username).Msg("login failed")
		return nil, ErrInvalidCredentials
	}

	access, refresh, err := s.tokens.Pair(auth.Principal{UserID: u.ID, Username: u.Username})
	if err != nil {
		return nil, fmt.Errorf("issue tokens: %w", err)
	}
	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

// Refresh exchanges a refresh token for a new access token. The account
// must still exist.
func (s *UserService) Refresh(ctx context.Context, req model.RefreshRequest) (*model.TokenPair, error) {
	if err := checkStruct(req); err != nil {
		return nil, err
	}

	claims, err := s.tokens.Validate(req.Refresh, auth.TokenRefresh)
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, auth.ErrInvalidToken
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	access, err := s.tokens.Generate(auth.Principal{UserID: u.ID, Username: u.Username}, auth.TokenAccess)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &model.TokenPair{Access: access}, nil
}

// ListUsers returns every account with the events it created.
func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// GetUser returns one account by ID.
func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.users.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func fieldError(field, msg string) *ValidationError {
	return &ValidationError{Code: CodeInvalidField, Message: msg, Fields: map[string]string{field: msg}}
}
