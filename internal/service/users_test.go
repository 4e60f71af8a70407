package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/clock"
	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/repository"
)

func newUserService(t *testing.T) (*UserService, *auth.JWTManager) {
	t.Helper()
	tokens := auth.NewJWTManager("test-secret", 5*time.Minute, 24*time.Hour, "event-manager")
	svc := NewUserService(repository.NewMemoryStore(), tokens, clock.NewFixed(testNow), zerolog.Nop(),
		WithBcryptCost(bcrypt.MinCost))
	return svc, tokens
}

func signup(username, email string) model.RegisterUserRequest {
	return model.RegisterUserRequest{
		Username:  username,
		Email:     email,
		Password:  "correct-horse",
		Password2: "correct-horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func TestRegisterUser(t *testing.T) {
	svc, _ := newUserService(t)

	u, err := svc.Register(context.Background(), signup("ada", "ada@example.com"))
	require.NoError(t, err)

	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada", u.Username)
	assert.NotEqual(t, "correct-horse", u.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct-horse")))
	assert.Empty(t, u.CreatedEvents)
}

func TestRegisterUserValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *model.RegisterUserRequest)
		field  string
	}{
		{name: "passwords differ", mutate: func(r *model.RegisterUserRequest) { r.Password2 = "something-else" }, field: "password2"},
		{name: "short password", mutate: func(r *model.RegisterUserRequest) { r.Password, r.Password2 = "short", "short" }, field: "password"},
		{name: "bad email", mutate: func(r *model.RegisterUserRequest) { r.Email = "not-an-email" }, field: "email"},
		{name: "missing first name", mutate: func(r *model.RegisterUserRequest) { r.FirstName = "  " }, field: "first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newUserService(t)
			req := signup("ada", "ada@example.com")
			tt.mutate(&req)

			_, err := svc.Register(context.Background(), req)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestRegisterUserUniqueness(t *testing.T) {
	svc, _ := newUserService(t)
	_, err := svc.Register(context.Background(), signup("ada", "ada@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), signup("ada", "other@example.com"))
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "username")

	_, err = svc.Register(context.Background(), signup("grace", "ADA@example.com"))
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "email")
}

func TestLoginAndRefresh(t *testing.T) {
	svc, tokens := newUserService(t)
	u, err := svc.Register(context.Background(), signup("ada", "ada@example.com"))
	require.NoError(t, err)

	pair, err := svc.Login(context.Background(), model.LoginRequest{Username: "ada", Password: "correct-horse"})
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)

	claims, err := tokens.Validate(pair.Access, auth.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.Subject)
	assert.Equal(t, "ada", claims.Username)

	refreshed, err := svc.Refresh(context.Background(), model.RefreshRequest{Refresh: pair.Refresh})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.Access)
	assert.Empty(t, refreshed.Refresh)

	_, err = svc.Refresh(context.Background(), model.RefreshRequest{Refresh: pair.Access})
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newUserService(t)
	_, err := svc.Register(context.Background(), signup("ada", "ada@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), model.LoginRequest{Username: "ada", Password: "wrong-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), model.LoginRequest{Username: "nobody", Password: "correct-horse"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUnknownUserLoginStillHashes(t *testing.T) {
	tokens := auth.NewJWTManager("test-secret", 5*time.Minute, 24*time.Hour, "event-manager")
	svc := NewUserService(repository.NewMemoryStore(), tokens, clock.NewFixed(testNow), zerolog.Nop(),
		WithBcryptCost(bcrypt.MinCost+1))

	_, err := svc.Login(context.Background(), model.LoginRequest{Username: "nobody", Password: "correct-horse"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	hash := svc.dummyHash()
	cost, err := bcrypt.Cost(hash)
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
	assert.Equal(t, hash, svc.dummyHash())
	assert.ErrorIs(t, bcrypt.CompareHashAndPassword(hash, []byte("correct-horse")), bcrypt.ErrMismatchedHashAndPassword)
}

func TestListAndGetUsers(t *testing.T) {
	svc, _ := newUserService(t)
	ada, err := svc.Register(context.Background(), signup("ada", "ada@example.com"))
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), signup("grace", "grace@example.com"))
	require.NoError(t, err)

	users, err := svc.ListUsers(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada", users[0].Username)

	got, err := svc.GetUser(context.Background(), ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = svc.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
