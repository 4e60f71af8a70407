package handler

import (
	"net/http"

	"github.com/tgardela/event-manager/internal/model"
	"github.com/tgardela/event-manager/internal/service"
)

// UserHandler serves sign-up, token and account endpoints.
type UserHandler struct {
	svc *service.UserService
}

func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// SignUp handles POST /auth/register
func (h *UserHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "user", err)
		return
	}

	user, err := h.svc.Register(r.Context(), req)
	if err != nil {
		respondError(w, r, "user", err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles POST /auth/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "user", err)
		return
	}

	pair, err := h.svc.Login(r.Context(), req)
	if err != nil {
		respondError(w, r, "user", err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// Refresh handles POST /auth/login/refresh
func (h *UserHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req model.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, "user", err)
		return
	}

	pair, err := h.svc.Refresh(r.Context(), req)
	if err != nil {
		respondError(w, r, "user", err)
		return
	}

	writeJSON(w, http.StatusOK, pair)
}

// ListUsers handles GET /auth/user
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		respondError(w, r, "user", err)
		return
	}
	if users == nil {
		users = []model.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// GetUser handles GET /auth/user/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, "user", err)
		return
	}

	user, err := h.svc.GetUser(r.Context(), id)
	if err != nil {
		respondError(w, r, "user", err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
