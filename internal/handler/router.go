package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/metrics"
	"github.com/tgardela/event-manager/internal/service"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Events             *service.EventService
	Users              *service.UserService
	Tokens             *auth.JWTManager
	Health             Pinger
	Logger             zerolog.Logger
	CORSOrigins        []string
	LoginRatePerMinute int
}

// NewRouter builds the HTTP API.
func NewRouter(d Deps) http.Handler {
	events := NewEventHandler(d.Events)
	users := NewUserHandler(d.Users)
	requireAuth := auth.Middleware(d.Tokens, unauthorized)

	r := chi.NewRouter()

	// Global middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(Tracing)
	r.Use(metrics.HTTPMiddleware)
	r.Use(CORS(d.CORSOrigins))

	r.Get("/health", HealthCheck(d.Health))
	r.Handle("/metrics", metrics.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", users.SignUp)
		r.With(RateLimit(d.LoginRatePerMinute)).Post("/login", users.Login)
		r.Post("/login/refresh", users.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/user", users.ListUsers)
			r.Get("/user/{id}", users.GetUser)
		})
	})

	r.Route("/events", func(r chi.Router) {
		r.Use(requireAuth)
		r.Post("/", events.CreateEvent)
		r.Get("/", events.ListEvents)
		r.Get("/{id}", events.GetEvent)
		r.Put("/{id}", events.UpdateEvent)
		r.Patch("/{id}", events.PatchEvent)
		r.Post("/{id}/register", events.Register)
		r.Post("/{id}/unregister", events.Unregister)
		r.Get("/{id}/attendees", events.Attendees)
	})

	return r
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health. It fails with 503 when the store does
// not answer a ping within two seconds.
func HealthCheck(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
