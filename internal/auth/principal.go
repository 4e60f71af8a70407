package auth

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"
)

// Principal is the authenticated identity behind a request.
type Principal struct {
	UserID   string
	Username string
}

type contextKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// CurrentUser returns the principal attached by Middleware.
func CurrentUser(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// Middleware rejects requests without a valid access token and stores the
// principal in the request context. The request logger gains a user_id field.
func Middleware(tokens *JWTManager, unauthorized func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				unauthorized(w, r, err)
				return
			}
			claims, err := tokens.Validate(raw, TokenAccess)
			if err != nil {
				unauthorized(w, r, err)
				return
			}

			p := Principal{UserID: claims.Subject, Username: claims.Username}
			ctx := WithPrincipal(r.Context(), p)
			logger := zerolog.Ctx(ctx).With().Str("user_id", p.UserID).Logger()
			ctx = logger.WithContext(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
