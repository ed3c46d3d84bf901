package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/wish-board/internal/model"
)

// CookieName is the HttpOnly cookie that carries the session token.
const CookieName = "token"

// contextKey is unexported so only this package can read or write the
// identity stored in a request context.
type contextKey string

const identityKey contextKey = "identity"

// IdentityResolver maps a token subject back to the identity triple.
// service.AuthService implements it with a memoised store lookup.
type IdentityResolver interface {
	Identity(ctx context.Context, userID string) (model.Identity, error)
}

// RequireAuth rejects requests without a valid session with 401 and
// attaches the caller's model.Identity to the context otherwise.
//
// Any failure, including a datastore error while resolving the subject,
// denies the request.
func RequireAuth(tokens *TokenService, resolver IdentityResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := resolveIdentity(r, tokens, resolver)
			if err != nil {
				logger.Debug("authentication rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				writeUnauthorized(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// OptionalAuth attaches the identity when a valid session is present and
// lets anonymous requests through unchanged.
func OptionalAuth(tokens *TokenService, resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, err := resolveIdentity(r, tokens, resolver); err == nil {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, if any.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id.ID != ""
}

func resolveIdentity(r *http.Request, tokens *TokenService, resolver IdentityResolver) (model.Identity, error) {
	raw, err := tokenFromRequest(r)
	if err != nil {
		return model.Identity{}, err
	}

	userID, err := tokens.Validate(raw)
	if err != nil {
		return model.Identity{}, err
	}

	return resolver.Identity(r.Context(), userID)
}

// tokenFromRequest prefers the session cookie and falls back to an
// "Authorization: Bearer" header for non-browser clients.
func tokenFromRequest(r *http.Request) (string, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, nil
	}

	if h := r.Header.Get("Authorization"); h != "" {
		if raw, ok := strings.CutPrefix(h, "Bearer "); ok && raw != "" {
			return raw, nil
		}
	}

	return "", http.ErrNoCookie
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`))
}
