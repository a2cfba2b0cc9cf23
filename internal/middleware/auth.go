package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AnshRaj112/tandem-backend/pkg/utils"
	"github.com/rs/zerolog"
)

type ctxKey int

const userIDKey ctxKey = iota

// SessionValidator resolves a bearer token to a user id.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (string, bool, error)
}

// UserIDFromContext returns the user authenticated by RequireSession.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// WithUserID stores userID the way RequireSession does.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// BearerToken reads "Authorization: Bearer <token>", falling back to the token
// query parameter for browser WebSocket clients.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")); t != "" {
			return t
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// RequireSession rejects requests without a live session token.
func RequireSession(sessions SessionValidator, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "missing session token")
				return
			}
			userID, ok, err := sessions.Validate(r.Context(), token)
			if err != nil {
				log.Error().Err(err).Msg("session lookup failed")
				writeJSONError(w, http.StatusServiceUnavailable, "session store unavailable")
				return
			}
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "invalid session token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// AdminKey guards moderator endpoints with the X-Admin-Key header, verified against
// an argon2id hash. An empty hash locks the endpoints entirely.
func AdminKey(keyHash string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get("X-Admin-Key"))
			if keyHash == "" || key == "" {
				writeJSONError(w, http.StatusUnauthorized, "admin key required")
				return
			}
			ok, err := utils.VerifySecret(key, keyHash)
			if err != nil {
				log.Error().Err(err).Msg("ADMIN_KEY_HASH is not a valid argon2id hash")
				writeJSONError(w, http.StatusInternalServerError, "admin access misconfigured")
				return
			}
			if !ok {
				writeJSONError(w, http.StatusForbidden, "invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
