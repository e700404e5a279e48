package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ir-comercio/ir-comercio-sistema/internal/sessionclient"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tokenKey    contextKey = "session_token"
)

// SessionTokenHeader carries the portal session token on requests to protected services.
const SessionTokenHeader = "X-Session-Token"

// RequireSession validates the session token against the portal and attaches the identity to the context
func RequireSession(verifier sessionclient.Verifier, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				respondUnauthorized(w, "session token missing")
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				if errors.Is(err, sessionclient.ErrUnavailable) {
					logger.Warn("session verification unavailable", zap.String("path", r.URL.Path), zap.Error(err))
				}
				respondUnauthorized(w, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken reads the token from the X-Session-Token header, falling back to the sessionToken query parameter
func SessionToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(SessionTokenHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(r.URL.Query().Get("sessionToken"))
}

// GetIdentity returns the identity attached by RequireSession
func GetIdentity(ctx context.Context) (*sessionclient.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*sessionclient.Identity)
	return id, ok
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := GetIdentity(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return id.UserID, true
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":           message,
		"redirectToLogin": true,
	})
}

// respondWithError sends a JSON error response
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	response := map[string]string{"error": message}
	_ = json.NewEncoder(w).Encode(response)
}
