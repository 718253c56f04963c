package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/omega-realm/pokeidle/internal/auth"
)

type contextKey string

// PlayerContextKey is the key for storing player claims in request context
const PlayerContextKey contextKey = "player"

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// TokenValidator checks an access token
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header, falling
// back to the token query parameter that browsers use for WebSocket upgrades
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// RequireAuth validates the bearer token and stores its claims in the request context
func RequireAuth(v TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				WriteError(w, http.StatusUnauthorized, "Missing authorization. Use: Bearer <token>")
				return
			}
			claims, err := v.ValidateToken(token)
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), PlayerContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPlayerClaims extracts player claims from request context
func GetPlayerClaims(r *http.Request) (*auth.Claims, bool) {
	claims, ok := r.Context().Value(PlayerContextKey).(*auth.Claims)
	return claims, ok
}

// WriteError writes a JSON error body with status
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}

// WriteJSON writes v as a JSON body with status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
