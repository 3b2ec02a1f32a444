package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/onnwee/eventchat/internal/auth"
)

// ErrCodeAuthFailed is the error code of rejected requests. It matches the
// code the api package uses.
const ErrCodeAuthFailed = "auth_failed"

// accessTokenParam carries the token on WebSocket upgrades, where browsers
// cannot set an Authorization header.
const accessTokenParam = "access_token"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// stores the token subject as the user id otherwise.
func RequireAuth(validator TokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	return authenticate(validator, metrics, true)
}

// OptionalAuth stores the user id when a valid token is present, lets
// anonymous requests through, and rejects invalid tokens with 401.
func OptionalAuth(validator TokenValidator, metrics *Metrics) func(http.Handler) http.Handler {
	return authenticate(validator, metrics, false)
}

func authenticate(validator TokenValidator, metrics *Metrics, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if !required {
					next.ServeHTTP(w, r)
					return
				}
				metrics.IncAuthFailures("missing")
				writeAuthError(w, r, "Authentication required")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					metrics.IncAuthFailures("expired")
					writeAuthError(w, r, "Token has expired")
					return
				}
				metrics.IncAuthFailures("invalid")
				writeAuthError(w, r, "Invalid token")
				return
			}

			ctx := SetUserID(r.Context(), claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>", or
// from the access_token query parameter on WebSocket upgrades.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return r.URL.Query().Get(accessTokenParam)
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="eventchat"`)
	writeJSONError(w, r, http.StatusUnauthorized, ErrCodeAuthFailed, message)
}

// writeJSONError writes the {"error":{"code","message"}} envelope used by
// the api package.
func writeJSONError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)

	body, _ := json.Marshal(map[string]map[string]string{
		"error": {"code": code, "message": message},
	})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
