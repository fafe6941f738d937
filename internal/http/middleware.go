package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"noughts/internal/auth"
	"noughts/internal/platform/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func newSlogMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)
			logger.Info("http request", "method", r.Method, "path", r.URL.Path, "status", recorder.status, "duration", duration.String())
		})
	}
}

func newMetricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)
			collector.RecordRequest(recorder.status, time.Since(start))
		})
	}
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session"
	tokenContextKey   contextKey = "sessionToken"
)

// UserFromContext extracts the authenticated user from the request context.
// Returns nil if the auth middleware hasn't populated the context.
func UserFromContext(ctx context.Context) *auth.User {
	user, _ := ctx.Value(userContextKey).(*auth.User)
	return user
}

// SessionFromContext extracts the validated session from the request context.
func SessionFromContext(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// SessionTokenFromContext extracts the raw bearer token that authenticated
// the request.
func SessionTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey).(string)
	return token
}

// sessionTokenFromRequest reads the bearer token, preferring the cookie over
// the X-Session-Token header.
func sessionTokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.Header.Get(sessionTokenHeader)
}

func newAuthMiddleware(authService *auth.Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionTokenFromRequest(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}

			user, session, err := authService.ValidateSession(r.Context(), token)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrSessionExpired):
					unauthorized(w, "session expired")
				case errors.Is(err, auth.ErrInvalidSession), errors.Is(err, auth.ErrUnauthenticated):
					unauthorized(w, "authentication required")
				default:
					logger.Error("session validation error", "error", err)
					writeError(w, http.StatusInternalServerError, "unexpected error")
				}
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, sessionContextKey, session)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, message)
}
