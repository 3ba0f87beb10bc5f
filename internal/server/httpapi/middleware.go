package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey string

const ctxKeyUser contextKey = "user"

// UserFromContext returns the authenticated user attached by the
// authenticator middleware, or nil outside a protected route.
func UserFromContext(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxKeyUser).(*models.User)
	return u
}

// statusWriter captures the response status for logging and metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// authenticator guards protected routes. It accepts only a valid, unexpired
// access credential belonging to an active account, and attaches that
// account to the request context. Every rejection is the same 401: a missing
// cookie, a forged or expired credential, a refresh credential presented in
// the access position, and a deactivated or deleted account are
// indistinguishable to the caller.
func (s *Server) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(common.AccessCookieName)
		if err != nil || cookie.Value == "" {
			writeUnauthorized(w)
			return
		}
		payload, err := auth.DecodeToken(cookie.Value, s.jwtSecret)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		if payload.TokenType != auth.TokenKindAccess {
			writeUnauthorized(w)
			return
		}
		if payload.Expired(time.Now()) {
			writeUnauthorized(w)
			return
		}
		user, err := s.users.GetByID(r.Context(), payload.Identity)
		if err != nil || user == nil || !user.IsActive {
			writeUnauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyUser, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware logs each request with method, path, status and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Info(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// recoveryMiddleware catches handler panics and returns a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error(r.Context(), "panic recovered in HTTP handler",
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
				)
				writeInternalError(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// metricsMiddleware records request counts and durations per route pattern.
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.requestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		s.metrics.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
