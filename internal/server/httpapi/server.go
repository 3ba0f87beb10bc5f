// Package httpapi exposes the authentication service over HTTP: signup,
// login, credential refresh, logout and the authenticated user surface.
// Credentials travel in cookies only.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const gracefulShutdownTimeout = 10 * time.Second

// UserManager is the slice of the user service the HTTP layer consumes.
type UserManager interface {
	Register(ctx context.Context, p services.RegisterParams) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
}

// SessionManager is the slice of the session service the HTTP layer consumes.
type SessionManager interface {
	Login(ctx context.Context, userID string, meta models.SessionMeta) (*services.TokenPair, error)
	Refresh(ctx context.Context, presentedRefresh, presentedAccess string) (*services.RefreshResult, error)
	Logout(ctx context.Context, presentedRefresh string) error
	RevokeAll(ctx context.Context, userID string) (int64, error)
}

// Server is the public HTTP server.
type Server struct {
	address       string
	logger        logging.Logger
	users         UserManager
	sessions      SessionManager
	jwtSecret     []byte
	accessMaxAge  time.Duration
	refreshMaxAge time.Duration
	secureCookies bool
	metrics       *metrics
	registry      *prometheus.Registry
}

// NewServer constructs the HTTP server from server config and the two
// service dependencies.
func NewServer(cfg *config.Config, l logging.Logger, us UserManager, ss SessionManager) (*Server, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Server{
		address:       cfg.EndpointAddr,
		logger:        l.With("module", "http_server"),
		users:         us,
		sessions:      ss,
		jwtSecret:     []byte(cfg.SecretKey),
		accessMaxAge:  cfg.AccessTokenValidity,
		refreshMaxAge: cfg.RefreshTokenValidity,
		secureCookies: cfg.SecureCookies,
		metrics:       newMetrics(registry),
		registry:      registry,
	}, nil
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.recoveryMiddleware)
	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)

	r.Get("/ping", s.handlePing)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/signup", s.handleSignup)
		r.Post("/auth/login", s.handleLogin)
		r.Get("/auth/refresh-token", s.handleRefresh)
		r.Post("/auth/logout", s.handleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticator)

			r.Post("/auth/logout-all", s.handleLogoutAll)
			r.Get("/user/profile", s.handleProfile)
			r.Post("/user/password", s.handleChangePassword)
		})
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown error", "error", err.Error())
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
