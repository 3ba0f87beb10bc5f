package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const testSecret = "test-secret"

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

type fakeUsers struct {
	registerOut *models.User
	registerErr error

	authOut *models.User
	authErr error

	byIDOut *models.User
	byIDErr error

	changePasswordErr   error
	changePasswordCalls int
}

func (f *fakeUsers) Register(ctx context.Context, p services.RegisterParams) (*models.User, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.registerOut, nil
}

func (f *fakeUsers) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	return f.authOut, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	if f.byIDErr != nil {
		return nil, f.byIDErr
	}
	return f.byIDOut, nil
}

func (f *fakeUsers) ChangePassword(ctx context.Context, userID, current, next string) error {
	f.changePasswordCalls++
	return f.changePasswordErr
}

type fakeSessions struct {
	loginOut *services.TokenPair
	loginErr error

	refreshOut *services.RefreshResult
	refreshErr error

	logoutErr   error
	logoutCalls []string

	revokeCount int64
	revokeErr   error
}

func (f *fakeSessions) Login(ctx context.Context, userID string, meta models.SessionMeta) (*services.TokenPair, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.loginOut, nil
}

func (f *fakeSessions) Refresh(ctx context.Context, presentedRefresh, presentedAccess string) (*services.RefreshResult, error) {
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.refreshOut, nil
}

func (f *fakeSessions) Logout(ctx context.Context, presentedRefresh string) error {
	f.logoutCalls = append(f.logoutCalls, presentedRefresh)
	return f.logoutErr
}

func (f *fakeSessions) RevokeAll(ctx context.Context, userID string) (int64, error) {
	if f.revokeErr != nil {
		return 0, f.revokeErr
	}
	return f.revokeCount, nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func newTestServer(t *testing.T, users UserManager, sessions SessionManager) *Server {
	t.Helper()
	cfg := &config.Config{
		EndpointAddr:         ":0",
		SecretKey:            testSecret,
		AccessTokenValidity:  time.Hour,
		RefreshTokenValidity: 24 * time.Hour,
		SecureCookies:        true,
	}
	s, err := NewServer(cfg, testLogger(), users, sessions)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return s
}

func doRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.buildRouter().ServeHTTP(rec, req)
	return rec
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}
