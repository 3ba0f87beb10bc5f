package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	sessionsrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/sessions"
	usersrepo "github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// In-memory repositories so the whole stack (handlers, gate, services,
// codec) runs for real with only the SQL layer replaced.

type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*models.User{}} }

func (m *memUsers) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	m.users[c.ID] = &c
	return &c, nil
}

func (m *memUsers) get(match func(*models.User) bool) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.get(func(u *models.User) bool { return u.ID == id })
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return m.get(func(u *models.User) bool { return u.Email == email })
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.get(func(u *models.User) bool { return u.Username == username })
}

func (m *memUsers) UpdatePassword(ctx context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

type memSessions struct {
	mu      sync.Mutex
	byToken map[string]*models.Session
}

func newMemSessions() *memSessions { return &memSessions{byToken: map[string]*models.Session{}} }

func (m *memSessions) Create(ctx context.Context, userID, refreshToken, accessToken string, meta models.SessionMeta) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		RefreshToken: refreshToken,
		AccessToken:  accessToken,
		IsActive:     true,
		UserAgent:    meta.UserAgent,
		IPAddress:    meta.IPAddress,
	}
	m.byToken[refreshToken] = s
	return s, nil
}

func (m *memSessions) FindByRefreshToken(ctx context.Context, refreshToken string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[refreshToken]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *s
	return &c, nil
}

func (m *memSessions) RotateAccess(ctx context.Context, id string, accessToken string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byToken {
		if s.ID == id {
			s.AccessToken = accessToken
			return nil
		}
	}
	return common.ErrorNotFound
}

func (m *memSessions) DeactivateOne(ctx context.Context, refreshToken string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byToken[refreshToken]
	if !ok || !s.IsActive {
		return false, nil
	}
	s.IsActive = false
	return true, nil
}

func (m *memSessions) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.byToken {
		if s.UserID == userID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

type memRepoManager struct {
	u *memUsers
	s *memSessions
}

func (m *memRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *memRepoManager) Users(dbx.DBTX) usersrepo.Repository          { return m.u }
func (m *memRepoManager) Sessions(dbx.DBTX) sessionsrepo.Repository    { return m.s }

func newFullStack(t *testing.T) (*Server, http.Handler, *memSessions) {
	t.Helper()
	return newFullStackWithAccessValidity(t, time.Hour)
}

func newFullStackWithAccessValidity(t *testing.T, accessValidity time.Duration) (*Server, http.Handler, *memSessions) {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		EndpointAddr:         ":0",
		SecretKey:            testSecret,
		AccessTokenValidity:  accessValidity,
		RefreshTokenValidity: 24 * time.Hour,
		BcryptCost:           bcrypt.MinCost,
		SecureCookies:        true,
	}

	rm := &memRepoManager{u: newMemUsers(), s: newMemSessions()}
	us := services.NewUserService(db, rm, cfg)
	ss := services.NewSessionService(db, rm, cfg)

	s, err := NewServer(cfg, testLogger(), us, ss)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	return s, s.buildRouter(), rm.s
}

// forward copies credential cookies from a response into the next request.
func forward(req *http.Request, cookies []*http.Cookie) *http.Request {
	for _, c := range cookies {
		if c.Value != "" {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return req
}

func TestFullSessionLifecycle(t *testing.T) {
	_, router, _ := newFullStack(t)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	// Signup.
	signup := `{"first_name":"John","last_name":"Doe","username":"JDoe","email":"John@Example.com","password":"Str0ng!pass","password_confirm":"Str0ng!pass"}`
	rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(signup)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: want 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Login with differently-cased email.
	rec = do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"JOHN@example.COM","password":"Str0ng!pass"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	cookies := rec.Result().Cookies()
	access := cookieByName(cookies, common.AccessCookieName)
	refresh := cookieByName(cookies, common.RefreshCookieName)
	if access == nil || refresh == nil {
		t.Fatal("login did not set both credential cookies")
	}

	// Authenticated profile read.
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil), cookies))
	if rec.Code != http.StatusOK {
		t.Fatalf("profile: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "john@example.com") {
		t.Fatalf("profile body: %s", rec.Body.String())
	}

	// Refresh rotates the access credential.
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("refresh: want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	rotated := cookieByName(rec.Result().Cookies(), common.AccessCookieName)
	if rotated == nil || rotated.Value == access.Value {
		t.Fatal("access credential was not rotated")
	}

	// The superseded access credential no longer matches the stored one,
	// so refreshing with it is treated as an expired session.
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), cookies))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale refresh: want 401, got %d", rec.Code)
	}

	// The failed attempt did not deactivate the session: the current pair
	// still refreshes.
	current := []*http.Cookie{rotated, refresh}
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), current))
	if rec.Code != http.StatusCreated {
		t.Fatalf("refresh after failed attempt: want 201, got %d", rec.Code)
	}
	rotated = cookieByName(rec.Result().Cookies(), common.AccessCookieName)
	current = []*http.Cookie{rotated, refresh}

	// Logout, then the pair is dead.
	rec = do(forward(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), current))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: want 200, got %d", rec.Code)
	}
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), current))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: want 401, got %d", rec.Code)
	}

	// Logout again: same outcome, no error.
	rec = do(forward(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil), current))
	if rec.Code != http.StatusOK {
		t.Fatalf("repeated logout: want 200, got %d", rec.Code)
	}
}

func TestFullLifecycle_RevokeAllKillsEverySession(t *testing.T) {
	_, router, store := newFullStack(t)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	signup := `{"username":"jdoe","email":"a@b.c","password":"Str0ng!pass","password_confirm":"Str0ng!pass"}`
	if rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(signup))); rec.Code != http.StatusCreated {
		t.Fatalf("signup: got %d", rec.Code)
	}

	login := func() []*http.Cookie {
		rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.c","password":"Str0ng!pass"}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("login: got %d", rec.Code)
		}
		return rec.Result().Cookies()
	}

	first := login()
	second := login()

	rec := do(forward(httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout-all", nil), second))
	if rec.Code != http.StatusOK {
		t.Fatalf("logout-all: want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"revoked":2`) {
		t.Fatalf("logout-all body: %s", rec.Body.String())
	}

	for _, cookies := range [][]*http.Cookie{first, second} {
		rec := do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), cookies))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("refresh after revoke-all: want 401, got %d", rec.Code)
		}
	}

	store.mu.Lock()
	for _, s := range store.byToken {
		if s.IsActive {
			t.Fatal("active session survived revoke-all")
		}
	}
	store.mu.Unlock()
}

// Access credentials minted with a negative validity are expired at birth:
// the gate must reject them while the refresh flow, which checks the
// refresh credential's own expiry, keeps working.
func TestExpiredAccessCredentialForcesRefresh(t *testing.T) {
	_, router, _ := newFullStackWithAccessValidity(t, -time.Second)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	signup := `{"username":"jdoe","email":"a@b.c","password":"Str0ng!pass","password_confirm":"Str0ng!pass"}`
	if rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(signup))); rec.Code != http.StatusCreated {
		t.Fatalf("signup: got %d", rec.Code)
	}
	rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.c","password":"Str0ng!pass"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()

	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/user/profile", nil), cookies))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("profile with expired access: want 401, got %d", rec.Code)
	}

	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), cookies))
	if rec.Code != http.StatusCreated {
		t.Fatalf("refresh with expired access: want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if c := cookieByName(rec.Result().Cookies(), common.AccessCookieName); c == nil || c.Value == "" {
		t.Fatal("no replacement access credential issued")
	}
}

// Of any number of concurrent deactivation attempts against one active
// refresh credential, exactly one call observes the active-to-inactive
// transition; the rest see an already-inactive record.
func TestConcurrentDeactivationHasOneWinner(t *testing.T) {
	_, router, store := newFullStack(t)

	do := func(req *http.Request) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	signup := `{"username":"jdoe","email":"a@b.c","password":"Str0ng!pass","password_confirm":"Str0ng!pass"}`
	if rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/signup", strings.NewReader(signup))); rec.Code != http.StatusCreated {
		t.Fatalf("signup: got %d", rec.Code)
	}
	rec := do(httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"a@b.c","password":"Str0ng!pass"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	refresh := cookieByName(cookies, common.RefreshCookieName)
	if refresh == nil {
		t.Fatal("no refresh cookie issued")
	}

	const attempts = 32
	var wg sync.WaitGroup
	var winners atomic.Int32
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.DeactivateOne(context.Background(), refresh.Value)
			if err != nil {
				t.Errorf("DeactivateOne error: %v", err)
				return
			}
			if won {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := winners.Load(); got != 1 {
		t.Fatalf("want exactly 1 winner, got %d of %d", got, attempts)
	}

	// The session is dead for everyone afterwards.
	rec = do(forward(httptest.NewRequest(http.MethodGet, "/api/v1/auth/refresh-token", nil), cookies))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after concurrent deactivation: want 401, got %d", rec.Code)
	}
}
