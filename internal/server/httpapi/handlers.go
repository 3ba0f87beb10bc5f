package httpapi

import (
	"errors"
	"net"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

// sessionMeta extracts client audit metadata from the request.
func sessionMeta(r *http.Request) models.SessionMeta {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return models.SessionMeta{
		UserAgent: r.UserAgent(),
		IPAddress: host,
	}
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "pong!")
}

type signupRequest struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Email == "" || req.Username == "" {
		writeMessage(w, http.StatusBadRequest, "Email and username are required")
		return
	}
	if req.Password != req.PasswordConfirm {
		writeMessage(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	_, err := s.users.Register(r.Context(), services.RegisterParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Email:     req.Email,
		Password:  req.Password,
	})
	switch {
	case err == nil:
		writeMessage(w, http.StatusCreated, "Account created")
	case errors.Is(err, common.ErrPasswordTooWeak):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrEmailTaken), errors.Is(err, common.ErrUsernameTaken):
		writeMessage(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(r.Context(), "signup failed", "error", err.Error())
		writeInternalError(w)
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeUnauthorized(w)
			return
		}
		s.logger.Error(r.Context(), "login failed", "error", err.Error())
		writeInternalError(w)
		return
	}

	pair, err := s.sessions.Login(r.Context(), user.ID, sessionMeta(r))
	if err != nil {
		s.logger.Error(r.Context(), "session creation failed", "error", err.Error())
		writeInternalError(w)
		return
	}

	s.setCredentialCookies(w, pair.AccessToken, pair.RefreshToken)
	writeMessage(w, http.StatusOK, "Logged in successfully")
}

// handleRefresh rotates the access credential. Both cookies are required:
// the refresh credential identifies the session record and the access
// credential must match the one stored on it.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie(common.RefreshCookieName)
	if err != nil || refreshCookie.Value == "" {
		writeMessage(w, http.StatusBadRequest, "Refresh token missing")
		return
	}
	accessCookie, err := r.Cookie(common.AccessCookieName)
	if err != nil || accessCookie.Value == "" {
		writeMessage(w, http.StatusBadRequest, "Access token missing")
		return
	}

	res, err := s.sessions.Refresh(r.Context(), refreshCookie.Value, accessCookie.Value)
	switch {
	case err == nil:
		s.setAccessCookie(w, res.AccessToken)
		writeMessage(w, http.StatusCreated, "Token refreshed")
	case errors.Is(err, common.ErrSessionExpired):
		writeMessage(w, http.StatusUnauthorized, "Session expired, please log in again")
	case errors.Is(err, common.ErrorUnauthorized):
		writeUnauthorized(w)
	default:
		s.logger.Error(r.Context(), "refresh failed", "error", err.Error())
		writeInternalError(w)
	}
}

// handleLogout deactivates the session named by the refresh cookie and
// clears both cookies. It returns 200 whether or not such a session
// existed.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(common.RefreshCookieName); err == nil && cookie.Value != "" {
		if err := s.sessions.Logout(r.Context(), cookie.Value); err != nil {
			s.logger.Error(r.Context(), "logout failed", "error", err.Error())
			writeInternalError(w)
			return
		}
	}
	s.clearCredentialCookies(w)
	writeMessage(w, http.StatusOK, "Logged out")
}

type logoutAllResponse struct {
	Message string `json:"message"`
	Revoked int64  `json:"revoked"`
}

// handleLogoutAll revokes every active session of the authenticated user,
// including the one making this request.
func (s *Server) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	count, err := s.sessions.RevokeAll(r.Context(), user.ID)
	if err != nil {
		s.logger.Error(r.Context(), "bulk revocation failed", "error", err.Error())
		writeInternalError(w)
		return
	}

	s.clearCredentialCookies(w)
	writeJSON(w, http.StatusOK, logoutAllResponse{Message: "Logged out everywhere", Revoked: count})
}

type profileResponse struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	JoinedAt int64  `json:"joined_at"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	user := UserFromContext(r.Context())

	writeJSON(w, http.StatusOK, profileResponse{
		ID:       user.ID,
		FullName: user.FullName(),
		Email:    user.Email,
		Username: user.Username,
		JoinedAt: user.CreatedAt.Unix(),
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// handleChangePassword stores a new password hash and revokes every session
// of the user. The caller has to log in again afterwards.
func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user := UserFromContext(r.Context())

	err := s.users.ChangePassword(r.Context(), user.ID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		s.clearCredentialCookies(w)
		writeMessage(w, http.StatusOK, "Password changed, please log in again")
	case errors.Is(err, common.ErrorUnauthorized):
		writeUnauthorized(w)
	case errors.Is(err, common.ErrPasswordTooWeak):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error(r.Context(), "password change failed", "error", err.Error())
		writeInternalError(w)
	}
}
