package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// credentialCookie builds one credential cookie. Cookies are HttpOnly and
// SameSite=Lax always; Secure follows server config so local plain-HTTP
// development stays possible.
func (s *Server) credentialCookie(name, value string, maxAge time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) setAccessCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, s.credentialCookie(common.AccessCookieName, token, s.accessMaxAge))
}

func (s *Server) setCredentialCookies(w http.ResponseWriter, accessToken, refreshToken string) {
	s.setAccessCookie(w, accessToken)
	http.SetCookie(w, s.credentialCookie(common.RefreshCookieName, refreshToken, s.refreshMaxAge))
}

func (s *Server) clearCredentialCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessCookieName, common.RefreshCookieName} {
		c := s.credentialCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}
