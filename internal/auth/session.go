package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/traveltweets/internal/config"
)

// Sessions writes and reads the session cookie
type Sessions struct {
	cfg config.SessionConfig
}

// NewSessions wraps the cookie settings
func NewSessions(cfg config.SessionConfig) *Sessions {
	if cfg.CookieName == "" {
		cfg.CookieName = "tt_session"
	}
	return &Sessions{cfg: cfg}
}

// CookieName is the session cookie's name
func (s *Sessions) CookieName() string {
	return s.cfg.CookieName
}

// SetSessionCookie stores the signed token in an HttpOnly cookie
func (s *Sessions) SetSessionCookie(c *gin.Context, resp *AuthResponse) {
	maxAge := int(s.cfg.TTL.Seconds())
	if maxAge <= 0 {
		maxAge = 24 * 60 * 60
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, resp.Token, maxAge, "/", s.cfg.Domain, s.cfg.Secure, true)
}

// ClearSessionCookie expires the session cookie
func (s *Sessions) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.cfg.CookieName, "", -1, "/", s.cfg.Domain, s.cfg.Secure, true)
}

// TokenFromRequest reads the session cookie, then a Bearer header, then
// the token query parameter (websocket handshakes cannot set headers).
func (s *Sessions) TokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(s.cfg.CookieName); err == nil && cookie != "" {
		return cookie
	}
	if header := c.GetHeader("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Query("token")
}

const (
	oauthStateCookie = "tt_oauth_state"
	oauthStateTTL    = 10 * 60
)

// SetOAuthState remembers the state sent to a login provider
func (s *Sessions) SetOAuthState(c *gin.Context, state string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateTTL, "/", s.cfg.Domain, s.cfg.Secure, true)
}

// ConsumeOAuthState reports whether state matches the one remembered by
// SetOAuthState, and forgets it either way.
func (s *Sessions) ConsumeOAuthState(c *gin.Context, state string) bool {
	stored, err := c.Cookie(oauthStateCookie)
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, "", -1, "/", s.cfg.Domain, s.cfg.Secure, true)
	return err == nil && stored != "" && subtle.ConstantTimeCompare([]byte(stored), []byte(state)) == 1
}
