// Package session carries the opaque login token between the browser and
// the auth service. Only the cookie lives here; validity is decided by
// authdomain.Service.Authenticate.
package session

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/justinhw1987/invoiceflow/internal/auth/domain"
	"github.com/justinhw1987/invoiceflow/internal/clock"
	"github.com/justinhw1987/invoiceflow/internal/config"
)

const (
	CookieName = "invoiceflow_session"
	// SecureCookieName is used when AUTH_COOKIE_SECURE is on. The __Host-
	// prefix pins the cookie to this host, path "/" and HTTPS.
	SecureCookieName = "__Host-" + CookieName
)

type Manager struct {
	name   string
	secure bool
	clock  clock.Clock
}

func NewManager(cfg config.Config, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	name := CookieName
	if cfg.AuthCookieSecure {
		name = SecureCookieName
	}
	return &Manager{name: name, secure: cfg.AuthCookieSecure, clock: clk}
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.name)
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Issue sets the cookie for a login or a rotated session. The cookie expires
// with the session row; a result that is already expired clears it instead.
func (m *Manager) Issue(c *gin.Context, result *authdomain.LoginResult) {
	if result == nil || result.RawToken == "" {
		m.Clear(c)
		return
	}
	maxAge := int(result.ExpiresAt.Sub(m.clock.Now()).Seconds())
	if maxAge <= 0 {
		m.Clear(c)
		return
	}
	m.write(c, result.RawToken, maxAge)
}

func (m *Manager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

func (m *Manager) write(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     m.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
