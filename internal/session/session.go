package session

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vincentbai/getracker/internal/browser"
	"github.com/vincentbai/getracker/internal/storage"
)

// Session storage keys.
const (
	SessionIDKey   = "ge_session_id"
	LandingPageKey = "ge_landing_page"
)

// Context tracks per-session identity: a generated session id and the first
// page the session landed on. Both live in session-scoped storage.
type Context struct {
	env     browser.Environment
	session storage.Store
	logger  *slog.Logger
}

func NewContext(env browser.Environment, session storage.Store, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{env: env, session: session, logger: logger}
}

// GenerateID returns a random version 4 UUID string.
func GenerateID() string {
	return uuid.NewString()
}

// SessionID returns the stored session id, generating and storing one on
// first use. When storage is unusable a fresh unpersisted id is returned.
func (c *Context) SessionID() string {
	id, err := c.session.Get(SessionIDKey)
	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug("Error managing session ID", slog.String("error", err.Error()))
		return GenerateID()
	}

	id = GenerateID()
	if err := c.session.Set(SessionIDKey, id); err != nil {
		c.logger.Debug("Error managing session ID", slog.String("error", err.Error()))
	}
	return id
}

// StoreLandingPage records the current URL unless the session already has a
// landing page.
func (c *Context) StoreLandingPage() {
	existing, err := c.session.Get(LandingPageKey)
	if err == nil && existing != "" {
		return
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		c.logger.Debug("Error storing landing page", slog.String("error", err.Error()))
		return
	}

	href, err := c.env.Href()
	if err != nil {
		c.logger.Debug("Error storing landing page", slog.String("error", err.Error()))
		return
	}
	if err := c.session.Set(LandingPageKey, href); err != nil {
		c.logger.Debug("Error storing landing page", slog.String("error", err.Error()))
	}
}

// LandingPage returns the stored landing page, or the current URL when none
// is stored or storage fails.
func (c *Context) LandingPage() string {
	if landing, err := c.session.Get(LandingPageKey); err == nil && landing != "" {
		return landing
	}
	return c.currentURL()
}

func (c *Context) currentURL() string {
	href, err := c.env.Href()
	if err != nil {
		return ""
	}
	return href
}

func (c *Context) Referrer() string {
	referrer, err := c.env.Referrer()
	if err != nil {
		return ""
	}
	return referrer
}

func (c *Context) UserAgent() string {
	ua, err := c.env.UserAgent()
	if err != nil {
		return ""
	}
	return ua
}
