package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/resumelens/resumelens/internal/credential"
	"github.com/resumelens/resumelens/internal/session"
)

const (
	sessionStoreKey = "session_store"
	sessionIDKey    = "session_id"
)

var ErrNoSessionCookie = errors.New("no session cookie")

// sessionID returns the session ID from the request cookie
func (s *Server) sessionID(c *gin.Context) (string, error) {
	sid, err := c.Cookie(s.config.Session.CookieName)
	if err != nil || sid == "" {
		return "", ErrNoSessionCookie
	}
	return sid, nil
}

// keeper builds the dual-writing credential store for one session on the
// current request: registry row + response cookie, written together.
func (s *Server) keeper(c *gin.Context, sid string) *credential.Keeper {
	sink := &cookieSink{
		c:      c,
		name:   s.config.Session.CookieName,
		value:  sid,
		secure: s.config.Session.CookieSecure,
	}
	return credential.NewKeeper(s.registry.CredentialStore(sid), sink, s.registry.TTL(), s.logger)
}

// sessionStore wires up the session Store for the request's session ID
func (s *Server) sessionStore(c *gin.Context, sid string) *session.Store {
	return s.manager.Store(sid, s.keeper(c, sid))
}

// SessionMiddleware resolves the session for authenticated API routes.
// Unlike the route guard this is a real verification point: the first
// request for a session triggers an identity check against the backend.
func (s *Server) SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := s.sessionID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		store := s.sessionStore(c, sid)
		snap := store.Initialize(c.Request.Context())
		if !snap.IsAuthenticated {
			// Junk or expired cookies must not pin state in the manager
			s.manager.Drop(sid)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			c.Abort()
			return
		}

		if err := s.registry.Touch(sid); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to touch session")
		}

		c.Set(sessionStoreKey, store)
		c.Set(sessionIDKey, sid)
		c.Next()
	}
}

// GetSessionStore returns the session store placed by SessionMiddleware
func GetSessionStore(c *gin.Context) (*session.Store, bool) {
	v, exists := c.Get(sessionStoreKey)
	if !exists {
		return nil, false
	}
	store, ok := v.(*session.Store)
	return store, ok
}

// MustSessionStore returns the session store or panics. Calling it on a
// route that does not run SessionMiddleware is a programming error, not
// a runtime condition, so it fails immediately and loudly.
func MustSessionStore(c *gin.Context) *session.Store {
	store, ok := GetSessionStore(c)
	if !ok {
		panic("server: MustSessionStore called outside SessionMiddleware")
	}
	return store
}

// newSessionID mints a fresh session ID
func newSessionID() string {
	return ulid.Make().String()
}

// freshSessionID mints the session ID under which a login or
// registration is established. A cookie value the browser already
// carries is never promoted to an authenticated session: whoever
// planted that value would own the session after login. Any state
// behind the old value is discarded.
func (s *Server) freshSessionID(c *gin.Context) string {
	if old, err := s.sessionID(c); err == nil {
		s.manager.Drop(old)
		if err := s.registry.Delete(old); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to delete superseded session")
		}
	}
	return newSessionID()
}

// loggingMiddleware creates a request logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
