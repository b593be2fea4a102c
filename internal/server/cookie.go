package server

import (
	"time"

	"github.com/gin-gonic/gin"
)

// cookieSink writes the session cookie on the current response. Together
// with the registry-backed store it forms the Keeper's two credential
// locations: the cookie carries the opaque session ID for the edge
// guard, the registry row carries the bearer token for API calls.
type cookieSink struct {
	c      *gin.Context
	name   string
	value  string
	secure bool
}

func (s *cookieSink) SetCredential(ttl time.Duration) error {
	s.c.SetCookie(s.name, s.value, int(ttl/time.Second), "/", "", s.secure, true)
	return nil
}

func (s *cookieSink) ClearCredential() error {
	s.c.SetCookie(s.name, "", -1, "/", "", s.secure, true)
	return nil
}
