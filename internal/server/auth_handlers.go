package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/tasks"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// ResetPasswordRequest represents a password reset request
type ResetPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// SessionResponse is the envelope session endpoints resolve to
type SessionResponse struct {
	Success bool      `json:"success"`
	User    *api.User `json:"user,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// login drives the Anonymous -> Authenticated transition. On success the
// Keeper has written both credential locations: the registry row holding
// the bearer token and the httpOnly cookie holding the session ID.
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SessionResponse{Success: false, Error: err.Error()})
		return
	}

	sid := s.freshSessionID(c)

	store := s.sessionStore(c, sid)
	result := store.Login(c.Request.Context(), req.Email, req.Password)
	if !result.Success {
		// Surface the backend's error string verbatim for the UI
		c.JSON(http.StatusUnauthorized, SessionResponse{Success: false, Error: result.Error})
		return
	}

	s.afterSessionEstablished(c, sid)

	c.JSON(http.StatusOK, SessionResponse{Success: true, User: store.Snapshot().User})
}

// register creates an account and establishes a session through the
// store's auto-login
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SessionResponse{Success: false, Error: err.Error()})
		return
	}
	if err := s.validator.Var(req.FullName, "fullname"); err != nil {
		c.JSON(http.StatusBadRequest, SessionResponse{Success: false, Error: "Full name may only contain letters, spaces, hyphens and apostrophes"})
		return
	}

	sid := s.freshSessionID(c)

	store := s.sessionStore(c, sid)
	result := store.Register(c.Request.Context(), api.RegisterRequest{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if !result.Success {
		c.JSON(http.StatusBadRequest, SessionResponse{Success: false, Error: result.Error})
		return
	}

	s.afterSessionEstablished(c, sid)

	c.JSON(http.StatusOK, SessionResponse{Success: true, User: store.Snapshot().User})
}

// afterSessionEstablished caches the user snapshot on the registry row
// and schedules a profile resync. Both are best-effort.
func (s *Server) afterSessionEstablished(c *gin.Context, sid string) {
	store := s.sessionStore(c, sid)
	if user := store.Snapshot().User; user != nil {
		if err := s.registry.UpdateUser(sid, *user); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to cache user snapshot")
		}
	}

	task, err := tasks.NewProfileResyncTask(sid)
	if err == nil {
		_, err = s.asynqClient.Enqueue(task)
	}
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to enqueue profile resync")
	}
}

// logout ends the session. Local cleanup is unconditional: the cookie
// and registry row are purged even when the backend logout call fails.
func (s *Server) logout(c *gin.Context) {
	sid, err := s.sessionID(c)
	if errors.Is(err, ErrNoSessionCookie) {
		// Nothing to clear; still send the visitor to the landing page
		c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/"})
		return
	}

	store := s.sessionStore(c, sid)
	if err := store.Logout(c.Request.Context()); err != nil {
		s.logger.Error().Err(err).Msg("Session cleanup reported errors")
	}
	s.manager.Drop(sid)

	c.JSON(http.StatusOK, gin.H{"success": true, "redirect": "/"})
}

// resetPassword forwards a reset request to the backend. No session is
// involved.
func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, SessionResponse{Success: false, Error: err.Error()})
		return
	}

	resp := s.backend.ResetPassword(c.Request.Context(), req.Email)
	if !resp.Success {
		c.JSON(http.StatusBadGateway, SessionResponse{Success: false, Error: resp.Error})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Success: true})
}

// currentUser returns the verified session's user
func (s *Server) currentUser(c *gin.Context) {
	store := MustSessionStore(c)
	snap := store.Snapshot()
	if !snap.IsAuthenticated {
		c.JSON(http.StatusUnauthorized, SessionResponse{Success: false, Error: "Not authenticated"})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{Success: true, User: snap.User})
}
