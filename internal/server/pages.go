package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/resumelens/resumelens/internal/guard"
	"github.com/resumelens/resumelens/internal/onboarding"
)

// The page handlers render minimal shells; the dashboard UI proper is a
// separate frontend build. What matters here is which shell renders and
// which redirect fires.

func pageShell(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>%s - Resumelens</title></head>
<body><main id="app" data-page="%s">%s</main></body>
</html>
`, title, title, body)
}

func (s *Server) renderPage(c *gin.Context, title, body string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell(title, body)))
}

func (s *Server) landingPage(c *gin.Context) {
	s.renderPage(c, "Resumelens", "<h1>Land your next role</h1>")
}

func (s *Server) signInPage(c *gin.Context) {
	s.renderPage(c, "Sign In", "<h1>Sign in</h1>")
}

func (s *Server) signUpPage(c *gin.Context) {
	s.renderPage(c, "Sign Up", "<h1>Create your account</h1>")
}

func (s *Server) forgotPasswordPage(c *gin.Context) {
	s.renderPage(c, "Reset Password", "<h1>Reset your password</h1>")
}

// onboardingPage requires an authenticated session but must not gate on
// onboarding completion, or finishing onboarding would be unreachable
func (s *Server) onboardingPage(c *gin.Context) {
	sid, err := s.sessionID(c)
	if err != nil {
		c.Status(http.StatusNoContent)
		return
	}

	store := s.sessionStore(c, sid)
	snap := store.Initialize(c.Request.Context())
	if ok, _ := guard.Authorize(snap); !ok {
		s.manager.Drop(sid)
		c.Status(http.StatusNoContent)
		return
	}

	s.renderPage(c, "Onboarding", "<h1>Tell us about yourself</h1>")
}

// protectedPage builds the handler for a page behind both guards: the
// route guard has already checked cookie presence; here the session is
// verified and the onboarding gate decides what renders.
func (s *Server) protectedPage(title string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := s.sessionID(c)
		if err != nil {
			// Route guard normally redirects before this point
			c.Status(http.StatusNoContent)
			return
		}

		store := s.sessionStore(c, sid)
		store.Initialize(c.Request.Context())

		switch s.gate.Decide(c.Request.Context(), store) {
		case onboarding.DecisionLoading:
			s.renderPage(c, "Loading", "<p>Loading your personalized experience...</p>")
		case onboarding.DecisionNone:
			s.manager.Drop(sid)
			c.Status(http.StatusNoContent)
		case onboarding.DecisionRedirect:
			c.Redirect(http.StatusFound, guard.OnboardingPath)
		case onboarding.DecisionRender:
			s.renderPage(c, title, fmt.Sprintf("<h1>%s</h1>", title))
		}
	}
}
