package guard

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Redirect targets shared by every guard
const (
	SignInPath     = "/auth/signin"
	DashboardPath  = "/dashboard"
	OnboardingPath = "/onboarding"
	// FromParam carries the originally requested path through the
	// sign-in redirect
	FromParam = "from"
)

// RouteGuard is the edge gatekeeper, run before any page renders. It is
// a pure presence check on the session cookie: no backend round-trip, no
// database. A forged or expired cookie passes here and is rejected later
// by session verification; that split is deliberate so the guard can run
// cheaply on every request.
func RouteGuard(table *Table, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		value, err := c.Cookie(cookieName)
		present := err == nil && value != ""

		switch table.Classify(path) {
		case ClassAuthOnly:
			// An authenticated visitor never sees the sign-in form
			if present {
				c.Redirect(http.StatusFound, DashboardPath)
				c.Abort()
				return
			}
		case ClassProtected:
			if !present {
				target := SignInPath + "?" + FromParam + "=" + url.QueryEscape(path)
				c.Redirect(http.StatusFound, target)
				c.Abort()
				return
			}
		}

		c.Next()
	}
}
