package guard

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
)

const testCookie = "resumelens_session"

func newGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RouteGuard(DefaultTable(), testCookie))
	router.GET("/*path", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func doRequest(router *gin.Engine, path string, withCookie bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if withCookie {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: "01ARZ3NDEKTSV4RRFFQ69G5FAV"})
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouteGuard_ProtectedWithoutCookieRedirectsToSignIn(t *testing.T) {
	router := newGuardedRouter()

	paths := []string{"/dashboard", "/history", "/billing", "/dashboard/resumes"}
	for _, path := range paths {
		w := doRequest(router, path, false)

		if w.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", path, w.Code)
			continue
		}
		location, err := url.Parse(w.Header().Get("Location"))
		if err != nil {
			t.Fatalf("%s: bad redirect target: %v", path, err)
		}
		if location.Path != SignInPath {
			t.Errorf("%s: expected redirect to %s, got %s", path, SignInPath, location.Path)
		}
		if got := location.Query().Get(FromParam); got != path {
			t.Errorf("%s: expected from=%s, got %q", path, path, got)
		}
	}
}

func TestRouteGuard_ProtectedWithCookiePasses(t *testing.T) {
	router := newGuardedRouter()

	w := doRequest(router, "/dashboard", true)

	// Presence check only; validity is the session layer's concern
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRouteGuard_AuthOnlyWithCookieRedirectsToDashboard(t *testing.T) {
	router := newGuardedRouter()

	for _, path := range []string{"/auth/signin", "/auth/signup", "/auth/forgot-password"} {
		w := doRequest(router, path, true)

		if w.Code != http.StatusFound {
			t.Errorf("%s: expected 302, got %d", path, w.Code)
			continue
		}
		if got := w.Header().Get("Location"); got != DashboardPath {
			t.Errorf("%s: expected redirect to %s, got %s", path, DashboardPath, got)
		}
	}
}

func TestRouteGuard_AuthOnlyWithoutCookiePasses(t *testing.T) {
	router := newGuardedRouter()

	w := doRequest(router, "/auth/signin", false)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRouteGuard_PublicAlwaysPasses(t *testing.T) {
	router := newGuardedRouter()

	for _, withCookie := range []bool{true, false} {
		w := doRequest(router, "/about", withCookie)
		if w.Code != http.StatusOK {
			t.Errorf("cookie=%v: expected 200, got %d", withCookie, w.Code)
		}
	}
}

func TestRouteGuard_EmptyCookieCountsAsAbsent(t *testing.T) {
	router := newGuardedRouter()

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: ""})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Errorf("expected 302 for empty cookie, got %d", w.Code)
	}
}
