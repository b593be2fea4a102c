package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resumelens/resumelens/internal/config"
	"github.com/resumelens/resumelens/internal/fakebackend"
)

type testEnv struct {
	backend *fakebackend.Backend
	server  *Server
	ts      *httptest.Server
	client  *http.Client
}

// newTestEnv spins up a fake backend, a gateway over a temp SQLite
// registry, and an HTTP client with a cookie jar that does not follow
// redirects
func newTestEnv(t *testing.T, backendMiddleware func(http.Handler) http.Handler) *testEnv {
	t.Helper()

	backend := fakebackend.New("test-secret")
	var handler http.Handler = backend.Handler()
	if backendMiddleware != nil {
		handler = backendMiddleware(handler)
	}
	backendServer := httptest.NewServer(handler)
	t.Cleanup(backendServer.Close)

	cfg := &config.Config{
		Backend: config.BackendConfig{
			URL:     backendServer.URL,
			Timeout: 5 * time.Second,
		},
		Server: config.ServerConfig{
			ListenAddr: ":0",
		},
		Session: config.SessionConfig{
			CookieName:    "resumelens_session",
			TTL:           time.Hour,
			PurgeSchedule: "0 * * * *",
			CookieSecure:  false,
		},
		Database: config.DatabaseConfig{
			URL: filepath.Join(t.TempDir(), "gateway.sqlite"),
		},
		Redis: config.RedisConfig{
			Address: "localhost:0", // enqueue failures are logged, not fatal
		},
		Logging: config.LoggingConfig{Level: "error", Format: "json"},
	}

	srv, err := New(cfg, zerolog.Nop(), "test")
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &testEnv{
		backend: backend,
		server:  srv,
		ts:      ts,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := e.client.Post(e.ts.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) SessionResponse {
	t.Helper()
	defer resp.Body.Close()
	var out SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) sessionCookie() *http.Cookie {
	u, _ := url.Parse(e.ts.URL)
	for _, cookie := range e.client.Jar.Cookies(u) {
		if cookie.Name == "resumelens_session" {
			return cookie
		}
	}
	return nil
}

func (e *testEnv) login(t *testing.T, email, password string) SessionResponse {
	t.Helper()
	resp := e.postJSON(t, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	return decodeSession(t, resp)
}

func TestLogin_EstablishesSession(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")

	resp := env.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "user@x.com",
		"password": "goodpass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeSession(t, resp)
	assert.True(t, out.Success)
	require.NotNil(t, out.User)
	assert.Equal(t, "user@x.com", out.User.Email)

	cookie := env.sessionCookie()
	require.NotNil(t, cookie, "login must set the session cookie")
	assert.NotEmpty(t, cookie.Value)

	// The registry row must hold the bearer token behind the cookie
	record, err := env.server.Registry().Lookup(cookie.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, record.Token)
	assert.Equal(t, "user@x.com", record.Email)

	// The verified session is now visible through /api/auth/me
	me := env.get(t, "/api/auth/me")
	require.Equal(t, http.StatusOK, me.StatusCode)
	meOut := decodeSession(t, me)
	require.NotNil(t, meOut.User)
	assert.Equal(t, "user@x.com", meOut.User.Email)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")

	resp := env.postJSON(t, "/api/auth/login", map[string]string{
		"email":    "user@x.com",
		"password": "wrongpass",
	})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	out := decodeSession(t, resp)
	assert.False(t, out.Success)
	// The backend's error string travels through verbatim
	assert.Equal(t, "Invalid email or password", out.Error)
	assert.Nil(t, env.sessionCookie(), "failed login must not set a cookie")
}

func TestRegister_AutoLogin(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.postJSON(t, "/api/auth/register", map[string]string{
		"email":     "new@x.com",
		"password":  "password123",
		"full_name": "New User",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeSession(t, resp)
	assert.True(t, out.Success)
	require.NotNil(t, out.User)
	assert.Equal(t, "new@x.com", out.User.Email)
	assert.NotNil(t, env.sessionCookie(), "registration must establish a session")
}

func TestRegister_RejectsBadFullName(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.postJSON(t, "/api/auth/register", map[string]string{
		"email":     "new@x.com",
		"password":  "password123",
		"full_name": "Robert'); DROP TABLE users;--",
	})
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_MintsFreshSessionID(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("victim@x.com", "goodpass", "Victim User")

	// A value planted in the browser before login must never become the
	// authenticated session's ID
	planted := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	u, err := url.Parse(env.ts.URL)
	require.NoError(t, err)
	env.client.Jar.SetCookies(u, []*http.Cookie{{Name: "resumelens_session", Value: planted}})

	require.True(t, env.login(t, "victim@x.com", "goodpass").Success)

	cookie := env.sessionCookie()
	require.NotNil(t, cookie)
	assert.NotEqual(t, planted, cookie.Value, "login must mint a fresh session ID")

	// Presenting the planted value must not resolve to the session
	req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "resumelens_session", Value: planted})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// And no registry row exists under it
	_, err = env.server.Registry().Lookup(planted)
	assert.Error(t, err)
}

func TestRegister_MintsFreshSessionID(t *testing.T) {
	env := newTestEnv(t, nil)

	planted := "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	u, err := url.Parse(env.ts.URL)
	require.NoError(t, err)
	env.client.Jar.SetCookies(u, []*http.Cookie{{Name: "resumelens_session", Value: planted}})

	resp := env.postJSON(t, "/api/auth/register", map[string]string{
		"email":     "new@x.com",
		"password":  "password123",
		"full_name": "New User",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	cookie := env.sessionCookie()
	require.NotNil(t, cookie)
	assert.NotEqual(t, planted, cookie.Value, "registration must mint a fresh session ID")
}

func TestUnverifiedCookiesDoNotAccumulateState(t *testing.T) {
	env := newTestEnv(t, nil)

	for i := 0; i < 50; i++ {
		req, err := http.NewRequest(http.MethodGet, env.ts.URL+"/api/auth/me", nil)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: "resumelens_session", Value: fmt.Sprintf("junk-%04d", i)})
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	}

	assert.Equal(t, 0, env.server.manager.Len(),
		"cookies that never verify must not pin session state")
}

func TestLogout_ClearsSessionEvenWhenBackendFails(t *testing.T) {
	env := newTestEnv(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/auth/logout" {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"detail": "backend exploded"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
	env.backend.Seed("user@x.com", "goodpass", "Test User")

	require.True(t, env.login(t, "user@x.com", "goodpass").Success)
	cookie := env.sessionCookie()
	require.NotNil(t, cookie)
	sid := cookie.Value

	resp := env.postJSON(t, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Registry row gone despite the backend 500
	_, err := env.server.Registry().Lookup(sid)
	assert.Error(t, err)

	// And the session no longer resolves
	me := env.get(t, "/api/auth/me")
	defer me.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, me.StatusCode)
}

func TestProtectedPage_RedirectsAnonymousToSignIn(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/dashboard")
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/auth/signin", location.Path)
	assert.Equal(t, "/dashboard", location.Query().Get("from"))
}

func TestSignInPage_RedirectsAuthenticatedToDashboard(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")
	require.True(t, env.login(t, "user@x.com", "goodpass").Success)

	resp := env.get(t, "/auth/signin")
	defer resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestProtectedPage_OnboardingGate(t *testing.T) {
	env := newTestEnv(t, nil)
	user := env.backend.Seed("user@x.com", "goodpass", "Test User")
	require.True(t, env.login(t, "user@x.com", "goodpass").Success)

	// Onboarding incomplete: the gate redirects instead of rendering
	resp := env.get(t, "/dashboard")
	resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/onboarding", resp.Header.Get("Location"))

	// Completing onboarding opens the page
	env.backend.SetOnboarded(user.ID, true)
	resp = env.get(t, "/dashboard")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Dashboard")
}

func TestOnboardingStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")
	require.True(t, env.login(t, "user@x.com", "goodpass").Success)

	resp := env.get(t, "/api/onboarding/status")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		OnboardingCompleted bool `json:"onboarding_completed"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.False(t, out.OnboardingCompleted)
}

func TestUploadResume_ForwardsMultipart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")
	require.True(t, env.login(t, "user@x.com", "goodpass").Success)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "resume.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("pdf bytes"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("job_description", "backend role"))
	require.NoError(t, writer.Close())

	resp, err := env.client.Post(env.ts.URL+"/api/resume/upload", writer.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		ResumeID string `json:"resume_id"`
		Filename string `json:"filename"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.NotEmpty(t, out.ResumeID)
	assert.Equal(t, "resume.pdf", out.Filename)
}

func TestAPIWithoutSession_Unauthorized(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, path := range []string{"/api/auth/me", "/api/onboarding/status"} {
		resp := env.get(t, path)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}
}

func TestSessionSurvivesGatewayRestart(t *testing.T) {
	env := newTestEnv(t, nil)
	env.backend.Seed("user@x.com", "goodpass", "Test User")
	require.True(t, env.login(t, "user@x.com", "goodpass").Success)
	cookie := env.sessionCookie()
	require.NotNil(t, cookie)

	// A second gateway over the same registry database has no in-memory
	// state; the first request re-verifies the stored credential
	srv2, err := New(env.server.config, zerolog.Nop(), "test")
	require.NoError(t, err)
	ts2 := httptest.NewServer(srv2.Router())
	defer ts2.Close()

	req, err := http.NewRequest(http.MethodGet, ts2.URL+"/api/auth/me", nil)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: "resumelens_session", Value: cookie.Value})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeSession(t, resp)
	require.NotNil(t, out.User)
	assert.Equal(t, "user@x.com", out.User.Email)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.get(t, "/health")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "online"))
}

func TestStart_DrainsRequestsBeforeShutdown(t *testing.T) {
	env := newTestEnv(t, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Slow the backend login so the gateway request is still in
			// flight when the shutdown signal lands
			if r.URL.Path == "/api/auth/login" {
				time.Sleep(500 * time.Millisecond)
			}
			next.ServeHTTP(w, r)
		})
	})
	env.backend.Seed("user@x.com", "goodpass", "Test User")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	env.server.config.Server.ListenAddr = addr

	done := make(chan error, 1)
	go func() { done <- env.server.Start() }()

	baseURL := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	// The in-flight login must complete, including its post-login task
	// enqueue, before the server tears anything down
	status := make(chan int, 1)
	go func() {
		resp, err := http.Post(baseURL+"/api/auth/login", "application/json",
			strings.NewReader(`{"email":"user@x.com","password":"goodpass"}`))
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	require.Equal(t, http.StatusOK, <-status)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}
