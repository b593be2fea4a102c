package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const bearerPrefix = "Bearer "

// CredentialSource provides the bearer credential attached to requests.
// A load failure is treated as "no credential present", not as a request
// failure: unauthenticated endpoints must stay reachable.
type CredentialSource interface {
	Load() (string, error)
}

// Result is the uniform envelope every call resolves to. Exactly one of
// Data/Error is meaningful; Success says which. Transport and decode
// failures are folded into the envelope, never returned as a Go error.
type Result[T any] struct {
	Success bool
	Data    T
	Error   string
}

// Client is the single chokepoint for JSON calls to the resume backend
type Client struct {
	baseURL    string
	creds      CredentialSource
	httpClient *http.Client
	logger     zerolog.Logger
}

// New creates a new backend API client
func New(baseURL string, creds CredentialSource, timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		creds:   creds,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// WithCredentials returns a shallow copy of the client bound to a different
// credential source. The underlying HTTP client is shared.
func (c *Client) WithCredentials(creds CredentialSource) *Client {
	clone := *c
	clone.creds = creds
	return &clone
}

// RequestOptions mirrors the knobs a caller may set per request
type RequestOptions struct {
	Method string
	Body   io.Reader
	// ContentType is sent as-is when non-empty. When empty and Body is
	// non-nil, application/json is assumed. Multipart callers must set it
	// explicitly so the boundary parameter survives.
	ContentType string
	Headers     map[string]string
}

// backendError is the error body shape the backend responds with
type backendError struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// Request performs a call against the backend and folds every outcome into
// the envelope. The raw JSON body is returned on success; typed callers go
// through Do.
func (c *Client) Request(ctx context.Context, endpoint string, opts RequestOptions) Result[json.RawMessage] {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, opts.Body)
	if err != nil {
		return failure[json.RawMessage](fmt.Sprintf("failed to create request: %v", err))
	}

	if opts.Body != nil {
		if opts.ContentType != "" {
			req.Header.Set("Content-Type", opts.ContentType)
		} else {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	for k, v := range opts.Headers {
		req.Header.Set(k, v)
	}

	if c.creds != nil {
		if token, err := c.creds.Load(); err == nil && token != "" {
			req.Header.Set("Authorization", bearerPrefix+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Backend request failed")
		return failure[json.RawMessage](err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure[json.RawMessage](fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return failure[json.RawMessage](errorMessage(resp.StatusCode, body))
	}

	return Result[json.RawMessage]{Success: true, Data: json.RawMessage(body)}
}

// errorMessage extracts the backend's error string from a non-2xx body,
// falling back to a generic HTTP status message
func errorMessage(status int, body []byte) string {
	var be backendError
	if err := json.Unmarshal(body, &be); err == nil {
		if be.Detail != "" {
			return be.Detail
		}
		if be.Message != "" {
			return be.Message
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

// Do performs a typed call through Request, decoding the success body into T
func Do[T any](ctx context.Context, c *Client, endpoint string, opts RequestOptions) Result[T] {
	raw := c.Request(ctx, endpoint, opts)
	if !raw.Success {
		return failure[T](raw.Error)
	}

	var data T
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			c.logger.Debug().Err(err).Str("endpoint", endpoint).Msg("Failed to decode backend response")
			return failure[T](fmt.Sprintf("failed to decode response: %v", err))
		}
	}
	return Result[T]{Success: true, Data: data}
}

// doJSON marshals body and performs a typed JSON call
func doJSON[T any](ctx context.Context, c *Client, method, endpoint string, body any) Result[T] {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return failure[T](fmt.Sprintf("failed to marshal request: %v", err))
		}
		reader = bytes.NewReader(payload)
	}
	return Do[T](ctx, c, endpoint, RequestOptions{Method: method, Body: reader})
}

func failure[T any](msg string) Result[T] {
	return Result[T]{Success: false, Error: msg}
}

// Empty is the decode target for endpoints whose success body is null
type Empty struct{}

// LoginData is the login success payload
type LoginData struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

// RegisterRequest is the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// OnboardingStatus is the onboarding completion payload
type OnboardingStatus struct {
	OnboardingCompleted bool `json:"onboarding_completed"`
}

// UploadData is the resume upload success payload
type UploadData struct {
	ResumeID string `json:"resume_id"`
	Filename string `json:"filename"`
}

// Login authenticates against the backend
func (c *Client) Login(ctx context.Context, email, password string) Result[LoginData] {
	return doJSON[LoginData](ctx, c, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

// Register creates a new account. Registration does not establish a
// session; callers log in afterwards with the same credentials.
func (c *Client) Register(ctx context.Context, req RegisterRequest) Result[User] {
	return doJSON[User](ctx, c, http.MethodPost, "/api/auth/register", req)
}

// CurrentUser fetches the authenticated user's profile
func (c *Client) CurrentUser(ctx context.Context) Result[User] {
	return Do[User](ctx, c, "/api/auth/me", RequestOptions{})
}

// Logout invalidates the session on the backend
func (c *Client) Logout(ctx context.Context) Result[Empty] {
	return doJSON[Empty](ctx, c, http.MethodPost, "/api/auth/logout", nil)
}

// ResetPassword requests a password reset email
func (c *Client) ResetPassword(ctx context.Context, email string) Result[Empty] {
	return doJSON[Empty](ctx, c, http.MethodPost, "/api/auth/reset-password", map[string]string{
		"email": email,
	})
}

// GetOnboardingStatus fetches the onboarding completion flag
func (c *Client) GetOnboardingStatus(ctx context.Context) Result[OnboardingStatus] {
	return Do[OnboardingStatus](ctx, c, "/api/onboarding/status", RequestOptions{})
}

// UploadResume uploads a resume as multipart form data. The multipart
// content type (with boundary) replaces the JSON default.
func (c *Client) UploadResume(ctx context.Context, filename string, file io.Reader, jobDescription string) Result[UploadData] {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return failure[UploadData](fmt.Sprintf("failed to build upload: %v", err))
	}
	if _, err := io.Copy(part, file); err != nil {
		return failure[UploadData](fmt.Sprintf("failed to build upload: %v", err))
	}
	if jobDescription != "" {
		if err := writer.WriteField("job_description", jobDescription); err != nil {
			return failure[UploadData](fmt.Sprintf("failed to build upload: %v", err))
		}
	}
	if err := writer.Close(); err != nil {
		return failure[UploadData](fmt.Sprintf("failed to build upload: %v", err))
	}

	return Do[UploadData](ctx, c, "/api/resume/upload", RequestOptions{
		Method:      http.MethodPost,
		Body:        &buf,
		ContentType: writer.FormDataContentType(),
	})
}
