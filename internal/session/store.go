package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/credential"
)

// Session is a point-in-time view of the authenticated state.
// IsAuthenticated is true exactly when User is non-nil, and User is only
// ever set from a successful identity-verification call against the
// backend, never from the mere presence of a stored credential.
type Session struct {
	User            *api.User
	IsLoading       bool
	IsAuthenticated bool
}

// Result is what state-mutating operations surface to the caller
type Result struct {
	Success bool
	Error   string
}

// State is the shared authenticated-state for one browser session. It
// lives across requests; Store wraps it with per-request wiring.
type State struct {
	mu          sync.Mutex
	user        *api.User
	loading     bool
	initialized bool
}

// NewState returns a State in the Initializing phase
func NewState() *State {
	return &State{loading: true}
}

// Snapshot returns the current session view
func (s *State) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Session{
		User:            s.user,
		IsLoading:       s.loading,
		IsAuthenticated: s.user != nil,
	}
}

// Initialized reports whether Initialize has settled at least once
func (s *State) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

// replaceUser swaps the cached user without touching loading or the
// initialized flag
func (s *State) replaceUser(user *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func (s *State) settle(user *api.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	s.loading = false
	s.initialized = true
}

func (s *State) setLoading(loading bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = loading
}

// Store drives the state machine for one session. The credential store is
// the single write path for the bearer token; in the gateway it is the
// dual-writing Keeper, so every transition keeps both credential
// locations in step.
type Store struct {
	state  *State
	client *api.Client
	creds  credential.Store
	logger zerolog.Logger
}

// NewStore binds a shared State to an API client and credential store.
// The client is re-bound to creds so header injection and persistence
// read the same slot.
func NewStore(state *State, base *api.Client, creds credential.Store, logger zerolog.Logger) *Store {
	return &Store{
		state:  state,
		client: base.WithCredentials(creds),
		creds:  creds,
		logger: logger,
	}
}

// Snapshot returns the current session view
func (s *Store) Snapshot() Session {
	return s.state.Snapshot()
}

// Client returns the API client bound to this session's credential
func (s *Store) Client() *api.Client {
	return s.client
}

// Initialize settles the session from the persisted credential. A stored
// credential is never trusted at face value: identity is re-verified via
// the backend, and a failed verification purges the credential. Calling
// Initialize after it has settled is a no-op.
func (s *Store) Initialize(ctx context.Context) Session {
	if s.state.Initialized() {
		return s.state.Snapshot()
	}

	if _, err := s.creds.Load(); err != nil {
		if !errors.Is(err, credential.ErrNotFound) {
			s.logger.Warn().Err(err).Msg("Failed to load credential during session init")
		}
		s.state.settle(nil)
		return s.state.Snapshot()
	}

	resp := s.client.CurrentUser(ctx)
	if resp.Success {
		user := resp.Data
		s.state.settle(&user)
		return s.state.Snapshot()
	}

	// Stale or forged credential; purge it so the next init goes straight
	// to Anonymous.
	s.logger.Info().Str("error", resp.Error).Msg("Stored credential failed verification, purging")
	if err := s.creds.Clear(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to purge stale credential")
	}
	s.state.settle(nil)
	return s.state.Snapshot()
}

// Login authenticates and, on success, persists the credential and
// transitions to Authenticated. On failure the session stays anonymous
// and the backend's error string is surfaced; nothing is persisted.
func (s *Store) Login(ctx context.Context, email, password string) Result {
	s.state.setLoading(true)

	resp := s.client.Login(ctx, email, password)
	if !resp.Success {
		s.state.settle(nil)
		return Result{Success: false, Error: resp.Error}
	}

	if err := s.creds.Save(resp.Data.AccessToken); err != nil {
		// The backend accepted the login but the credential never landed;
		// reporting success here would leave an unusable session.
		s.logger.Error().Err(err).Msg("Failed to persist credential after login")
		s.state.settle(nil)
		return Result{Success: false, Error: "failed to persist credential"}
	}

	user := resp.Data.User
	s.state.settle(&user)
	s.logger.Info().Str("user_id", user.ID).Str("email", user.Email).Msg("User logged in")
	return Result{Success: true}
}

// Register creates an account and, on success, establishes a session by
// logging in with the same credentials. Registration alone does not
// return a usable session.
func (s *Store) Register(ctx context.Context, req api.RegisterRequest) Result {
	s.state.setLoading(true)

	resp := s.client.Register(ctx, req)
	if !resp.Success {
		s.state.settle(nil)
		return Result{Success: false, Error: resp.Error}
	}

	return s.Login(ctx, req.Email, req.Password)
}

// Logout ends the session. The backend call is best-effort; local
// cleanup is unconditional, so the session is Anonymous and the
// credential purged even when the backend errors.
func (s *Store) Logout(ctx context.Context) error {
	if resp := s.client.Logout(ctx); !resp.Success {
		s.logger.Warn().Str("error", resp.Error).Msg("Backend logout failed, clearing local session anyway")
	}

	err := s.creds.Clear()
	s.state.settle(nil)
	if err != nil {
		return err
	}
	s.logger.Info().Msg("User logged out")
	return nil
}

// RefreshUser re-fetches the profile for passive sync. Failures are
// logged and ignored; only Initialize may demote an authenticated
// session.
func (s *Store) RefreshUser(ctx context.Context) {
	if !s.state.Snapshot().IsAuthenticated {
		return
	}

	resp := s.client.CurrentUser(ctx)
	if !resp.Success {
		s.logger.Warn().Str("error", resp.Error).Msg("User refresh failed")
		return
	}

	user := resp.Data
	s.state.replaceUser(&user)
}
