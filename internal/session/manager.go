package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/credential"
)

// Manager keeps one State per browser session ID. It is the
// constructor-injected session service: handlers obtain Stores through
// it and tests substitute their own instance.
type Manager struct {
	mu     sync.Mutex
	states map[string]*State
	base   *api.Client
	logger zerolog.Logger
}

// NewManager creates a Manager over the shared backend client
func NewManager(base *api.Client, logger zerolog.Logger) *Manager {
	return &Manager{
		states: make(map[string]*State),
		base:   base,
		logger: logger,
	}
}

// Store returns a per-request Store for the given session ID, wired to
// the given credential store. The underlying State is shared across
// requests for the same ID.
func (m *Manager) Store(sid string, creds credential.Store) *Store {
	m.mu.Lock()
	state, ok := m.states[sid]
	if !ok {
		state = NewState()
		m.states[sid] = state
	}
	m.mu.Unlock()

	return NewStore(state, m.base, creds, m.logger)
}

// Drop forgets the in-memory state for a session ID. Called on logout
// and whenever a session settles anonymous, so cookies that never
// verify do not pin state here. The persisted credential is cleared
// separately by the Store.
func (m *Manager) Drop(sid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sid)
}

// Len reports the number of cached session states
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
