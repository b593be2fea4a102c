package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	service = "resumelens"
	// keyringKey is the single canonical credential slot. Earlier builds of
	// the dashboard used several cookie/token names; everything now goes
	// through this one.
	keyringKey = "session-token"
)

// ErrNotFound is returned by Load when no credential has been stored
var ErrNotFound = errors.New("credential not found")

// Store persists the bearer credential. Load returns ErrNotFound when
// nothing is stored; Clear is idempotent.
type Store interface {
	Save(token string) error
	Load() (string, error)
	Clear() error
}

// keyringStore persists the credential in the OS keychain/credential manager
type keyringStore struct{}

// NewKeyring returns a Store backed by the OS keychain
func NewKeyring() Store {
	return &keyringStore{}
}

func (k *keyringStore) Save(token string) error {
	if err := keyring.Set(service, keyringKey, token); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (k *keyringStore) Load() (string, error) {
	token, err := keyring.Get(service, keyringKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	return token, nil
}

func (k *keyringStore) Clear() error {
	if err := keyring.Delete(service, keyringKey); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // already cleared
		}
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// fileStore persists the credential in a 0600 file, for hosts without a
// usable keychain
type fileStore struct {
	path string
}

// NewFile returns a Store backed by a file at path
func NewFile(path string) Store {
	return &fileStore{path: path}
}

func (f *fileStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	if err := os.WriteFile(f.path, []byte(token), 0600); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

func (f *fileStore) Load() (string, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to load credential: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

func (f *fileStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// Memory is an in-process Store, used by tests and as the per-request
// scratch store in handlers that never persist
type Memory struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemory returns an empty in-memory Store
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Save(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.set = true
	return nil
}

func (m *Memory) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return "", ErrNotFound
	}
	return m.token, nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.set = false
	return nil
}
