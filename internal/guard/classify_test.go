package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/session"
)

func TestClassify(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		path     string
		expected Class
	}{
		{"/", ClassPublic},
		{"/about", ClassPublic},
		{"/pricing", ClassPublic},
		{"/blog/how-to-beat-ats", ClassPublic},
		{"/auth/signin", ClassAuthOnly},
		{"/auth/signup", ClassAuthOnly},
		{"/auth/forgot-password", ClassAuthOnly},
		{"/dashboard", ClassProtected},
		{"/dashboard/resumes", ClassProtected},
		{"/history", ClassProtected},
		{"/billing", ClassProtected},
		{"/onboarding", ClassProtected},
		// Unknown paths default to protected
		{"/some/new/feature", ClassProtected},
		// The bare "/" rule must not make everything public
		{"/secrets", ClassProtected},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := table.Classify(tt.path); got != tt.expected {
				t.Errorf("Classify(%q) = %v, expected %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "routes.yaml")
	content := `public:
  - /
  - /landing
auth_only:
  - /login
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write routes file: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("failed to load table: %v", err)
	}

	if got := table.Classify("/landing"); got != ClassPublic {
		t.Errorf("expected /landing public, got %v", got)
	}
	if got := table.Classify("/login"); got != ClassAuthOnly {
		t.Errorf("expected /login auth-only, got %v", got)
	}
	if got := table.Classify("/app"); got != ClassProtected {
		t.Errorf("expected /app protected, got %v", got)
	}
}

func TestLoadTable_MissingFile(t *testing.T) {
	if _, err := LoadTable(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing routes file")
	}
}

func TestAuthorize(t *testing.T) {
	user := &api.User{ID: "1", Email: "user@x.com"}

	tests := []struct {
		name           string
		session        session.Session
		expectedOK     bool
		expectedReason string
	}{
		{
			name:           "initializing",
			session:        session.Session{IsLoading: true},
			expectedOK:     false,
			expectedReason: ReasonInitializing,
		},
		{
			name:           "anonymous",
			session:        session.Session{},
			expectedOK:     false,
			expectedReason: ReasonUnauthenticated,
		},
		{
			name:       "authenticated",
			session:    session.Session{User: user, IsAuthenticated: true},
			expectedOK: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := Authorize(tt.session)
			if ok != tt.expectedOK {
				t.Errorf("expected ok=%v, got %v", tt.expectedOK, ok)
			}
			if reason != tt.expectedReason {
				t.Errorf("expected reason %q, got %q", tt.expectedReason, reason)
			}
		})
	}
}
