package guard

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/resumelens/resumelens/internal/session"
)

// Class is the routing classification of a path. Every path is exactly
// one of the three.
type Class int

const (
	// ClassPublic paths require nothing
	ClassPublic Class = iota
	// ClassAuthOnly paths must NOT be visited while authenticated
	// (sign-in, sign-up)
	ClassAuthOnly
	// ClassProtected is the default: authentication plus completed
	// onboarding
	ClassProtected
)

func (c Class) String() string {
	switch c {
	case ClassPublic:
		return "public"
	case ClassAuthOnly:
		return "auth_only"
	default:
		return "protected"
	}
}

// Table holds the path classification rules. Classification is a pure
// function of the path string; every guard in the system, edge or
// client-side, consults the same table so the enforcement points cannot
// drift.
type Table struct {
	Public   []string `yaml:"public"`
	AuthOnly []string `yaml:"auth_only"`
}

// DefaultTable returns the compiled-in classification rules
func DefaultTable() *Table {
	return &Table{
		Public: []string{
			"/",
			"/about",
			"/pricing",
			"/features",
			"/blog",
			"/faq",
			"/privacy",
			"/terms",
		},
		AuthOnly: []string{
			"/auth/signin",
			"/auth/signup",
			"/auth/forgot-password",
		},
	}
}

// LoadTable reads a classification table from a YAML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}

	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	return &table, nil
}

// Classify maps a request path to its class. Auth-only rules win over
// public rules; anything unmatched is protected.
func (t *Table) Classify(path string) Class {
	if matchAny(t.AuthOnly, path) {
		return ClassAuthOnly
	}
	if matchAny(t.Public, path) {
		return ClassPublic
	}
	return ClassProtected
}

// matchAny reports whether path equals an entry or sits under it. The
// bare "/" entry matches only itself, otherwise every path would be
// public.
func matchAny(entries []string, path string) bool {
	for _, entry := range entries {
		if path == entry {
			return true
		}
		if entry != "/" && strings.HasPrefix(path, entry+"/") {
			return true
		}
	}
	return false
}

// Denial reasons returned by Authorize
const (
	ReasonInitializing    = "initializing"
	ReasonUnauthenticated = "unauthenticated"
)

// Authorize is the canonical predicate over a session: it says whether
// protected content may be shown and, if not, why. Both the onboarding
// gate and any handler-level auth check go through it.
func Authorize(s session.Session) (bool, string) {
	if s.IsLoading {
		return false, ReasonInitializing
	}
	if !s.IsAuthenticated {
		return false, ReasonUnauthenticated
	}
	return true, ""
}
