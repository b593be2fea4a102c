package onboarding

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/guard"
	"github.com/resumelens/resumelens/internal/session"
)

// Decision is what the gate tells the page handler to do
type Decision int

const (
	// DecisionLoading: session still initializing, render the loading
	// shell, never protected content
	DecisionLoading Decision = iota
	// DecisionNone: anonymous session reached a protected render. The
	// route guard should have redirected already; render nothing.
	DecisionNone
	// DecisionRedirect: send the visitor to the onboarding flow
	DecisionRedirect
	// DecisionRender: onboarding complete, render the protected content
	DecisionRender
)

// Gate is the content-level guard wrapping protected pages. It layers
// the one-time onboarding requirement on top of an authenticated
// session.
type Gate struct {
	logger zerolog.Logger
}

// New creates an onboarding gate
func New(logger zerolog.Logger) *Gate {
	return &Gate{logger: logger}
}

// Decide evaluates the gate for one protected render. The onboarding
// status fetch fails closed: when the backend cannot confirm completion,
// the visitor goes to onboarding rather than through to paid flows.
func (g *Gate) Decide(ctx context.Context, store *session.Store) Decision {
	snap := store.Snapshot()

	if ok, reason := guard.Authorize(snap); !ok {
		if reason == guard.ReasonInitializing {
			return DecisionLoading
		}
		return DecisionNone
	}

	resp := store.Client().GetOnboardingStatus(ctx)
	if !resp.Success {
		g.logger.Warn().Str("error", resp.Error).Msg("Onboarding status check failed, treating as incomplete")
		return DecisionRedirect
	}

	if !resp.Data.OnboardingCompleted {
		return DecisionRedirect
	}
	return DecisionRender
}
