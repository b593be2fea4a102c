package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/registry"
	"github.com/resumelens/resumelens/internal/tasks"
)

// HandleProfileResync re-fetches the profile behind one session and
// refreshes its cached snapshot. A failed fetch is logged and dropped:
// passive sync never demotes a session, that is Initialize's job.
func HandleProfileResync(ctx context.Context, t *asynq.Task, backend *api.Client, reg *registry.Service, logger zerolog.Logger) error {
	var payload tasks.ProfileResyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	client := backend.WithCredentials(reg.CredentialStore(payload.SessionID))
	resp := client.CurrentUser(ctx)
	if !resp.Success {
		logger.Warn().
			Str("session_id", payload.SessionID).
			Str("error", resp.Error).
			Msg("Profile resync fetch failed, keeping cached snapshot")
		return nil
	}

	if err := reg.UpdateUser(payload.SessionID, resp.Data); err != nil {
		return fmt.Errorf("failed to update user snapshot: %w", err)
	}

	logger.Debug().Str("session_id", payload.SessionID).Msg("Profile snapshot refreshed")
	return nil
}
