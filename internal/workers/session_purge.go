package workers

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/registry"
)

// HandleSessionPurge sweeps expired session records out of the registry
func HandleSessionPurge(ctx context.Context, t *asynq.Task, reg *registry.Service, logger zerolog.Logger) error {
	purged, err := reg.PurgeExpired(time.Now())
	if err != nil {
		logger.Error().Err(err).Msg("Session purge failed")
		return err
	}

	if purged > 0 {
		logger.Info().Int64("purged", purged).Msg("Purged expired sessions")
	}
	return nil
}
