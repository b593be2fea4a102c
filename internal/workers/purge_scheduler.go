package workers

import (
	"time"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/tasks"
)

// StartPurgeScheduler enqueues a session purge according to the cron
// schedule. It blocks; run it in a goroutine.
func StartPurgeScheduler(client *asynq.Client, schedule string, logger zerolog.Logger) {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		logger.Error().Err(err).Str("schedule", schedule).Msg("Invalid purge schedule, sweep disabled")
		return
	}

	for {
		next := sched.Next(time.Now())
		time.Sleep(time.Until(next))

		if _, err := client.Enqueue(tasks.NewSessionPurgeTask()); err != nil {
			logger.Error().Err(err).Msg("Failed to enqueue session purge")
			continue
		}
		logger.Debug().Time("fired_at", next).Msg("Session purge enqueued")
	}
}
