package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/config"
	"github.com/resumelens/resumelens/internal/logger"
	"github.com/resumelens/resumelens/internal/registry"
	"github.com/resumelens/resumelens/internal/tasks"
	"github.com/resumelens/resumelens/internal/workers"
)

var version = "dev" // Will be set during build with -ldflags

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.GetLogger()

	log.Info().Str("version", version).Msg("Starting Resumelens session worker")

	db, err := registry.OpenDatabase(cfg.Database.URL, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	reg := registry.NewService(db, cfg.Session.TTL, log)
	backend := api.New(cfg.Backend.URL, nil, cfg.Backend.Timeout, log)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})
	defer asynqClient.Close()

	asynqServer := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr: cfg.Redis.Address,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			Logger: &asynqLogger{log: log},
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeSessionPurge, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleSessionPurge(ctx, t, reg, log)
	})
	mux.HandleFunc(tasks.TypeProfileResync, func(ctx context.Context, t *asynq.Task) error {
		return workers.HandleProfileResync(ctx, t, backend, reg, log)
	})

	// Periodic sweep of expired session records
	go workers.StartPurgeScheduler(asynqClient, cfg.Session.PurgeSchedule, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Starting Asynq worker server...")
		if err := asynqServer.Run(mux); err != nil {
			log.Fatal().Err(err).Msg("Asynq worker server failed")
		}
	}()

	<-sigChan
	log.Info().Msg("Received shutdown signal, shutting down gracefully...")

	asynqServer.Shutdown()

	// Give in-flight handlers a moment to release the database
	time.Sleep(100 * time.Millisecond)
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("Worker shutdown complete")
}

// asynqLogger adapts zerolog to Asynq's logger interface
type asynqLogger struct {
	log zerolog.Logger
}

func (l *asynqLogger) Debug(args ...interface{}) {
	l.log.Debug().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Info(args ...interface{}) {
	l.log.Info().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Warn(args ...interface{}) {
	l.log.Warn().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Error(args ...interface{}) {
	l.log.Error().Msg(fmt.Sprint(args...))
}

func (l *asynqLogger) Fatal(args ...interface{}) {
	l.log.Fatal().Msg(fmt.Sprint(args...))
}
