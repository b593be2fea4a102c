package main

import (
	"fmt"
	"os"

	"github.com/resumelens/resumelens/internal/config"
	"github.com/resumelens/resumelens/internal/logger"
	"github.com/resumelens/resumelens/internal/server"
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

	srv, err := server.New(cfg, log, version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create gateway")
	}

	log.Info().Str("version", version).Msg("Starting Resumelens gateway...")

	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("Gateway failed to start")
	}
}
