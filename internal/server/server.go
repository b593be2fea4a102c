// Package server hosts the dashboard gateway: the HTTP surface between
// browsers and the resume backend. It owns the edge route guard, the
// session endpoints, and the authenticated proxy.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/resumelens/resumelens/internal/api"
	"github.com/resumelens/resumelens/internal/config"
	"github.com/resumelens/resumelens/internal/guard"
	"github.com/resumelens/resumelens/internal/onboarding"
	"github.com/resumelens/resumelens/internal/registry"
	"github.com/resumelens/resumelens/internal/session"
)

// Server represents the gateway HTTP server
type Server struct {
	router      *gin.Engine
	db          *gorm.DB
	config      *config.Config
	logger      zerolog.Logger
	validator   *validator.Validate
	table       *guard.Table
	backend     *api.Client
	registry    *registry.Service
	manager     *session.Manager
	gate        *onboarding.Gate
	asynqClient *asynq.Client
	version     string
}

// New creates a new gateway instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	db, err := registry.OpenDatabase(cfg.Database.URL, zlog)
	if err != nil {
		return nil, err
	}

	// Route classification table: built-in rules unless a routes file
	// overrides them
	table := guard.DefaultTable()
	if cfg.Server.RoutesFile != "" {
		table, err = guard.LoadTable(cfg.Server.RoutesFile)
		if err != nil {
			return nil, err
		}
		zlog.Info().Str("file", cfg.Server.RoutesFile).Msg("Loaded route classification table")
	}

	validate := validator.New()
	validate.RegisterValidation("fullname", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		if len(value) < 2 {
			return false
		}
		for _, char := range value {
			if !((char >= 'a' && char <= 'z') ||
				(char >= 'A' && char <= 'Z') ||
				char == ' ' || char == '-' || char == '\'') {
				return false
			}
		}
		return true
	})

	backend := api.New(cfg.Backend.URL, nil, cfg.Backend.Timeout, zlog)
	registryService := registry.NewService(db, cfg.Session.TTL, zlog)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr: cfg.Redis.Address,
	})

	server := &Server{
		db:          db,
		config:      cfg,
		logger:      zlog,
		validator:   validate,
		table:       table,
		backend:     backend,
		registry:    registryService,
		manager:     session.NewManager(backend, zlog),
		gate:        onboarding.New(zlog),
		asynqClient: asynqClient,
		version:     version,
	}

	server.setupRouter()

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint (never guarded)
	s.router.GET("/health", s.healthCheck)

	// Session endpoints: these drive the state machine and are the only
	// writers of the credential
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/register", s.register)
	s.router.POST("/api/auth/logout", s.logout)
	s.router.POST("/api/auth/reset-password", s.resetPassword)

	// Authenticated API routes (verified session required)
	authed := s.router.Group("/api")
	authed.Use(s.SessionMiddleware())
	{
		authed.GET("/auth/me", s.currentUser)
		authed.GET("/onboarding/status", s.onboardingStatus)
		authed.POST("/resume/upload", s.uploadResume)
	}

	// Pages: the edge guard runs ahead of every render
	pages := s.router.Group("/")
	pages.Use(guard.RouteGuard(s.table, s.config.Session.CookieName))
	{
		pages.GET("/", s.landingPage)
		pages.GET("/auth/signin", s.signInPage)
		pages.GET("/auth/signup", s.signUpPage)
		pages.GET("/auth/forgot-password", s.forgotPasswordPage)
		pages.GET("/onboarding", s.onboardingPage)
		pages.GET("/dashboard", s.protectedPage("Dashboard"))
		pages.GET("/history", s.protectedPage("History"))
		pages.GET("/billing", s.protectedPage("Billing"))
	}
}

// Router exposes the configured router for tests
func (s *Server) Router() http.Handler {
	return s.router
}

// GetDB returns the database connection for use by workers
func (s *Server) GetDB() *gorm.DB {
	return s.db
}

// Registry returns the session registry service
func (s *Server) Registry() *registry.Service {
	return s.registry
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "resumelens-gateway",
		"version":   s.version,
	})
}

// Start starts the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              s.config.Server.ListenAddr,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       300 * time.Second,
	}

	go func() {
		s.logger.Info().Str("addr", s.config.Server.ListenAddr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("HTTP server error")
		}
	}()

	<-sigChan
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	// In-flight handlers may enqueue tasks; close the client only after
	// the listener has drained
	if err := s.asynqClient.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("Error closing Asynq client")
	}

	// Close database connection to flush WAL writes
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			s.logger.Error().Err(err).Msg("Error closing database")
		}
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
