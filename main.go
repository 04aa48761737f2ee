package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/biometriscan/gateway/internal/api"
	"github.com/biometriscan/gateway/internal/auth"
	"github.com/biometriscan/gateway/internal/config"
	"github.com/biometriscan/gateway/internal/database"
	"github.com/biometriscan/gateway/internal/logger"
	"github.com/biometriscan/gateway/internal/metrics"
	"github.com/biometriscan/gateway/internal/monitoring"
	"github.com/biometriscan/gateway/internal/proxy"
	"github.com/biometriscan/gateway/internal/ratelimit"
	"github.com/biometriscan/gateway/internal/rewrite"
	"github.com/biometriscan/gateway/internal/services"
	"github.com/biometriscan/gateway/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Set up database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply database migrations")
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize token manager")
	}
	userService := services.NewUserService(db)
	sessionService := services.NewSessionService(db)
	eventService := services.NewEventService(db)
	eventService.SetPublisher(hub.PublishEvent)

	var provider services.CredentialsProvider = userService
	if cfg.AuthProvider == "backend" {
		provider = services.NewBackendProvider(cfg.BackendURL(), &http.Client{Timeout: 10 * time.Second})
	} else if cfg.SeedUserEmail != "" {
		seedUser(userService, cfg.SeedUserEmail, cfg.SeedUserPassword)
	}
	authService := services.NewAuthService(provider, tokens, sessionService, eventService)

	// Rewrite table and proxy
	table, err := rewrite.NewTable(rewrite.DefaultRules(cfg.BackendURL()))
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid rewrite rules")
	}
	gatewayProxy := proxy.New(table, proxy.WithMetrics(m))

	// Rate limiting
	limiter := ratelimit.NewMemoryLimiter()
	if cfg.RedisAddr != "" {
		if rl, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unavailable, using in-memory rate limiter")
		} else {
			limiter.Close()
			limiter = rl
		}
	}
	defer limiter.Close()

	// Set up and run the background scheduler
	upstream := monitoring.NewUpstreamMonitor(cfg.BackendURL(), eventService, m)
	scheduler, err := monitoring.NewScheduler(upstream, sessionService, cfg.HealthCheckSchedule, cfg.SessionPurgeSchedule)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}
	go scheduler.Run()

	// Set up router
	router := api.NewRouter(cfg, api.Dependencies{
		Tokens:   tokens,
		Auth:     authService,
		Sessions: sessionService,
		Events:   eventService,
		Hub:      hub,
		Proxy:    gatewayProxy,
		Limiter:  limiter,
		Metrics:  m,
		Upstream: upstream,
		Gatherer: prometheus.DefaultGatherer,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("backend", cfg.BackendURL()).Str("auth_provider", cfg.AuthProvider).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}

// seedUser creates the configured local account unless it already exists.
func seedUser(users *services.UserService, email, password string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := users.CreateUser(ctx, email, "", password)
	switch {
	case err == nil:
		log.Info().Str("email", email).Msg("Seeded local user")
	case errors.Is(err, services.ErrUserExists):
		log.Debug().Str("email", email).Msg("Seed user already exists")
	default:
		log.Error().Err(err).Str("email", email).Msg("Failed to seed local user")
	}
}
