package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/duochat/chat-server-go/internal/chat"
	"github.com/duochat/chat-server-go/internal/config"
	"github.com/duochat/chat-server-go/internal/database"
	"github.com/duochat/chat-server-go/internal/handler"
	"github.com/duochat/chat-server-go/internal/hub"
	"github.com/duochat/chat-server-go/internal/jobs"
	"github.com/duochat/chat-server-go/internal/middleware"
	"github.com/duochat/chat-server-go/internal/redis"
	"github.com/duochat/chat-server-go/internal/repository"
	"github.com/duochat/chat-server-go/internal/service"
	"github.com/duochat/chat-server-go/internal/store"
)

const rateLimitPruneInterval = time.Minute

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}
	cancel()
	log.Info().Msg("database connected")

	sessions := store.NewSessionStore(cfg.SessionTTL())
	presence := store.NewPresenceRegistry()
	conversations := store.NewConversationStore()
	events := hub.NewHub(config.WSSendBuffer)

	tasks := []jobs.Task{
		jobs.SessionSweepTask(sessions, cfg.SessionSweepInterval()),
	}

	var limiter service.RateLimiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected, sharing chat rate limits")
		limiter = service.NewRedisRateLimiter(redisClient.Client, cfg.RateLimitWindow(), cfg.RateLimitMax)
	} else {
		memoryLimiter := service.NewMemoryRateLimiter(cfg.RateLimitWindow(), cfg.RateLimitMax)
		tasks = append(tasks, jobs.RateLimitPruneTask(memoryLimiter, rateLimitPruneInterval))
		limiter = memoryLimiter
	}

	userRepo := repository.NewUserRepository(db.DB)
	userService := service.NewUserService(userRepo, cfg.BcryptCost)
	authService := service.NewAuthService(userService, sessions)

	router := chat.NewRouter(events, sessions, presence, conversations, limiter, userService, chat.Options{
		HistoryLimit:    cfg.HistoryLimit,
		MaxImageBytes:   cfg.MaxImageBytes,
		MaxImageDataLen: cfg.MaxImageDataLen(),
	})
	tasks = append(tasks, jobs.GlobalWipeTask(router, cfg.GlobalWipeInterval()))

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	corsMiddleware := middleware.NewCORSMiddleware(cfg.AllowedOrigins())
	loginLimiter := middleware.NewLoginRateLimiter(middleware.DefaultLoginMaxAttempts, middleware.DefaultLoginWindow)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(isProduction)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	wsHandler := handler.NewWebSocketHandler(router, cfg.AllowedOrigins())
	healthHandler := handler.NewHealthHandler(router)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	// Websocket connections are long-lived and must not inherit the request timeout.
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(corsMiddleware.Handler)
		r.Use(securityHeadersMiddleware.Handler)
		r.Use(bodyLimitMiddleware.Handler)

		r.Get("/health", healthHandler.ServeHTTP)

		r.Route("/auth", func(r chi.Router) {
			r.With(loginLimiter.Handler).Mount("/", authHandler.Routes())
			r.Post("/logout", authHandler.Logout)
			r.Get("/validate", authHandler.Validate)
		})

		r.Mount("/users", userHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(tasks...)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}
	server.RegisterOnShutdown(func() {
		closed := events.DisconnectAll()
		log.Info().Int("connections", closed).Msg("websocket connections closed")
	})

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
