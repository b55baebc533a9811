package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/argusai/pairing-server-go/internal/config"
	"github.com/argusai/pairing-server-go/internal/database"
	"github.com/argusai/pairing-server-go/internal/handler"
	"github.com/argusai/pairing-server-go/internal/jobs"
	"github.com/argusai/pairing-server-go/internal/middleware"
	"github.com/argusai/pairing-server-go/internal/notify"
	"github.com/argusai/pairing-server-go/internal/ratelimit"
	"github.com/argusai/pairing-server-go/internal/redis"
	"github.com/argusai/pairing-server-go/internal/repository"
	"github.com/argusai/pairing-server-go/internal/service"
	"github.com/argusai/pairing-server-go/internal/token"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate("migrations"); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, redisErr := redis.NewClient(cfg.RedisURL)
	if redisClient == nil {
		log.Fatal().Err(redisErr).Msg("invalid redis url")
	}
	defer redisClient.Close()

	var limiter ratelimit.Limiter
	if redisErr != nil {
		// limiting degrades to per-instance approximation until Redis returns
		log.Warn().Err(redisErr).Msg("redis unreachable, falling back to in-memory rate limiting")
		limiter = ratelimit.NewMemoryLimiter(cfg.PairingRateLimit, cfg.PairingRateWindow())
	} else {
		log.Info().Msg("redis connected")
		limiter = ratelimit.NewRedisLimiter(redisClient.Client, cfg.PairingRateLimit, cfg.PairingRateWindow())
	}

	userRepo := repository.NewUserRepository(db.DB)
	deviceRepo := repository.NewDeviceRepository(db.DB)
	sessionRepo := repository.NewSessionRepository(db.DB)
	pairingCodeRepo := repository.NewPairingCodeRepository(db.DB)
	tokenRepo := repository.NewRefreshTokenRepository(db.DB)

	broker := notify.NewBroker(redisClient)
	defer broker.Close()

	signer := token.NewSigner(cfg.AccessTokenSecret, cfg.AccessTokenIssuer, cfg.AccessTokenTTL())

	tokenService := service.NewTokenService(
		db, tokenRepo, deviceRepo, signer, cfg.RefreshTokenTTL(), cfg.RefreshGrace(),
	)
	pairingService := service.NewPairingService(
		pairingCodeRepo, deviceRepo, limiter, broker, tokenService, cfg.PairingCodeTTL(),
	)
	sessionService := service.NewSessionService(
		userRepo, sessionRepo, tokenService, cfg.SessionTTL(),
	)

	sessionMiddleware := middleware.NewSessionMiddleware(sessionRepo)
	deviceAuthMiddleware := middleware.NewDeviceAuthMiddleware(signer)
	hookSignatureMiddleware := middleware.NewHookSignatureMiddleware(cfg.RevocationHookSecret)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	pairingHandler := handler.NewPairingHandler(pairingService)
	tokenHandler := handler.NewTokenHandler(tokenService)
	authHandler := handler.NewAuthHandler(sessionService)
	eventsHandler := handler.NewEventsHandler(broker)
	internalHandler := handler.NewInternalHandler(tokenService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), config.DBPingTimeout)
		defer cancel()

		status := "ok"
		code := http.StatusOK
		if err := db.Ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		} else if err := redisClient.Ping(ctx).Err(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    status,
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/pairing/request", pairingHandler.Request)
		r.Post("/pairing/exchange", pairingHandler.Exchange)
		r.Post("/tokens/refresh", tokenHandler.Refresh)

		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(sessionMiddleware.Handler)
			r.Post("/pairing/confirm", pairingHandler.Confirm)
			r.Post("/auth/password", authHandler.ChangePassword)
			r.Get("/events", eventsHandler.Stream)
		})

		r.Group(func(r chi.Router) {
			r.Use(deviceAuthMiddleware.Handler)
			r.Post("/tokens/revoke", tokenHandler.Revoke)
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Use(hookSignatureMiddleware.Handler)
		r.Post("/revocation", internalHandler.Revocation)
	})

	cleanupJob := jobs.NewCleanupJob(
		pairingCodeRepo, sessionRepo, tokenRepo,
		cfg.RefreshRetention(), config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

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
