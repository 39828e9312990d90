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

	"github.com/quillapp/quill-server-go/internal/config"
	"github.com/quillapp/quill-server-go/internal/database"
	"github.com/quillapp/quill-server-go/internal/handler"
	"github.com/quillapp/quill-server-go/internal/jobs"
	"github.com/quillapp/quill-server-go/internal/middleware"
	"github.com/quillapp/quill-server-go/internal/notify"
	"github.com/quillapp/quill-server-go/internal/redis"
	"github.com/quillapp/quill-server-go/internal/repository"
	"github.com/quillapp/quill-server-go/internal/service"
	"github.com/quillapp/quill-server-go/internal/upstream"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("QUILL_ENV") == "production"
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	if err := database.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	pairingRepo := repository.NewPairingRequestRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	apiKeyRepo := repository.NewAPIKeyRepository(db.DB)
	usageRepo := repository.NewUsageLogRepository(db.DB)

	sender := notify.NewSender(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})

	tokenService := service.NewTokenService(cfg.TokenSigningSecret)
	pairingService := service.NewPairingService(db, pairingRepo, userRepo, tokenService, service.PairingConfig{
		TokenTTL:       cfg.PairingTTL(),
		BearerTTL:      cfg.BearerTTL(),
		BrowserBaseURL: cfg.BrowserBaseURL,
		RequireOTP:     cfg.PairingRequireOTP,
	})
	otpService := service.NewOTPService(pairingRepo, userRepo, redisClient, sender, service.OTPConfig{
		TTL:            cfg.OTPTTL(),
		ResendCooldown: cfg.OTPResendCooldown(),
		MaxAttempts:    cfg.OTPMaxAttempts,
	})
	apiKeyService := service.NewAPIKeyService(apiKeyRepo)
	ledgerService := service.NewLedgerService(userRepo, usageRepo)
	authService := service.NewAuthService(userRepo, tokenService, cfg.SessionTTL())

	upstreamClient := upstream.NewHTTPClient(cfg.UpstreamURL, cfg.UpstreamAPIKey)

	bearerAuth := middleware.NewBearerAuthMiddleware(tokenService, userRepo)
	apiKeyAuth := middleware.NewAPIKeyAuthMiddleware(apiKeyService)
	rateLimit := middleware.NewRedisRateLimitMiddleware(redisClient.Client, config.DefaultRateLimitPerMin)
	bodyLimit := middleware.NewBodyLimitMiddleware(0)

	pairingHandler := handler.NewPairingHandler(pairingService, otpService, bearerAuth.Handler)
	apiKeyHandler := handler.NewAPIKeyHandler(apiKeyService)
	meteredHandler := handler.NewMeteredHandler(ledgerService, userRepo, upstreamClient, cfg.CompletionCost)
	authHandler := handler.NewAuthHandler(authService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimit.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Mount("/", authHandler.Routes())
	})

	r.Route("/v1/pairing", func(r chi.Router) {
		r.Mount("/", pairingHandler.Routes())
	})

	r.Route("/v1/keys", func(r chi.Router) {
		r.Use(bearerAuth.Handler)
		r.Use(rateLimit.Handler)
		r.Mount("/", apiKeyHandler.Routes())
	})

	r.Route("/v1/completions", func(r chi.Router) {
		r.Use(apiKeyAuth.Handler)
		r.Use(rateLimit.Handler)
		r.Mount("/", meteredHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		pairingRepo, usageRepo,
		cfg.PairingRetention(), cfg.UsageRetention(),
		config.CleanupJobInterval,
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerRequestTimeout,
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
