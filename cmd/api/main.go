package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/promptforge-ai/promptforge/internal/api"
	"github.com/promptforge-ai/promptforge/internal/audit"
	"github.com/promptforge-ai/promptforge/internal/auth"
	"github.com/promptforge-ai/promptforge/internal/config"
	"github.com/promptforge-ai/promptforge/internal/database"
	"github.com/promptforge-ai/promptforge/internal/events"
	"github.com/promptforge-ai/promptforge/internal/generator"
	"github.com/promptforge-ai/promptforge/internal/middleware"
	"github.com/promptforge-ai/promptforge/internal/prompts"
	"github.com/promptforge-ai/promptforge/internal/quota"
	iredis "github.com/promptforge-ai/promptforge/internal/redis"
	"github.com/promptforge-ai/promptforge/internal/server"
	"github.com/promptforge-ai/promptforge/internal/users"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// PostgreSQL
	pool, err := database.NewPostgresPool(ctx, cfg.DB)
	if err != nil {
		slog.Error("connecting to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(cfg.DB.DSN(), cfg.DB.MigrationsPath); err != nil {
		slog.Error("running migrations", "error", err)
		os.Exit(1)
	}

	// Redis
	redisClient, err := iredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Error("connecting to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	// NATS is optional: without it the API runs with events disabled.
	var natsClient *events.Client
	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		natsClient, err = events.NewClient(ctx, cfg.NATS)
		if err != nil {
			slog.Error("connecting to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		publisher = events.NewPublisher(natsClient.JetStream())
	} else {
		slog.Warn("NATS disabled, event pipeline off")
	}

	// Auth
	jwtManager := auth.NewJWTManager(
		cfg.JWT.AccessSecret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	authSvc := auth.NewService(jwtManager, redisClient)

	encryptor, err := auth.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		slog.Error("creating encryptor", "error", err)
		os.Exit(1)
	}

	// Users
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, encryptor)
	userHandler := users.NewHandler(userSvc)
	authHandler := auth.NewHandler(authSvc, userSvc)

	// Quota
	loc, err := time.LoadLocation(cfg.Quota.Timezone)
	if err != nil {
		slog.Error("loading quota timezone", "error", err, "timezone", cfg.Quota.Timezone)
		os.Exit(1)
	}
	quotaStore := quota.NewStore(quota.NewPostgresStore(pool), cfg.Quota.DailyLimit, cfg.Quota.MaxRetries, loc)
	guard := quota.NewGuard(quotaStore, cfg.Quota.FailOpen)

	// Generator
	gen := generator.NewGeminiClient(cfg.Generator)

	// Prompts
	promptRepo := prompts.NewRepository(pool)
	var promptPublisher prompts.EventPublisher
	if publisher != nil {
		promptPublisher = publisher
	}
	promptSvc := prompts.NewService(promptRepo, guard, gen, userSvc, promptPublisher, cfg.Generator.Model)
	promptHandler := prompts.NewHandler(promptSvc, guard)

	// Audit
	auditRepo := audit.NewRepository(pool)
	auditHandler := audit.NewHandler(auditRepo)

	if natsClient != nil {
		consumerMgr := events.NewConsumerManager(natsClient.JetStream())
		auditConsumer := audit.NewConsumer(auditRepo, consumerMgr)
		go func() {
			if err := auditConsumer.Start(ctx); err != nil {
				slog.Error("audit consumer stopped", "error", err)
			}
		}()
	}

	// Rate limiting on the credential endpoints
	rateLimiter := middleware.NewRateLimiter(redisClient, cfg.RateLimit.AuthMaxRequests, cfg.RateLimit.AuthWindowSec)

	// Router
	router := api.NewRouter(pool, natsClient, api.RouterConfig{
		CORSAllowedOrigins: cfg.CORS.AllowedOrigins,
		AuthRateLimiter:    rateLimiter.Middleware,
	}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Generate:  promptHandler.Generate,
		Analyze:   promptHandler.Analyze,
		Templates: promptHandler.Templates,

		History:      promptHandler.History,
		GetPrompt:    promptHandler.Get,
		DeletePrompt: promptHandler.Delete,
		SearchPrompt: promptHandler.Search,

		Me:          userHandler.Me,
		Stats:       promptHandler.Stats,
		Quota:       promptHandler.Quota,
		AuditLogs:   auditHandler.List,
		SetAPIKey:   userHandler.SetAPIKey,
		ClearAPIKey: userHandler.ClearAPIKey,

		AuthMiddleware:         auth.Middleware(authSvc),
		OptionalAuthMiddleware: auth.OptionalMiddleware(authSvc),
	})

	// Start server
	srv := server.New(cfg.Server, router)
	if err := srv.Start(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		opts.Level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
