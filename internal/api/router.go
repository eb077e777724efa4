package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promptforge-ai/promptforge/internal/database"
	"github.com/promptforge-ai/promptforge/internal/events"
	mw "github.com/promptforge-ai/promptforge/internal/middleware"
)

// HandlerSet holds handler functions injected from main.go to avoid import cycles.
type HandlerSet struct {
	// Auth handlers
	Register http.HandlerFunc
	Login    http.HandlerFunc
	Refresh  http.HandlerFunc
	Logout   http.HandlerFunc

	// Generation handlers (guests allowed)
	Generate  http.HandlerFunc
	Analyze   http.HandlerFunc
	Templates http.HandlerFunc

	// Prompt management handlers
	History      http.HandlerFunc
	GetPrompt    http.HandlerFunc
	DeletePrompt http.HandlerFunc
	SearchPrompt http.HandlerFunc

	// User panel handlers
	Me          http.HandlerFunc
	Stats       http.HandlerFunc
	Quota       http.HandlerFunc
	AuditLogs   http.HandlerFunc
	SetAPIKey   http.HandlerFunc
	ClearAPIKey http.HandlerFunc

	// Auth middleware
	AuthMiddleware         func(http.Handler) http.Handler
	OptionalAuthMiddleware func(http.Handler) http.Handler
}

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	CORSAllowedOrigins []string
	AuthRateLimiter    func(http.Handler) http.Handler
}

func NewRouter(pool *pgxpool.Pool, natsClient *events.Client, cfg RouterConfig, h HandlerSet) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.SecurityHeaders)
	r.Use(mw.Logging)
	r.Use(mw.Recovery)
	r.Use(mw.Metrics)
	r.Use(cors.Handler(mw.CORS(cfg.CORSAllowedOrigins)))

	// Liveness probe — always 200, no dependency checks
	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"status": "alive"})
	})

	// Readiness probe — checks DB and NATS
	readinessHandler := func(w http.ResponseWriter, r *http.Request) {
		health := map[string]string{
			"status":   "healthy",
			"database": "healthy",
			"nats":     "healthy",
		}

		status := http.StatusOK

		if err := database.HealthCheck(r.Context(), pool); err != nil {
			health["database"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		}

		if natsClient != nil && !natsClient.Healthy() {
			health["nats"] = "unhealthy"
			health["status"] = "degraded"
			status = http.StatusServiceUnavailable
		} else if natsClient == nil {
			health["nats"] = "not configured"
		}

		JSON(w, status, health)
	}

	r.Get("/health/ready", readinessHandler)
	r.Get("/health", readinessHandler)

	// Prometheus metrics
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public) — optionally rate-limited
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimiter != nil {
				r.Use(cfg.AuthRateLimiter)
			}
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)

			// Protected auth routes
			r.Group(func(r chi.Router) {
				r.Use(h.AuthMiddleware)
				r.Post("/logout", h.Logout)
			})
		})

		// Generation routes serve guests too: auth is attached when the
		// bearer token is present, never required.
		r.Group(func(r chi.Router) {
			r.Use(h.OptionalAuthMiddleware)
			r.Post("/generate", h.Generate)
			r.Post("/analyze", h.Analyze)
			r.Get("/templates", h.Templates)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(h.AuthMiddleware)

			r.Route("/prompts", func(r chi.Router) {
				r.Get("/history", h.History)
				r.Post("/search", h.SearchPrompt)
				r.Get("/{id}", h.GetPrompt)
				r.Delete("/{id}", h.DeletePrompt)
			})

			r.Route("/user", func(r chi.Router) {
				r.Get("/me", h.Me)
				r.Get("/stats", h.Stats)
				r.Get("/quota", h.Quota)
				r.Get("/audit", h.AuditLogs)
				r.Put("/api-key", h.SetAPIKey)
				r.Delete("/api-key", h.ClearAPIKey)
			})
		})
	})

	return r
}
