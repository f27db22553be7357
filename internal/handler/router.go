package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bizpermit/permitdesk/internal/metrics"
	"github.com/bizpermit/permitdesk/internal/middleware"
	"github.com/bizpermit/permitdesk/internal/service"
)

// RouterConfig carries everything the HTTP surface is built from.
type RouterConfig struct {
	Logger   *slog.Logger
	Recorder metrics.Recorder
	Gatherer prometheus.Gatherer // nil leaves /metrics unmounted

	Applications *service.ApplicationService
	Accounts     *service.AccountService

	// Readiness dependencies; nil means not configured.
	DB    HealthChecker
	Cache HealthChecker

	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimitConfig
	Security    middleware.SecurityConfig
	CORS        middleware.CORSConfig
	MaxBodySize int64
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodySize
	if maxBody <= 0 {
		maxBody = middleware.DefaultMaxRequestBodySize
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = logger
	}
	if cfg.RateLimit.Logger == nil {
		cfg.RateLimit.Logger = logger
	}

	schemas := CompileSchemas()
	health := NewHealthHandler(cfg.DB, cfg.Cache, logger)
	applications := NewApplicationHandler(cfg.Applications, logger)
	accounts := NewAccountHandler(cfg.Accounts, logger)
	apiKeys := NewAPIKeyHandler(cfg.Accounts, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, cfg.Recorder))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(middleware.MaxBodySize(maxBody))

	// Health endpoints (no auth required)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", NewMetricsHandler(cfg.Gatherer))
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Credentials in, API key out. Limited per client IP.
		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RateLimitIP(cfg.RateLimit))
			r.Use(middleware.ValidateBody(schemas.Credentials))
			r.Post("/register", accounts.Register)
			r.Post("/login", accounts.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Auth))
			r.Use(middleware.RateLimitAPI(cfg.RateLimit))

			r.Route("/applications", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", applications.List)
				r.With(middleware.RequireWrite(), middleware.ValidateBody(schemas.SubmitApplication)).
					Post("/", applications.Submit)
				r.With(middleware.RequireRead()).Get("/stats", applications.Stats)
				r.With(middleware.RequireRead()).Get("/{id}", applications.Get)
				r.With(middleware.RequireWrite(), middleware.ValidateBody(schemas.UpdateFields)).
					Patch("/{id}", applications.UpdateFields)
				r.With(middleware.RequireWrite(), middleware.ValidateBody(schemas.Review)).
					Patch("/{id}/status", applications.Review)
				r.With(middleware.RequireWrite(), middleware.ValidateBody(schemas.Attach)).
					Post("/{id}/attachments/{slot}", applications.Attach)
			})

			r.Route("/api-keys", func(r chi.Router) {
				r.With(middleware.RequireRead()).Get("/", apiKeys.ListAPIKeys)
				r.With(middleware.RequireWrite(), middleware.ValidateBody(schemas.CreateKey)).
					Post("/", apiKeys.CreateAPIKey)
				r.With(middleware.RequireWrite()).Delete("/{key_id}", apiKeys.RevokeAPIKey)
			})
		})
	})

	// 404 and 405 handlers
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
