// Package main is the entrypoint for the permit application API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/cache"
	"github.com/bizpermit/permitdesk/internal/config"
	"github.com/bizpermit/permitdesk/internal/events"
	"github.com/bizpermit/permitdesk/internal/handler"
	"github.com/bizpermit/permitdesk/internal/metrics"
	"github.com/bizpermit/permitdesk/internal/middleware"
	"github.com/bizpermit/permitdesk/internal/repository"
	"github.com/bizpermit/permitdesk/internal/retry"
	"github.com/bizpermit/permitdesk/internal/server"
	"github.com/bizpermit/permitdesk/internal/service"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.PoolOptions{
		Size:         cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewPrometheus(registry)

	var emitter events.Emitter = events.Discard{}
	if cfg.EventsEnabled {
		emitter = events.NewPublisher(cacheClient.Client(), logger, recorder)
	}

	// Initialize services
	keyEnv := auth.EnvLive
	if !cfg.IsProduction() {
		keyEnv = auth.EnvTest
	}
	applications := service.NewApplicationService(repo, cacheClient, emitter, recorder, logger, service.ApplicationOptions{
		StatsTTL: cfg.StatsCacheTTL,
		Retry: retry.Policy{
			Attempts:  cfg.ReadRetryAttempts,
			BaseDelay: cfg.ReadRetryBaseDelay,
		},
	})
	accounts := service.NewAccountService(repo, cacheClient, logger, keyEnv)

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	r := handler.NewRouter(handler.RouterConfig{
		Logger:       logger,
		Recorder:     recorder,
		Gatherer:     registry,
		Applications: applications,
		Accounts:     accounts,
		DB:           repo,
		Cache:        cacheClient,
		Auth: middleware.AuthConfig{
			Logger:      logger,
			Keys:        repo,
			Cache:       cacheClient,
			MinDuration: middleware.DefaultMinAuthDuration,
		},
		RateLimit: middleware.RateLimitConfig{
			Logger:      logger,
			Limiter:     cacheClient,
			APIEnabled:  cfg.RateLimitAPIEnabled,
			AuthEnabled: cfg.RateLimitAuthEnabled,
			AuthRPS:     cfg.RateLimitAuthRPS,
			AuthBurst:   cfg.RateLimitAuthBurst,
		},
		Security:    middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()},
		CORS:        corsCfg,
		MaxBodySize: cfg.MaxRequestBodySize,
	})

	// Create and run server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"events_enabled", cfg.EventsEnabled,
	)

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	err = srv.Run(runCtx)
	stop()
	if err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
