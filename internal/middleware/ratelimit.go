package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/cache"
	"github.com/bizpermit/permitdesk/internal/model"
)

// Limiter is the token-bucket store behind rate limiting.
type Limiter interface {
	CheckAPIRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
}

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter Limiter

	// Per API key, sized by the key's tier.
	APIEnabled bool

	// Per client IP, for the unauthenticated register and login endpoints.
	AuthEnabled bool
	AuthRPS     int
	AuthBurst   int
}

// RateLimitAPI returns middleware that rate limits requests per API key.
// Must be applied after Auth.
func RateLimitAPI(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if !cfg.APIEnabled || authCtx == nil {
				next.ServeHTTP(w, r)
				return
			}

			tier := model.TierConfig(authCtx.RateLimitTier)
			if tier.RequestsPerMinute == 0 {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckAPIRateLimit(r.Context(), authCtx.KeyID, tier.RequestsPerMinute, tier.Burst)
			if !admit(w, r, cfg.Logger, result, err, slog.String("key_id", authCtx.KeyID)) {
				return
			}
			setRateLimitHeaders(w, tier.RequestsPerMinute, result.Remaining, result.ResetAt)
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP returns middleware that rate limits requests per client IP.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.AuthEnabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.AuthRPS, cfg.AuthBurst)
			if !admit(w, r, cfg.Logger, result, err, slog.String("ip", ip)) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// admit reports whether the request may proceed, writing 429 when it may not.
// Limiter failures let the request through.
func admit(w http.ResponseWriter, r *http.Request, logger *slog.Logger, result *cache.RateLimitResult, err error, subject slog.Attr) bool {
	if err != nil || result == nil {
		logger.Error("rate limit check failed", subject, slog.Any("error", err))
		return true
	}
	if result.Degraded {
		logger.Warn("rate limiter degraded, allowing request", subject)
		return true
	}
	if result.Allowed {
		return true
	}

	retryAfter := int(result.RetryAfter.Seconds())
	if retryAfter < 1 {
		retryAfter = 1
	}
	logger.Warn("rate limit exceeded",
		subject,
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int("retry_after_seconds", retryAfter),
		slog.String("request_id", GetRequestID(r.Context())),
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		"Rate limit exceeded. Retry after "+strconv.Itoa(retryAfter)+" seconds.")
	return false
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
}

// clientIP returns the host part of RemoteAddr. Proxy headers are honoured
// upstream by chi's RealIP middleware, never here.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
