package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bizpermit/permitdesk/internal/auth"
	"github.com/bizpermit/permitdesk/internal/model"
)

// DefaultMinAuthDuration pads every authentication attempt to a fixed floor.
const DefaultMinAuthDuration = 200 * time.Millisecond

// KeyLookup finds stored API keys by their visible prefix.
type KeyLookup interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified keys. A nil context from Get is a miss.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Logger *slog.Logger
	Keys   KeyLookup
	Cache  AuthCache // optional

	// MinDuration is the minimum time spent per attempt. Zero disables padding.
	MinDuration time.Duration
}

// Auth returns a middleware that authenticates API requests.
// The verified key's owner becomes the request's actor.
func Auth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.MinDuration > 0 {
				start := time.Now()
				defer func() {
					if elapsed := time.Since(start); elapsed < cfg.MinDuration {
						time.Sleep(cfg.MinDuration - elapsed)
					}
				}()
			}

			authCtx, cacheHit, reason := authenticate(r, cfg)
			if authCtx == nil {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or missing API key")
				return
			}

			cfg.Logger.Debug("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("user_id", authCtx.UserID),
				slog.String("role", string(authCtx.Role)),
				slog.Bool("cache_hit", cacheHit),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			ctx := auth.ContextWithAuth(r.Context(), authCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// authenticate returns the verified auth context, or nil with a log reason.
func authenticate(r *http.Request, cfg AuthConfig) (*model.AuthContext, bool, string) {
	ctx := r.Context()

	key := extractAPIKey(r)
	if key == "" {
		return nil, false, "missing_key"
	}
	parsed, err := auth.ParseAPIKey(key)
	if err != nil {
		return nil, false, "invalid_format"
	}

	cacheKey := auth.QuickHash(key)
	if cfg.Cache != nil {
		if cached, _ := cfg.Cache.GetAuthContext(ctx, cacheKey); cached != nil {
			return cached, true, ""
		}
	}

	candidates, err := cfg.Keys.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		cfg.Logger.Error("key lookup failed during auth",
			slog.String("error", err.Error()),
			slog.String("request_id", GetRequestID(ctx)),
		)
		return nil, false, "lookup_error"
	}

	// Prefixes are short, so several keys may share one.
	var matched *model.APIKey
	for _, k := range candidates {
		if ok, err := auth.VerifyPassword(key, k.KeyHash); err == nil && ok {
			matched = k
			break
		}
	}
	if matched == nil || !matched.UserRole.IsValid() {
		return nil, false, "invalid_key"
	}

	authCtx := &model.AuthContext{
		KeyID:         matched.ID,
		KeyPrefix:     matched.KeyPrefix,
		UserID:        matched.UserID,
		Role:          matched.UserRole,
		Scopes:        matched.Scopes,
		RateLimitTier: matched.RateLimitTier,
	}

	if cfg.Cache != nil {
		_ = cfg.Cache.SetAuthContext(ctx, cacheKey, authCtx)
	}

	go func(id string) {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = cfg.Keys.UpdateAPIKeyLastUsed(bg, id)
	}(matched.ID)

	return authCtx, false, ""
}

// extractAPIKey reads "Authorization: Bearer <key>" or "X-API-Key: <key>".
func extractAPIKey(r *http.Request) string {
	if key, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(key)
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
