package auth

import (
	"context"

	"github.com/bizpermit/permitdesk/internal/model"
)

type contextKey struct{}

// ContextWithAuth stores the authenticated key's context on ctx.
func ContextWithAuth(ctx context.Context, ac *model.AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// AuthFromContext returns the stored AuthContext, or nil for anonymous requests.
func AuthFromContext(ctx context.Context) *model.AuthContext {
	ac, _ := ctx.Value(contextKey{}).(*model.AuthContext)
	return ac
}

// ActorFromContext returns the identity handed to the service layer.
// Nil when the request is anonymous.
func ActorFromContext(ctx context.Context) *model.Actor {
	if ac := AuthFromContext(ctx); ac != nil {
		return ac.Actor()
	}
	return nil
}
