package http

import (
	"context"

	"github.com/example/backlog-scheduler/internal/application"
)

type contextKey string

const (
	principalContextKey contextKey = "principal"
	resourceIDKey       contextKey = "resource_id"
)

// ContextWithPrincipal returns a derived context containing the authenticated principal.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext extracts the authenticated principal from context if available.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(application.Principal)
	return principal, ok
}

// ContextWithResourceID injects the game or run identifier resolved from the request path.
func ContextWithResourceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, resourceIDKey, id)
}

// ResourceIDFromContext extracts an identifier previously associated with the context.
func ResourceIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(resourceIDKey).(string)
	return id, ok
}
