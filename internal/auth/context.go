package auth

import (
	"context"
)

// UserContext holds the authenticated caller. TenantID is mandatory:
// every repository query is scoped by it.
type UserContext struct {
	TenantID    uint
	UserID      string
	DisplayName string
	Roles       []string
}

type contextKey string

const userContextKey contextKey = "userContext"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// MustFromContext extracts user context or panics
func MustFromContext(ctx context.Context) *UserContext {
	user, ok := FromContext(ctx)
	if !ok {
		panic("user context not found in context")
	}
	return user
}

// TenantFromContext returns the caller's tenant id. The second return
// is false when the request carries no usable tenant, in which case
// callers must refuse rather than query unscoped.
func TenantFromContext(ctx context.Context) (uint, bool) {
	user, ok := FromContext(ctx)
	if !ok || user.TenantID == 0 {
		return 0, false
	}
	return user.TenantID, true
}

// HasRole checks if user has a specific role
func (u *UserContext) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole checks if user has any of the specified roles
func (u *UserContext) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if u.HasRole(role) {
			return true
		}
	}
	return false
}
