package auth

import (
	"context"

	apperrors "parkly/pkg/errors"
)

const (
	RoleDriver = "driver"
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
)

// Identity is the authenticated caller, carried explicitly through the
// request context. Services never consult ambient session state.
type Identity struct {
	UserID string
	Role   string
}

func (id Identity) IsAdmin() bool {
	return id.Role == RoleAdmin
}

type contextKey string

const identityKey contextKey = "identity"

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// RequireIdentity extracts the caller or fails with an authentication error.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok || id.UserID == "" {
		return Identity{}, apperrors.Unauthorized("Authentication required")
	}
	return id, nil
}

// RequireRole fails with an authorization error unless the caller holds one
// of the given roles.
func RequireRole(ctx context.Context, roles ...string) (Identity, error) {
	id, err := RequireIdentity(ctx)
	if err != nil {
		return Identity{}, err
	}
	for _, role := range roles {
		if id.Role == role {
			return id, nil
		}
	}
	return Identity{}, apperrors.Forbidden("Insufficient role for this operation")
}
