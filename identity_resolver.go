package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
)

// UserFinder loads users by id or email
type UserFinder interface {
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
}

// IdentityResolver maps verified claims to an active user
type IdentityResolver struct {
	users  UserFinder
	logger Logger
}

// NewIdentityResolver creates a resolver over users
func NewIdentityResolver(users UserFinder, logger Logger) *IdentityResolver {
	return &IdentityResolver{
		users:  users,
		logger: resolveLogger(logger),
	}
}

// Resolve loads the subject of claims. A missing user yields ErrUserNotFound
// and an inactive one ErrAccountInactive. Other lookup failures are returned
// as they come.
func (r *IdentityResolver) Resolve(ctx context.Context, claims *JWTClaims) (*AuthIdentity, error) {
	if claims == nil || claims.Subject() == "" {
		return nil, ErrTokenInvalid
	}

	user, err := r.users.GetByIdentifier(ctx, claims.Subject())
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if !user.IsActive {
		r.logger.Debug("identity resolver rejected inactive account", "user_id", user.ID)
		return nil, ErrAccountInactive
	}

	return &AuthIdentity{
		User:    user,
		Claims:  claims,
		TokenID: claims.TokenID(),
		CSRF:    claims.CSRFToken(),
	}, nil
}
