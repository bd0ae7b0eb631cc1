package auth

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// DefaultRevocationTTL bounds a revocation when the token carries no expiry.
const DefaultRevocationTTL = 24 * time.Hour

// TokenIssuer mints tokens for identities
type TokenIssuer interface {
	Generate(identity Identity) (string, *JWTClaims, error)
}

// LoginResult is returned after a successful login
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	CSRF      string    `json:"csrf_token"`
	User      *User     `json:"user"`
}

// Auther handles account registration, login and logout
type Auther struct {
	users       Users
	tokens      TokenIssuer
	revocations RevocationStore
	hasher      PasswordHasher
	phoneRegion string
	logger      Logger
	now         func() time.Time
}

// AutherOption customizes an Auther
type AutherOption func(*Auther)

// WithAutherLogger sets the logger
func WithAutherLogger(logger Logger) AutherOption {
	return func(a *Auther) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithPasswordHasher overrides the bcrypt cost
func WithPasswordHasher(h PasswordHasher) AutherOption {
	return func(a *Auther) {
		a.hasher = h
	}
}

// WithPhoneRegion sets the region used to parse local phone numbers
func WithPhoneRegion(region string) AutherOption {
	return func(a *Auther) {
		if region != "" {
			a.phoneRegion = strings.ToUpper(region)
		}
	}
}

// NewAuthenticator returns a new Auther. revocations may be nil, in which
// case logout does not invalidate the token.
func NewAuthenticator(users Users, tokens TokenIssuer, revocations RevocationStore, opts ...AutherOption) *Auther {
	a := &Auther{
		users:       users,
		tokens:      tokens,
		revocations: revocations,
		hasher:      NewPasswordHasher(DefaultBcryptCost),
		phoneRegion: "US",
		logger:      defLogger{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register creates an active account with the user role.
func (s *Auther) Register(ctx context.Context, payload RegisterPayload) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(payload.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if _, err := s.users.GetByIdentifier(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !IsNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.Hash(payload.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.users.Create(ctx, &User{
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		IsActive:     true,
		FirstName:    strings.TrimSpace(payload.FirstName),
		LastName:     strings.TrimSpace(payload.LastName),
		Phone:        phone,
	})
	if err != nil {
		s.logger.Error("register user failed", "error", err)
		return nil, err
	}

	s.logger.Info("registered user", "user_id", user.ID)
	return user, nil
}

// Login verifies credentials and issues a token
func (s *Auther) Login(ctx context.Context, payload LoginPayload) (*LoginResult, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByIdentifier(ctx, payload.Email)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		s.logger.Error("login user lookup failed", "error", err)
		return nil, err
	}

	if err := s.hasher.Compare(payload.Password, user.PasswordHash); err != nil {
		s.logger.Warn("login failed", "user_id", user.ID, "error", err)
		return nil, err
	}

	if !user.IsActive {
		s.logger.Warn("login blocked for inactive account", "user_id", user.ID)
		return nil, ErrAccountInactive
	}

	token, claims, err := s.tokens.Generate(NewIdentityFromUser(user))
	if err != nil {
		s.logger.Error("login token generation failed", "error", err)
		return nil, err
	}

	return &LoginResult{
		Token:     token,
		ExpiresAt: claims.Expires(),
		CSRF:      claims.CSRFToken(),
		User:      user,
	}, nil
}

// Logout revokes the token identity authenticated with until it expires.
func (s *Auther) Logout(ctx context.Context, identity *AuthIdentity) error {
	if identity == nil {
		return ErrAuthenticationFailed
	}
	if identity.TokenID == "" {
		s.logger.Debug("logout for token without id, nothing to revoke", "user_id", identity.ID())
		return nil
	}
	if s.revocations == nil {
		s.logger.Warn("logout without revocation store, token stays valid", "user_id", identity.ID())
		return nil
	}

	until := time.Time{}
	if identity.Claims != nil {
		until = identity.Claims.Expires()
	}
	if until.IsZero() {
		until = s.now().Add(DefaultRevocationTTL)
	}

	return s.revocations.Revoke(ctx, identity.ID(), identity.TokenID, until)
}

// ListUsers returns a page of users and the total count
func (s *Auther) ListUsers(ctx context.Context, limit, offset int) ([]*User, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx,
		repository.SelectPaginate(limit, offset),
		repository.OrderBy("created_at ASC"),
	)
}

// SetUserActive enables or disables an account
func (s *Auther) SetUserActive(ctx context.Context, id string, active bool) (*User, error) {
	uid, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrRecordNotFound
	}
	return s.users.SetActive(ctx, uid, active)
}
