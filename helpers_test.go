package auth_test

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	auth "github.com/goliatone/go-app-auth"
)

const testSecret = "test-signing-key"

func newSettings(mods ...func(*auth.Settings)) *auth.Settings {
	cfg := &auth.Settings{
		Environment:        auth.EnvProduction,
		SigningMethod:      "HS256",
		SigningKey:         testSecret,
		TokenExpiration:    1,
		TokenLookup:        auth.DefaultTokenLookup,
		AuthScheme:         "Bearer",
		ContextKey:         "user",
		RevocationFailOpen: true,
		RevocationTimeout:  250 * time.Millisecond,
	}
	for _, mod := range mods {
		mod(cfg)
	}
	return cfg
}

func newTokenService(t *testing.T, cfg auth.Config) *auth.TokenService {
	t.Helper()
	ts, err := auth.NewTokenService(cfg, nil)
	require.NoError(t, err)
	return ts
}

// newServer returns a fiber backed router whose errors render through
// NewErrorHandler.
func newServer(logger auth.Logger) router.Server[*fiber.App] {
	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{UnescapePath: true})
	})
	srv.Router().Use(auth.ErrorMiddleware(auth.NewErrorHandler(logger)))
	return srv
}

func keys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}

// newTestLogger returns a Logger whose entries can be inspected through hook.
func newTestLogger() (*auth.LogrusLogger, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return auth.NewLogrusLogger(l, "test"), hook
}

func hasEntry(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

func newUser(role auth.UserRole, active bool) *auth.User {
	now := time.Now().UTC()
	return &auth.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("%s@example.com", uuid.NewString()[:8]),
		Role:      role,
		IsActive:  active,
		FirstName: "Ada",
		LastName:  "Lovelace",
		CreatedAt: &now,
		UpdatedAt: &now,
	}
}

// userStore is an in memory UserFinder
type userStore struct {
	mu    sync.Mutex
	users map[string]*auth.User
	err   error
}

func newUserStore(users ...*auth.User) *userStore {
	s := &userStore{users: map[string]*auth.User{}}
	for _, u := range users {
		s.users[u.ID.String()] = u
	}
	return s
}

func (s *userStore) GetByIdentifier(_ context.Context, id string, _ ...repository.SelectCriteria) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	u, ok := s.users[id]
	if !ok {
		return nil, auth.ErrRecordNotFound
	}
	return u, nil
}

// revocations is an in memory RevocationStore
type revocations struct {
	mu      sync.Mutex
	revoked map[string][]string
	err     error
}

func newRevocations() *revocations {
	return &revocations{revoked: map[string][]string{}}
}

func (r *revocations) IsRevoked(_ context.Context, userID, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for _, id := range r.revoked[userID] {
		if id == tokenID {
			return true, nil
		}
	}
	return false, nil
}

func (r *revocations) Revoke(_ context.Context, userID, tokenID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked[userID] = append(r.revoked[userID], tokenID)
	return nil
}

// signToken signs claims for user with key, bypassing the token service.
func signToken(t *testing.T, key string, claims *auth.JWTClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return raw
}

func claimsFor(user *auth.User, ttl time.Duration) *auth.JWTClaims {
	now := time.Now()
	return &auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UID:      user.ID.String(),
		UserRole: string(user.Role),
		CSRF:     uuid.NewString(),
	}
}

func newTestDB(t *testing.T) (*bun.DB, auth.RepositoryManager) {
	t.Helper()
	db, err := auth.OpenDB("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repos := auth.NewRepositoryManager(db)
	require.NoError(t, repos.Migrate(context.Background()))
	return db, repos
}
