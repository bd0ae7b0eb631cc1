package graphql_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/goliatone/go-app-auth"
	"github.com/goliatone/go-app-auth/graphql"
)

type memRevocations struct {
	revoked map[string]bool
}

func (m *memRevocations) IsRevoked(_ context.Context, userID, tokenID string) (bool, error) {
	return m.revoked[userID+"/"+tokenID], nil
}

func (m *memRevocations) Revoke(_ context.Context, userID, tokenID string, _ time.Time) error {
	m.revoked[userID+"/"+tokenID] = true
	return nil
}

type fixture struct {
	app    *fiber.App
	auther *auth.Auther
	repos  auth.RepositoryManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	l, _ := test.NewNullLogger()
	logger := auth.NewLogrusLogger(l, "graphql-test")

	db, err := auth.OpenDB("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	repos := auth.NewRepositoryManager(db)
	require.NoError(t, repos.Migrate(ctx))

	cfg := &auth.Settings{
		Environment:        auth.EnvProduction,
		SigningMethod:      "HS256",
		SigningKey:         "graphql-test-key",
		TokenExpiration:    1,
		TokenLookup:        auth.DefaultTokenLookup,
		AuthScheme:         "Bearer",
		ContextKey:         "user",
		RevocationFailOpen: true,
		RevocationTimeout:  250 * time.Millisecond,
	}
	tokens, err := auth.NewTokenService(cfg, logger)
	require.NoError(t, err)
	revs := &memRevocations{revoked: map[string]bool{}}

	auther := auth.NewAuthenticator(repos.Users(), tokens, revs,
		auth.WithPasswordHasher(auth.NewPasswordHasher(bcrypt.MinCost)),
	)

	resolver := graphql.NewResolver(graphql.Services{
		Guard: auth.NewGuard(cfg, tokens, revs,
			auth.NewIdentityResolver(repos.Users(), logger),
			auth.WithGuardLogger(logger),
		),
		Roles:         auth.NewRoleGuard(auth.DefaultRoleRegistry(), cfg.ContextKey, logger, nil),
		Auther:        auther,
		Guests:        auth.NewGuestDeviceService(repos, logger),
		Notifications: auth.NewNotificationService(repos.GuestDevices(), auth.NewLogPushProvider(logger), logger),
		Logger:        logger,
		ContextKey:    cfg.ContextKey,
	})

	srv := router.NewFiberAdapter(func(*fiber.App) *fiber.App { return fiber.New() })
	graphql.Mount(srv.Router(), "/graphql", resolver)

	return &fixture{app: srv.WrappedRouter(), auther: auther, repos: repos}
}

// account creates a user with role and returns a bearer token for it.
func (f *fixture) account(t *testing.T, email string, role auth.UserRole) string {
	t.Helper()
	return f.session(t, email, role).Token
}

func (f *fixture) session(t *testing.T, email string, role auth.UserRole) *auth.LoginResult {
	t.Helper()
	ctx := context.Background()
	const password = "long enough pass"

	hash, err := auth.NewPasswordHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	_, err = f.repos.Users().Create(ctx, &auth.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	require.NoError(t, err)

	res, err := f.auther.Login(ctx, auth.LoginPayload{Email: email, Password: password})
	require.NoError(t, err)
	return res
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func (r gqlResponse) code() string {
	if len(r.Errors) == 0 {
		return ""
	}
	code, _ := r.Errors[0].Extensions["code"].(string)
	return code
}

func (f *fixture) do(t *testing.T, token, query string, vars map[string]any) gqlResponse {
	t.Helper()
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return f.doWith(t, headers, query, vars)
}

func (f *fixture) doWith(t *testing.T, headers map[string]string, query string, vars map[string]any) gqlResponse {
	t.Helper()
	buf, err := json.Marshal(map[string]any{"query": query, "variables": vars})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "graphql-test/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	out := gqlResponse{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out
}

func TestResolver_Me(t *testing.T) {
	f := newFixture(t)
	token := f.account(t, "grace@example.com", auth.RoleUser)

	res := f.do(t, token, `{ me { email role isActive } }`, nil)
	require.Empty(t, res.Errors)
	me := res.Data["me"].(map[string]any)
	assert.Equal(t, "grace@example.com", me["email"])
	assert.Equal(t, "user", me["role"])

	res = f.do(t, "", `{ me { email } }`, nil)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "TOKEN_MISSING", res.code())

	res = f.do(t, "garbage", `{ me { email } }`, nil)
	assert.Equal(t, "TOKEN_MALFORMED", res.code())
}

func TestResolver_UsersRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	member := f.account(t, "member@example.com", auth.RoleUser)
	admin := f.account(t, "admin@example.com", auth.RoleAdmin)

	res := f.do(t, member, `{ users { total } }`, nil)
	assert.Equal(t, "FORBIDDEN", res.code())

	res = f.do(t, admin, `{ users(limit: 1) { total data { email } } }`, nil)
	require.Empty(t, res.Errors)
	page := res.Data["users"].(map[string]any)
	assert.Equal(t, 2.0, page["total"])
	assert.Len(t, page["data"], 1)
}

func TestResolver_DeviceLifecycle(t *testing.T) {
	f := newFixture(t)
	token := f.account(t, "owner@example.com", auth.RoleUser)

	res := f.do(t, "", `mutation($token: String!) {
		registerDeviceToken(pushToken: $token, timezone: "Europe/Berlin") {
			deviceId needsDeviceId device { timezone isActive }
		}
	}`, map[string]any{"token": "ExponentPushToken[gql]"})
	require.Empty(t, res.Errors)
	reg := res.Data["registerDeviceToken"].(map[string]any)
	assert.Equal(t, true, reg["needsDeviceId"])
	deviceID := reg["deviceId"].(string)
	assert.Equal(t, auth.Fingerprint("graphql-test/1.0", ""), deviceID)

	res = f.do(t, "", `mutation { registerDeviceToken(pushToken: "bogus") { deviceId } }`, nil)
	assert.Equal(t, "INVALID_PUSH_TOKEN", res.code())

	res = f.do(t, "", `query($id: String!) { guestDevice(deviceId: $id) { id timezone isActive } }`, map[string]any{"id": deviceID})
	require.Empty(t, res.Errors)
	public := res.Data["guestDevice"].(map[string]any)
	assert.Equal(t, "Europe/Berlin", public["timezone"])
	assert.Equal(t, true, public["isActive"])
	assert.NotEmpty(t, public["id"])

	res = f.do(t, "", `query($id: String!) { guestDevice(deviceId: $id) { userId } }`, map[string]any{"id": deviceID})
	require.NotEmpty(t, res.Errors)

	res = f.do(t, "", `mutation($id: String!) { linkGuestDevice(deviceId: $id) { userId } }`, map[string]any{"id": deviceID})
	assert.Equal(t, "TOKEN_MISSING", res.code())

	res = f.do(t, token, `mutation($id: String!) { linkGuestDevice(deviceId: $id) { userId } }`, map[string]any{"id": deviceID})
	require.Empty(t, res.Errors)
	assert.NotNil(t, res.Data["linkGuestDevice"].(map[string]any)["userId"])

	res = f.do(t, "", `{ guestDevice(deviceId: "missing") { id } }`, nil)
	assert.Equal(t, "NOT_FOUND", res.code())
}

func TestResolver_SendNotification(t *testing.T) {
	f := newFixture(t)
	admin := f.account(t, "ops@example.com", auth.RoleAdmin)
	member := f.account(t, "member@example.com", auth.RoleUser)

	res := f.do(t, "", `mutation { registerDeviceToken(deviceId: "phone-1", pushToken: "ExponentPushToken[p1]") { deviceId } }`, nil)
	require.Empty(t, res.Errors)

	const send = `mutation($input: NotificationInput!) {
		sendNotification(input: $input) { successCount failureCount messageIds }
	}`

	res = f.do(t, member, send, map[string]any{"input": map[string]any{"deviceId": "phone-1", "title": "t", "body": "b"}})
	assert.Equal(t, "FORBIDDEN", res.code())

	res = f.do(t, admin, send, map[string]any{"input": map[string]any{
		"deviceId": "phone-1",
		"title":    "Hello",
		"body":     "World",
		"data":     []map[string]string{{"key": "screen", "value": "inbox"}},
	}})
	require.Empty(t, res.Errors)
	out := res.Data["sendNotification"].(map[string]any)
	assert.Equal(t, 1.0, out["successCount"])
	assert.Len(t, out["messageIds"], 1)

	res = f.do(t, admin, send, map[string]any{"input": map[string]any{"broadcast": true, "title": "All", "body": "Hands"}})
	require.Empty(t, res.Errors)
	assert.Equal(t, 1.0, res.Data["sendNotification"].(map[string]any)["successCount"])

	tests := []struct {
		name  string
		input map[string]any
	}{
		{name: "no target", input: map[string]any{"title": "t", "body": "b"}},
		{name: "two targets", input: map[string]any{"deviceId": "phone-1", "broadcast": true, "title": "t", "body": "b"}},
		{name: "blank device", input: map[string]any{"deviceId": "  ", "title": "t", "body": "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, admin, send, map[string]any{"input": tt.input})
			assert.Equal(t, "INVALID_INPUT", res.code())
		})
	}
}

func TestResolver_LogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	token := f.account(t, "bye@example.com", auth.RoleUser)

	res := f.do(t, token, `mutation { logout }`, nil)
	require.Empty(t, res.Errors)
	assert.Equal(t, true, res.Data["logout"])

	res = f.do(t, token, `{ me { email } }`, nil)
	assert.Equal(t, "TOKEN_REVOKED", res.code())
}

func TestResolver_CookieMutationRequiresCSRF(t *testing.T) {
	f := newFixture(t)
	session := f.session(t, "cookie@example.com", auth.RoleUser)
	cookie := auth.AccessTokenCookie + "=" + session.Token

	res := f.doWith(t, map[string]string{"Cookie": cookie}, `{ me { email } }`, nil)
	require.Empty(t, res.Errors)

	res = f.doWith(t, map[string]string{"Cookie": cookie}, `mutation { logout }`, nil)
	assert.Equal(t, auth.TextCodeCSRFInvalid, res.code())

	res = f.doWith(t, map[string]string{"Cookie": cookie, "X-CSRF-Token": "wrong"}, `mutation { logout }`, nil)
	assert.Equal(t, auth.TextCodeCSRFInvalid, res.code())

	res = f.doWith(t, map[string]string{"Cookie": cookie, "X-CSRF-Token": session.CSRF}, `mutation { logout }`, nil)
	require.Empty(t, res.Errors)
	assert.Equal(t, true, res.Data["logout"])
}

func TestNewResolver_RequiresGuards(t *testing.T) {
	assert.Panics(t, func() {
		graphql.NewResolver(graphql.Services{})
	})
}

func TestNewSchema(t *testing.T) {
	assert.NotPanics(t, func() {
		graphql.NewSchema(graphql.NewResolver(graphql.Services{
			Guard: &auth.Guard{},
			Roles: &auth.RoleGuard{},
		}))
	})
}
