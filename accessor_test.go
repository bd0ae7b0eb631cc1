package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-app-auth"
)

func TestResolveAccessor_Router(t *testing.T) {
	user := newUser(auth.RoleUser, true)
	srv := newServer(nil)
	srv.Router().Get("/", func(c router.Context) error {
		accessor, err := auth.ResolveAccessor(c, "user")
		if !assert.NoError(t, err) {
			return err
		}

		assert.Equal(t, auth.TransportHTTP, accessor.Transport())
		assert.Equal(t, "Bearer abc", accessor.Header("Authorization"))
		assert.Equal(t, "cookie-token", accessor.Cookie(auth.AccessTokenCookie))

		single, ok := accessor.Query("single")
		assert.True(t, ok)
		assert.Equal(t, "one", single)

		_, ok = accessor.Query("repeated")
		assert.False(t, ok)
		_, ok = accessor.Query("absent")
		assert.False(t, ok)

		_, ok = accessor.Identity()
		assert.False(t, ok)

		accessor.SetIdentity(auth.NewIdentityFromUser(user))
		identity, ok := accessor.Identity()
		if assert.True(t, ok) {
			assert.Equal(t, user.ID.String(), identity.ID())
		}

		fromCtx, ok := auth.IdentityFromContext(c.Context())
		if assert.True(t, ok) {
			assert.Equal(t, user.ID.String(), fromCtx.ID())
		}
		return c.SendStatus(router.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/?single=one&repeated=a&repeated=b", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "cookie-token"})

	res, err := srv.WrappedRouter().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, res.StatusCode)
}

func TestResolveAccessor_MockContext(t *testing.T) {
	ctx := router.NewMockContext()
	ctx.HeadersM["X-Real-IP"] = "203.0.113.7"
	ctx.On("QueryValues", "token").Return([]string{"\xff"})

	accessor, err := auth.ResolveAccessor(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, "203.0.113.7", accessor.Header("X-Real-IP"))
	_, ok := accessor.Query("token")
	assert.False(t, ok, "non utf-8 values are ignored")
}

func TestResolveAccessor_GraphQL(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/graphql?access_token=q&dup=1&dup=2", nil)
	req.Header.Set("Authorization", "Bearer abc")
	req.AddCookie(&http.Cookie{Name: auth.AccessTokenCookie, Value: "cookie-token"})
	call := auth.NewGraphQLCall(req)

	accessor, err := auth.ResolveAccessor(call, "user")
	require.NoError(t, err)

	assert.Equal(t, auth.TransportGraphQL, accessor.Transport())
	assert.Equal(t, "Bearer abc", accessor.Header("Authorization"))
	assert.Equal(t, "cookie-token", accessor.Cookie(auth.AccessTokenCookie))
	assert.Empty(t, accessor.Cookie("other"))

	token, ok := accessor.Query("access_token")
	assert.True(t, ok)
	assert.Equal(t, "q", token)
	_, ok = accessor.Query("dup")
	assert.False(t, ok)

	user := newUser(auth.RoleAdmin, true)
	accessor.SetIdentity(auth.NewIdentityFromUser(user))
	identity, ok := call.Identity()
	require.True(t, ok)
	assert.Equal(t, string(auth.RoleAdmin), identity.Role())
}

func TestResolveAccessor_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		call any
	}{
		{name: "nil", call: nil},
		{name: "string", call: "request"},
		{name: "bare http request", call: httptest.NewRequest(http.MethodGet, "/", nil)},
		{name: "graphql call without request", call: &auth.GraphQLCall{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ResolveAccessor(tt.call, "user")
			assert.ErrorIs(t, err, auth.ErrUnsupportedContext)
		})
	}
}

func TestGraphQLCallMiddleware(t *testing.T) {
	var seen *auth.GraphQLCall
	handler := auth.GraphQLCallMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call, ok := auth.GraphQLCallFromContext(r.Context())
		require.True(t, ok)
		seen = call
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))

	require.NotNil(t, seen)
	assert.NotNil(t, seen.Request)
	_, ok := seen.Identity()
	assert.False(t, ok)
}
