package auth

import (
	"context"
	"net/http"
)

var identityCtxKey = &contextKey{"identity"}
var graphqlCallCtxKey = &contextKey{"graphql_call"}

type contextKey struct {
	name string
}

// WithIdentity sets the authenticated identity in the given context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, identity)
}

// IdentityFromContext finds the identity attached by the auth guard.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(identityCtxKey).(Identity)
	return raw, ok && raw != nil
}

// AuthIdentityFromContext is IdentityFromContext narrowed to *AuthIdentity.
func AuthIdentityFromContext(ctx context.Context) (*AuthIdentity, bool) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, false
	}
	raw, ok := identity.(*AuthIdentity)
	return raw, ok
}

// GraphQLCall is the call context of a GraphQL request. It carries the
// underlying HTTP request and whatever identity the guard attached.
type GraphQLCall struct {
	Request  *http.Request
	identity Identity
}

// NewGraphQLCall wraps r
func NewGraphQLCall(r *http.Request) *GraphQLCall {
	return &GraphQLCall{Request: r}
}

// WithGraphQLCall stores call in ctx so resolvers can reach it.
func WithGraphQLCall(ctx context.Context, call *GraphQLCall) context.Context {
	return context.WithValue(ctx, graphqlCallCtxKey, call)
}

// GraphQLCallFromContext returns the call stored by WithGraphQLCall.
func GraphQLCallFromContext(ctx context.Context) (*GraphQLCall, bool) {
	if ctx == nil {
		return nil, false
	}
	raw, ok := ctx.Value(graphqlCallCtxKey).(*GraphQLCall)
	return raw, ok && raw != nil
}

// GraphQLCallMiddleware attaches a GraphQLCall to every request context.
func GraphQLCallMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		call := NewGraphQLCall(r)
		next.ServeHTTP(w, r.WithContext(WithGraphQLCall(r.Context(), call)))
	})
}

// Identity returns the identity the guard attached to the call.
func (c *GraphQLCall) Identity() (Identity, bool) {
	if c == nil || c.identity == nil {
		return nil, false
	}
	return c.identity, true
}
