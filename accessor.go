package auth

import (
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-router"
)

// Transport tags the shape of an inbound call
type Transport string

const (
	TransportHTTP    Transport = "http"
	TransportGraphQL Transport = "graphql"
)

// RequestAccessor is the transport neutral request the guards operate on.
// It satisfies jwtware.Source.
type RequestAccessor interface {
	Transport() Transport
	Header(name string) string
	Cookie(name string) string
	// Query returns a parameter only if it carries a single textual value.
	Query(name string) (string, bool)
	Identity() (Identity, bool)
	SetIdentity(identity Identity)
}

// ResolveAccessor normalizes call into a RequestAccessor. Unknown call shapes
// fail closed with ErrUnsupportedContext.
func ResolveAccessor(call any, contextKey string) (RequestAccessor, error) {
	switch c := call.(type) {
	case RequestAccessor:
		return c, nil
	case *GraphQLCall:
		if c == nil || c.Request == nil {
			return nil, ErrUnsupportedContext
		}
		return graphqlAccessor{call: c}, nil
	case router.Context:
		if c == nil {
			return nil, ErrUnsupportedContext
		}
		return NewRouterAccessor(c, contextKey), nil
	default:
		return nil, ErrUnsupportedContext
	}
}

type routerAccessor struct {
	ctx router.Context
	key string
}

// NewRouterAccessor adapts a router context. The identity is stored under key
// in Locals and in the request context.
func NewRouterAccessor(ctx router.Context, key string) RequestAccessor {
	if key == "" {
		key = "user"
	}
	return routerAccessor{ctx: ctx, key: key}
}

func (a routerAccessor) Transport() Transport { return TransportHTTP }

func (a routerAccessor) Header(name string) string {
	return a.ctx.Header(name)
}

func (a routerAccessor) Cookie(name string) string {
	return a.ctx.Cookies(name)
}

func (a routerAccessor) Query(name string) (string, bool) {
	values := a.ctx.QueryValues(name)
	if len(values) != 1 || !utf8.ValidString(values[0]) {
		return "", false
	}
	return values[0], true
}

func (a routerAccessor) Identity() (Identity, bool) {
	if identity, ok := a.ctx.Locals(a.key).(Identity); ok && identity != nil {
		return identity, true
	}
	return IdentityFromContext(a.ctx.Context())
}

func (a routerAccessor) SetIdentity(identity Identity) {
	a.ctx.Locals(a.key, identity)
	a.ctx.SetContext(WithIdentity(a.ctx.Context(), identity))
}

type graphqlAccessor struct {
	call *GraphQLCall
}

func (a graphqlAccessor) Transport() Transport { return TransportGraphQL }

func (a graphqlAccessor) Header(name string) string {
	return a.call.Request.Header.Get(name)
}

func (a graphqlAccessor) Cookie(name string) string {
	cookie, err := a.call.Request.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (a graphqlAccessor) Query(name string) (string, bool) {
	values, ok := a.call.Request.URL.Query()[name]
	if !ok || len(values) != 1 || !utf8.ValidString(values[0]) {
		return "", false
	}
	return values[0], true
}

func (a graphqlAccessor) Identity() (Identity, bool) {
	if a.call.identity != nil {
		return a.call.identity, true
	}
	return IdentityFromContext(a.call.Request.Context())
}

func (a graphqlAccessor) SetIdentity(identity Identity) {
	a.call.identity = identity
}

// clientIP returns the first X-Forwarded-For hop, then X-Real-IP, then
// CF-Connecting-IP.
func clientIP(h HeaderReader) string {
	if fwd := h.Header("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(h.Header("X-Real-IP")); ip != "" {
		return ip
	}
	return strings.TrimSpace(h.Header("CF-Connecting-IP"))
}
