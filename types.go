package auth

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Logger is the structured logger used across the package. Arguments after
// the message are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Identity holds the attributes of an identity
type Identity interface {
	ID() string
	Username() string
	Email() string
	Role() string
}

// Config holds auth options
type Config interface {
	GetEnvironment() string
	GetSigningKey() string
	GetSigningMethod() string
	GetPublicKey() string
	GetPrivateKey() string
	GetJWKSetURL() string
	GetContextKey() string
	GetTokenExpiration() int
	GetTokenLookup() string
	GetAuthScheme() string
	GetIssuer() string
	GetAudience() []string
	GetAllowUnverifiedFallback() bool
	GetRevocationFailOpen() bool
	GetRevocationTimeout() time.Duration
}

// TokenVerifier is the trust-bearing side of the token service consumed by
// the guards.
type TokenVerifier interface {
	Inspect(raw string) InspectResult
	Verify(raw string) (*JWTClaims, error)
}

// RevocationChecker reports whether a token id was revoked for a user.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, userID, tokenID string) (bool, error)
}

// RevocationStore can also record revocations.
type RevocationStore interface {
	RevocationChecker
	Revoke(ctx context.Context, userID, tokenID string, until time.Time) error
}

// HeaderReader exposes request headers by name.
type HeaderReader interface {
	Header(name string) string
}

// Headers adapts a plain map (case-insensitive keys) to HeaderReader.
type Headers map[string]string

// Header satisfies HeaderReader.
func (h Headers) Header(name string) string {
	if v, ok := h[name]; ok {
		return v
	}
	for k, v := range h {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Printf("[DBG] AUTH %s%s\n", msg, formatArgs(args))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Printf("[INF] AUTH %s%s\n", msg, formatArgs(args))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Printf("[WRN] AUTH %s%s\n", msg, formatArgs(args))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Printf("[ERR] AUTH %s%s\n", msg, formatArgs(args))
}

func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

func resolveLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
