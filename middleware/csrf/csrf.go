package csrf

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/goliatone/go-router"
)

var (
	ErrTokenMismatch = errors.New("CSRF token mismatch")
	ErrTokenMissing  = errors.New("CSRF token missing")
)

// DefaultFormFieldName is the default name for the CSRF token form field
const DefaultFormFieldName = "_token"

// DefaultHeaderName is the default header name for CSRF tokens
const DefaultHeaderName = "X-CSRF-Token"

// DefaultContextKey is where the expected token is exposed to handlers
const DefaultContextKey = "csrf_token"

// Config defines the configuration for CSRF middleware
type Config struct {
	// Skip defines a function to skip middleware
	Skip func(router.Context) bool

	// Expected returns the token bound to the caller's credential. Unsafe
	// requests without one are rejected with ErrTokenMissing.
	Expected func(router.Context) (string, bool)

	// ContextKey defines the key for storing the token in context
	ContextKey string

	// FormFieldName defines the name of the form field containing the token
	FormFieldName string

	// HeaderName defines the header name for the token
	HeaderName string

	// ErrorHandler defines the error handler
	ErrorHandler router.ErrorHandler

	// SafeMethods defines HTTP methods that don't require CSRF protection
	SafeMethods []string
}

// New creates a new CSRF middleware that compares the submitted token with
// the one bound to the credential.
func New(config ...Config) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		cfg := configDefault(config...)
		return func(ctx router.Context) error {
			if cfg.Skip != nil && cfg.Skip(ctx) {
				return ctx.Next()
			}

			expected, ok := cfg.Expected(ctx)
			if ok && expected != "" {
				ctx.Locals(cfg.ContextKey, expected)
			}

			method := strings.ToUpper(ctx.Method())
			if slices.Contains(cfg.SafeMethods, method) {
				return ctx.Next()
			}

			if !ok || expected == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}

			received := extractToken(ctx, cfg)
			if received == "" {
				return cfg.ErrorHandler(ctx, ErrTokenMissing)
			}
			if !Matches(received, expected) {
				return cfg.ErrorHandler(ctx, ErrTokenMismatch)
			}

			return ctx.Next()
		}
	}
}

// Matches compares a submitted token with the expected one in constant time.
func Matches(received, expected string) bool {
	if received == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(received), []byte(expected)) == 1
}

func extractToken(ctx router.Context, cfg Config) string {
	if token := strings.TrimSpace(ctx.Header(cfg.HeaderName)); token != "" {
		return token
	}
	return strings.TrimSpace(ctx.FormValue(cfg.FormFieldName))
}

func configDefault(config ...Config) Config {
	cfg := Config{}
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}

	if cfg.FormFieldName == "" {
		cfg.FormFieldName = DefaultFormFieldName
	}

	if cfg.HeaderName == "" {
		cfg.HeaderName = DefaultHeaderName
	}

	if len(cfg.SafeMethods) == 0 {
		cfg.SafeMethods = []string{http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace}
	}

	if cfg.Expected == nil {
		cfg.Expected = func(router.Context) (string, bool) { return "", false }
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			return ctx.JSON(router.StatusForbidden, map[string]string{"error": err.Error()})
		}
	}

	return cfg
}
