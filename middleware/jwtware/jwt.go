package jwtware

import (
	"context"
	"errors"

	"github.com/goliatone/go-router"
)

var (
	// ErrAccessDenied is passed to the ErrorHandler when the role check fails
	// and no DeniedError was configured.
	ErrAccessDenied = errors.New("access denied")
)

// Guard authenticates a call and attaches the identity to it.
// This mirrors the auth.Guard.CanActivate method without the import cycle.
type Guard interface {
	CanActivate(ctx context.Context, call any) error
}

// RoleChecker authorizes an authenticated call for an operation.
// This mirrors the auth.RoleGuard.CanActivate method.
type RoleChecker interface {
	CanActivate(call any, operation string) bool
}

type Config struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler

	// Guard is required
	Guard Guard

	// RoleChecker runs after Guard when set.
	RoleChecker RoleChecker
	// Operation identifies the route in the role registry. OperationResolver
	// takes precedence when both are set.
	Operation         string
	OperationResolver func(router.Context) string
	// DeniedError is handed to ErrorHandler on a role mismatch.
	DeniedError error
}

// New returns a middleware that runs the auth guard and then the role check
// for the configured operation.
func New(config ...Config) router.MiddlewareFunc {
	cfg := GetDefaultConfig(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			if err := cfg.Guard.CanActivate(ctx.Context(), ctx); err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			if cfg.RoleChecker != nil {
				operation := cfg.Operation
				if cfg.OperationResolver != nil {
					operation = cfg.OperationResolver(ctx)
				}
				if !cfg.RoleChecker.CanActivate(ctx, operation) {
					return cfg.ErrorHandler(ctx, cfg.DeniedError)
				}
			}

			return cfg.SuccessHandler(ctx)
		}
	}
}

func GetDefaultConfig(config ...Config) (cfg Config) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(ctx router.Context) error {
			return ctx.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(ctx router.Context, err error) error {
			if errors.Is(err, ErrAccessDenied) {
				return ctx.Status(router.StatusForbidden).SendString(err.Error())
			}
			return ctx.Status(router.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.DeniedError == nil {
		cfg.DeniedError = ErrAccessDenied
	}

	if cfg.Guard == nil {
		panic("AUTH: JWT middleware configuration: Guard is required.")
	}

	return cfg
}
