package auth

import (
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-app-auth/middleware/csrf"
	"github.com/goliatone/go-app-auth/middleware/jwtware"
)

// ErrCSRFInvalid is returned when an unsafe request lacks the csrf marker
var ErrCSRFInvalid = goerrors.New("invalid csrf token", goerrors.CategoryAuthz).
	WithTextCode(TextCodeCSRFInvalid).
	WithCode(goerrors.CodeForbidden)

// AccessTokenCookie is the cookie the login handler sets
const AccessTokenCookie = "access_token"

// RouteAuthenticator wires the guards into router routes
type RouteAuthenticator struct {
	guard        *Guard
	roles        *RoleGuard
	cfg          Config
	Logger       Logger
	ErrorHandler router.ErrorHandler
}

// NewHTTPAuthenticator creates a RouteAuthenticator
func NewHTTPAuthenticator(guard *Guard, roles *RoleGuard, cfg Config, logger Logger) *RouteAuthenticator {
	a := &RouteAuthenticator{
		guard:  guard,
		roles:  roles,
		cfg:    cfg,
		Logger: resolveLogger(logger),
	}
	a.ErrorHandler = NewErrorHandler(a.Logger)
	return a
}

// Protect authenticates the request and authorizes it for operation.
func (a *RouteAuthenticator) Protect(operation string) router.MiddlewareFunc {
	return jwtware.New(jwtware.Config{
		Guard:       a.guard,
		RoleChecker: a.roles,
		Operation:   operation,
		DeniedError: ErrForbidden,
		ErrorHandler: func(ctx router.Context, err error) error {
			if errors.Is(err, ErrForbidden) {
				err = failWith(ErrForbidden, nil).WithMetadata(map[string]any{"operation": operation})
			}
			return a.ErrorHandler(ctx, err)
		},
	})
}

// CSRF checks the csrf marker of cookie borne credentials on unsafe methods.
// It must run after Protect.
func (a *RouteAuthenticator) CSRF() router.MiddlewareFunc {
	return csrf.New(csrf.Config{
		Skip: func(ctx router.Context) bool {
			return !CookieCredential(NewRouterAccessor(ctx, a.cfg.GetContextKey()))
		},
		Expected: func(ctx router.Context) (string, bool) {
			identity, ok := AuthIdentityFromContext(ctx.Context())
			if !ok {
				return "", false
			}
			return identity.CSRF, identity.CSRF != ""
		},
		ErrorHandler: func(ctx router.Context, err error) error {
			return a.ErrorHandler(ctx, failWith(ErrCSRFInvalid, err))
		},
	})
}

// CookieCredential reports whether the credential of the call comes from the
// access token cookie. An Authorization header always takes precedence.
func CookieCredential(accessor RequestAccessor) bool {
	return accessor.Cookie(AccessTokenCookie) != "" &&
		strings.TrimSpace(accessor.Header(jwtware.HeaderAuthorization)) == ""
}

// VerifyCSRF checks the csrf header of a cookie authenticated call against
// the marker bound to identity. Calls authenticated by header pass.
func VerifyCSRF(accessor RequestAccessor, identity *AuthIdentity) error {
	if !CookieCredential(accessor) {
		return nil
	}
	if identity == nil || identity.CSRF == "" {
		return failWith(ErrCSRFInvalid, csrf.ErrTokenMissing)
	}

	received := strings.TrimSpace(accessor.Header(csrf.DefaultHeaderName))
	if received == "" {
		return failWith(ErrCSRFInvalid, csrf.ErrTokenMissing)
	}
	if !csrf.Matches(received, identity.CSRF) {
		return failWith(ErrCSRFInvalid, csrf.ErrTokenMismatch)
	}
	return nil
}

// SetCookieToken stores token in an http only cookie
func (a *RouteAuthenticator) SetCookieToken(ctx router.Context, token string, expires time.Time) {
	ctx.Cookie(&router.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ClearCookieToken expires the access token cookie
func (a *RouteAuthenticator) ClearCookieToken(ctx router.Context) {
	ctx.Cookie(&router.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Lax",
	})
}

// ErrorResponse is the JSON body of every error response
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error
type ErrorBody struct {
	Code     string         `json:"code"`
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// NewErrorHandler renders errors as JSON. Rich errors keep their status.
// Internal and persistence errors are logged and rendered as a bare 500.
func NewErrorHandler(logger Logger) router.ErrorHandler {
	logger = resolveLogger(logger)
	return func(ctx router.Context, err error) error {
		richErr := AsError(err)
		status := StatusCode(richErr)

		if IsInternal(richErr) {
			logger.Error("request failed",
				"path", ctx.Path(),
				"error", err,
			)
			richErr = ErrInternal
			status = StatusCode(richErr)
		} else {
			logger.Info("request rejected",
				"path", ctx.Path(),
				"text_code", richErr.TextCode,
				"category", richErr.Category,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
		}

		return ctx.JSON(status, ErrorResponse{Error: ErrorBody{
			Code:     richErr.TextCode,
			Category: string(richErr.Category),
			Message:  richErr.Message,
			Details:  richErr.Metadata,
		}})
	}
}

// ErrorMiddleware hands errors returned further down the chain to handler.
func ErrorMiddleware(handler router.ErrorHandler) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if err := ctx.Next(); err != nil {
				return handler(ctx, err)
			}
			return nil
		}
	}
}
