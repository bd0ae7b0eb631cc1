package auth

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeTokenMissing          = "TOKEN_MISSING"
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeSignatureInvalid      = "TOKEN_SIGNATURE_INVALID"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeTokenRevoked          = "TOKEN_REVOKED"
	TextCodeRevocationUnavailable = "REVOCATION_UNAVAILABLE"
	TextCodeUserNotFound          = "USER_NOT_FOUND"
	TextCodeAccountInactive       = "ACCOUNT_INACTIVE"
	TextCodeUnsupportedContext    = "UNSUPPORTED_CONTEXT"
	TextCodeAuthenticationFailed  = "AUTHENTICATION_FAILED"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeCSRFInvalid           = "CSRF_INVALID"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeEmptyPassword         = "EMPTY_PASSWORD"
	TextCodeInvalidPushToken      = "INVALID_PUSH_TOKEN"
	TextCodeInvalidInput          = "INVALID_INPUT"
	TextCodeNotFound              = "NOT_FOUND"
	TextCodeEmailTaken            = "EMAIL_TAKEN"
	TextCodeNoSigningKey          = "NO_SIGNING_KEY"
	TextCodeInternal              = "INTERNAL"
)

// Authentication failures. Each maps one-to-one to a guard RejectReason.
var ErrMissingToken = goerrors.New("missing authentication token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

var ErrSignatureInvalid = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeSignatureInvalid).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenInvalid = goerrors.New("token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenRevoked = goerrors.New("token has been revoked", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(goerrors.CodeUnauthorized)

var ErrRevocationUnavailable = goerrors.New("token revocation status unavailable", goerrors.CategoryAuth).
	WithTextCode(TextCodeRevocationUnavailable).
	WithCode(goerrors.CodeUnauthorized)

var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryAuth).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeUnauthorized)

var ErrAccountInactive = goerrors.New("account inactive", goerrors.CategoryAuth).
	WithTextCode(TextCodeAccountInactive).
	WithCode(goerrors.CodeUnauthorized)

var ErrUnsupportedContext = goerrors.New("unsupported call context", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnsupportedContext).
	WithCode(goerrors.CodeUnauthorized)

var ErrAuthenticationFailed = goerrors.New("authentication failed", goerrors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationFailed).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the role guard denies a call.
var ErrForbidden = goerrors.New("insufficient role permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrMismatchedHashAndPassword is returned for wrong credentials.
var ErrMismatchedHashAndPassword = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryBadInput).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidPushToken is returned when a push token fails the format check.
var ErrInvalidPushToken = goerrors.New("invalid push token", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidPushToken).
	WithCode(goerrors.CodeBadRequest)

// ErrInvalidInput wraps payload validation failures.
var ErrInvalidInput = goerrors.New("invalid input", goerrors.CategoryValidation).
	WithTextCode(TextCodeInvalidInput).
	WithCode(goerrors.CodeBadRequest)

// ErrRecordNotFound is returned by repositories for missing rows.
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrEmailTaken is returned when registering an existing email.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrNoSigningMaterial is returned when a token must be issued without a signing key.
var ErrNoSigningMaterial = goerrors.New("no signing key configured", goerrors.CategoryInternal).
	WithTextCode(TextCodeNoSigningKey).
	WithCode(goerrors.CodeInternal)

// ErrInternal replaces persistence and provider errors so their details
// never reach clients.
var ErrInternal = goerrors.New("an unexpected server error occurred", goerrors.CategoryInternal).
	WithTextCode(TextCodeInternal).
	WithCode(goerrors.CodeInternal)

// failWith returns a copy of base that callers can decorate without touching
// the sentinel. The copy still matches base with errors.Is, and cause when set.
func failWith(base *goerrors.Error, cause error) *goerrors.Error {
	clone := base.Clone()
	switch {
	case cause == nil:
		clone.Source = base
	case errors.Is(cause, base):
		clone.Source = cause
	default:
		clone.Source = errors.Join(base, cause)
	}
	return clone
}

// IsNotFound reports whether err is a missing record.
func IsNotFound(err error) bool {
	return err != nil && (errors.Is(err, ErrRecordNotFound) || goerrors.IsNotFound(err))
}

// AsError extracts the rich error from err. Anything else is wrapped as an
// internal error.
func AsError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, ErrInternal.Message).
		WithTextCode(TextCodeInternal).
		WithCode(goerrors.CodeInternal)
}

// IsInternal reports whether richErr has to be masked before it reaches a
// client: internal and database categories, and anything mapped to a 5xx.
func IsInternal(richErr *goerrors.Error) bool {
	if richErr == nil {
		return true
	}
	if richErr.Category == goerrors.CategoryInternal ||
		strings.HasPrefix(string(richErr.Category), string(repository.CategoryDatabase)) {
		return true
	}
	return StatusCode(richErr) >= http.StatusInternalServerError
}

// StatusCode returns the HTTP status for a rich error, falling back to the
// category when no code was set.
func StatusCode(richErr *goerrors.Error) int {
	if richErr == nil {
		return http.StatusInternalServerError
	}
	if richErr.Code >= 400 && richErr.Code < 600 {
		return richErr.Code
	}
	switch richErr.Category {
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
