package graphql

import (
	goerrors "github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-app-auth"
)

// ErrInternal is what GraphQL clients see in place of internal errors.
var ErrInternal = auth.ErrInternal

// Error carries a rich error to GraphQL clients. Its text code, category and
// metadata are rendered under the error extensions.
type Error struct {
	rich *goerrors.Error
}

func newError(err error) *Error {
	return &Error{rich: auth.AsError(err)}
}

func (e *Error) Error() string {
	return e.rich.Message
}

func (e *Error) Unwrap() error {
	return e.rich
}

// Extensions is read by graphql-go when rendering the error
func (e *Error) Extensions() map[string]any {
	ext := map[string]any{
		"code":     e.rich.TextCode,
		"category": string(e.rich.Category),
	}
	if len(e.rich.Metadata) > 0 {
		ext["details"] = e.rich.Metadata
	}
	return ext
}
