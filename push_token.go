package auth

import (
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

var (
	expoPushTokenPattern = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[[A-Za-z0-9_-]+\]$`)
	fcmPushTokenPattern  = regexp.MustCompile(`^[A-Za-z0-9_:-]{100,4096}$`)
)

// PushTokenKind names the provider family of a push token
type PushTokenKind string

const (
	PushTokenExpo PushTokenKind = "expo"
	PushTokenFCM  PushTokenKind = "fcm"
)

// ValidatePushToken checks the format of token. It does not contact any
// provider. Failures are ErrInvalidPushToken with the violated constraint in
// the metadata.
func ValidatePushToken(token string) (PushTokenKind, error) {
	token = strings.TrimSpace(token)

	err := validation.Validate(token,
		validation.Required.Error("push token is required"),
	)
	if err != nil {
		return "", invalidPushToken("required", err)
	}

	if validation.Validate(token, validation.Match(expoPushTokenPattern)) == nil {
		return PushTokenExpo, nil
	}

	if validation.Validate(token, validation.Match(fcmPushTokenPattern)) == nil {
		return PushTokenFCM, nil
	}

	return "", invalidPushToken("format", nil).
		WithMetadata(map[string]any{"expected": "ExponentPushToken[...] or FCM registration token"})
}

func invalidPushToken(constraint string, cause error) *goerrors.Error {
	return failWith(ErrInvalidPushToken, cause).WithMetadata(map[string]any{
		"field":      "pushToken",
		"constraint": constraint,
	})
}
