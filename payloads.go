package auth

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

// RegisterPayload is the account registration payload
type RegisterPayload struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone_number"`
}

// Validate will validate the payload
func (r RegisterPayload) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(10, 100)),
		validation.Field(&r.FirstName, validation.Length(0, 200)),
		validation.Field(&r.LastName, validation.Length(0, 200)),
		validation.Field(&r.Phone, validation.Length(0, 32)),
	))
}

// LoginPayload is the login payload
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate will validate the payload
func (r LoginPayload) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	))
}

// DeviceTokenPayload registers a push token for a guest device
type DeviceTokenPayload struct {
	DeviceID  *string `json:"deviceId"`
	PushToken string  `json:"pushToken"`
	Timezone  *string `json:"timezone"`
}

// Validate will validate the payload. The push token format is checked by
// the guest service.
func (r DeviceTokenPayload) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.PushToken, validation.Required),
		validation.Field(&r.DeviceID, validation.NilOrNotEmpty, validation.Length(1, 128)),
		validation.Field(&r.Timezone, validation.Length(0, 64)),
	))
}

// NotificationPayload is a push message without its target
type NotificationPayload struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

// Validate will validate the payload
func (r NotificationPayload) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Body, validation.Required, validation.Length(1, 2000)),
	))
}

// SetActivePayload toggles a user account
type SetActivePayload struct {
	Active *bool `json:"active"`
}

// Validate will validate the payload
func (r SetActivePayload) Validate() error {
	return validationError(validation.ValidateStruct(&r,
		validation.Field(&r.Active, validation.NotNil),
	))
}

// NormalizePhone parses phone in region and formats it as E.164.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}
	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", failWith(ErrInvalidInput, err).WithMetadata(map[string]any{
			"phone_number": "must be a valid phone number",
		})
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	meta := map[string]any{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			meta[field] = ferr.Error()
		}
	} else {
		meta["error"] = err.Error()
	}
	return failWith(ErrInvalidInput, err).WithMetadata(meta)
}
