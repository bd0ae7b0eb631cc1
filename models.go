package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	Role          UserRole   `bun:"role,notnull" json:"role,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	FirstName     string     `bun:"first_name" json:"first_name,omitempty"`
	LastName      string     `bun:"last_name" json:"last_name,omitempty"`
	Phone         string     `bun:"phone_number" json:"phone_number,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// Username derives a display handle from the email local part
func (u *User) Username() string {
	if u == nil {
		return ""
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

// GuestDevice tracks an anonymous client by its device id
type GuestDevice struct {
	bun.BaseModel `bun:"table:guest_devices,alias:gd"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid" json:"id,omitempty"`
	DeviceID      string     `bun:"device_id,notnull,unique" json:"device_id"`
	PushToken     *string    `bun:"push_token" json:"push_token,omitempty"`
	Timezone      *string    `bun:"timezone" json:"timezone,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	UserID        *uuid.UUID `bun:"user_id,type:uuid" json:"user_id,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// PublicDevice is the part of a guest device anyone holding its device id
// may read.
type PublicDevice struct {
	ID       uuid.UUID `json:"id"`
	Timezone *string   `json:"timezone,omitempty"`
	IsActive bool      `json:"is_active"`
}

// Public returns the unauthenticated view of d
func (d *GuestDevice) Public() *PublicDevice {
	if d == nil {
		return nil
	}
	return &PublicDevice{
		ID:       d.ID,
		Timezone: d.Timezone,
		IsActive: d.IsActive,
	}
}

// HasPushToken reports whether the device can receive pushes
func (d *GuestDevice) HasPushToken() bool {
	return d != nil && d.PushToken != nil && *d.PushToken != ""
}

func stringPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
