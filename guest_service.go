package auth

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ErrDeviceLinked is returned when a device already belongs to another account
var ErrDeviceLinked = goerrors.New("device is linked to another account", goerrors.CategoryConflict).
	WithTextCode("DEVICE_LINKED").
	WithCode(goerrors.CodeConflict)

// DeviceRegistration is the outcome of RegisterDeviceToken
type DeviceRegistration struct {
	Device   *GuestDevice
	DeviceID string
	// NeedsDeviceID is set when DeviceID was derived from request metadata and
	// the client should store it.
	NeedsDeviceID bool
}

// GuestDeviceService reconciles anonymous devices and their push tokens.
type GuestDeviceService struct {
	repos   RepositoryManager
	devices GuestDevices
	logger  Logger
}

// NewGuestDeviceService creates the service over the guest device repository
// of repos. Reconciliation writes run in one transaction.
func NewGuestDeviceService(repos RepositoryManager, logger Logger) *GuestDeviceService {
	return &GuestDeviceService{
		repos:   repos,
		devices: repos.GuestDevices(),
		logger:  resolveLogger(logger),
	}
}

// FindOrCreate returns the device for deviceID, creating it when missing.
// A nil pushToken or timezone leaves the stored value untouched; only fields
// that differ are written, and nothing is written when none differ.
// Concurrent calls for a new id race; the unique index on device_id keeps a
// single row.
func (s *GuestDeviceService) FindOrCreate(ctx context.Context, deviceID string, pushToken, timezone *string) (*GuestDevice, error) {
	var device *GuestDevice
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		device, err = s.findOrCreateTx(ctx, tx, deviceID, pushToken, timezone)
		return err
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (s *GuestDeviceService) findOrCreateTx(ctx context.Context, tx bun.IDB, deviceID string, pushToken, timezone *string) (*GuestDevice, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, failWith(ErrInvalidInput, nil).WithMetadata(map[string]any{
			"field":      "deviceId",
			"constraint": "required",
		})
	}

	device, err := s.devices.GetByDeviceIDTx(ctx, tx, deviceID)
	if err != nil {
		if !IsNotFound(err) {
			return nil, err
		}
		s.logger.Debug("creating guest device", "device_id", deviceID)
		return s.devices.CreateTx(ctx, tx, &GuestDevice{
			DeviceID:  deviceID,
			PushToken: pushToken,
			Timezone:  timezone,
			IsActive:  true,
		})
	}

	columns := make([]string, 0, 2)
	if pushToken != nil && !stringPtrEqual(device.PushToken, pushToken) {
		device.PushToken = pushToken
		columns = append(columns, "push_token")
	}
	if timezone != nil && !stringPtrEqual(device.Timezone, timezone) {
		device.Timezone = timezone
		columns = append(columns, "timezone")
	}

	if len(columns) == 0 {
		return device, nil
	}

	s.logger.Debug("updating guest device", "device_id", deviceID, "columns", columns)
	return s.devices.UpdateColumnsTx(ctx, tx, device, columns...)
}

// RegisterDeviceToken associates pushToken with a device. Without a device id
// one is derived from headers, and without a timezone one is detected from
// headers when possible. The token is released from any other device in the
// same transaction that stores it, so a failed write leaves every device as
// it was.
func (s *GuestDeviceService) RegisterDeviceToken(ctx context.Context, deviceID *string, headers HeaderReader, pushToken string, timezone *string) (*DeviceRegistration, error) {
	reg := &DeviceRegistration{}
	if deviceID != nil {
		reg.DeviceID = strings.TrimSpace(*deviceID)
	}
	if reg.DeviceID == "" {
		reg.DeviceID = FingerprintFromHeaders(headers)
		reg.NeedsDeviceID = true
	}

	if timezone == nil || strings.TrimSpace(*timezone) == "" {
		timezone = nil
		if tz, ok := DetectTimezone(headers); ok {
			timezone = &tz
		}
	}

	if _, err := ValidatePushToken(pushToken); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(pushToken)

	var released int64
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		released, err = s.devices.ReleasePushTokenTx(ctx, tx, token, reg.DeviceID)
		if err != nil {
			return err
		}
		reg.Device, err = s.findOrCreateTx(ctx, tx, reg.DeviceID, &token, timezone)
		return err
	})
	if err != nil {
		s.logger.Error("register device token failed", "device_id", reg.DeviceID, "error", err)
		return nil, err
	}

	if released > 0 {
		s.logger.Info("push token moved between devices", "device_id", reg.DeviceID, "released", released)
	}
	return reg, nil
}

// LinkDevice attaches a guest device to identity's account. Linking twice to
// the same account is a no-op.
func (s *GuestDeviceService) LinkDevice(ctx context.Context, identity Identity, deviceID string) (*GuestDevice, error) {
	if identity == nil {
		return nil, ErrAuthenticationFailed
	}
	userID, err := uuid.Parse(identity.ID())
	if err != nil {
		return nil, failWith(ErrAuthenticationFailed, err)
	}

	var device *GuestDevice
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		device, err = s.devices.GetByDeviceIDTx(ctx, tx, deviceID)
		if err != nil {
			return err
		}

		if device.UserID != nil {
			if *device.UserID == userID {
				return nil
			}
			return failWith(ErrDeviceLinked, nil).WithMetadata(map[string]any{"deviceId": device.DeviceID})
		}

		device.UserID = &userID
		device, err = s.devices.UpdateColumnsTx(ctx, tx, device, "user_id")
		return err
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

// Get returns the device for deviceID
func (s *GuestDeviceService) Get(ctx context.Context, deviceID string) (*GuestDevice, error) {
	return s.devices.GetByDeviceID(ctx, strings.TrimSpace(deviceID))
}

// Deactivate marks the device inactive so it stops receiving pushes.
// Deactivating an inactive device is a no-op.
func (s *GuestDeviceService) Deactivate(ctx context.Context, deviceID string) (*GuestDevice, error) {
	var device *GuestDevice
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		device, err = s.devices.GetByDeviceIDTx(ctx, tx, deviceID)
		if err != nil || !device.IsActive {
			return err
		}
		device.IsActive = false
		device, err = s.devices.UpdateColumnsTx(ctx, tx, device, "is_active")
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("deactivated guest device", "device_id", device.DeviceID)
	return device, nil
}
