package auth

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// GuestDevices is the guest device repository
type GuestDevices interface {
	repository.Repository[*GuestDevice]

	GetByDeviceID(ctx context.Context, deviceID string) (*GuestDevice, error)
	GetByDeviceIDTx(ctx context.Context, tx bun.IDB, deviceID string) (*GuestDevice, error)
	UpdateColumns(ctx context.Context, record *GuestDevice, columns ...string) (*GuestDevice, error)
	UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *GuestDevice, columns ...string) (*GuestDevice, error)
	ReleasePushToken(ctx context.Context, pushToken, keepDeviceID string) (int64, error)
	ReleasePushTokenTx(ctx context.Context, tx bun.IDB, pushToken, keepDeviceID string) (int64, error)
	ClearPushToken(ctx context.Context, pushToken string) (int64, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*GuestDevice, error)
	ListActiveWithToken(ctx context.Context, limit, offset int) ([]*GuestDevice, error)
}

type guestDevices struct {
	repository.Repository[*GuestDevice]
	db *bun.DB
}

var (
	_ GuestDevices                        = (*guestDevices)(nil)
	_ repository.Repository[*GuestDevice] = (*guestDevices)(nil)
)

// NewGuestDevicesRepository creates a bun backed GuestDevices repository.
// Lists are unbounded unless the caller paginates.
func NewGuestDevicesRepository(db *bun.DB) GuestDevices {
	repo := repository.NewRepositoryWithConfig[*GuestDevice](db, repository.ModelHandlers[*GuestDevice]{
		NewRecord: func() *GuestDevice { return &GuestDevice{} },
		GetID: func(d *GuestDevice) uuid.UUID {
			if d == nil {
				return uuid.Nil
			}
			return d.ID
		},
		SetID: func(d *GuestDevice, id uuid.UUID) {
			if d != nil {
				d.ID = id
			}
		},
		GetIdentifier: func() string {
			return "device_id"
		},
	}, nil)

	return &guestDevices{
		Repository: repo,
		db:         db,
	}
}

func (r *guestDevices) GetByDeviceID(ctx context.Context, deviceID string) (*GuestDevice, error) {
	return r.GetByDeviceIDTx(ctx, r.db, deviceID)
}

func (r *guestDevices) GetByDeviceIDTx(ctx context.Context, tx bun.IDB, deviceID string) (*GuestDevice, error) {
	record, err := r.Repository.GetByIdentifierTx(ctx, tx, strings.TrimSpace(deviceID))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return record, nil
}

func (r *guestDevices) Create(ctx context.Context, record *GuestDevice, criteria ...repository.InsertCriteria) (*GuestDevice, error) {
	return r.CreateTx(ctx, r.db, record, criteria...)
}

func (r *guestDevices) CreateTx(ctx context.Context, tx bun.IDB, record *GuestDevice, criteria ...repository.InsertCriteria) (*GuestDevice, error) {
	now := time.Now().UTC()
	record.CreatedAt = &now
	record.UpdatedAt = &now
	return r.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (r *guestDevices) UpdateColumns(ctx context.Context, record *GuestDevice, columns ...string) (*GuestDevice, error) {
	return r.UpdateColumnsTx(ctx, r.db, record, columns...)
}

// UpdateColumnsTx persists the given columns only. updated_at is always
// written.
func (r *guestDevices) UpdateColumnsTx(ctx context.Context, tx bun.IDB, record *GuestDevice, columns ...string) (*GuestDevice, error) {
	now := time.Now().UTC()
	record.UpdatedAt = &now

	cols := slices.Clone(columns)
	if !slices.Contains(cols, "updated_at") {
		cols = append(cols, "updated_at")
	}

	device, err := r.Repository.UpdateTx(ctx, tx, record,
		repository.UpdateByID(record.ID.String()),
		repository.UpdateColumns(cols...),
	)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return device, nil
}

func (r *guestDevices) ReleasePushToken(ctx context.Context, pushToken, keepDeviceID string) (int64, error) {
	return r.ReleasePushTokenTx(ctx, r.db, pushToken, keepDeviceID)
}

// ReleasePushTokenTx detaches pushToken from every device other than
// keepDeviceID.
func (r *guestDevices) ReleasePushTokenTx(ctx context.Context, tx bun.IDB, pushToken, keepDeviceID string) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*GuestDevice)(nil)).
		Set("push_token = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("push_token = ?", pushToken).
		Where("device_id <> ?", keepDeviceID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearPushToken removes a token the provider reported as unregistered.
func (r *guestDevices) ClearPushToken(ctx context.Context, pushToken string) (int64, error) {
	res, err := r.db.NewUpdate().
		Model((*GuestDevice)(nil)).
		Set("push_token = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("push_token = ?", pushToken).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *guestDevices) ListByUser(ctx context.Context, userID uuid.UUID) ([]*GuestDevice, error) {
	records, _, err := r.Repository.List(ctx,
		repository.SelectBy("user_id", "=", userID.String()),
		selectActive,
		repository.OrderBy("created_at ASC"),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *guestDevices) ListActiveWithToken(ctx context.Context, limit, offset int) ([]*GuestDevice, error) {
	records, _, err := r.Repository.List(ctx,
		selectActive,
		repository.SelectNotNull("push_token"),
		repository.OrderBy("device_id ASC"),
		repository.SelectPaginate(limit, offset),
	)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func selectActive(q *bun.SelectQuery) *bun.SelectQuery {
	return q.Where("?TableAlias.is_active = ?", true)
}
