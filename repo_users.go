package auth

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user repository
type Users interface {
	repository.Repository[*User]

	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*User, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

// NewUsersRepository creates a bun backed Users repository
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx loads a user by id or by email, ignoring case. Anything
// else is reported as not found without a query.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	column, value, ok := resolveUserIdentifier(identifier)
	if !ok {
		return nil, failWith(ErrRecordNotFound, nil).WithMetadata(map[string]any{
			"identifier": identifier,
		})
	}

	criteria = append([]repository.SelectCriteria{repository.SelectBy(column, "=", value)}, criteria...)
	record, err := a.Repository.GetTx(ctx, tx, criteria...)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return record, nil
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	return a.SetActiveTx(ctx, a.db, id, active)
}

func (a *users) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*User, error) {
	now := time.Now().UTC()
	record := &User{ID: id, IsActive: active, UpdatedAt: &now}

	user, err := a.Repository.UpdateTx(ctx, tx, record,
		repository.UpdateByID(id.String()),
		repository.UpdateColumns("is_active", "updated_at"),
	)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return user, nil
}

func resolveUserIdentifier(identifier string) (column, value string, ok bool) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", "", false
	}
	if id, err := uuid.Parse(identifier); err == nil {
		return "id", id.String(), true
	}
	if addr, err := mail.ParseAddress(identifier); err == nil && addr.Address == identifier {
		return "email", strings.ToLower(identifier), true
	}
	return "", "", false
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	record.Email = strings.ToLower(strings.TrimSpace(record.Email))
	now := time.Now().UTC()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

// notFoundOr maps the repository's missing record errors, including an
// update that matched no row, to ErrRecordNotFound.
func notFoundOr(err error) error {
	if repository.IsRecordNotFound(err) || repository.IsSQLExpectedCountViolation(err) {
		return failWith(ErrRecordNotFound, err)
	}
	return err
}
