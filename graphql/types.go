package graphql

import (
	"time"

	gql "github.com/graph-gophers/graphql-go"

	auth "github.com/goliatone/go-app-auth"
)

type userResolver struct {
	u *auth.User
}

func (r *userResolver) ID() gql.ID          { return gql.ID(r.u.ID.String()) }
func (r *userResolver) Email() string       { return r.u.Email }
func (r *userResolver) Role() string        { return string(r.u.Role) }
func (r *userResolver) IsActive() bool      { return r.u.IsActive }
func (r *userResolver) FirstName() string   { return r.u.FirstName }
func (r *userResolver) LastName() string    { return r.u.LastName }
func (r *userResolver) PhoneNumber() string { return r.u.Phone }
func (r *userResolver) CreatedAt() *string  { return formatTime(r.u.CreatedAt) }

type userPageResolver struct {
	users []*auth.User
	total int
}

func (r *userPageResolver) Data() []*userResolver {
	out := make([]*userResolver, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, &userResolver{u: u})
	}
	return out
}

func (r *userPageResolver) Total() int32 { return int32(r.total) }

type deviceResolver struct {
	d *auth.GuestDevice
}

func (r *deviceResolver) ID() gql.ID         { return gql.ID(r.d.ID.String()) }
func (r *deviceResolver) DeviceID() string   { return r.d.DeviceID }
func (r *deviceResolver) PushToken() *string { return r.d.PushToken }
func (r *deviceResolver) Timezone() *string  { return r.d.Timezone }
func (r *deviceResolver) IsActive() bool     { return r.d.IsActive }
func (r *deviceResolver) CreatedAt() *string { return formatTime(r.d.CreatedAt) }
func (r *deviceResolver) UpdatedAt() *string { return formatTime(r.d.UpdatedAt) }

func (r *deviceResolver) UserID() *gql.ID {
	if r.d.UserID == nil {
		return nil
	}
	id := gql.ID(r.d.UserID.String())
	return &id
}

type publicDeviceResolver struct {
	d *auth.PublicDevice
}

func (r *publicDeviceResolver) ID() gql.ID        { return gql.ID(r.d.ID.String()) }
func (r *publicDeviceResolver) Timezone() *string { return r.d.Timezone }
func (r *publicDeviceResolver) IsActive() bool    { return r.d.IsActive }

type registrationResolver struct {
	reg *auth.DeviceRegistration
}

func (r *registrationResolver) Device() *deviceResolver { return &deviceResolver{d: r.reg.Device} }
func (r *registrationResolver) DeviceID() string        { return r.reg.DeviceID }
func (r *registrationResolver) NeedsDeviceID() bool     { return r.reg.NeedsDeviceID }

type pushResultResolver struct {
	res *auth.PushResult
}

func (r *pushResultResolver) SuccessCount() int32 { return int32(r.res.SuccessCount) }
func (r *pushResultResolver) FailureCount() int32 { return int32(r.res.FailureCount) }

func (r *pushResultResolver) MessageIds() []string {
	if r.res.MessageIDs == nil {
		return []string{}
	}
	return r.res.MessageIDs
}

func (r *pushResultResolver) Failures() []*pushFailureResolver {
	out := make([]*pushFailureResolver, 0, len(r.res.Failures))
	for i := range r.res.Failures {
		out = append(out, &pushFailureResolver{f: r.res.Failures[i]})
	}
	return out
}

type pushFailureResolver struct {
	f auth.PushFailure
}

func (r *pushFailureResolver) To() string { return r.f.To }

func (r *pushFailureResolver) Code() *string {
	if r.f.Code == "" {
		return nil
	}
	return &r.f.Code
}

func (r *pushFailureResolver) Message() *string {
	if r.f.Message == "" {
		return nil
	}
	return &r.f.Message
}

func formatTime(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
