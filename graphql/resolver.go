package graphql

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	gql "github.com/graph-gophers/graphql-go"

	auth "github.com/goliatone/go-app-auth"
)

// Services are the collaborators the resolvers call into
type Services struct {
	Guard         *auth.Guard
	Roles         *auth.RoleGuard
	Auther        *auth.Auther
	Guests        *auth.GuestDeviceService
	Notifications *auth.NotificationService
	Logger        auth.Logger
	ContextKey    string
}

// Resolver is the root resolver
type Resolver struct {
	svc Services
}

// NewResolver creates the root resolver
func NewResolver(svc Services) *Resolver {
	if svc.Guard == nil || svc.Roles == nil {
		panic("graphql resolver requires auth and role guards")
	}
	if svc.Logger == nil {
		svc.Logger = auth.NewLogrusLogger(nil, "graphql")
	}
	return &Resolver{svc: svc}
}

// authorize runs both guards over the call in ctx and returns the identity.
// The identity is resolved once per request and reused across fields.
// Errors are already wrapped for the client.
func (r *Resolver) authorize(ctx context.Context, operation string) (*auth.AuthIdentity, error) {
	call, ok := auth.GraphQLCallFromContext(ctx)
	if !ok {
		return nil, r.fail(operation, auth.ErrUnsupportedContext)
	}

	if _, ok := call.Identity(); !ok {
		if err := r.svc.Guard.CanActivate(ctx, call); err != nil {
			return nil, r.fail(operation, err)
		}
	}

	if err := r.svc.Roles.Authorize(call, operation); err != nil {
		return nil, r.fail(operation, err)
	}

	identity, _ := call.Identity()
	authIdentity, ok := identity.(*auth.AuthIdentity)
	if !ok {
		return nil, r.fail(operation, auth.ErrAuthenticationFailed)
	}
	return authIdentity, nil
}

// authorizeMutation is authorize plus the csrf check required when the
// credential came from the access token cookie.
func (r *Resolver) authorizeMutation(ctx context.Context, operation string) (*auth.AuthIdentity, error) {
	identity, err := r.authorize(ctx, operation)
	if err != nil {
		return nil, err
	}

	call, _ := auth.GraphQLCallFromContext(ctx)
	accessor, err := auth.ResolveAccessor(call, r.svc.ContextKey)
	if err != nil {
		return nil, r.fail(operation, err)
	}
	if err := auth.VerifyCSRF(accessor, identity); err != nil {
		return nil, r.fail(operation, err)
	}
	return identity, nil
}

// fail converts err for the client. Internal errors are logged and replaced
// by ErrInternal.
func (r *Resolver) fail(operation string, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || auth.IsInternal(richErr) {
		r.svc.Logger.Error("graphql resolver failed", "operation", operation, "error", err)
		return newError(ErrInternal)
	}
	return newError(richErr)
}

func (r *Resolver) Me(ctx context.Context) (*userResolver, error) {
	identity, err := r.authorize(ctx, auth.OpGraphQLMe)
	if err != nil {
		return nil, err
	}
	return &userResolver{u: identity.User}, nil
}

type usersArgs struct {
	Limit  *int32
	Offset *int32
}

func (r *Resolver) Users(ctx context.Context, args usersArgs) (*userPageResolver, error) {
	if _, err := r.authorize(ctx, auth.OpGraphQLUsers); err != nil {
		return nil, err
	}

	limit, offset := 0, 0
	if args.Limit != nil {
		limit = int(*args.Limit)
	}
	if args.Offset != nil {
		offset = int(*args.Offset)
	}

	users, total, err := r.svc.Auther.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, r.fail(auth.OpGraphQLUsers, err)
	}
	return &userPageResolver{users: users, total: total}, nil
}

// GuestDevice is public, so only the device's public view is served.
func (r *Resolver) GuestDevice(ctx context.Context, args struct{ DeviceID string }) (*publicDeviceResolver, error) {
	device, err := r.svc.Guests.Get(ctx, args.DeviceID)
	if err != nil {
		return nil, r.fail("graphql.guestDevice", err)
	}
	return &publicDeviceResolver{d: device.Public()}, nil
}

type registerDeviceTokenArgs struct {
	DeviceID  *string
	PushToken string
	Timezone  *string
}

func (r *Resolver) RegisterDeviceToken(ctx context.Context, args registerDeviceTokenArgs) (*registrationResolver, error) {
	call, ok := auth.GraphQLCallFromContext(ctx)
	if !ok {
		return nil, r.fail("graphql.registerDeviceToken", auth.ErrUnsupportedContext)
	}
	accessor, err := auth.ResolveAccessor(call, r.svc.ContextKey)
	if err != nil {
		return nil, r.fail("graphql.registerDeviceToken", err)
	}

	payload := auth.DeviceTokenPayload{
		DeviceID:  args.DeviceID,
		PushToken: args.PushToken,
		Timezone:  args.Timezone,
	}
	if err := payload.Validate(); err != nil {
		return nil, r.fail("graphql.registerDeviceToken", err)
	}

	reg, err := r.svc.Guests.RegisterDeviceToken(ctx, payload.DeviceID, accessor, payload.PushToken, payload.Timezone)
	if err != nil {
		return nil, r.fail("graphql.registerDeviceToken", err)
	}
	return &registrationResolver{reg: reg}, nil
}

func (r *Resolver) LinkGuestDevice(ctx context.Context, args struct{ DeviceID string }) (*deviceResolver, error) {
	identity, err := r.authorizeMutation(ctx, auth.OpGraphQLLinkGuestDevice)
	if err != nil {
		return nil, err
	}

	device, err := r.svc.Guests.LinkDevice(ctx, identity, args.DeviceID)
	if err != nil {
		return nil, r.fail(auth.OpGraphQLLinkGuestDevice, err)
	}
	return &deviceResolver{d: device}, nil
}

func (r *Resolver) Logout(ctx context.Context) (bool, error) {
	identity, err := r.authorizeMutation(ctx, auth.OpGraphQLLogout)
	if err != nil {
		return false, err
	}

	if err := r.svc.Auther.Logout(ctx, identity); err != nil {
		return false, r.fail(auth.OpGraphQLLogout, err)
	}
	return true, nil
}

type dataEntry struct {
	Key   string
	Value string
}

type notificationInput struct {
	DeviceID  *string
	UserID    *gql.ID
	Broadcast *bool
	Title     string
	Body      string
	Data      *[]dataEntry
}

func (in notificationInput) payload() auth.NotificationPayload {
	p := auth.NotificationPayload{Title: in.Title, Body: in.Body}
	if in.Data != nil && len(*in.Data) > 0 {
		p.Data = make(map[string]any, len(*in.Data))
		for _, e := range *in.Data {
			p.Data[e.Key] = e.Value
		}
	}
	return p
}

func (in notificationInput) targets() int {
	n := 0
	for _, set := range []bool{in.hasDevice(), in.hasUser(), in.Broadcast != nil && *in.Broadcast} {
		if set {
			n++
		}
	}
	return n
}

func (in notificationInput) hasDevice() bool {
	return in.DeviceID != nil && strings.TrimSpace(*in.DeviceID) != ""
}

func (in notificationInput) hasUser() bool {
	return in.UserID != nil && strings.TrimSpace(string(*in.UserID)) != ""
}

func (r *Resolver) SendNotification(ctx context.Context, args struct{ Input notificationInput }) (*pushResultResolver, error) {
	if _, err := r.authorizeMutation(ctx, auth.OpGraphQLSendNotification); err != nil {
		return nil, err
	}

	in := args.Input
	if in.targets() != 1 {
		return nil, newError(auth.ErrInvalidInput.Clone().WithMetadata(map[string]any{
			"target": "exactly one of deviceId, userId or broadcast is required",
		}))
	}

	var (
		res *auth.PushResult
		err error
	)
	switch {
	case in.hasDevice():
		res, err = r.svc.Notifications.SendToDevice(ctx, *in.DeviceID, in.payload())
	case in.hasUser():
		res, err = r.svc.Notifications.SendToUser(ctx, string(*in.UserID), in.payload())
	default:
		res, err = r.svc.Notifications.Broadcast(ctx, in.payload())
	}
	if err != nil {
		return nil, r.fail(auth.OpGraphQLSendNotification, err)
	}
	return &pushResultResolver{res: res}, nil
}
