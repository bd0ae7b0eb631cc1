package auth

import (
	"github.com/goliatone/go-router"
)

// ControllerRoutes groups the REST route prefixes
type ControllerRoutes struct {
	Auth          string
	Users         string
	Devices       string
	Notifications string
}

// Controller exposes the account, device and notification REST API
type Controller struct {
	Logger        Logger
	Routes        *ControllerRoutes
	HTTP          *RouteAuthenticator
	Auther        *Auther
	Guests        *GuestDeviceService
	Notifications *NotificationService
	contextKey    string
}

// ControllerOption customizes a Controller
type ControllerOption func(*Controller) *Controller

// WithControllerLogger sets the logger
func WithControllerLogger(l Logger) ControllerOption {
	return func(c *Controller) *Controller {
		if l != nil {
			c.Logger = l
		}
		return c
	}
}

// WithControllerRoutes overrides the route prefixes
func WithControllerRoutes(r *ControllerRoutes) ControllerOption {
	return func(c *Controller) *Controller {
		if r != nil {
			c.Routes = r
		}
		return c
	}
}

// NewController creates a Controller. Every collaborator is required.
func NewController(httpAuth *RouteAuthenticator, auther *Auther, guests *GuestDeviceService, notifications *NotificationService, opts ...ControllerOption) *Controller {
	c := &Controller{
		Logger:        defLogger{},
		HTTP:          httpAuth,
		Auther:        auther,
		Guests:        guests,
		Notifications: notifications,
		Routes: &ControllerRoutes{
			Auth:          "/auth",
			Users:         "/users",
			Devices:       "/devices",
			Notifications: "/notifications",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.HTTP == nil {
		panic("Missing RouteAuthenticator in controller...")
	}

	if c.Auther == nil || c.Guests == nil || c.Notifications == nil {
		panic("Missing service in controller...")
	}

	c.contextKey = c.HTTP.cfg.GetContextKey()
	return c
}

// RegisterRoutes mounts every route of h on app. Each group renders the
// errors its handlers return through h.HTTP.ErrorHandler.
func RegisterRoutes[T any](app router.Router[T], h *Controller) {
	protect := h.HTTP.Protect
	csrf := h.HTTP.CSRF()
	onError := ErrorMiddleware(h.HTTP.ErrorHandler)

	app.Get("/healthz", h.Health).SetName("healthz")

	authGroup := app.Group(h.Routes.Auth).Use(onError)
	authGroup.Post("/register", h.RegisterUser).SetName("auth.register")
	authGroup.Post("/login", h.Login).SetName("auth.login")
	authGroup.Post("/logout", h.Logout, protect(OpAuthLogout), csrf).SetName(OpAuthLogout)

	users := app.Group(h.Routes.Users).Use(onError)
	users.Get("/me", h.Me, protect(OpUsersMe)).SetName(OpUsersMe)
	users.Get("/", h.ListUsers, protect(OpUsersList)).SetName(OpUsersList)
	users.Patch("/:id/active", h.SetUserActive, protect(OpUsersSetActive), csrf).SetName(OpUsersSetActive)

	devices := app.Group(h.Routes.Devices).Use(onError)
	devices.Post("/token", h.RegisterDeviceToken).SetName("devices.token")
	devices.Get("/:deviceId", h.GetDevice).SetName("devices.get")
	devices.Post("/:deviceId/link", h.LinkDevice, protect(OpDevicesLink), csrf).SetName(OpDevicesLink)
	devices.Post("/:deviceId/deactivate", h.DeactivateDevice, protect(OpDevicesDeactivate), csrf).SetName(OpDevicesDeactivate)

	notifications := app.Group(h.Routes.Notifications).Use(onError)
	notifications.Post("/device/:deviceId", h.NotifyDevice, protect(OpNotificationsDevice), csrf).SetName(OpNotificationsDevice)
	notifications.Post("/user/:userId", h.NotifyUser, protect(OpNotificationsUser), csrf).SetName(OpNotificationsUser)
	notifications.Post("/broadcast", h.Broadcast, protect(OpNotificationsBroadcast), csrf).SetName(OpNotificationsBroadcast)
}

func (h *Controller) Health(c router.Context) error {
	return c.JSON(router.StatusOK, map[string]string{"status": "ok"})
}

func (h *Controller) RegisterUser(c router.Context) error {
	payload := RegisterPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	user, err := h.Auther.Register(c.Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusCreated, user)
}

func (h *Controller) Login(c router.Context) error {
	payload := LoginPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := h.Auther.Login(c.Context(), payload)
	if err != nil {
		return err
	}

	h.HTTP.SetCookieToken(c, res.Token, res.ExpiresAt)
	return c.JSON(router.StatusOK, res)
}

func (h *Controller) Logout(c router.Context) error {
	identity, err := h.identity(c)
	if err != nil {
		return err
	}

	if err := h.Auther.Logout(c.Context(), identity); err != nil {
		return err
	}

	h.HTTP.ClearCookieToken(c)
	return c.SendStatus(router.StatusNoContent)
}

func (h *Controller) Me(c router.Context) error {
	identity, err := h.identity(c)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, identity.User)
}

func (h *Controller) ListUsers(c router.Context) error {
	records, total, err := h.Auther.ListUsers(c.Context(), c.QueryInt("limit", 20), c.QueryInt("offset", 0))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, map[string]any{"data": records, "total": total})
}

func (h *Controller) SetUserActive(c router.Context) error {
	payload := SetActivePayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	user, err := h.Auther.SetUserActive(c.Context(), c.Param("id"), *payload.Active)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, user)
}

func (h *Controller) RegisterDeviceToken(c router.Context) error {
	payload := DeviceTokenPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	reg, err := h.Guests.RegisterDeviceToken(
		c.Context(),
		payload.DeviceID,
		NewRouterAccessor(c, h.contextKey),
		payload.PushToken,
		payload.Timezone,
	)
	if err != nil {
		return err
	}

	return c.JSON(router.StatusOK, map[string]any{
		"device":        reg.Device,
		"deviceId":      reg.DeviceID,
		"needsDeviceId": reg.NeedsDeviceID,
	})
}

// GetDevice is public so it only renders the public view of the device.
func (h *Controller) GetDevice(c router.Context) error {
	device, err := h.Guests.Get(c.Context(), c.Param("deviceId"))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, device.Public())
}

func (h *Controller) LinkDevice(c router.Context) error {
	identity, err := h.identity(c)
	if err != nil {
		return err
	}

	device, err := h.Guests.LinkDevice(c.Context(), identity, c.Param("deviceId"))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, device)
}

func (h *Controller) DeactivateDevice(c router.Context) error {
	device, err := h.Guests.Deactivate(c.Context(), c.Param("deviceId"))
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, device)
}

func (h *Controller) NotifyDevice(c router.Context) error {
	payload := NotificationPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := h.Notifications.SendToDevice(c.Context(), c.Param("deviceId"), payload)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, res)
}

func (h *Controller) NotifyUser(c router.Context) error {
	payload := NotificationPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := h.Notifications.SendToUser(c.Context(), c.Param("userId"), payload)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, res)
}

func (h *Controller) Broadcast(c router.Context) error {
	payload := NotificationPayload{}
	if err := bind(c, &payload); err != nil {
		return err
	}

	res, err := h.Notifications.Broadcast(c.Context(), payload)
	if err != nil {
		return err
	}
	return c.JSON(router.StatusOK, res)
}

func (h *Controller) identity(c router.Context) (*AuthIdentity, error) {
	identity, ok := NewRouterAccessor(c, h.contextKey).Identity()
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	authIdentity, ok := identity.(*AuthIdentity)
	if !ok {
		return nil, ErrAuthenticationFailed
	}
	return authIdentity, nil
}

type validatable interface {
	Validate() error
}

func bind(c router.Context, payload validatable) error {
	if err := c.Bind(payload); err != nil {
		return failWith(ErrInvalidInput, err).WithMetadata(map[string]any{
			"body": "could not parse request body",
		})
	}
	return payload.Validate()
}
