package auth

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// UserRole is the single role assigned to a user
type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "user"
)

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	switch r {
	case RoleAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// ParseRole normalizes s into a UserRole
func ParseRole(s string) (UserRole, error) {
	r := UserRole(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid role %q", s)
	}
	return r, nil
}

// RoleRequirements resolves the roles required by an operation. A nil or
// empty result means the operation is unrestricted.
type RoleRequirements interface {
	RequiredRoles(operation string) ([]string, error)
}

// RoleRegistry is the side table from operation id to required roles. It is
// populated at startup and read on every call.
type RoleRegistry struct {
	mu    sync.RWMutex
	roles map[string][]string
}

// NewRoleRegistry creates an empty registry
func NewRoleRegistry() *RoleRegistry {
	return &RoleRegistry{roles: map[string][]string{}}
}

// Register declares the roles required for operation, replacing any previous
// declaration.
func (r *RoleRegistry) Register(operation string, roles ...UserRole) *RoleRegistry {
	set := make([]string, 0, len(roles))
	for _, role := range roles {
		if !slices.Contains(set, string(role)) {
			set = append(set, string(role))
		}
	}

	r.mu.Lock()
	r.roles[operation] = set
	r.mu.Unlock()
	return r
}

// RequiredRoles returns a copy of the roles declared for operation
func (r *RoleRegistry) RequiredRoles(operation string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.roles[operation]), nil
}

// Operations lists the registered operation ids
func (r *RoleRegistry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.roles))
	for op := range r.roles {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}

// Operation ids shared by the HTTP routes and GraphQL resolvers.
const (
	OpAuthLogout             = "auth.logout"
	OpUsersMe                = "users.me"
	OpUsersList              = "users.list"
	OpUsersSetActive         = "users.set_active"
	OpDevicesLink            = "devices.link"
	OpDevicesDeactivate      = "devices.deactivate"
	OpNotificationsDevice    = "notifications.device"
	OpNotificationsUser      = "notifications.user"
	OpNotificationsBroadcast = "notifications.broadcast"

	OpGraphQLMe               = "graphql.me"
	OpGraphQLUsers            = "graphql.users"
	OpGraphQLLinkGuestDevice  = "graphql.linkGuestDevice"
	OpGraphQLLogout           = "graphql.logout"
	OpGraphQLSendNotification = "graphql.sendNotification"
)

// DefaultRoleRegistry declares the admin only operations. Everything else
// only requires authentication.
func DefaultRoleRegistry() *RoleRegistry {
	return NewRoleRegistry().
		Register(OpUsersList, RoleAdmin).
		Register(OpUsersSetActive, RoleAdmin).
		Register(OpDevicesDeactivate, RoleAdmin).
		Register(OpNotificationsDevice, RoleAdmin).
		Register(OpNotificationsUser, RoleAdmin).
		Register(OpNotificationsBroadcast, RoleAdmin).
		Register(OpGraphQLUsers, RoleAdmin).
		Register(OpGraphQLSendNotification, RoleAdmin)
}
