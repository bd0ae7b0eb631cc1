package auth

import (
	"fmt"
	"slices"
)

// RoleGuard authorizes authenticated calls against the roles declared for
// an operation. It must run after Guard.
type RoleGuard struct {
	requirements RoleRequirements
	contextKey   string
	logger       Logger
	metrics      MetricsRecorder
}

// NewRoleGuard creates a role guard over requirements
func NewRoleGuard(requirements RoleRequirements, contextKey string, logger Logger, metrics MetricsRecorder) *RoleGuard {
	return &RoleGuard{
		requirements: requirements,
		contextKey:   contextKey,
		logger:       resolveLogger(logger),
		metrics:      resolveMetrics(metrics),
	}
}

// CanActivate reports whether call may run operation. Operations without
// declared roles are open. Anything unexpected denies.
func (g *RoleGuard) CanActivate(call any, operation string) (allowed bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("role guard panic", "operation", operation, "panic", fmt.Sprint(r))
			allowed = false
		}
		g.metrics.RecordRoleDecision(operation, allowed)
	}()

	if g.requirements == nil {
		return false
	}

	required, err := g.requirements.RequiredRoles(operation)
	if err != nil {
		g.logger.Error("role guard could not load requirements", "operation", operation, "error", err)
		return false
	}
	if len(required) == 0 {
		return true
	}

	accessor, err := ResolveAccessor(call, g.contextKey)
	if err != nil {
		return false
	}

	identity, ok := accessor.Identity()
	if !ok {
		return false
	}

	role := identity.Role()
	if role == "" {
		return false
	}

	return slices.Contains(required, role)
}

// Authorize is CanActivate returning ErrForbidden on denial.
func (g *RoleGuard) Authorize(call any, operation string) error {
	if !g.CanActivate(call, operation) {
		return failWith(ErrForbidden, nil).WithMetadata(map[string]any{"operation": operation})
	}
	return nil
}
