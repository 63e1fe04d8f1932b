package auth

import "fmt"

// Permission is a named capability checked by command handlers.
type Permission string

// Permission constants.
const (
	PermChannelRead      Permission = "channel:read"
	PermChannelWrite     Permission = "channel:write"
	PermPowerControl     Permission = "power:control"
	PermControllerManage Permission = "controller:manage"
	PermUserManage       Permission = "user:manage"
)

// minimumRole is the single source of truth for the authorisation model.
var minimumRole = map[Permission]Role{
	PermChannelRead:      RoleGuest,
	PermChannelWrite:     RoleOwner,
	PermPowerControl:     RoleOwner,
	PermControllerManage: RoleInstaller,
	PermUserManage:       RoleAdmin,
}

// HasPermission reports whether role grants perm. Unknown permissions are denied.
func HasPermission(role Role, perm Permission) bool {
	required, ok := minimumRole[perm]
	return ok && role.AtLeast(required)
}

// Require returns an error wrapping ErrForbidden unless the session's role
// grants perm.
func Require(s *Session, perm Permission) error {
	if s == nil {
		return fmt.Errorf("%w: no session", ErrForbidden)
	}
	if !HasPermission(s.Role, perm) {
		return fmt.Errorf("%w: %s requires %s, have %s", ErrForbidden, perm, minimumRole[perm], s.Role)
	}
	return nil
}
