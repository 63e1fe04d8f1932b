package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// usernamePattern allows alphanumerics, dots, hyphens and underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role is an ordered authorisation tier. Higher roles include every
// capability of lower ones.
type Role int

const (
	// RoleGuest may read live values and configuration.
	RoleGuest Role = iota

	// RoleOwner operates their own installation: channel writes and manual power setpoints.
	RoleOwner

	// RoleInstaller commissions the system: creates and deletes controllers.
	RoleInstaller

	// RoleAdmin has full control.
	RoleAdmin
)

var roleNames = [...]string{"guest", "owner", "installer", "admin"}

// String returns the lower-case role name.
func (r Role) String() string {
	if r < RoleGuest || r > RoleAdmin {
		return fmt.Sprintf("role(%d)", int(r))
	}
	return roleNames[r]
}

// AtLeast reports whether r grants everything required grants.
func (r Role) AtLeast(required Role) bool {
	return r >= required
}

// ParseRole converts a role name to a Role.
func ParseRole(s string) (Role, error) {
	for i, name := range roleNames {
		if strings.EqualFold(s, name) {
			return Role(i), nil
		}
	}
	return RoleGuest, fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// MarshalText encodes the role as its name.
func (r Role) MarshalText() ([]byte, error) {
	if r < RoleGuest || r > RoleAdmin {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// User is a stored account. EdgeID is set for the identity an edge
// controller logs in with.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	EdgeID       string    `json:"edge_id,omitempty"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Session is the authenticated identity bound to a connection. It is
// immutable once issued; re-authenticating replaces it.
type Session struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	EdgeID    string    `json:"edge_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsEdge reports whether the session belongs to an edge controller.
func (s *Session) IsEdge() bool {
	return s != nil && s.EdgeID != ""
}

// Credentials are the accepted login forms: username and password,
// password alone, or a previously issued token.
type Credentials struct {
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUsernameExists     = errors.New("username already exists")
	ErrUnknownEdge        = errors.New("edge does not exist")
	ErrInvalidRole        = errors.New("invalid role")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrForbidden          = errors.New("insufficient permissions")
)
