package api

import (
	"context"
	"fmt"

	"github.com/nerrad567/edgelink-core/internal/auth"
	"github.com/nerrad567/edgelink-core/internal/infrastructure/logging"
)

// Authenticator establishes and re-validates sessions.
// *auth.Authenticator satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (*auth.Session, error)
	Validate(ctx context.Context, s *auth.Session) error
}

// SnapshotSource provides the configuration snapshot sent after login.
type SnapshotSource interface {
	Snapshot() map[string]any
}

type authenticateReply struct {
	Authenticate authenticateResult        `json:"authenticate"`
	AllDevices   map[string]deviceSnapshot `json:"all_devices,omitempty"`
}

type authenticateResult struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
	Failed   bool   `json:"failed,omitempty"`
}

type deviceSnapshot struct {
	Config map[string]any `json:"config"`
}

// authGate binds sessions to connections and checks them before every
// other piece of a message is looked at.
type authGate struct {
	auth     Authenticator
	snapshot SnapshotSource
	deviceID string
	logger   *logging.Logger

	// onAuthenticated runs after a session has been bound and the reply queued.
	onAuthenticated func(c *Conn)
}

// authenticate tries creds. On success the new session replaces any
// previous one; on failure the previous session is left as it was.
func (g *authGate) authenticate(ctx context.Context, c *Conn, creds auth.Credentials) bool {
	s, err := g.auth.Authenticate(ctx, creds)
	if err != nil {
		g.logger.Warn("authentication failed", "user", c.Username(), "username", creds.Username, "error", err)
		c.sendMessage(authenticateReply{Authenticate: authenticateResult{Failed: true}})
		return false
	}

	c.setSession(s)
	g.logger.Info("user authenticated", "user", s.Username, "role", s.Role.String(), "edge_id", s.EdgeID)

	c.sendMessage(authenticateReply{
		Authenticate: authenticateResult{
			Token:    s.Token,
			Username: s.Username,
			Role:     s.Role.String(),
		},
		AllDevices: map[string]deviceSnapshot{
			g.deviceID: {Config: g.snapshot.Snapshot()},
		},
	})

	if g.onAuthenticated != nil {
		g.onAuthenticated(c)
	}
	return true
}

// assertAuthenticated returns an error unless c carries a session the
// authenticator still accepts.
func (g *authGate) assertAuthenticated(ctx context.Context, c *Conn) error {
	s := c.Session()
	if s == nil {
		return ErrNotAuthenticated
	}
	if err := g.auth.Validate(ctx, s); err != nil {
		return fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}
	return nil
}
