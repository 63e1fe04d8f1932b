package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserLookup is the part of UserRepository the Authenticator needs.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	ListActive(ctx context.Context) ([]User, error)
}

// Authenticator turns credentials into sessions and re-validates them.
type Authenticator struct {
	users    UserLookup
	sessions SessionStore
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

// NewAuthenticator creates an Authenticator issuing sessions that live for ttl.
func NewAuthenticator(users UserLookup, sessions SessionStore, secret string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		users:    users,
		sessions: sessions,
		secret:   secret,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Authenticate validates creds and returns a session.
//
// A token is checked against its signature and the session store. A
// username and password are checked against that user. A password alone
// matches the first active user, in creation order, whose password it is.
// Every rejection wraps ErrInvalidCredentials or ErrTokenInvalid.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (*Session, error) {
	switch {
	case creds.Token != "":
		return a.fromToken(ctx, creds.Token)
	case creds.Password == "":
		return nil, ErrInvalidCredentials
	case creds.Username != "":
		return a.fromUsername(ctx, creds.Username, creds.Password)
	default:
		return a.fromPasswordOnly(ctx, creds.Password)
	}
}

func (a *Authenticator) fromToken(ctx context.Context, token string) (*Session, error) {
	claims, err := ParseToken(token, a.secret)
	if err != nil {
		return nil, err
	}
	s, err := a.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session revoked or expired", ErrTokenInvalid)
		}
		return nil, err
	}
	if s.Token != token {
		return nil, fmt.Errorf("%w: token does not match session", ErrTokenInvalid)
	}
	return s, nil
}

func (a *Authenticator) fromUsername(ctx context.Context, username, password string) (*Session, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive {
		return nil, ErrInvalidCredentials
	}
	ok, err := VerifyPassword(password, u.PasswordHash)
	if err != nil || !ok {
		return nil, ErrInvalidCredentials
	}
	return a.issue(ctx, u)
}

func (a *Authenticator) fromPasswordOnly(ctx context.Context, password string) (*Session, error) {
	users, err := a.users.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if ok, err := VerifyPassword(password, users[i].PasswordHash); err == nil && ok {
			return a.issue(ctx, &users[i])
		}
	}
	return nil, ErrInvalidCredentials
}

func (a *Authenticator) issue(ctx context.Context, u *User) (*Session, error) {
	now := a.now()
	s := &Session{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Username:  u.Username,
		Role:      u.Role,
		EdgeID:    u.EdgeID,
		ExpiresAt: now.Add(a.ttl).Truncate(time.Second),
	}

	token, err := IssueToken(s, a.secret, now)
	if err != nil {
		return nil, err
	}
	s.Token = token

	if err := a.sessions.Put(ctx, s); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	return s, nil
}

// Validate confirms s is still honoured: its token verifies and its entry
// is still in the session store.
func (a *Authenticator) Validate(ctx context.Context, s *Session) error {
	if s == nil {
		return ErrTokenInvalid
	}
	if _, err := ParseToken(s.Token, a.secret); err != nil {
		return err
	}
	if _, err := a.sessions.Get(ctx, s.ID); err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return fmt.Errorf("%w: session revoked or expired", ErrTokenInvalid)
		}
		return err
	}
	return nil
}

// Revoke removes s from the session store.
func (a *Authenticator) Revoke(ctx context.Context, s *Session) error {
	if s == nil {
		return nil
	}
	return a.sessions.Revoke(ctx, s.ID)
}
