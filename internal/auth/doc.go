// Package auth authenticates EdgeLink connections.
//
// Roles are ordered guest < owner < installer < admin; a handler asks
// Require(session, permission) and the static minimumRole table decides.
//
// Authenticate accepts a username and password, a password alone, or a
// previously issued token. A successful login stores a Session in the
// SessionStore (in memory or Redis) and returns it with a signed HS256
// token whose sid claim names the stored entry. Revoking the entry
// invalidates the token even before it expires.
//
// Passwords are hashed with Argon2id in PHC format.
package auth
