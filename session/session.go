// Package session resolves session tokens to the user who owns them.
package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	usernameKey = "username"
	emailKey    = "email"

	defaultCookieName = "sessionid"
	defaultMaxAge     = 86400 * 7
)

// Identity is the authenticated user behind a token
type Identity struct {
	Username string
	Email    string
}

// Resolver maps an opaque session token to an Identity
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, bool)
}

// CookieResolver decodes session cookies issued by a gorilla/sessions
// CookieStore sharing the same secret.
type CookieResolver struct {
	store      *sessions.CookieStore
	cookieName string
}

var _ Resolver = (*CookieResolver)(nil)

// NewCookieResolver creates a resolver for cookies signed with secret
func NewCookieResolver(secret, cookieName string, maxAge int) (*CookieResolver, error) {
	if secret == "" {
		return nil, errors.New("session secret is required")
	}
	if cookieName == "" {
		cookieName = defaultCookieName
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}

	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	store.MaxAge(maxAge)

	return &CookieResolver{store: store, cookieName: cookieName}, nil
}

// CookieName returns the name of the cookie carrying the token
func (r *CookieResolver) CookieName() string {
	return r.cookieName
}

// Resolve decodes token. Expired, tampered or incomplete sessions do not
// resolve.
func (r *CookieResolver) Resolve(_ context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	values := make(map[interface{}]interface{})
	if err := securecookie.DecodeMulti(r.cookieName, token, &values, r.store.Codecs...); err != nil {
		return Identity{}, false
	}

	username, _ := values[usernameKey].(string)
	email, _ := values[emailKey].(string)
	if username == "" {
		return Identity{}, false
	}
	return Identity{Username: username, Email: email}, true
}

// Encode issues a token for id, in the same format the login frontend
// writes into the cookie.
func (r *CookieResolver) Encode(id Identity) (string, error) {
	values := map[interface{}]interface{}{
		usernameKey: id.Username,
		emailKey:    id.Email,
	}
	return securecookie.EncodeMulti(r.cookieName, values, r.store.Codecs...)
}

// Static resolves a fixed set of tokens. Used by the CLI and in tests.
type Static map[string]Identity

// Resolve implements Resolver
func (s Static) Resolve(_ context.Context, token string) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}
	id, ok := s[token]
	return id, ok
}
