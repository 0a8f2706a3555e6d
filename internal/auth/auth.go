// Package auth issues and verifies vault session tokens and, optionally,
// tokens of an external identity provider (JWKS).
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// Source tells where an identity came from.
type Source string

const (
	// SourceSession is a vault-issued session token.
	SourceSession Source = "session"
	// SourceFederated is a token from the external identity provider.
	SourceFederated Source = "federated"
)

// Identity is the verified caller of a request.
type Identity struct {
	// Subject is the local user id for session tokens and the IdP sub
	// for federated tokens.
	Subject string
	// Email is the normalised email claim.
	Email  string
	Source Source
}

// TokenVerifier validates a raw token string.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Authenticator resolves the caller of a request from an Authorization:
// Bearer header or the session cookie.
type Authenticator struct {
	sessions  *SessionManager
	federated TokenVerifier
}

// NewAuthenticator creates an authenticator. federated may be nil.
func NewAuthenticator(sessions *SessionManager, federated TokenVerifier) *Authenticator {
	return &Authenticator{sessions: sessions, federated: federated}
}

// Authenticate returns the request identity.
// A request without any token yields (nil, nil).
func (a *Authenticator) Authenticate(r *http.Request) (*Identity, error) {
	token := a.sessions.TokenFromRequest(r)
	if token == "" {
		return nil, nil
	}

	id, err := a.sessions.Verify(r.Context(), token)
	if err == nil {
		return id, nil
	}
	if a.federated == nil {
		return nil, err
	}
	return a.federated.Verify(r.Context(), token)
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
