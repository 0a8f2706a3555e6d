package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "vault_session"

// sessionIssuer is the iss claim of vault-issued tokens.
const sessionIssuer = "city-vault"

// sessionClaims are the claims of a session token.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// SessionManager issues HS256 session tokens and manages the session cookie.
type SessionManager struct {
	key       []byte
	ttl       time.Duration
	secure    bool
	ephemeral bool
}

// NewSessionManager creates a session manager.
// An empty secret generates a random key, sessions then do not survive a restart.
func NewSessionManager(secret string, ttl time.Duration, secure bool) (*SessionManager, error) {
	sm := &SessionManager{ttl: ttl, secure: secure}

	if secret == "" {
		sm.key = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, sm.key); err != nil {
			return nil, fmt.Errorf("generate session key: %w", err)
		}
		sm.ephemeral = true
	} else {
		sm.key = []byte(secret)
	}

	return sm, nil
}

// Ephemeral reports whether the signing key was generated at startup.
func (sm *SessionManager) Ephemeral() bool {
	return sm.ephemeral
}

// Issue signs a new session token for the user.
func (sm *SessionManager) Issue(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(sm.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    sessionIssuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email: email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(sm.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify validates a session token.
func (sm *SessionManager) Verify(_ context.Context, token string) (*Identity, error) {
	claims := &sessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return sm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(sessionIssuer),
	)
	if err != nil || !parsed.Valid {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   NormalizeEmail(claims.Email),
		Source:  SourceSession,
	}, nil
}

// TokenFromRequest returns the Authorization: Bearer token, falling back
// to the session cookie. Empty when neither is present.
func (sm *SessionManager) TokenFromRequest(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		if token := strings.TrimSpace(parts[1]); token != "" {
			return token
		}
	}

	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// SetSessionCookie writes the session cookie.
func (sm *SessionManager) SetSessionCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(time.Until(expiresAt).Seconds()),
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie removes the session cookie (logout).
func (sm *SessionManager) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
