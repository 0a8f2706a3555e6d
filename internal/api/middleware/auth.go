// auth.go: session authentication middleware.
// Resolves the caller from the session cookie or a Bearer token and puts the
// identity into the request context. It never rejects a request: handlers
// decide whether an identity is required.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/swap-mitra/city-vault/internal/auth"
)

type contextKey string

const (
	// ContextKeyIdentity holds the *auth.Identity of the request.
	ContextKeyIdentity contextKey = "vault_identity"

	contextKeyIdentityHolder contextKey = "vault_identity_holder"
)

// Authenticator resolves the identity of a request. Implemented by *auth.Authenticator.
type Authenticator interface {
	Authenticate(r *http.Request) (*auth.Identity, error)
}

// SessionAuth returns the authentication middleware.
func SessionAuth(authenticator Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With(slog.String("component", "session_auth"))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Debug("Token rejected",
					slog.String("error", err.Error()),
					slog.String("remote_addr", r.RemoteAddr),
				)
				next.ServeHTTP(w, r)
				return
			}
			if id == nil {
				next.ServeHTTP(w, r)
				return
			}

			if holder, ok := r.Context().Value(contextKeyIdentityHolder).(*identityHolder); ok {
				holder.identity = id
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// IdentityFromContext returns the request identity, nil for anonymous requests.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(ContextKeyIdentity).(*auth.Identity)
	return id
}

// WithIdentity stores an identity in ctx.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, ContextKeyIdentity, id)
}

// identityHolder carries the identity back out to the request logger.
type identityHolder struct {
	identity *auth.Identity
}

func withIdentityHolder(ctx context.Context, h *identityHolder) context.Context {
	return context.WithValue(ctx, contextKeyIdentityHolder, h)
}
