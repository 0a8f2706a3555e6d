package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MicahParks/jwkset"
	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// federatedClaims are the claims read from an external IdP token.
type federatedClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified,omitempty"`
}

// FederatedVerifier validates RS256 tokens against the JWKS of an
// external identity provider. Keys are refreshed in the background.
type FederatedVerifier struct {
	jwks   keyfunc.Keyfunc
	issuer string
	leeway time.Duration
	logger *slog.Logger
}

// FederatedOptions configures NewFederatedVerifier.
type FederatedOptions struct {
	JWKSURL         string
	Issuer          string
	ClientTimeout   time.Duration
	RefreshInterval time.Duration
	Leeway          time.Duration
}

// NewFederatedVerifier creates the verifier. The JWKS endpoint may be
// unreachable at startup, keys are fetched on refresh.
func NewFederatedVerifier(opts FederatedOptions, logger *slog.Logger) (*FederatedVerifier, error) {
	logger = logger.With(slog.String("component", "federated_auth"))

	storage, err := jwkset.NewStorageFromHTTP(opts.JWKSURL, jwkset.HTTPClientStorageOptions{
		Client:                    &http.Client{Timeout: opts.ClientTimeout},
		NoErrorReturnFirstHTTPReq: true,
		RefreshInterval:           opts.RefreshInterval,
		RefreshErrorHandler: func(_ context.Context, err error) {
			logger.Error("JWKS refresh failed",
				slog.String("error", err.Error()),
				slog.String("url", opts.JWKSURL),
			)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create JWKS storage: %w", err)
	}

	k, err := keyfunc.New(keyfunc.Options{Storage: storage})
	if err != nil {
		return nil, fmt.Errorf("create keyfunc: %w", err)
	}

	return newFederatedVerifier(k, opts.Issuer, opts.Leeway, logger), nil
}

func newFederatedVerifier(k keyfunc.Keyfunc, issuer string, leeway time.Duration, logger *slog.Logger) *FederatedVerifier {
	return &FederatedVerifier{
		jwks:   k,
		issuer: issuer,
		leeway: leeway,
		logger: logger,
	}
}

// Verify validates the token and returns an identity keyed by email.
// Tokens without an email claim, or with email_verified=false, are rejected.
func (v *FederatedVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims := &federatedClaims{}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.KeyfuncCtx(ctx), parserOpts...)
	if err != nil || !parsed.Valid {
		v.logger.Debug("Federated token rejected", slog.Any("error", err))
		return nil, errors.Join(ErrInvalidToken, err)
	}

	email := NormalizeEmail(claims.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: missing email claim", ErrInvalidToken)
	}
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidToken)
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   email,
		Source:  SourceFederated,
	}, nil
}
