package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Token validation failures. Externally every one of these surfaces as
// the same generic 401; the distinction exists for logs and tests.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrTokenSignature = errors.New("token signature invalid")
	ErrTokenRevoked   = errors.New("token revoked")
)

// Claims is the JWT payload of a session token.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Identity is the authenticated caller, attached to the request
// context by the Authenticate middleware.
type Identity struct {
	AccountID string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

// TokenIssuer issues, validates and revokes HS256-signed session
// tokens under a server-held secret.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
	now     func() time.Time
}

// NewTokenIssuer creates an issuer. Tokens expire ttl after issuance;
// revocations are checked against the given list on every Validate.
func NewTokenIssuer(secret []byte, ttl time.Duration, revoked RevocationList) *TokenIssuer {
	return &TokenIssuer{
		secret:  secret,
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// Issue signs a token for the account with a fresh JTI. The returned
// claims carry the expiry for the login response.
func (i *TokenIssuer) Issue(accountID, role string) (string, *Claims, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims, nil
}

// Validate parses and verifies a token string and checks the
// revocation list. The error identifies the failure for logging;
// handlers must not echo it to clients.
func (i *TokenIssuer) Validate(ctx context.Context, tokenStr string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenSignature
		default:
			return nil, ErrTokenMalformed
		}
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, ErrTokenMalformed
	}

	revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		// Revocation state unknown: reject rather than honor a token
		// that may have been revoked.
		return nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return &Identity{
		AccountID: claims.Subject,
		Role:      claims.Role,
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Revoke denylists a token's JTI for the remainder of its lifetime.
// The entry expires with the token, so the denylist never holds more
// than the live token population. Revoking an already-expired token is
// a no-op.
func (i *TokenIssuer) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	remaining := expiresAt.Sub(i.now())
	if remaining <= 0 {
		return nil
	}
	return i.revoked.Revoke(ctx, jti, remaining)
}
