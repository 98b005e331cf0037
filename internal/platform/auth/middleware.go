package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type contextKey string

const identityKey contextKey = "auth_identity"

// AccountState is the live snapshot Authenticate checks on every
// request after the token itself validates.
type AccountState struct {
	Active    bool
	Locked    bool
	Remaining time.Duration // time left on the lock when Locked
}

// AccountGate looks up the live state of an account. An unknown
// account is reported as inactive, not as an error; an error means the
// lookup itself failed.
type AccountGate interface {
	AccountState(ctx context.Context, accountID string) (AccountState, error)
}

// Authenticate validates the bearer token and re-checks the account's
// live state, so a lock imposed or a deactivation performed after the
// token was issued takes effect on the next request. The concrete
// failure reason is logged but never surfaced: every token rejection
// reads the same externally.
func Authenticate(issuer *TokenIssuer, gate AccountGate, logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			identity, err := issuer.Validate(c.Request().Context(), parts[1])
			if err != nil {
				logger.Debug().Err(err).Str("path", c.Path()).Msg("token rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			state, err := gate.AccountState(c.Request().Context(), identity.AccountID)
			if err != nil {
				return fmt.Errorf("failed to check account state: %w", err)
			}
			if state.Locked {
				return echo.NewHTTPError(http.StatusLocked, LockedMessage(state.Remaining))
			}
			if !state.Active {
				logger.Debug().
					Str("account_id", identity.AccountID).
					Msg("token for inactive account rejected")
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			ctx := WithIdentity(c.Request().Context(), identity)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// WithIdentity returns a context carrying the authenticated caller.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the authenticated caller, or nil when
// the request did not pass Authenticate.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}
