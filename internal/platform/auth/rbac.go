package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Denial describes an authorization rejection for the audit trail.
type Denial struct {
	AccountID     string
	Role          string
	RequiredRoles []string
	Method        string
	Path          string
	IP            string
	UserAgent     string
	RequestID     string
}

// DenialRecorder receives authorization denials. Implementations
// must not fail the request over a recording problem.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, d Denial)
}

// DenialRecorderFunc adapts a function to the DenialRecorder
// interface.
type DenialRecorderFunc func(ctx context.Context, d Denial)

func (f DenialRecorderFunc) RecordDenial(ctx context.Context, d Denial) { f(ctx, d) }

// RBAC builds role-checking middleware. Access is a closed allow-list:
// a role not named on the route is refused, admin included. Routes an
// admin should reach name admin explicitly.
type RBAC struct {
	denials DenialRecorder
}

// NewRBAC creates an RBAC whose denials are reported to the given
// recorder. A nil recorder disables recording.
func NewRBAC(denials DenialRecorder) *RBAC {
	return &RBAC{denials: denials}
}

// Require returns middleware permitting only the named roles.
func (r *RBAC) Require(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := r.Check(c, roles...); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// Check refuses the request unless its identity holds one of the named
// roles. Handlers call it directly for rules that depend on the request
// body, where route-level Require cannot decide. A refusal is recorded
// the same way Require records one.
func (r *RBAC) Check(c echo.Context, roles ...string) error {
	identity := IdentityFromContext(c.Request().Context())
	if identity == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	for _, required := range roles {
		if identity.Role == required {
			return nil
		}
	}

	if r.denials != nil {
		rid, _ := c.Get("request_id").(string)
		r.denials.RecordDenial(c.Request().Context(), Denial{
			AccountID:     identity.AccountID,
			Role:          identity.Role,
			RequiredRoles: roles,
			Method:        c.Request().Method,
			Path:          c.Path(),
			IP:            c.RealIP(),
			UserAgent:     c.Request().UserAgent(),
			RequestID:     rid,
		})
	}

	return echo.NewHTTPError(http.StatusForbidden,
		fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
}
