package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
)

// Audit returns middleware that emits a structured log event for every
// authenticated mutating request: who changed what, from where, with
// which outcome. Reads are not logged here; security-relevant events
// (logins, lockouts, denials) are persisted by the domain layer, this
// is the request-level trace on top of them.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isMutating(req.Method) {
				return next(c)
			}

			// Run the handler first so the outcome is known.
			err := next(c)

			identity := auth.IdentityFromContext(req.Context())
			if identity == nil {
				return err
			}

			rid, _ := c.Get("request_id").(string)

			status := c.Response().Status
			if err != nil {
				if httpErr, ok := err.(*echo.HTTPError); ok {
					status = httpErr.Code
				} else {
					status = http.StatusInternalServerError
				}
			}

			logger.Info().
				Str("type", "audit").
				Time("at", time.Now().UTC()).
				Str("request_id", rid).
				Str("actor_id", identity.AccountID).
				Str("actor_role", identity.Role).
				Str("action", methodAction(req.Method)).
				Str("resource", resourceFromPath(req.URL.Path)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Str("remote_ip", c.RealIP()).
				Str("user_agent", req.UserAgent()).
				Int("status", status).
				Msg("mutating request")

			return err
		}
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// methodAction maps HTTP methods to audit action verbs.
func methodAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceFromPath extracts the resource collection from a request
// path: /api/v1/patients/123 -> patients, /auth/login -> auth.
func resourceFromPath(path string) string {
	var rest string
	switch {
	case strings.HasPrefix(path, "/api/v1/"):
		rest = strings.TrimPrefix(path, "/api/v1/")
	case strings.HasPrefix(path, "/auth/"):
		return "auth"
	default:
		return "unknown"
	}

	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}
