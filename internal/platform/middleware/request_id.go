package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequestIDHeader is the header a request id is read from and echoed
// back on.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that tags every request with an id for
// log and audit correlation. An id supplied by the caller is kept;
// otherwise a fresh uuid is generated. The id is stored on the echo
// context under "request_id" and echoed in the response header.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			return next(c)
		}
	}
}
