// Package respond renders the standard MediCore response envelope. Every
// JSON body leaving the API has the shape
// {success, data?, message?, errors?: [{field, message}]} so clients can
// handle all endpoints uniformly.
package respond

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Envelope is the standard response body.
type Envelope struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Message string       `json:"message,omitempty"`
	Errors  []FieldError `json:"errors,omitempty"`
}

// FieldError describes a validation failure on a single input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// OK writes a success envelope carrying data.
func OK(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, Envelope{Success: true, Data: data})
}

// Message writes a success envelope carrying only a message.
func Message(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: true, Message: msg})
}

// Error writes a failure envelope with a message.
func Error(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Message: msg})
}

// ValidationError writes a 400 failure envelope with per-field errors.
func ValidationError(c echo.Context, errs ...FieldError) error {
	return c.JSON(http.StatusBadRequest, Envelope{
		Success: false,
		Message: "validation failed",
		Errors:  errs,
	})
}

// HTTPErrorHandler returns an echo error handler that renders every error in
// the standard envelope. Internal errors are logged with detail and surfaced
// as a generic message.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := "internal server error"

		if he, ok := err.(*echo.HTTPError); ok {
			status = he.Code
			if m, ok := he.Message.(string); ok {
				msg = m
			} else {
				msg = http.StatusText(status)
			}
		}

		if status >= http.StatusInternalServerError {
			rid, _ := c.Get("request_id").(string)
			logger.Error().
				Err(err).
				Str("request_id", rid).
				Str("path", c.Request().URL.Path).
				Msg("request failed")
			msg = "internal server error"
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, Envelope{Success: false, Message: msg})
	}
}
