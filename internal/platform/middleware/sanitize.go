package middleware

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// maxHeaderValueSize is the maximum allowed size for any single header
// value.
const maxHeaderValueSize = 8192 // 8KB

var (
	// SQL injection patterns: logged as a warning, not blocked.
	// Queries are parameterized throughout, so a match is signal for
	// the security log rather than a threat to the database.
	sqlPatterns = regexp.MustCompile(`(?i)('+\s*;\s*DROP\b|UNION\s+SELECT\b|'\s+OR\s+1\s*=\s*1|1\s*=\s*1)`)

	// Script injection patterns: blocked outright.
	scriptPatterns = regexp.MustCompile(`(?i)(<script|javascript\s*:|on\w+\s*=)`)
)

// Sanitize returns middleware that rejects requests carrying common
// attack patterns in the path, headers or query string before any
// handler sees them.
func Sanitize() echo.MiddlewareFunc {
	return SanitizeWithLogger(zerolog.Nop())
}

// SanitizeWithLogger returns the sanitize middleware configured with a
// logger for the non-blocking SQL injection warnings.
func SanitizeWithLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			rawPath := req.URL.RawPath
			if rawPath == "" {
				rawPath = path
			}

			if containsPathTraversal(path) || containsPathTraversal(rawPath) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid request path")
			}

			if containsNullByte(path) || containsNullByte(rawPath) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid request path")
			}

			for name, values := range req.Header {
				for _, v := range values {
					if len(v) > maxHeaderValueSize {
						return echo.NewHTTPError(http.StatusBadRequest, "header value too large: "+name)
					}
					if strings.ContainsAny(v, "\r\n") {
						return echo.NewHTTPError(http.StatusBadRequest, "invalid header value: "+name)
					}
				}
			}

			for key, values := range req.URL.Query() {
				for _, v := range values {
					if containsNullByte(v) || containsNullByte(key) {
						return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter")
					}

					if sqlPatterns.MatchString(v) {
						logger.Warn().
							Str("param", key).
							Str("path", path).
							Str("remote_ip", c.RealIP()).
							Msg("potential SQL injection pattern in query parameter")
					}

					if scriptPatterns.MatchString(v) || scriptPatterns.MatchString(key) {
						return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter")
					}
				}
			}

			return next(c)
		}
	}
}

// containsPathTraversal checks for traversal sequences in raw and
// percent-encoded forms.
func containsPathTraversal(s string) bool {
	if strings.Contains(s, "..") {
		return true
	}
	lower := strings.ToLower(s)
	if strings.Contains(lower, "%2e%2e") {
		return true
	}
	if strings.Contains(lower, "%252e") {
		return true
	}
	return false
}

// containsNullByte checks for null bytes in raw and percent-encoded
// forms.
func containsNullByte(s string) bool {
	if strings.ContainsRune(s, '\x00') {
		return true
	}
	return strings.Contains(strings.ToLower(s), "%00")
}

// SanitizeString strips null bytes and control characters (keeping
// \n, \r, \t) and trims surrounding whitespace. Handlers use it for
// free-text fields headed to storage.
func SanitizeString(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\x00' {
			continue
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}
