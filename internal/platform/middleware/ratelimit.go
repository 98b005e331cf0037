package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/kv"
)

// RateLimitConfig holds one fixed-window ceiling.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of counting one request against a ceiling.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter counts requests in the shared KV store, so several
// server instances enforce one combined ceiling per key.
type RateLimiter struct {
	store  kv.Store
	logger zerolog.Logger
}

// NewRateLimiter creates a limiter over the given store.
func NewRateLimiter(store kv.Store, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		store:  store,
		logger: logger.With().Str("component", "ratelimit").Logger(),
	}
}

// Allow counts one request against key and decides. When the store is
// unreachable the limiter fails open: the request proceeds uncounted
// and the failure is logged. Availability wins over ceiling precision
// here, nowhere else.
func (l *RateLimiter) Allow(ctx context.Context, key string, cfg RateLimitConfig) Decision {
	count, err := l.store.IncrWindow(ctx, key, cfg.Window)
	if err != nil {
		l.logger.Warn().Err(err).Str("key", key).
			Msg("rate limit store unavailable, allowing request")
		return Decision{Allowed: true, Remaining: cfg.Limit}
	}

	remaining := cfg.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if int(count) > cfg.Limit {
		retry := cfg.Window
		if ttl, err := l.store.TTL(ctx, key); err == nil && ttl > 0 {
			retry = ttl
		}
		return Decision{Allowed: false, RetryAfter: retry}
	}

	return Decision{Allowed: true, Remaining: remaining}
}

// RateLimitByIP limits requests per client address. Applied to the
// auth endpoints, where no identity exists yet and the client address
// is all there is to key on.
func RateLimitByIP(limiter *RateLimiter, cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(limiter, cfg, func(c echo.Context) string {
		return "rl:auth:" + c.RealIP()
	})
}

// RateLimitByAccount limits requests per authenticated account. Must
// run after Authenticate; requests without an identity fall back to
// the client address.
func RateLimitByAccount(limiter *RateLimiter, cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(limiter, cfg, func(c echo.Context) string {
		if id := auth.IdentityFromContext(c.Request().Context()); id != nil {
			return "rl:api:" + id.AccountID
		}
		return "rl:api:" + c.RealIP()
	})
}

func rateLimit(limiter *RateLimiter, cfg RateLimitConfig, keyFor func(echo.Context) string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := limiter.Allow(c.Request().Context(), keyFor(c), cfg)

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))

			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}

// retryAfterSeconds rounds up so a client never retries early.
func retryAfterSeconds(d time.Duration) int {
	secs := int((d + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
