package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/kv"
)

// limiterClock lets rate-limit tests advance window time.
type limiterClock struct {
	mu  sync.Mutex
	now time.Time
}

func newLimiterClock() *limiterClock {
	return &limiterClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *limiterClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *limiterClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// failingStore errors on every operation, standing in for an
// unreachable Redis.
type failingStore struct{}

func (failingStore) Incr(ctx context.Context, key string) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) SetWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Exists(ctx context.Context, key string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return 0, errors.New("connection refused")
}
func (failingStore) Del(ctx context.Context, keys ...string) error {
	return errors.New("connection refused")
}
func (failingStore) Ping(ctx context.Context) error { return errors.New("connection refused") }
func (failingStore) Close() error                   { return nil }

func sendFrom(t *testing.T, handler echo.HandlerFunc, ip string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return rec, handler(c)
}

func TestRateLimitByIP_WithinLimit(t *testing.T) {
	limiter := NewRateLimiter(kv.NewMemory(), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 10, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 1; i <= 10; i++ {
		rec, err := sendFrom(t, handler, "10.0.0.1")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i, err)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: X-RateLimit-Limit = %q, want 10", i, got)
		}
		wantRemaining := strconv.Itoa(10 - i)
		if got := rec.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request %d: X-RateLimit-Remaining = %q, want %s", i, got, wantRemaining)
		}
	}
}

func TestRateLimitByIP_EleventhRequestRejected(t *testing.T) {
	limiter := NewRateLimiter(kv.NewMemory(), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 10, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 1; i <= 10; i++ {
		if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i, err)
		}
	}

	rec, err := sendFrom(t, handler, "10.0.0.1")
	if err == nil {
		t.Fatal("expected error for the 11th request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retryAfter := rec.Header().Get("Retry-After")
	if retryAfter == "" {
		t.Fatal("expected Retry-After header")
	}
	secs, parseErr := strconv.Atoi(retryAfter)
	if parseErr != nil {
		t.Fatalf("Retry-After %q is not an integer", retryAfter)
	}
	if secs < 1 || secs > 15*60 {
		t.Errorf("Retry-After = %d, want within (0, 900]", secs)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", got)
	}
}

func TestRateLimitByIP_RetryAfterTracksWindow(t *testing.T) {
	clock := newLimiterClock()
	limiter := NewRateLimiter(kv.NewMemoryWithClock(clock.Now), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 2, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	sendFrom(t, handler, "10.0.0.1")
	sendFrom(t, handler, "10.0.0.1")
	clock.Advance(5 * time.Minute)

	rec, err := sendFrom(t, handler, "10.0.0.1")
	if err == nil {
		t.Fatal("expected 429 after exceeding the limit")
	}
	secs, parseErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if parseErr != nil {
		t.Fatalf("Retry-After parse error: %v", parseErr)
	}
	if secs != 10*60 {
		t.Errorf("Retry-After = %ds, want 600s (window remainder)", secs)
	}
}

func TestRateLimitByIP_WindowResets(t *testing.T) {
	clock := newLimiterClock()
	limiter := NewRateLimiter(kv.NewMemoryWithClock(clock.Now), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 1, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := sendFrom(t, handler, "10.0.0.1"); err == nil {
		t.Fatal("second request in window should be rejected")
	}

	clock.Advance(15*time.Minute + time.Second)
	if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
		t.Errorf("request after window reset: %v", err)
	}
}

func TestRateLimitByIP_PerAddressIsolation(t *testing.T) {
	limiter := NewRateLimiter(kv.NewMemory(), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 1, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
		t.Fatalf("first address: %v", err)
	}
	if _, err := sendFrom(t, handler, "10.0.0.1"); err == nil {
		t.Fatal("first address should be exhausted")
	}
	if _, err := sendFrom(t, handler, "10.0.0.2"); err != nil {
		t.Errorf("second address should have its own window: %v", err)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	limiter := NewRateLimiter(failingStore{}, zerolog.Nop())
	cfg := RateLimitConfig{Limit: 1, Window: 15 * time.Minute}

	handler := RateLimitByIP(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	// Far more requests than the ceiling: all pass while the store is
	// down.
	for i := 0; i < 5; i++ {
		if _, err := sendFrom(t, handler, "10.0.0.1"); err != nil {
			t.Fatalf("request %d rejected during store outage: %v", i+1, err)
		}
	}
}

func TestRateLimitByAccount_KeysOnIdentity(t *testing.T) {
	limiter := NewRateLimiter(kv.NewMemory(), zerolog.Nop())
	cfg := RateLimitConfig{Limit: 1, Window: 15 * time.Minute}

	handler := RateLimitByAccount(limiter, cfg)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	send := func(accountID string) error {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{
			AccountID: accountID,
			Role:      "doctor",
		}))
		rec := httptest.NewRecorder()
		return handler(e.NewContext(req, rec))
	}

	if err := send("acct-1"); err != nil {
		t.Fatalf("acct-1 first request: %v", err)
	}
	if err := send("acct-1"); err == nil {
		t.Fatal("acct-1 second request should be rejected")
	}
	if err := send("acct-2"); err != nil {
		t.Errorf("acct-2 should have its own window: %v", err)
	}
}
