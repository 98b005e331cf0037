package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// stubGate is a map-backed AccountGate for middleware tests.
type stubGate struct {
	states map[string]AccountState
	err    error
}

func (s *stubGate) AccountState(ctx context.Context, accountID string) (AccountState, error) {
	if s.err != nil {
		return AccountState{}, s.err
	}
	return s.states[accountID], nil
}

func activeGate(accountIDs ...string) *stubGate {
	g := &stubGate{states: make(map[string]AccountState)}
	for _, id := range accountIDs {
		g.states[id] = AccountState{Active: true}
	}
	return g
}

func runAuthenticate(t *testing.T, issuer *TokenIssuer, gate AccountGate, authHeader string) (error, bool) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var handlerCalled bool
	handler := func(c echo.Context) error {
		handlerCalled = true
		return c.String(http.StatusOK, "ok")
	}

	mw := Authenticate(issuer, gate, zerolog.Nop())
	return mw(handler)(c), handlerCalled
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	err, called := runAuthenticate(t, issuer, activeGate(), "")
	if called {
		t.Error("handler was called without credentials")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestAuthenticate_InvalidFormat(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err, called := runAuthenticate(t, issuer, activeGate(), tt.header)
			if called {
				t.Error("handler was called with a bad header")
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok {
				t.Fatalf("expected echo.HTTPError, got %T", err)
			}
			if httpErr.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", httpErr.Code)
			}
		})
	}
}

func TestAuthenticate_ValidToken(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+tokenStr)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		identity := IdentityFromContext(c.Request().Context())
		if identity == nil {
			t.Fatal("no identity in request context")
		}
		if identity.AccountID != "acct-1" {
			t.Errorf("AccountID = %q, want acct-1", identity.AccountID)
		}
		if identity.Role != "doctor" {
			t.Errorf("Role = %q, want doctor", identity.Role)
		}
		return c.String(http.StatusOK, "ok")
	}

	mw := Authenticate(issuer, activeGate("acct-1"), zerolog.Nop())
	if err := mw(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAuthenticate_CaseInsensitiveBearer(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	err, called := runAuthenticate(t, issuer, activeGate("acct-1"), "bearer "+tokenStr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("handler was not called")
	}
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	clock.Advance(25 * time.Hour)

	err, called := runAuthenticate(t, issuer, activeGate("acct-1"), "Bearer "+tokenStr)
	if called {
		t.Error("handler was called with an expired token")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestAuthenticate_RevokedToken(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, claims, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	if err := issuer.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("Revoke() error: %v", err)
	}

	err, called := runAuthenticate(t, issuer, activeGate("acct-1"), "Bearer "+tokenStr)
	if called {
		t.Error("handler was called with a revoked token")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestAuthenticate_LockedAccount(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Lock imposed after the token was issued.
	gate := &stubGate{states: map[string]AccountState{
		"acct-1": {Active: true, Locked: true, Remaining: 12 * time.Minute},
	}}

	err, called := runAuthenticate(t, issuer, gate, "Bearer "+tokenStr)
	if called {
		t.Error("handler was called for a locked account")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusLocked {
		t.Errorf("expected 423, got %d", httpErr.Code)
	}
	msg, _ := httpErr.Message.(string)
	if !strings.Contains(msg, "12 minutes") {
		t.Errorf("message %q missing remaining time", msg)
	}
}

func TestAuthenticate_DeactivatedAccount(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	// Gate knows nothing about acct-1, same as a deactivated account.
	err, called := runAuthenticate(t, issuer, activeGate(), "Bearer "+tokenStr)
	if called {
		t.Error("handler was called for a deactivated account")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", httpErr.Code)
	}
}

func TestAuthenticate_GateFailure(t *testing.T) {
	clock := newTestClock()
	issuer := newTestIssuer(clock)

	tokenStr, _, err := issuer.Issue("acct-1", "doctor")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	gate := &stubGate{err: errors.New("connection refused")}
	err, called := runAuthenticate(t, issuer, gate, "Bearer "+tokenStr)
	if called {
		t.Error("handler was called despite a failed state lookup")
	}
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*echo.HTTPError); ok {
		t.Error("gate failure should surface as a plain error for the 500 handler")
	}
}

func TestIdentityFromContext_Empty(t *testing.T) {
	if id := IdentityFromContext(context.Background()); id != nil {
		t.Errorf("IdentityFromContext on empty context = %+v, want nil", id)
	}
}
