package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/audit"
	"github.com/medicore/medicore/internal/platform/auth"
	"github.com/medicore/medicore/internal/platform/telemetry"
)

var (
	// ErrInvalidCredentials is the generic rejection for every
	// credential failure. Which part failed is never distinguished
	// externally.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrTwoFactorEnabled rejects a second enrollment while one is
	// active.
	ErrTwoFactorEnabled = errors.New("two-factor authentication already enabled")
)

// LockedError rejects an attempt against a locked account, carrying
// the time left on the lock.
type LockedError struct {
	Remaining time.Duration
}

func (e *LockedError) Error() string {
	return auth.LockedMessage(e.Remaining)
}

// ValidationError reports a malformed input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuditRecorder receives trail entries. Recording never fails the
// surrounding operation.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Meta carries request provenance into audit rows.
type Meta struct {
	IP        string
	UserAgent string
	RequestID string
}

// LoginInput is one login attempt. TwoFactorCode is empty when the
// client has not been challenged yet.
type LoginInput struct {
	Email         string
	Password      string
	TwoFactorCode string
}

// LoginResult is a successful evaluation: either a challenge for the
// second factor or an issued session.
type LoginResult struct {
	TwoFactorRequired bool
	Token             string
	Account           *Account
}

// Guard runs the credential and session checks for the auth endpoints.
// Rate limiting happens in middleware before any Guard method, so the
// limiter cannot be probed for account existence.
type Guard struct {
	repo    Repository
	hasher  *auth.PasswordHasher
	totp    *auth.TOTP
	tokens  *auth.TokenIssuer
	policy  auth.LockoutPolicy
	trail   AuditRecorder
	metrics *telemetry.Provider
	now     func() time.Time
}

func NewGuard(repo Repository, hasher *auth.PasswordHasher, totp *auth.TOTP,
	tokens *auth.TokenIssuer, policy auth.LockoutPolicy,
	trail AuditRecorder, metrics *telemetry.Provider) *Guard {
	return &Guard{
		repo:    repo,
		hasher:  hasher,
		totp:    totp,
		tokens:  tokens,
		policy:  policy,
		trail:   trail,
		metrics: metrics,
		now:     time.Now,
	}
}

// Login evaluates one attempt in fixed order: account lookup, lockout,
// password, second factor. An unknown and a deactivated account read
// the same as a wrong password from outside.
func (g *Guard) Login(ctx context.Context, in LoginInput, meta Meta) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))

	acct, err := g.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.metrics.CountLogin("failure")
			g.trail.Record(ctx, audit.Entry{
				Action:    audit.ActionLoginFailure,
				Resource:  "auth",
				Detail:    "login attempt for unknown email",
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
				RequestID: meta.RequestID,
			})
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up account: %w", err)
	}

	if !acct.Active {
		g.metrics.CountLogin("failure")
		g.trail.Record(ctx, g.entry(acct, audit.ActionLoginFailure, "login attempt on deactivated account", meta))
		return nil, ErrInvalidCredentials
	}

	now := g.now()
	status := g.policy.Evaluate(acct.LockedUntil, now)
	if status.State == auth.LockLocked {
		// Rejected before the password is even looked at. The counter
		// stays put and the lock is not extended.
		g.metrics.CountLogin("locked")
		return nil, &LockedError{Remaining: status.Remaining}
	}
	if status.Expired {
		if err := g.repo.ClearLock(ctx, acct.ID); err != nil {
			return nil, fmt.Errorf("failed to clear expired lock: %w", err)
		}
		acct.FailedLoginCount = 0
		acct.LockedUntil = nil
	}

	if !g.hasher.Verify(in.Password, acct.PasswordHash) {
		return nil, g.loginFailed(ctx, acct, "wrong password", meta)
	}

	if acct.TwoFactorEnabled {
		if in.TwoFactorCode == "" {
			// Not a failure: the client re-prompts for the code without
			// re-entering the password.
			g.metrics.CountLogin("two_factor_required")
			return &LoginResult{TwoFactorRequired: true}, nil
		}
		secret := ""
		if acct.TwoFactorSecret != nil {
			secret = *acct.TwoFactorSecret
		}
		if !g.totp.Verify(in.TwoFactorCode, secret) {
			return nil, g.loginFailed(ctx, acct, "wrong two-factor code", meta)
		}
	}

	token, _, err := g.tokens.Issue(acct.ID.String(), acct.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	if err := g.repo.RecordLogin(ctx, acct.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	acct.FailedLoginCount = 0
	acct.LockedUntil = nil
	acct.LastLoginAt = &now

	g.metrics.CountLogin("success")
	g.trail.Record(ctx, g.entry(acct, audit.ActionLoginSuccess, "login succeeded", meta))
	return &LoginResult{Token: token, Account: acct}, nil
}

// loginFailed applies the failed-attempt transition: one atomic
// increment, then a lock once the count reaches the threshold. The
// attempt that crosses the threshold is itself answered with the lock.
func (g *Guard) loginFailed(ctx context.Context, acct *Account, detail string, meta Meta) error {
	count, err := g.repo.IncrementFailed(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("failed to record login failure: %w", err)
	}
	g.metrics.CountLogin("failure")
	g.trail.Record(ctx, g.entry(acct, audit.ActionLoginFailure, detail, meta))

	if !g.policy.ShouldLock(count) {
		return ErrInvalidCredentials
	}

	until := g.policy.LockExpiry(g.now())
	if err := g.repo.SetLock(ctx, acct.ID, until); err != nil {
		return fmt.Errorf("failed to lock account: %w", err)
	}
	g.metrics.CountLockout()
	g.trail.Record(ctx, g.entry(acct, audit.ActionLockoutImposed,
		fmt.Sprintf("account locked after %d failed logins", count), meta))
	return &LockedError{Remaining: g.policy.Duration}
}

// Logout revokes the presented session token. The denylist entry lives
// exactly as long as the token had left.
func (g *Guard) Logout(ctx context.Context, identity *auth.Identity, meta Meta) error {
	if err := g.tokens.Revoke(ctx, identity.JTI, identity.ExpiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	g.metrics.CountRevocation()

	var actor *uuid.UUID
	if id, err := uuid.Parse(identity.AccountID); err == nil {
		actor = &id
	}
	g.trail.Record(ctx, audit.Entry{
		ActorID:   actor,
		Action:    audit.ActionLogout,
		Resource:  "auth",
		Detail:    "session revoked",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})
	return nil
}

// ChangePassword verifies the current password before accepting the
// new one. A wrong current password is a plain rejection with no
// lockout side effects.
func (g *Guard) ChangePassword(ctx context.Context, accountID uuid.UUID, current, next string, meta Meta) error {
	acct, err := g.repo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !g.hasher.Verify(current, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := auth.ValidatePasswordStrength(next); err != nil {
		return &ValidationError{Field: "newPassword", Message: err.Error()}
	}
	hash, err := g.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := g.repo.UpdatePassword(ctx, acct.ID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	g.trail.Record(ctx, g.entry(acct, audit.ActionPasswordChanged, "password changed", meta))
	return nil
}

// EnrollTwoFactor generates and stores a pending secret. Enrollment
// stays incomplete until a code verifies against it; the secret and
// provisioning URI leave the server exactly once, here.
func (g *Guard) EnrollTwoFactor(ctx context.Context, accountID uuid.UUID, meta Meta) (secret, uri string, err error) {
	acct, err := g.repo.GetByID(ctx, accountID)
	if err != nil {
		return "", "", fmt.Errorf("failed to load account: %w", err)
	}
	if acct.TwoFactorEnabled {
		return "", "", ErrTwoFactorEnabled
	}
	secret, uri, err = g.totp.GenerateSecret(acct.Email)
	if err != nil {
		return "", "", err
	}
	if err := g.repo.SetTwoFactorSecret(ctx, acct.ID, secret); err != nil {
		return "", "", fmt.Errorf("failed to store two-factor secret: %w", err)
	}
	g.trail.Record(ctx, g.entry(acct, audit.ActionTwoFactorEnabled, "two-factor enrollment started", meta))
	return secret, uri, nil
}

// VerifyTwoFactorSetup completes enrollment by checking a live code
// against the pending secret.
func (g *Guard) VerifyTwoFactorSetup(ctx context.Context, accountID uuid.UUID, code string, meta Meta) error {
	acct, err := g.repo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if acct.TwoFactorSecret == nil {
		return &ValidationError{Field: "token", Message: "two-factor enrollment has not been started"}
	}
	if !g.totp.Verify(code, *acct.TwoFactorSecret) {
		return ErrInvalidCredentials
	}
	if err := g.repo.EnableTwoFactor(ctx, acct.ID); err != nil {
		return fmt.Errorf("failed to enable two-factor: %w", err)
	}
	g.trail.Record(ctx, g.entry(acct, audit.ActionTwoFactorVerified, "two-factor enrollment verified", meta))
	return nil
}

// DisableTwoFactor turns enrollment off. It requires the account
// password, not just a live session.
func (g *Guard) DisableTwoFactor(ctx context.Context, accountID uuid.UUID, password string, meta Meta) error {
	acct, err := g.repo.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if !g.hasher.Verify(password, acct.PasswordHash) {
		return ErrInvalidCredentials
	}
	if err := g.repo.DisableTwoFactor(ctx, acct.ID); err != nil {
		return fmt.Errorf("failed to disable two-factor: %w", err)
	}
	g.trail.Record(ctx, g.entry(acct, audit.ActionTwoFactorDisabled, "two-factor disabled", meta))
	return nil
}

func (g *Guard) entry(a *Account, action, detail string, meta Meta) audit.Entry {
	id := a.ID
	return audit.Entry{
		ActorID:   &id,
		Action:    action,
		Resource:  "auth",
		Detail:    detail,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	}
}
