package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound reports that no account matched the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrEmailTaken reports an insert that collided with an existing
	// email.
	ErrEmailTaken = errors.New("email already registered")
)

type Repository interface {
	Create(ctx context.Context, a *Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	List(ctx context.Context, params map[string]string, limit, offset int) ([]*Account, int, error)

	// IncrementFailed adds one to the failed-login counter in a single
	// atomic statement and returns the new count. Concurrent failures
	// race on this counter; the database increment is the correctness
	// mechanism, so a read-then-write here would under-count.
	IncrementFailed(ctx context.Context, id uuid.UUID) (int, error)
	SetLock(ctx context.Context, id uuid.UUID, until time.Time) error
	// ClearLock zeroes the failure counter and removes the lock expiry.
	ClearLock(ctx context.Context, id uuid.UUID) error
	// RecordLogin resets the failure counter and stamps the last
	// successful login.
	RecordLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error
	SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, id uuid.UUID) error
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}
