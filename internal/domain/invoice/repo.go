package invoice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("invoice not found")
	ErrPatientMissing = errors.New("patient not found")
	// ErrNotPending reports a settle or void attempt on an invoice
	// that already left the pending state.
	ErrNotPending = errors.New("invoice is not pending")
)

// Repository is the persistence contract for invoices.
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// MarkPaid moves a pending invoice to paid in a single conditional
	// update, stamping paid_at.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) error
	// Void moves a pending invoice to cancelled.
	Void(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error)
}
