package order

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("order not found")
	ErrPatientMissing = errors.New("patient not found")
	// ErrStatusChanged reports a lost compare-and-swap on the status
	// column.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

// Repository is the persistence contract for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error)
}
