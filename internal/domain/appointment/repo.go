package appointment

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound        = errors.New("appointment not found")
	ErrSlotTaken       = errors.New("provider already booked for this time")
	ErrPatientMissing  = errors.New("patient not found")
	ErrProviderMissing = errors.New("provider not found")
	// ErrStatusChanged reports a lost compare-and-swap: the row moved
	// out of the expected status between read and update.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// Repository is the persistence contract for appointments.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// TransitionStatus moves id from one status to another in a single
	// conditional update, so concurrent transitions cannot both win.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to string) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error)
}
