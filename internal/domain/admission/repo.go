package admission

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("admission not found")
	ErrBedOccupied       = errors.New("bed already occupied")
	ErrPatientAdmitted   = errors.New("patient already admitted")
	ErrPatientMissing    = errors.New("patient not found")
	ErrAttendingMissing  = errors.New("attending not found")
	ErrAlreadyDischarged = errors.New("admission already discharged")
)

// Repository is the persistence contract for admissions.
type Repository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	// Discharge closes an open admission in a single conditional
	// update. ErrAlreadyDischarged when the row exists but is closed.
	Discharge(ctx context.Context, id uuid.UUID, at time.Time) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Admission, int, error)
}
