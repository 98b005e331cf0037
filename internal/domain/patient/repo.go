package patient

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("patient not found")
	ErrMRNTaken   = errors.New("mrn already assigned")
	ErrPhoneTaken = errors.New("phone already registered")
)

// Repository is the persistence contract for patients.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error)
}
