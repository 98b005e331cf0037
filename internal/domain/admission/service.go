// Package admission tracks inpatient stays. Bed occupancy and the
// one-open-admission-per-patient rule live in the database as partial
// unique indexes, so concurrent admits for the same bed cannot both
// land.
package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Admit opens a stay. id, status and the admission timestamp are
// server-assigned.
func (s *Service) Admit(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	a.Status = StatusAdmitted
	a.AdmittedAt = s.now().UTC()
	a.DischargedAt = nil
	a.CreatedAt = a.AdmittedAt
	a.UpdatedAt = a.AdmittedAt
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.repo.GetByID(ctx, id)
}

// Discharge closes an open stay and returns the closed record. A
// second discharge reports the conflict instead of moving the
// discharge time.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID) (*Admission, error) {
	if err := s.repo.Discharge(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Admission, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
