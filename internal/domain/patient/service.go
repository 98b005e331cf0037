// Package patient manages the patient registry: registration with an
// assigned medical record number, demographic updates, search and
// deactivation. Records are never deleted.
package patient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/sequence"
)

type Service struct {
	repo Repository
	seq  *sequence.Generator
	now  func() time.Time
}

func NewService(repo Repository, seq *sequence.Generator) *Service {
	return &Service{repo: repo, seq: seq, now: time.Now}
}

// Register assigns the MRN and stores the patient. The caller fills
// the demographic fields; id, mrn, active and timestamps are
// server-assigned.
func (s *Service) Register(ctx context.Context, p *Patient) error {
	mrn, err := s.seq.Counter(ctx, "mrn", "MRN")
	if err != nil {
		return err
	}
	p.ID = uuid.New()
	p.MRN = mrn
	p.Active = true
	p.CreatedAt = s.now().UTC()
	p.UpdatedAt = p.CreatedAt
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// Update replaces the demographic fields. The MRN and active flag are
// not touched.
func (s *Service) Update(ctx context.Context, p *Patient) error {
	return s.repo.Update(ctx, p)
}

func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	return s.repo.Deactivate(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Patient, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
