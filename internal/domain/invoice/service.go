// Package invoice bills patients. Amounts are integral cents summed
// from the line items at creation; settling and voiding are
// conditional updates on the pending state, so two cashiers cannot
// both settle the same bill.
package invoice

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

// Issue stores a new pending invoice, numbered from the daily
// sequence. The total is the sum over items of quantity times amount.
func (s *Service) Issue(ctx context.Context, inv *Invoice) error {
	no, err := s.seq.Daily(ctx, "inv", "INV")
	if err != nil {
		return err
	}
	inv.ID = uuid.New()
	inv.InvoiceNo = no
	inv.Status = StatusPending
	inv.PaidAt = nil
	var total int64
	for _, item := range inv.Items {
		total += int64(item.Quantity) * item.AmountCents
	}
	inv.TotalCents = total
	inv.CreatedAt = s.now().UTC()
	inv.UpdatedAt = inv.CreatedAt
	return s.repo.Create(ctx, inv)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.repo.GetByID(ctx, id)
}

// Settle marks a pending invoice paid, stamping the payment time.
func (s *Service) Settle(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	if err := s.repo.MarkPaid(ctx, id, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

// Void cancels a pending invoice.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	if err := s.repo.Void(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Invoice, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
