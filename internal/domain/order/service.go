// Package order handles clinical orders: pharmacy, lab and radiology
// work placed by doctors and moved through a fixed status ladder by
// the fulfilling role.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/sequence"
)

// StatusError reports a transition outside the allowed set.
type StatusError struct {
	Current string
	Target  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot move a %s order to %s", e.Current, e.Target)
}

type Service struct {
	repo Repository
	seq  *sequence.Generator
	now  func() time.Time
}

func NewService(repo Repository, seq *sequence.Generator) *Service {
	return &Service{repo: repo, seq: seq, now: time.Now}
}

// Place stores a new order as ordered, numbered from the daily
// sequence.
func (s *Service) Place(ctx context.Context, o *Order) error {
	no, err := s.seq.Daily(ctx, "ord", "ORD")
	if err != nil {
		return err
	}
	o.ID = uuid.New()
	o.OrderNo = no
	o.Status = StatusOrdered
	o.CreatedAt = s.now().UTC()
	o.UpdatedAt = o.CreatedAt
	return s.repo.Create(ctx, o)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	return s.repo.GetByID(ctx, id)
}

// SetStatus moves the order to target inside the allowed ladder. A
// lost race against a concurrent transition surfaces as the same
// status conflict.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, target string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, target) {
		return nil, &StatusError{Current: o.Status, Target: target}
	}
	if err := s.repo.TransitionStatus(ctx, id, o.Status, target); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			fresh, ferr := s.repo.GetByID(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			return nil, &StatusError{Current: fresh.Status, Target: target}
		}
		return nil, err
	}
	o.Status = target
	return o, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Order, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
