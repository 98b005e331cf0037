// Package appointment books provider visits and walks them through
// their status lifecycle. Double-booking a provider is refused by the
// database, not by a read-then-check in the service, so concurrent
// bookings cannot slip past each other.
package appointment

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
	return fmt.Sprintf("cannot move a %s appointment to %s", e.Current, e.Target)
}

type Service struct {
	repo Repository
	seq  *sequence.Generator
	now  func() time.Time
}

func NewService(repo Repository, seq *sequence.Generator) *Service {
	return &Service{repo: repo, seq: seq, now: time.Now}
}

// Book assigns the appointment number and stores the appointment as
// scheduled. The number's date part is the booking day.
func (s *Service) Book(ctx context.Context, a *Appointment) error {
	no, err := s.seq.Daily(ctx, "appt", "APT")
	if err != nil {
		return err
	}
	a.ID = uuid.New()
	a.AppointmentNo = no
	a.Status = StatusScheduled
	a.CreatedAt = s.now().UTC()
	a.UpdatedAt = a.CreatedAt
	return s.repo.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

// SetStatus moves the appointment to target. The move must be inside
// the allowed transition set; a lost race against a concurrent
// transition surfaces as the same status conflict.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, target string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(appt.Status, target) {
		return nil, &StatusError{Current: appt.Status, Target: target}
	}
	if err := s.repo.TransitionStatus(ctx, id, appt.Status, target); err != nil {
		if errors.Is(err, ErrStatusChanged) {
			fresh, ferr := s.repo.GetByID(ctx, id)
			if ferr != nil {
				return nil, ferr
			}
			return nil, &StatusError{Current: fresh.Status, Target: target}
		}
		return nil, err
	}
	appt.Status = target
	return appt, nil
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
