package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Entry is the caller-facing shape of a trail event. The service
// assigns the id and timestamp on write.
type Entry struct {
	ActorID   *uuid.UUID
	Action    string
	Resource  string
	Detail    string
	IP        string
	UserAgent string
	RequestID string
}

type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "audit").Logger(),
		now:    time.Now,
	}
}

// Record appends an event to the trail. A persistence failure must not
// fail the request that triggered the event, so it is logged and
// swallowed here.
func (s *Service) Record(ctx context.Context, entry Entry) {
	e := &Event{
		ID:        uuid.New(),
		ActorID:   entry.ActorID,
		Action:    entry.Action,
		Resource:  entry.Resource,
		Detail:    entry.Detail,
		IP:        entry.IP,
		UserAgent: entry.UserAgent,
		RequestID: entry.RequestID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Insert(ctx, e); err != nil {
		s.logger.Error().
			Err(err).
			Str("action", entry.Action).
			Str("resource", entry.Resource).
			Str("request_id", entry.RequestID).
			Msg("audit event not persisted")
	}
}

func (s *Service) Search(ctx context.Context, params map[string]string, limit, offset int) ([]*Event, int, error) {
	return s.repo.Search(ctx, params, limit, offset)
}
