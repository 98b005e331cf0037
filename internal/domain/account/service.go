package account

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/domain/audit"
	"github.com/medicore/medicore/internal/platform/auth"
)

// CreateInput is the admin payload for a new staff account.
type CreateInput struct {
	Email    string
	FullName string
	Role     string
	Password string
}

// Service covers account administration: registration, listing,
// deactivation and manual unlock. Credential flows live on Guard.
type Service struct {
	repo   Repository
	hasher *auth.PasswordHasher
	trail  AuditRecorder
	now    func() time.Time
}

func NewService(repo Repository, hasher *auth.PasswordHasher, trail AuditRecorder) *Service {
	return &Service{repo: repo, hasher: hasher, trail: trail, now: time.Now}
}

// Create registers a staff account. Accounts are never deleted later;
// deactivation is the retirement path.
func (s *Service) Create(ctx context.Context, in CreateInput, actor *uuid.UUID, meta Meta) (*Account, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, &ValidationError{Field: "email", Message: "valid email required"}
	}
	if strings.TrimSpace(in.FullName) == "" {
		return nil, &ValidationError{Field: "fullName", Message: "full name required"}
	}
	if !ValidRole(in.Role) {
		return nil, &ValidationError{Field: "role", Message: "unknown role"}
	}
	if err := auth.ValidatePasswordStrength(in.Password); err != nil {
		return nil, &ValidationError{Field: "password", Message: err.Error()}
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	acct := &Account{
		ID:           uuid.New(),
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		Role:         in.Role,
		PasswordHash: hash,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, acct); err != nil {
		return nil, err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:   actor,
		Action:    audit.ActionAccountCreated,
		Resource:  "accounts",
		Detail:    fmt.Sprintf("account %s created with role %s", acct.Email, acct.Role),
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})
	return acct, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params map[string]string, limit, offset int) ([]*Account, int, error) {
	return s.repo.List(ctx, params, limit, offset)
}

// Deactivate retires an account. Outstanding tokens stop working on
// their next request via the per-request account gate.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID, actor *uuid.UUID, meta Meta) error {
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:   actor,
		Action:    audit.ActionAccountDeactivated,
		Resource:  "accounts",
		Detail:    "account " + id.String() + " deactivated",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})
	return nil
}

// Unlock clears lockout state ahead of its expiry.
func (s *Service) Unlock(ctx context.Context, id uuid.UUID, actor *uuid.UUID, meta Meta) error {
	if err := s.repo.ClearLock(ctx, id); err != nil {
		return err
	}
	s.trail.Record(ctx, audit.Entry{
		ActorID:   actor,
		Action:    audit.ActionAccountUnlocked,
		Resource:  "accounts",
		Detail:    "account " + id.String() + " unlocked",
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		RequestID: meta.RequestID,
	})
	return nil
}
