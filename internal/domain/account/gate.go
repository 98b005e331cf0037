package account

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/auth"
)

// Gate adapts the repository to the per-request checks the
// authentication middleware runs after token validation: a lock
// imposed or a deactivation performed after the token was issued takes
// effect on the very next request.
type Gate struct {
	repo   Repository
	policy auth.LockoutPolicy
	now    func() time.Time
}

func NewGate(repo Repository, policy auth.LockoutPolicy) *Gate {
	return &Gate{repo: repo, policy: policy, now: time.Now}
}

func (g *Gate) AccountState(ctx context.Context, accountID string) (auth.AccountState, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return auth.AccountState{}, nil
	}
	acct, err := g.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return auth.AccountState{}, nil
	}
	if err != nil {
		return auth.AccountState{}, err
	}
	status := g.policy.Evaluate(acct.LockedUntil, g.now())
	return auth.AccountState{
		Active:    acct.Active,
		Locked:    status.State == auth.LockLocked,
		Remaining: status.Remaining,
	}, nil
}
