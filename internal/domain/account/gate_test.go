package account

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/auth"
)

func newTestGate(repo *fakeAccountRepo, clock *testClock) *Gate {
	g := NewGate(repo, auth.LockoutPolicy{Threshold: 5, Duration: 30 * time.Minute})
	g.now = clock.Now
	return g
}

func TestGate_ActiveAccount(t *testing.T) {
	repo := newFakeAccountRepo()
	clock := newTestClock()
	acct := &Account{ID: uuid.New(), Email: "doc@h.com", Active: true}
	repo.put(acct)

	state, err := newTestGate(repo, clock).AccountState(context.Background(), acct.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Active || state.Locked {
		t.Errorf("expected active unlocked state, got %+v", state)
	}
}

func TestGate_LockedAccount(t *testing.T) {
	repo := newFakeAccountRepo()
	clock := newTestClock()
	until := clock.Now().Add(12 * time.Minute)
	acct := &Account{ID: uuid.New(), Email: "doc@h.com", Active: true, LockedUntil: &until}
	repo.put(acct)

	state, err := newTestGate(repo, clock).AccountState(context.Background(), acct.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Locked {
		t.Fatal("expected locked state")
	}
	if state.Remaining != 12*time.Minute {
		t.Errorf("expected 12m remaining, got %v", state.Remaining)
	}
}

func TestGate_ExpiredLockReadsOpen(t *testing.T) {
	repo := newFakeAccountRepo()
	clock := newTestClock()
	until := clock.Now().Add(-time.Minute)
	acct := &Account{ID: uuid.New(), Email: "doc@h.com", Active: true, LockedUntil: &until}
	repo.put(acct)

	state, err := newTestGate(repo, clock).AccountState(context.Background(), acct.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Locked {
		t.Error("expected expired lock to read open")
	}
	if !state.Active {
		t.Error("expected active state")
	}
}

func TestGate_DeactivatedAccount(t *testing.T) {
	repo := newFakeAccountRepo()
	clock := newTestClock()
	acct := &Account{ID: uuid.New(), Email: "doc@h.com", Active: false}
	repo.put(acct)

	state, err := newTestGate(repo, clock).AccountState(context.Background(), acct.ID.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Active {
		t.Error("expected inactive state")
	}
}

func TestGate_UnknownAccount(t *testing.T) {
	repo := newFakeAccountRepo()
	clock := newTestClock()

	state, err := newTestGate(repo, clock).AccountState(context.Background(), uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Active {
		t.Error("expected unknown account to read inactive")
	}

	state, err = newTestGate(repo, clock).AccountState(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Active {
		t.Error("expected malformed id to read inactive")
	}
}
