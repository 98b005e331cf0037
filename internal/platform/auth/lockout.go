package auth

import (
	"fmt"
	"time"
)

// LockState is the evaluated lockout state of an account.
type LockState string

const (
	// LockOpen means login attempts are evaluated normally.
	LockOpen LockState = "open"
	// LockLocked means every login attempt is rejected regardless of
	// credential correctness.
	LockLocked LockState = "locked"
)

// LockoutPolicy decides when repeated login failures lock an account
// and for how long. The zero value locks nothing; both fields come
// from config.
type LockoutPolicy struct {
	Threshold int
	Duration  time.Duration
}

// LockStatus is the lockout state of an account at a point in time.
type LockStatus struct {
	State     LockState
	Remaining time.Duration // time left on the lock, zero when open

	// Expired reports that a past lock has elapsed. The caller should
	// clear the account's failure counter and lock expiry before
	// proceeding.
	Expired bool
}

// Evaluate derives the lock state from the account's lock expiry.
// Locks are never unlocked by a background job; a lock simply stops
// holding once its expiry passes, and Expired tells the caller to
// clear the stale row fields.
func (p LockoutPolicy) Evaluate(lockedUntil *time.Time, now time.Time) LockStatus {
	if lockedUntil == nil {
		return LockStatus{State: LockOpen}
	}
	if now.Before(*lockedUntil) {
		return LockStatus{
			State:     LockLocked,
			Remaining: lockedUntil.Sub(now),
		}
	}
	return LockStatus{State: LockOpen, Expired: true}
}

// ShouldLock reports whether an account with the given failure count
// has crossed the lock threshold.
func (p LockoutPolicy) ShouldLock(failedCount int) bool {
	return p.Threshold > 0 && failedCount >= p.Threshold
}

// LockExpiry returns when a lock imposed now stops holding.
func (p LockoutPolicy) LockExpiry(now time.Time) time.Time {
	return now.Add(p.Duration)
}

// LockedMessage renders the client-facing message for a 423 response,
// rounding the remaining time up to whole minutes.
func LockedMessage(remaining time.Duration) string {
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes <= 1 {
		return "account locked, try again in 1 minute"
	}
	return fmt.Sprintf("account locked, try again in %d minutes", minutes)
}
