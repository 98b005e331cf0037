package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded in the trail. Rows are written once and never
// updated or deleted.
const (
	ActionLoginSuccess       = "login_success"
	ActionLoginFailure       = "login_failure"
	ActionLockoutImposed     = "lockout_imposed"
	ActionLogout             = "logout"
	ActionPasswordChanged    = "password_changed"
	ActionTwoFactorEnabled   = "two_factor_enabled"
	ActionTwoFactorVerified  = "two_factor_verified"
	ActionTwoFactorDisabled  = "two_factor_disabled"
	ActionAccessDenied       = "access_denied"
	ActionAccountCreated     = "account_created"
	ActionAccountDeactivated = "account_deactivated"
	ActionAccountUnlocked    = "account_unlocked"
)

// Event is one row of the security trail. ActorID is nil for events
// with no authenticated actor, such as failed logins on unknown
// accounts.
type Event struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	ActorID   *uuid.UUID `db:"actor_id" json:"actor_id,omitempty"`
	Action    string     `db:"action" json:"action"`
	Resource  string     `db:"resource" json:"resource"`
	Detail    string     `db:"detail" json:"detail"`
	IP        string     `db:"ip" json:"ip"`
	UserAgent string     `db:"user_agent" json:"user_agent"`
	RequestID string     `db:"request_id" json:"request_id"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
