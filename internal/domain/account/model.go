package account

import (
	"time"

	"github.com/google/uuid"
)

// Staff roles. The set is closed; authorization allow-lists name roles
// from this list only.
const (
	RoleAdmin        = "admin"
	RoleDoctor       = "doctor"
	RoleNurse        = "nurse"
	RoleReceptionist = "receptionist"
	RolePharmacist   = "pharmacist"
	RoleLabTech      = "lab_tech"
	RoleRadiologist  = "radiologist"
	RoleAccountant   = "accountant"
)

var roles = map[string]bool{
	RoleAdmin:        true,
	RoleDoctor:       true,
	RoleNurse:        true,
	RoleReceptionist: true,
	RolePharmacist:   true,
	RoleLabTech:      true,
	RoleRadiologist:  true,
	RoleAccountant:   true,
}

// ValidRole reports whether role names a known staff role.
func ValidRole(role string) bool {
	return roles[role]
}

// Account is a staff login. The password hash and the two-factor
// secret never serialize to JSON on any path; they leave this struct
// only toward the database.
type Account struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	FullName         string     `db:"full_name" json:"full_name"`
	Role             string     `db:"role" json:"role"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	Active           bool       `db:"active" json:"active"`
	TwoFactorEnabled bool       `db:"two_factor_enabled" json:"two_factor_enabled"`
	TwoFactorSecret  *string    `db:"two_factor_secret" json:"-"`
	FailedLoginCount int        `db:"failed_login_count" json:"failed_login_count"`
	LockedUntil      *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	LastLoginAt      *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}
