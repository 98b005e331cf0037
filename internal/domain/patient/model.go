package patient

import (
	"time"

	"github.com/google/uuid"
)

// Genders accepted at registration.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

var genders = map[string]bool{
	GenderMale:    true,
	GenderFemale:  true,
	GenderOther:   true,
	GenderUnknown: true,
}

// ValidGender reports whether g is one of the accepted values.
func ValidGender(g string) bool {
	return genders[g]
}

// Patient maps to the patients table. The MRN is assigned at
// registration and never changes; phone and MRN are unique across
// the table.
type Patient struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MRN         string    `db:"mrn" json:"mrn"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	DateOfBirth time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender      string    `db:"gender" json:"gender"`
	Phone       string    `db:"phone" json:"phone"`
	Email       *string   `db:"email" json:"email,omitempty"`
	Address     *string   `db:"address" json:"address,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
