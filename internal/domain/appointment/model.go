package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses. Scheduled is the only state with exits; the
// other three are terminal.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var transitions = map[string][]string{
	StatusScheduled: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// CanTransition reports whether an appointment in from may move to to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Appointment maps to the appointments table. The appointment number
// is assigned at booking from the daily sequence.
type Appointment struct {
	ID            uuid.UUID `db:"id" json:"id"`
	AppointmentNo string    `db:"appointment_no" json:"appointment_no"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	ProviderID    uuid.UUID `db:"provider_id" json:"provider_id"`
	StartsAt      time.Time `db:"starts_at" json:"starts_at"`
	EndsAt        time.Time `db:"ends_at" json:"ends_at"`
	Status        string    `db:"status" json:"status"`
	Reason        *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
