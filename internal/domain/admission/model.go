package admission

import (
	"time"

	"github.com/google/uuid"
)

// Admission statuses.
const (
	StatusAdmitted   = "admitted"
	StatusDischarged = "discharged"
)

// Admission maps to the admissions table. A bed holds at most one
// open admission, and a patient has at most one open admission; both
// rules are enforced by partial unique indexes on the table.
type Admission struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	Ward         string     `db:"ward" json:"ward"`
	Bed          string     `db:"bed" json:"bed"`
	AttendingID  uuid.UUID  `db:"attending_id" json:"attending_id"`
	Diagnosis    string     `db:"diagnosis" json:"diagnosis"`
	Status       string     `db:"status" json:"status"`
	AdmittedAt   time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}
