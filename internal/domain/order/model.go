package order

import (
	"time"

	"github.com/google/uuid"
)

// Order types. Each type is worked by one fulfilling role.
const (
	TypePharmacy  = "pharmacy"
	TypeLab       = "lab"
	TypeRadiology = "radiology"
)

// Order statuses. Completed and cancelled are terminal.
const (
	StatusOrdered    = "ordered"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

var transitions = map[string][]string{
	StatusOrdered:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

var fulfillerByType = map[string]string{
	TypePharmacy:  "pharmacist",
	TypeLab:       "lab_tech",
	TypeRadiology: "radiologist",
}

// ValidType reports whether t names a known order type.
func ValidType(t string) bool {
	_, ok := fulfillerByType[t]
	return ok
}

// ValidStatus reports whether s names a known status.
func ValidStatus(s string) bool {
	switch s {
	case StatusOrdered, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order in from may move to to.
func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Fulfiller returns the role that works orders of the given type.
func Fulfiller(orderType string) string {
	return fulfillerByType[orderType]
}

// Order maps to the orders table.
type Order struct {
	ID        uuid.UUID `db:"id" json:"id"`
	OrderNo   string    `db:"order_no" json:"order_no"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	OrderedBy uuid.UUID `db:"ordered_by" json:"ordered_by"`
	OrderType string    `db:"order_type" json:"order_type"`
	Detail    string    `db:"detail" json:"detail"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
