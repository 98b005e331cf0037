package invoice

import (
	"time"

	"github.com/google/uuid"
)

// Invoice statuses. A pending invoice may be paid or voided; paid and
// cancelled are terminal.
const (
	StatusPending   = "pending"
	StatusPaid      = "paid"
	StatusCancelled = "cancelled"
)

var statuses = map[string]bool{
	StatusPending:   true,
	StatusPaid:      true,
	StatusCancelled: true,
}

// ValidStatus reports whether s names a known invoice status.
func ValidStatus(s string) bool {
	return statuses[s]
}

// LineItem is one billed position. The total is computed from the
// items at creation and stored alongside them, never recomputed.
type LineItem struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	AmountCents int64  `json:"amountCents"`
}

// Invoice is a patient bill. Amounts are integral cents; invoice_no
// is assigned at creation and unique.
type Invoice struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	InvoiceNo  string     `db:"invoice_no" json:"invoice_no"`
	PatientID  uuid.UUID  `db:"patient_id" json:"patient_id"`
	Items      []LineItem `db:"items" json:"items"`
	TotalCents int64      `db:"total_cents" json:"total_cents"`
	Status     string     `db:"status" json:"status"`
	PaidAt     *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
