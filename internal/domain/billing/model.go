package billing

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

// Treatment maps to the treatment table. AmountPaid and RemainingBalance
// are derived by the Reconciler and never written by callers.
type Treatment struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	PatientID        uuid.UUID       `db:"patient_id" json:"patient_id"`
	Description      string          `db:"description" json:"description"`
	Cost             decimal.Decimal `db:"cost" json:"cost"`
	AmountPaid       decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	RemainingBalance decimal.Decimal `db:"remaining_balance" json:"remaining_balance"`
	InstallmentPlan  json.RawMessage `db:"installment_plan" json:"installment_plan,omitempty"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

var validTreatmentStatuses = map[string]bool{
	"planned": true, "in-progress": true, "completed": true, "cancelled": true,
}

// Payment maps to the payment table. Payments are immutable once recorded.
type Payment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	PatientID   uuid.UUID       `db:"patient_id" json:"patient_id"`
	TreatmentID *uuid.UUID      `db:"treatment_id" json:"treatment_id,omitempty"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      string          `db:"method" json:"method"`
	Status      string          `db:"status" json:"status"`
	PaidOn      date.Date       `db:"paid_on" json:"paid_on"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

var validPaymentMethods = map[string]bool{
	"cash": true, "card": true, "bank-transfer": true, "e-wallet": true, "insurance": true,
}

var validPaymentStatuses = map[string]bool{
	"completed": true, "pending": true,
}

// Remaining is cost less paid, clamped at zero. Overpayment is absorbed.
func Remaining(cost, paid decimal.Decimal) decimal.Decimal {
	r := cost.Sub(paid)
	if r.IsNegative() {
		return decimal.Zero
	}
	return r
}
