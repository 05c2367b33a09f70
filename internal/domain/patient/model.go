package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

// Record maps to the patient table. UserRef, HasAccount and TotalBalance are
// maintained by claiming and billing and ignored on demographic updates.
type Record struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	FirstName      string          `db:"first_name" json:"first_name"`
	LastName       string          `db:"last_name" json:"last_name"`
	BirthDate      date.Date       `db:"birth_date" json:"birth_date"`
	Gender         *string         `db:"gender" json:"gender,omitempty"`
	Phone          *string         `db:"phone" json:"phone,omitempty"`
	Email          *string         `db:"email" json:"email,omitempty"`
	Address        *string         `db:"address" json:"address,omitempty"`
	MedicalHistory *string         `db:"medical_history" json:"medical_history,omitempty"`
	Allergies      *string         `db:"allergies" json:"allergies,omitempty"`
	LastVisit      *date.Date      `db:"last_visit" json:"last_visit,omitempty"`
	UserRef        *uuid.UUID      `db:"user_ref" json:"user_ref,omitempty"`
	HasAccount     bool            `db:"has_account" json:"has_account"`
	TotalBalance   decimal.Decimal `db:"total_balance" json:"total_balance"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

func (r *Record) DisplayName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Criteria selects unlinked records for self-service claiming. Name and
// Phone match as case-insensitive substrings; BirthDate must be equal.
type Criteria struct {
	Name      string
	BirthDate date.Date
	Phone     string
}

// Matches reports whether r satisfies c. Used by in-memory repositories.
func (c Criteria) Matches(r *Record) bool {
	if r.UserRef != nil {
		return false
	}
	if !r.BirthDate.Equal(c.BirthDate) {
		return false
	}
	if !strings.Contains(strings.ToLower(r.FirstName+" "+r.LastName), strings.ToLower(strings.TrimSpace(c.Name))) {
		return false
	}
	phone := ""
	if r.Phone != nil {
		phone = *r.Phone
	}
	return strings.Contains(strings.ToLower(phone), strings.ToLower(strings.TrimSpace(c.Phone)))
}
