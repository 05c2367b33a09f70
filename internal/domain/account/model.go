package account

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleClinician Role = "staff-clinician"
	RoleAssistant Role = "staff-assistant"
	RolePatient   Role = "self-service-patient"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClinician, RoleAssistant, RolePatient:
		return true
	}
	return false
}

func (r Role) IsStaff() bool {
	return r == RoleClinician || r == RoleAssistant
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusInactive:
		return true
	}
	return false
}

// Account maps to the account table. FirstLogin with StatusPending marks
// issued staff credentials that have not been used yet.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Handle       string    `db:"handle" json:"username"`
	VerifierHash string    `db:"verifier_hash" json:"-"`
	DisplayName  string    `db:"display_name" json:"display_name"`
	Email        *string   `db:"email" json:"email,omitempty"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Role         Role      `db:"role" json:"role"`
	Position     *string   `db:"position" json:"position,omitempty"`
	FirstLogin   bool      `db:"first_login" json:"first_login"`
	Status       Status    `db:"status" json:"status"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// NewAccount is the input to Store.CreateAccount.
type NewAccount struct {
	Handle      string
	Secret      string
	DisplayName string
	Email       *string
	Phone       *string
	Role        Role
	Position    *string
	FirstLogin  bool
	Status      Status
}

// ProfileUpdate carries optional changes; nil fields are left untouched.
type ProfileUpdate struct {
	Handle      *string `json:"username,omitempty"`
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Status      *Status `json:"status,omitempty"`
}

// NormalizeHandle folds case and surrounding whitespace so handle
// uniqueness is case-insensitive.
func NormalizeHandle(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
