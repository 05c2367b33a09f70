package staff

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
)

type Position string

const (
	PositionDentist          Position = "dentist"
	PositionAssistantDentist Position = "assistant-dentist"
	PositionAssistant        Position = "assistant"
)

// RoleFor maps a staff position onto an account role.
func RoleFor(p Position) (account.Role, error) {
	switch p {
	case PositionDentist, PositionAssistantDentist:
		return account.RoleClinician, nil
	case PositionAssistant:
		return account.RoleAssistant, nil
	}
	return "", apperr.Validation("invalid position: %q", p)
}

// Profile maps to the staff_profile table.
//
// Lifecycle: no credentials (UserRef nil), issued but unused (UserRef set,
// IsCodeUsed false), activated (IsCodeUsed true).
type Profile struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	FirstName     string     `db:"first_name" json:"first_name"`
	LastName      string     `db:"last_name" json:"last_name"`
	Position      Position   `db:"position" json:"position"`
	Email         *string    `db:"email" json:"email,omitempty"`
	Phone         *string    `db:"phone" json:"phone,omitempty"`
	UserRef       *uuid.UUID `db:"user_ref" json:"user_ref,omitempty"`
	GeneratedCode *string    `db:"generated_code" json:"-"`
	IsCodeUsed    bool       `db:"is_code_used" json:"is_code_used"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

func (p *Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// State names the credential lifecycle stage.
func (p *Profile) State() string {
	switch {
	case p.UserRef == nil:
		return "no-credentials"
	case p.IsCodeUsed:
		return "activated"
	default:
		return "issued-unused"
	}
}

// IssuedCredentials is returned once, at issuance. Secret is the only
// plaintext copy handed to callers.
type IssuedCredentials struct {
	ProfileID uuid.UUID    `json:"profile_id"`
	AccountID uuid.UUID    `json:"account_id"`
	Username  string       `json:"username"`
	Secret    string       `json:"password"`
	Role      account.Role `json:"role"`
}

// BaseHandle derives a handle from a display name: lower-cased, whitespace
// runs become ".".
func BaseHandle(displayName string) string {
	return account.NormalizeHandle(strings.Join(strings.Fields(strings.ToLower(displayName)), "."))
}
