package claiming

import (
	"time"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

// Challenge maps to the claim_challenge table.
type Challenge struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PatientID uuid.UUID `db:"patient_id" json:"patient_id"`
	Code      string    `db:"code" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Verified  bool      `db:"verified" json:"verified"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Candidate is the only view of a record exposed before the challenge is
// answered. It carries no contact details.
type Candidate struct {
	ID          uuid.UUID  `json:"id"`
	DisplayName string     `json:"display_name"`
	LastVisit   *date.Date `json:"last_visit,omitempty"`
}

type SearchResult struct {
	Found         bool        `json:"found"`
	RecordID      *uuid.UUID  `json:"record_id,omitempty"`
	NeedsMoreInfo bool        `json:"needsMoreInfo"`
	Candidates    []Candidate `json:"candidates,omitempty"`
}

// ChallengeResult describes a persisted challenge. Delivery is the SMS
// dispatch status.
type ChallengeResult struct {
	RecordID    uuid.UUID `json:"record_id"`
	MaskedPhone string    `json:"masked_phone"`
	ExpiresAt   time.Time `json:"expires_at"`
	Delivery    string    `json:"delivery"`
}

// NewAccountFields are supplied by the patient when answering a challenge.
type NewAccountFields struct {
	Username    string  `json:"username"`
	Password    string  `json:"password"`
	DisplayName string  `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty"`
}

// LinkResult carries a session, or LoginRequired when none could be issued.
type LinkResult struct {
	Session       *auth.Session `json:"session,omitempty"`
	AccountID     uuid.UUID     `json:"account_id"`
	RecordID      uuid.UUID     `json:"record_id"`
	Username      string        `json:"username"`
	LoginRequired bool          `json:"login_required,omitempty"`
}
