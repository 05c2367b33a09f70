package claiming

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ch *Challenge) error
	// DeleteUnverified removes every unverified challenge for the record.
	DeleteUnverified(ctx context.Context, patientID uuid.UUID) error
	// LatestForUpdate returns the most recent challenge for (patientID,
	// code), locked. ErrNotFound when none exists.
	LatestForUpdate(ctx context.Context, patientID uuid.UUID, code string) (*Challenge, error)
	MarkVerified(ctx context.Context, id uuid.UUID) error
	// Prune deletes challenges that expired before now. Verified rows are
	// kept until then so a reused code still reports as used.
	Prune(ctx context.Context, now time.Time) (int64, error)
}
