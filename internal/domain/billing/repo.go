package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
)

type TreatmentRepository interface {
	Create(ctx context.Context, t *Treatment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Treatment, error)
	// Update writes description, cost, installment plan and status.
	Update(ctx context.Context, t *Treatment) error
	// Delete removes the treatment and detaches its payments.
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error)
	SetBalance(ctx context.Context, id uuid.UUID, paid, remaining decimal.Decimal) error
	SumRemainingByPatient(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error)
	SumByTreatment(ctx context.Context, treatmentID uuid.UUID) (decimal.Decimal, error)
}

// Records is the part of the clinical record store billing needs.
type Records interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Record, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*patient.Record, error)
	SetTotalBalance(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
}
