package billing

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
)

// Reconciler maintains the derived balance columns. Its methods join the
// caller's transaction, so a triggering write and its recompute commit
// together.
type Reconciler struct {
	treatments TreatmentRepository
	payments   PaymentRepository
	records    Records
	tx         db.Transactor
	logger     zerolog.Logger
	metrics    *metrics.Collector
}

func NewReconciler(treatments TreatmentRepository, payments PaymentRepository, records Records,
	tx db.Transactor, logger zerolog.Logger, m *metrics.Collector) *Reconciler {
	return &Reconciler{
		treatments: treatments,
		payments:   payments,
		records:    records,
		tx:         tx,
		logger:     logger,
		metrics:    m,
	}
}

// RecomputeTreatmentBalance sets amount_paid to the sum of the treatment's
// payments and remaining_balance to max(0, cost - amount_paid), then
// recomputes the owning record's total.
func (r *Reconciler) RecomputeTreatmentBalance(ctx context.Context, treatmentID uuid.UUID) (*Treatment, error) {
	var t *Treatment
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		t, err = r.treatments.GetByIDForUpdate(ctx, treatmentID)
		if err != nil {
			return err
		}
		paid, err := r.payments.SumByTreatment(ctx, treatmentID)
		if err != nil {
			return err
		}
		t.AmountPaid = paid
		t.RemainingBalance = Remaining(t.Cost, paid)
		if err := r.treatments.SetBalance(ctx, t.ID, t.AmountPaid, t.RemainingBalance); err != nil {
			return err
		}
		_, err = r.RecomputePatientBalance(ctx, t.PatientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.metrics.BalanceRecomputed("treatment")
	return t, nil
}

// RecomputePatientBalance sets total_balance to the sum of remaining
// balances across the record's treatments.
func (r *Reconciler) RecomputePatientBalance(ctx context.Context, recordID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := r.records.GetByIDForUpdate(ctx, recordID); err != nil {
			return err
		}
		var err error
		total, err = r.treatments.SumRemainingByPatient(ctx, recordID)
		if err != nil {
			return err
		}
		return r.records.SetTotalBalance(ctx, recordID, total)
	})
	if err != nil {
		return decimal.Zero, err
	}
	r.metrics.BalanceRecomputed("patient")
	r.logger.Debug().Str("patient_id", recordID.String()).Str("total_balance", total.StringFixed(2)).
		Msg("patient balance recomputed")
	return total, nil
}
