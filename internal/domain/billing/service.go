package billing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

// Service owns treatment and payment writes. Every write runs in one
// transaction with the reconciliation it triggers.
type Service struct {
	treatments TreatmentRepository
	payments   PaymentRepository
	records    Records
	reconciler *Reconciler
	tx         db.Transactor
	logger     zerolog.Logger
	metrics    *metrics.Collector

	now func() time.Time
}

func NewService(treatments TreatmentRepository, payments PaymentRepository, records Records,
	reconciler *Reconciler, tx db.Transactor, logger zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		treatments: treatments,
		payments:   payments,
		records:    records,
		reconciler: reconciler,
		tx:         tx,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

func validMoney(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}

func validateTreatment(t *Treatment) error {
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		return apperr.Validation("description is required")
	}
	if t.Cost.IsNegative() {
		return apperr.Validation("cost must not be negative")
	}
	if !validMoney(t.Cost) {
		return apperr.Validation("cost must have at most 2 decimal places")
	}
	if t.Status == "" {
		t.Status = "planned"
	}
	if !validTreatmentStatuses[t.Status] {
		return apperr.Validation("invalid treatment status: %s", t.Status)
	}
	return nil
}

// -- Treatments --

func (s *Service) CreateTreatment(ctx context.Context, t *Treatment) error {
	if err := validateTreatment(t); err != nil {
		return err
	}
	t.AmountPaid = decimal.Zero
	t.RemainingBalance = t.Cost

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.records.GetByID(ctx, t.PatientID); err != nil {
			return err
		}
		if err := s.treatments.Create(ctx, t); err != nil {
			return err
		}
		updated, err := s.reconciler.RecomputeTreatmentBalance(ctx, t.ID)
		if err != nil {
			return err
		}
		*t = *updated
		return nil
	})
}

func (s *Service) GetTreatment(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return s.treatments.GetByID(ctx, id)
}

func (s *Service) ListTreatments(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error) {
	return s.treatments.ListByPatient(ctx, patientID)
}

// UpdateTreatment rewrites the editable fields and recomputes, since the
// cost may have changed.
func (s *Service) UpdateTreatment(ctx context.Context, t *Treatment) error {
	if err := validateTreatment(t); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.treatments.GetByIDForUpdate(ctx, t.ID)
		if err != nil {
			return err
		}
		t.PatientID = current.PatientID
		if err := s.treatments.Update(ctx, t); err != nil {
			return err
		}
		updated, err := s.reconciler.RecomputeTreatmentBalance(ctx, t.ID)
		if err != nil {
			return err
		}
		*t = *updated
		return nil
	})
}

// DeleteTreatment removes the treatment. Its payments stay on the record,
// detached.
func (s *Service) DeleteTreatment(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.treatments.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.treatments.Delete(ctx, id); err != nil {
			return err
		}
		_, err = s.reconciler.RecomputePatientBalance(ctx, t.PatientID)
		return err
	})
}

// -- Payments --

func validatePayment(p *Payment) error {
	if p.PatientID == uuid.Nil {
		return apperr.Validation("patient_id is required")
	}
	if !p.Amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	if !validMoney(p.Amount) {
		return apperr.Validation("amount must have at most 2 decimal places")
	}
	p.Method = strings.ToLower(strings.TrimSpace(p.Method))
	if !validPaymentMethods[p.Method] {
		return apperr.Validation("invalid payment method: %s", p.Method)
	}
	if p.Status == "" {
		p.Status = "completed"
	}
	if !validPaymentStatuses[p.Status] {
		return apperr.Validation("invalid payment status: %s", p.Status)
	}
	return nil
}

// RecordPayment stores a payment and reconciles the balances it affects.
// A payment without a treatment only touches the record total.
func (s *Service) RecordPayment(ctx context.Context, p *Payment) error {
	if err := validatePayment(p); err != nil {
		return err
	}
	if p.PaidOn.IsZero() {
		p.PaidOn = date.Of(s.now())
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.records.GetByID(ctx, p.PatientID); err != nil {
			return err
		}
		if p.TreatmentID != nil {
			t, err := s.treatments.GetByID(ctx, *p.TreatmentID)
			if err != nil {
				return err
			}
			if t.PatientID != p.PatientID {
				return apperr.Validation("treatment belongs to another patient")
			}
		}
		if err := s.payments.Create(ctx, p); err != nil {
			return err
		}
		return s.reconcile(ctx, p)
	})
	if err != nil {
		return err
	}

	s.metrics.PaymentRecorded()
	s.logger.Info().Str("payment_id", p.ID.String()).Str("patient_id", p.PatientID.String()).
		Str("amount", p.Amount.StringFixed(2)).Msg("payment recorded")
	return nil
}

// DeletePayment removes a payment and reconciles the balances it affected.
func (s *Service) DeletePayment(ctx context.Context, id uuid.UUID) error {
	var p *Payment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.payments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.payments.Delete(ctx, id); err != nil {
			return err
		}
		return s.reconcile(ctx, p)
	})
	if err != nil {
		return err
	}

	s.metrics.PaymentDeleted()
	s.logger.Info().Str("payment_id", id.String()).Str("patient_id", p.PatientID.String()).
		Msg("payment deleted")
	return nil
}

func (s *Service) reconcile(ctx context.Context, p *Payment) error {
	if p.TreatmentID != nil {
		_, err := s.reconciler.RecomputeTreatmentBalance(ctx, *p.TreatmentID)
		return err
	}
	_, err := s.reconciler.RecomputePatientBalance(ctx, p.PatientID)
	return err
}

func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return s.payments.GetByID(ctx, id)
}

func (s *Service) ListPayments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	return s.payments.ListByPatient(ctx, patientID, limit, offset)
}

// RecomputePatientBalance reconciles a record on demand.
func (s *Service) RecomputePatientBalance(ctx context.Context, recordID uuid.UUID) (decimal.Decimal, error) {
	return s.reconciler.RecomputePatientBalance(ctx, recordID)
}
