package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/billing"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/pagination"
)

type treatmentRepo struct{ d *DB }

func copyPlan(t *billing.Treatment) billing.Treatment {
	out := *t
	if t.InstallmentPlan != nil {
		out.InstallmentPlan = append([]byte(nil), t.InstallmentPlan...)
	}
	return out
}

func (r treatmentRepo) Create(_ context.Context, t *billing.Treatment) error {
	err := r.d.begin("billing.CreateTreatment")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.patients[t.PatientID]; !ok {
		return apperr.ErrNotFound
	}
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	r.d.t.treatments[t.ID] = copyPlan(t)
	r.d.nextSeq(t.ID)
	return nil
}

func (r treatmentRepo) get(id uuid.UUID) (*billing.Treatment, error) {
	t, ok := r.d.t.treatments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	out := copyPlan(&t)
	return &out, nil
}

func (r treatmentRepo) GetByID(_ context.Context, id uuid.UUID) (*billing.Treatment, error) {
	err := r.d.begin("billing.GetTreatment")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r treatmentRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*billing.Treatment, error) {
	err := r.d.begin("billing.GetTreatmentForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r treatmentRepo) Update(_ context.Context, t *billing.Treatment) error {
	err := r.d.begin("billing.UpdateTreatment")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	current, ok := r.d.t.treatments[t.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	next := copyPlan(t)
	current.Description = next.Description
	current.Cost = next.Cost
	current.InstallmentPlan = next.InstallmentPlan
	current.Status = next.Status
	current.UpdatedAt = next.UpdatedAt
	r.d.t.treatments[t.ID] = current
	return nil
}

// Delete detaches payments, matching ON DELETE SET NULL.
func (r treatmentRepo) Delete(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("billing.DeleteTreatment")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.treatments[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.d.t.treatments, id)
	delete(r.d.t.order, id)
	for pid, p := range r.d.t.payments {
		if p.TreatmentID != nil && *p.TreatmentID == id {
			p.TreatmentID = nil
			r.d.t.payments[pid] = p
		}
	}
	return nil
}

func (r treatmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*billing.Treatment, error) {
	err := r.d.begin("billing.ListTreatments")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*billing.Treatment
	for _, t := range r.d.t.treatments {
		if t.PatientID == patientID {
			c := copyPlan(&t)
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return r.d.t.order[out[i].ID] < r.d.t.order[out[j].ID] })
	return out, nil
}

func (r treatmentRepo) SetBalance(_ context.Context, id uuid.UUID, paid, remaining decimal.Decimal) error {
	err := r.d.begin("billing.SetBalance")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	t, ok := r.d.t.treatments[id]
	if !ok {
		return apperr.ErrNotFound
	}
	t.AmountPaid = paid
	t.RemainingBalance = remaining
	t.UpdatedAt = time.Now().UTC()
	r.d.t.treatments[id] = t
	return nil
}

func (r treatmentRepo) SumRemainingByPatient(_ context.Context, patientID uuid.UUID) (decimal.Decimal, error) {
	err := r.d.begin("billing.SumRemainingByPatient")
	defer r.d.mu.Unlock()
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, t := range r.d.t.treatments {
		if t.PatientID == patientID {
			total = total.Add(t.RemainingBalance)
		}
	}
	return total, nil
}

type paymentRepo struct{ d *DB }

func (r paymentRepo) Create(_ context.Context, p *billing.Payment) error {
	err := r.d.begin("billing.CreatePayment")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.patients[p.PatientID]; !ok {
		return apperr.ErrNotFound
	}
	if p.TreatmentID != nil {
		if _, ok := r.d.t.treatments[*p.TreatmentID]; !ok {
			return apperr.ErrNotFound
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()
	r.d.t.payments[p.ID] = *p
	r.d.nextSeq(p.ID)
	return nil
}

func (r paymentRepo) GetByID(_ context.Context, id uuid.UUID) (*billing.Payment, error) {
	err := r.d.begin("billing.GetPayment")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	p, ok := r.d.t.payments[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (r paymentRepo) Delete(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("billing.DeletePayment")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.payments[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.d.t.payments, id)
	delete(r.d.t.order, id)
	return nil
}

func (r paymentRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*billing.Payment, int, error) {
	err := r.d.begin("billing.ListPayments")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	var all []*billing.Payment
	for _, p := range r.d.t.payments {
		p := p
		if p.PatientID == patientID {
			all = append(all, &p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].PaidOn.Equal(all[j].PaidOn) {
			return all[i].PaidOn.After(all[j].PaidOn.Time)
		}
		return r.d.t.order[all[i].ID] > r.d.t.order[all[j].ID]
	})
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func (r paymentRepo) SumByTreatment(_ context.Context, treatmentID uuid.UUID) (decimal.Decimal, error) {
	err := r.d.begin("billing.SumByTreatment")
	defer r.d.mu.Unlock()
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range r.d.t.payments {
		if p.TreatmentID != nil && *p.TreatmentID == treatmentID {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}
