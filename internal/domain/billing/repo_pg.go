package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

// -- Treatment Repository --

type treatmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewTreatmentRepo(pool *pgxpool.Pool) TreatmentRepository {
	return &treatmentRepoPG{pool: pool}
}

const treatmentCols = `id, patient_id, description, cost, amount_paid, remaining_balance,
	installment_plan, status, created_at, updated_at`

func scanTreatment(row pgx.Row) (*Treatment, error) {
	var (
		t    Treatment
		plan []byte
	)
	err := row.Scan(&t.ID, &t.PatientID, &t.Description, &t.Cost, &t.AmountPaid, &t.RemainingBalance,
		&plan, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("scan treatment", err)
	}
	if len(plan) > 0 {
		t.InstallmentPlan = plan
	}
	return &t, nil
}

// planArg encodes an absent plan as SQL NULL.
func planArg(t *Treatment) any {
	if len(t.InstallmentPlan) == 0 || string(t.InstallmentPlan) == "null" {
		return nil
	}
	return []byte(t.InstallmentPlan)
}

func (r *treatmentRepoPG) Create(ctx context.Context, t *Treatment) error {
	t.ID = uuid.New()
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now

	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO treatment (id, patient_id, description, cost, amount_paid, remaining_balance,
			installment_plan, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		t.ID, t.PatientID, t.Description, t.Cost, t.AmountPaid, t.RemainingBalance,
		planArg(t), t.Status, t.CreatedAt, t.UpdatedAt)
	return apperr.Dependency("insert treatment", err)
}

func (r *treatmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return scanTreatment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatment WHERE id = $1`, id))
}

func (r *treatmentRepoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Treatment, error) {
	return scanTreatment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+treatmentCols+` FROM treatment WHERE id = $1 FOR UPDATE`, id))
}

func (r *treatmentRepoPG) Update(ctx context.Context, t *Treatment) error {
	t.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE treatment SET description = $2, cost = $3, installment_plan = $4, status = $5, updated_at = $6
		WHERE id = $1`,
		t.ID, t.Description, t.Cost, planArg(t), t.Status, t.UpdatedAt)
	if err != nil {
		return apperr.Dependency("update treatment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *treatmentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM treatment WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("delete treatment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *treatmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Treatment, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT `+treatmentCols+` FROM treatment WHERE patient_id = $1 ORDER BY created_at`, patientID)
	if err != nil {
		return nil, apperr.Dependency("list treatments", err)
	}
	defer rows.Close()

	var items []*Treatment
	for rows.Next() {
		t, err := scanTreatment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("list treatments", err)
	}
	return items, nil
}

func (r *treatmentRepoPG) SetBalance(ctx context.Context, id uuid.UUID, paid, remaining decimal.Decimal) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE treatment SET amount_paid = $2, remaining_balance = $3, updated_at = NOW()
		WHERE id = $1`, id, paid, remaining)
	if err != nil {
		return apperr.Dependency("set treatment balance", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *treatmentRepoPG) SumRemainingByPatient(ctx context.Context, patientID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(remaining_balance), 0) FROM treatment WHERE patient_id = $1`, patientID).
		Scan(&total)
	if err != nil {
		return decimal.Zero, apperr.Dependency("sum remaining balance", err)
	}
	return total, nil
}

// -- Payment Repository --

type paymentRepoPG struct {
	pool *pgxpool.Pool
}

func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepoPG{pool: pool}
}

const paymentCols = `id, patient_id, treatment_id, amount, method, status, paid_on, reference, notes, created_at`

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		paidOn time.Time
	)
	err := row.Scan(&p.ID, &p.PatientID, &p.TreatmentID, &p.Amount, &p.Method, &p.Status, &paidOn,
		&p.Reference, &p.Notes, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("scan payment", err)
	}
	p.PaidOn = date.Of(paidOn)
	return &p, nil
}

func (r *paymentRepoPG) Create(ctx context.Context, p *Payment) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now().UTC()

	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO payment (id, patient_id, treatment_id, amount, method, status, paid_on, reference, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.PatientID, p.TreatmentID, p.Amount, p.Method, p.Status, p.PaidOn.Time,
		p.Reference, p.Notes, p.CreatedAt)
	return apperr.Dependency("insert payment", err)
}

func (r *paymentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return scanPayment(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+paymentCols+` FROM payment WHERE id = $1`, id))
}

func (r *paymentRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM payment WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("delete payment", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *paymentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Payment, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM payment WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, apperr.Dependency("count payments", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+paymentCols+` FROM payment WHERE patient_id = $1
		ORDER BY paid_on DESC, created_at DESC LIMIT $2 OFFSET $3`, patientID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency("list payments", err)
	}
	defer rows.Close()

	var items []*Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Dependency("list payments", err)
	}
	return items, total, nil
}

func (r *paymentRepoPG) SumByTreatment(ctx context.Context, treatmentID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM payment WHERE treatment_id = $1`, treatmentID).Scan(&total)
	if err != nil {
		return decimal.Zero, apperr.Dependency("sum payments", err)
	}
	return total, nil
}
