package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const recordCols = `id, first_name, last_name, birth_date, gender, phone, email, address,
	medical_history, allergies, last_visit, user_ref, has_account, total_balance,
	created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		r         Record
		birth     time.Time
		lastVisit *time.Time
	)
	err := row.Scan(&r.ID, &r.FirstName, &r.LastName, &birth, &r.Gender, &r.Phone, &r.Email,
		&r.Address, &r.MedicalHistory, &r.Allergies, &lastVisit, &r.UserRef, &r.HasAccount,
		&r.TotalBalance, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("scan patient", err)
	}
	r.BirthDate = date.Of(birth)
	r.LastVisit = date.OfPtr(lastVisit)
	return &r, nil
}

func collect(rows pgx.Rows) ([]*Record, error) {
	defer rows.Close()
	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("list patients", err)
	}
	return out, nil
}

func (p *repoPG) Create(ctx context.Context, r *Record) error {
	r.ID = uuid.New()
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	r.HasAccount = r.UserRef != nil

	_, err := db.Conn(ctx, p.pool).Exec(ctx, `
		INSERT INTO patient (id, first_name, last_name, birth_date, gender, phone, email, address,
			medical_history, allergies, last_visit, user_ref, has_account, total_balance,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		r.ID, r.FirstName, r.LastName, r.BirthDate.Time, r.Gender, r.Phone, r.Email, r.Address,
		r.MedicalHistory, r.Allergies, r.LastVisit.TimePtr(), r.UserRef, r.HasAccount, r.TotalBalance,
		r.CreatedAt, r.UpdatedAt)
	return apperr.Dependency("insert patient", err)
}

func (p *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient WHERE id = $1`, id))
}

func (p *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient WHERE id = $1 FOR UPDATE`, id))
}

func (p *repoPG) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Record, error) {
	return scanRecord(db.Conn(ctx, p.pool).QueryRow(ctx,
		`SELECT `+recordCols+` FROM patient WHERE user_ref = $1`, accountID))
}

func (p *repoPG) Update(ctx context.Context, r *Record) error {
	r.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE patient SET first_name = $2, last_name = $3, birth_date = $4, gender = $5, phone = $6,
			email = $7, address = $8, medical_history = $9, allergies = $10, last_visit = $11,
			updated_at = $12
		WHERE id = $1`,
		r.ID, r.FirstName, r.LastName, r.BirthDate.Time, r.Gender, r.Phone, r.Email, r.Address,
		r.MedicalHistory, r.Allergies, r.LastVisit.TimePtr(), r.UpdatedAt)
	if err != nil {
		return apperr.Dependency("update patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (p *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("delete patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (p *repoPG) List(ctx context.Context, query string, limit, offset int) ([]*Record, int, error) {
	where := ""
	args := []any{}
	if query != "" {
		where = ` WHERE (first_name || ' ' || last_name) ILIKE $1`
		args = append(args, "%"+likeEscape(query)+"%")
	}

	conn := db.Conn(ctx, p.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM patient`+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Dependency("count patients", err)
	}

	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, fmt.Sprintf(`SELECT `+recordCols+` FROM patient`+where+
		` ORDER BY last_name, first_name LIMIT $%d OFFSET $%d`, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, apperr.Dependency("list patients", err)
	}
	items, err := collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (p *repoPG) SearchUnlinked(ctx context.Context, c Criteria) ([]*Record, error) {
	rows, err := db.Conn(ctx, p.pool).Query(ctx, `
		SELECT `+recordCols+` FROM patient
		WHERE user_ref IS NULL
		  AND (first_name || ' ' || last_name) ILIKE $1
		  AND birth_date = $2
		  AND COALESCE(phone, '') ILIKE $3
		ORDER BY last_name, first_name`,
		"%"+likeEscape(c.Name)+"%", c.BirthDate.Time, "%"+likeEscape(c.Phone)+"%")
	if err != nil {
		return nil, apperr.Dependency("search patients", err)
	}
	return collect(rows)
}

func (p *repoPG) LinkAccount(ctx context.Context, id, accountID uuid.UUID, email *string) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx, `
		UPDATE patient SET user_ref = $2, has_account = TRUE, email = COALESCE($3, email), updated_at = NOW()
		WHERE id = $1`, id, accountID, email)
	if err != nil {
		return apperr.Dependency("link patient", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (p *repoPG) SetTotalBalance(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	tag, err := db.Conn(ctx, p.pool).Exec(ctx,
		`UPDATE patient SET total_balance = $2, updated_at = NOW() WHERE id = $1`, id, total)
	if err != nil {
		return apperr.Dependency("set patient balance", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

var likeReplacer = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likeEscape(s string) string {
	return likeReplacer.Replace(strings.TrimSpace(s))
}
