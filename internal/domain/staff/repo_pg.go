package staff

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const profileCols = `id, first_name, last_name, position, email, phone, user_ref, generated_code,
	is_code_used, created_at, updated_at`

func scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Position, &p.Email, &p.Phone, &p.UserRef,
		&p.GeneratedCode, &p.IsCodeUsed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("scan staff profile", err)
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Profile) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now

	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO staff_profile (id, first_name, last_name, position, email, phone, user_ref,
			generated_code, is_code_used, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.FirstName, p.LastName, p.Position, p.Email, p.Phone, p.UserRef,
		p.GeneratedCode, p.IsCodeUsed, p.CreatedAt, p.UpdatedAt)
	return apperr.Dependency("insert staff profile", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM staff_profile WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM staff_profile WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetByAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*Profile, error) {
	return scanProfile(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+profileCols+` FROM staff_profile WHERE user_ref = $1 FOR UPDATE`, accountID))
}

func (r *repoPG) Update(ctx context.Context, p *Profile) error {
	p.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE staff_profile SET first_name = $2, last_name = $3, position = $4, email = $5,
			phone = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Position, p.Email, p.Phone, p.UpdatedAt)
	if err != nil {
		return apperr.Dependency("update staff profile", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM staff_profile WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("delete staff profile", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM staff_profile`).Scan(&total); err != nil {
		return nil, 0, apperr.Dependency("count staff", err)
	}

	rows, err := conn.Query(ctx, `SELECT `+profileCols+` FROM staff_profile
		ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, apperr.Dependency("list staff", err)
	}
	defer rows.Close()

	var items []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperr.Dependency("list staff", err)
	}
	return items, total, nil
}

func (r *repoPG) SetCredentials(ctx context.Context, id, accountID uuid.UUID, code string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE staff_profile SET user_ref = $2, generated_code = $3, is_code_used = FALSE, updated_at = NOW()
		WHERE id = $1`, id, accountID, code)
	if err != nil {
		return apperr.Dependency("set staff credentials", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) MarkCodeUsed(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE staff_profile SET is_code_used = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("mark code used", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}
