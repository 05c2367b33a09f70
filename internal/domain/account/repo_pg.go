package account

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
)

const handleConstraint = "account_handle_key"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const accountCols = `id, handle, verifier_hash, display_name, email, phone, role, position,
	first_login, status, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Handle, &a.VerifierHash, &a.DisplayName, &a.Email, &a.Phone,
		&a.Role, &a.Position, &a.FirstLogin, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("scan account", err)
	}
	return &a, nil
}

func writeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if db.IsUniqueViolation(err, handleConstraint) {
		return apperr.ErrDuplicateHandle
	}
	return apperr.Dependency(op, err)
}

func (r *repoPG) Insert(ctx context.Context, a *Account) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO account (id, handle, verifier_hash, display_name, email, phone, role, position,
			first_login, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		a.ID, a.Handle, a.VerifierHash, a.DisplayName, a.Email, a.Phone, a.Role, a.Position,
		a.FirstLogin, a.Status, a.CreatedAt, a.UpdatedAt)
	return writeErr("insert account", err)
}

func (r *repoPG) TryInsert(ctx context.Context, a *Account) (bool, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now

	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO account (id, handle, verifier_hash, display_name, email, phone, role, position,
			first_login, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT ON CONSTRAINT `+handleConstraint+` DO NOTHING`,
		a.ID, a.Handle, a.VerifierHash, a.DisplayName, a.Email, a.Phone, a.Role, a.Position,
		a.FirstLogin, a.Status, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return false, apperr.Dependency("insert account", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1`, id))
}

func (r *repoPG) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) GetByHandle(ctx context.Context, handle string) (*Account, error) {
	return scanAccount(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+accountCols+` FROM account WHERE handle = $1`, handle))
}

func (r *repoPG) HandleExists(ctx context.Context, handle string, exclude *uuid.UUID) (bool, error) {
	var exists bool
	err := db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM account WHERE handle = $1 AND ($2::uuid IS NULL OR id <> $2))`,
		handle, exclude).Scan(&exists)
	if err != nil {
		return false, apperr.Dependency("check handle", err)
	}
	return exists, nil
}

func (r *repoPG) HandlesLike(ctx context.Context, base string) ([]string, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx,
		`SELECT handle FROM account WHERE handle ~ $1`,
		"^"+regexp.QuoteMeta(base)+"[0-9]*$")
	if err != nil {
		return nil, apperr.Dependency("list handles", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, apperr.Dependency("scan handle", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Dependency("list handles", err)
	}
	return out, nil
}

func (r *repoPG) Update(ctx context.Context, a *Account) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE account SET handle = $2, display_name = $3, email = $4, phone = $5, role = $6,
			position = $7, first_login = $8, status = $9, updated_at = $10
		WHERE id = $1`,
		a.ID, a.Handle, a.DisplayName, a.Email, a.Phone, a.Role, a.Position,
		a.FirstLogin, a.Status, a.UpdatedAt)
	if err != nil {
		return writeErr("update account", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) UpdateVerifier(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE account SET verifier_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return apperr.Dependency("update verifier", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM account WHERE id = $1`, id)
	return apperr.Dependency("delete account", err)
}
