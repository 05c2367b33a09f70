package claiming

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

func (r *repoPG) Create(ctx context.Context, ch *Challenge) error {
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO claim_challenge (id, patient_id, code, expires_at, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ch.ID, ch.PatientID, ch.Code, ch.ExpiresAt, ch.Verified, ch.CreatedAt)
	return apperr.Dependency("insert challenge", err)
}

func (r *repoPG) DeleteUnverified(ctx context.Context, patientID uuid.UUID) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM claim_challenge WHERE patient_id = $1 AND NOT verified`, patientID)
	return apperr.Dependency("delete challenges", err)
}

func (r *repoPG) LatestForUpdate(ctx context.Context, patientID uuid.UUID, code string) (*Challenge, error) {
	var ch Challenge
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, patient_id, code, expires_at, verified, created_at
		FROM claim_challenge
		WHERE patient_id = $1 AND code = $2
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`, patientID, code).
		Scan(&ch.ID, &ch.PatientID, &ch.Code, &ch.ExpiresAt, &ch.Verified, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Dependency("get challenge", err)
	}
	return &ch, nil
}

func (r *repoPG) MarkVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`UPDATE claim_challenge SET verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return apperr.Dependency("verify challenge", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) Prune(ctx context.Context, now time.Time) (int64, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx,
		`DELETE FROM claim_challenge WHERE expires_at < $1`, now)
	if err != nil {
		return 0, apperr.Dependency("prune challenges", err)
	}
	return tag.RowsAffected(), nil
}
