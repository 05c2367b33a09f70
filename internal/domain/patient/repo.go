package patient

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	Create(ctx context.Context, r *Record) error
	GetByID(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Record, error)
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Record, error)
	// Update writes demographic and medical fields only.
	Update(ctx context.Context, r *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query string, limit, offset int) ([]*Record, int, error)
	SearchUnlinked(ctx context.Context, c Criteria) ([]*Record, error)
	// LinkAccount sets user_ref and has_account together, replacing the
	// email when one is given.
	LinkAccount(ctx context.Context, id, accountID uuid.UUID, email *string) error
	SetTotalBalance(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
}
