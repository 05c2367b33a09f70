package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists accounts. Implementations return apperr.ErrNotFound
// for missing rows and apperr.ErrDuplicateHandle when the handle unique
// constraint rejects a write.
type Repository interface {
	Insert(ctx context.Context, a *Account) error
	// TryInsert inserts a unless its handle is taken, reporting whether the
	// row was written. It never aborts the surrounding transaction.
	TryInsert(ctx context.Context, a *Account) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	GetByHandle(ctx context.Context, handle string) (*Account, error)
	HandleExists(ctx context.Context, handle string, exclude *uuid.UUID) (bool, error)
	// HandlesLike returns existing handles equal to base or base followed
	// only by digits.
	HandlesLike(ctx context.Context, base string) ([]string, error)
	Update(ctx context.Context, a *Account) error
	UpdateVerifier(ctx context.Context, id uuid.UUID, hash string) error
	Delete(ctx context.Context, id uuid.UUID) error
}
