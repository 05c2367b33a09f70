package staff

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Profile, error)
	GetByAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*Profile, error)
	// Update writes name, position and contact fields only.
	Update(ctx context.Context, p *Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Profile, int, error)
	SetCredentials(ctx context.Context, id, accountID uuid.UUID, code string) error
	MarkCodeUsed(ctx context.Context, id uuid.UUID) error
}
