package patient

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
)

// AccountRemover deletes the account linked to a record.
type AccountRemover interface {
	DeleteAccount(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	repo     Repository
	tx       db.Transactor
	accounts AccountRemover
	logger   zerolog.Logger
}

func NewService(repo Repository, tx db.Transactor, accounts AccountRemover, logger zerolog.Logger) *Service {
	return &Service{repo: repo, tx: tx, accounts: accounts, logger: logger}
}

func validate(r *Record) error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.FirstName == "" || r.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	if r.BirthDate.IsZero() {
		return apperr.Validation("birth_date is required")
	}
	return nil
}

// Create stores a new unlinked record with a zero balance.
func (s *Service) Create(ctx context.Context, r *Record) error {
	if err := validate(r); err != nil {
		return err
	}
	r.UserRef = nil
	r.HasAccount = false
	r.TotalBalance = decimal.Zero
	return s.repo.Create(ctx, r)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, query string, limit, offset int) ([]*Record, int, error) {
	return s.repo.List(ctx, query, limit, offset)
}

func (s *Service) Update(ctx context.Context, r *Record) error {
	if err := validate(r); err != nil {
		return err
	}
	return s.repo.Update(ctx, r)
}

// Delete removes the record and the account linked to it in one transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		if r.UserRef != nil {
			if err := s.accounts.DeleteAccount(ctx, *r.UserRef); err != nil {
				return err
			}
			s.logger.Info().Str("patient_id", id.String()).Str("account_id", r.UserRef.String()).
				Msg("linked account removed with record")
		}
		return nil
	})
}

// RecordIDForAccount returns the record linked to accountID, or nil.
func (s *Service) RecordIDForAccount(ctx context.Context, accountID uuid.UUID) (*uuid.UUID, error) {
	r, err := s.repo.GetByAccount(ctx, accountID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r.ID, nil
}
