package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
)

const (
	minSecretLen = 8
	maxHandleLen = 100
)

// Store is the credential store: account creation, authentication and
// profile maintenance.
type Store struct {
	repo     Repository
	verifier auth.Verifier
	logger   zerolog.Logger

	dummyOnce sync.Once
	dummyHash string
}

func NewStore(repo Repository, verifier auth.Verifier, logger zerolog.Logger) *Store {
	return &Store{repo: repo, verifier: verifier, logger: logger}
}

func validateHandle(h string) error {
	if h == "" {
		return apperr.Validation("username is required")
	}
	if len(h) > maxHandleLen {
		return apperr.Validation("username must be at most %d characters", maxHandleLen)
	}
	if strings.ContainsAny(h, " \t\r\n") {
		return apperr.Validation("username must not contain whitespace")
	}
	return nil
}

// Prepare validates in and hashes its secret without touching storage, so
// callers can pay the hashing cost before opening a transaction.
func (s *Store) Prepare(in NewAccount) (*Account, error) {
	handle := NormalizeHandle(in.Handle)
	if err := validateHandle(handle); err != nil {
		return nil, err
	}
	if len(in.Secret) < minSecretLen {
		return nil, apperr.Validation("password must be at least %d characters", minSecretLen)
	}
	if strings.TrimSpace(in.DisplayName) == "" {
		return nil, apperr.Validation("display name is required")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("invalid role: %s", in.Role)
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.Valid() {
		return nil, apperr.Validation("invalid status: %s", status)
	}

	hash, err := s.verifier.Hash(in.Secret)
	if err != nil {
		return nil, fmt.Errorf("prepare account: %w", err)
	}

	return &Account{
		ID:           uuid.New(),
		Handle:       handle,
		VerifierHash: hash,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		Email:        in.Email,
		Phone:        in.Phone,
		Role:         in.Role,
		Position:     in.Position,
		FirstLogin:   in.FirstLogin,
		Status:       status,
	}, nil
}

// Insert stores a prepared account. Fails with ErrDuplicateHandle.
func (s *Store) Insert(ctx context.Context, a *Account) error {
	return s.repo.Insert(ctx, a)
}

// TryInsert stores a prepared account unless its handle is taken.
func (s *Store) TryInsert(ctx context.Context, a *Account) (bool, error) {
	return s.repo.TryInsert(ctx, a)
}

// CreateAccount validates, hashes and stores a new account.
func (s *Store) CreateAccount(ctx context.Context, in NewAccount) (*Account, error) {
	a, err := s.Prepare(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.verifier.Hash("timing-equalizer-" + uuid.NewString())
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Authenticate checks handle and secret. Unknown handles, wrong secrets and
// inactive accounts all fail with the same ErrInvalidCredentials, and an
// unknown handle still costs one hash comparison.
func (s *Store) Authenticate(ctx context.Context, handle, secret string) (*Account, error) {
	a, err := s.repo.GetByHandle(ctx, NormalizeHandle(handle))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.verifier.Verify(secret, s.dummy())
			return nil, apperr.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.verifier.Verify(secret, a.VerifierHash) {
		return nil, apperr.ErrInvalidCredentials
	}
	if a.Status == StatusInactive {
		return nil, apperr.ErrInvalidCredentials
	}
	return a, nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByID(ctx, id)
}

// HandleTaken reports whether handle is used by any account.
func (s *Store) HandleTaken(ctx context.Context, handle string) (bool, error) {
	return s.repo.HandleExists(ctx, NormalizeHandle(handle), nil)
}

// UpdateVerifier replaces the account's secret.
func (s *Store) UpdateVerifier(ctx context.Context, id uuid.UUID, secret string) error {
	if len(secret) < minSecretLen {
		return apperr.Validation("password must be at least %d characters", minSecretLen)
	}
	hash, err := s.verifier.Hash(secret)
	if err != nil {
		return fmt.Errorf("update verifier: %w", err)
	}
	if err := s.repo.UpdateVerifier(ctx, id, hash); err != nil {
		return err
	}
	s.logger.Info().Str("account_id", id.String()).Msg("password changed")
	return nil
}

// ChangeVerifier verifies the current secret before replacing it.
func (s *Store) ChangeVerifier(ctx context.Context, id uuid.UUID, current, next string) error {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !s.verifier.Verify(current, a.VerifierHash) {
		return apperr.ErrInvalidCredentials
	}
	return s.UpdateVerifier(ctx, id, next)
}

// UpdateProfile applies a partial update. A new handle must be unused by
// every other account.
func (s *Store) UpdateProfile(ctx context.Context, id uuid.UUID, upd ProfileUpdate) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Handle != nil {
		h := NormalizeHandle(*upd.Handle)
		if err := validateHandle(h); err != nil {
			return nil, err
		}
		if h != a.Handle {
			taken, err := s.repo.HandleExists(ctx, h, &a.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, apperr.ErrDuplicateHandle
			}
			a.Handle = h
		}
	}
	if upd.DisplayName != nil {
		name := strings.TrimSpace(*upd.DisplayName)
		if name == "" {
			return nil, apperr.Validation("display name must not be empty")
		}
		a.DisplayName = name
	}
	if upd.Email != nil {
		a.Email = upd.Email
	}
	if upd.Phone != nil {
		a.Phone = upd.Phone
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, apperr.Validation("invalid status: %s", *upd.Status)
		}
		a.Status = *upd.Status
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccount removes an account. Only cascading deletes of the owning
// staff profile or clinical record call this.
func (s *Store) DeleteAccount(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// GetForUpdate reads and locks the account row inside the caller's
// transaction.
func (s *Store) GetForUpdate(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.repo.GetByIDForUpdate(ctx, id)
}

// HandlesLike lists handles equal to base or base plus a numeric suffix.
func (s *Store) HandlesLike(ctx context.Context, base string) ([]string, error) {
	return s.repo.HandlesLike(ctx, NormalizeHandle(base))
}

// Activate completes first authentication: pending becomes active and the
// first-login flag is cleared.
func (s *Store) Activate(ctx context.Context, a *Account) error {
	a.Status = StatusActive
	a.FirstLogin = false
	return s.repo.Update(ctx, a)
}

// SetRole changes role and position together.
func (s *Store) SetRole(ctx context.Context, id uuid.UUID, role Role, position *string) error {
	if !role.Valid() {
		return apperr.Validation("invalid role: %s", role)
	}
	a, err := s.repo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return err
	}
	a.Role = role
	a.Position = position
	return s.repo.Update(ctx, a)
}
