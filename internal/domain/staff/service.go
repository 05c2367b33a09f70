package staff

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
)

const (
	secretLength       = 12
	maxHandleAttempts  = 5
	maxBaseHandleRunes = 90
)

// Service is the staff credential lifecycle manager.
type Service struct {
	repo     Repository
	accounts *account.Store
	tx       db.Transactor
	logger   zerolog.Logger
	metrics  *metrics.Collector

	// secret generates one-time secrets; replaced in tests.
	secret func() (string, error)
}

func NewService(repo Repository, accounts *account.Store, tx db.Transactor, logger zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		tx:       tx,
		logger:   logger,
		metrics:  m,
		secret: func() (string, error) {
			return auth.RandomString(auth.UpperAlphanumeric, secretLength)
		},
	}
}

func validate(p *Profile) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return apperr.Validation("first_name and last_name are required")
	}
	_, err := RoleFor(p.Position)
	return err
}

func (s *Service) Create(ctx context.Context, p *Profile) error {
	if err := validate(p); err != nil {
		return err
	}
	p.UserRef = nil
	p.GeneratedCode = nil
	p.IsCodeUsed = false
	return s.repo.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Profile, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Profile, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update writes profile fields. A position change is mirrored onto the
// linked account's role.
func (s *Service) Update(ctx context.Context, p *Profile) error {
	if err := validate(p); err != nil {
		return err
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetByIDForUpdate(ctx, p.ID)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, p); err != nil {
			return err
		}
		if current.UserRef == nil || current.Position == p.Position {
			return nil
		}
		role, _ := RoleFor(p.Position)
		pos := string(p.Position)
		return s.accounts.SetRole(ctx, *current.UserRef, role, &pos)
	})
}

// Delete removes the profile and its linked account in one transaction.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		if p.UserRef != nil {
			return s.accounts.DeleteAccount(ctx, *p.UserRef)
		}
		return nil
	})
}

// IssueCredentials creates a pending login for the profile, replacing an
// unused one. Fails with ErrAlreadyActivated once the profile's credentials
// have been used.
func (s *Service) IssueCredentials(ctx context.Context, profileID uuid.UUID) (*IssuedCredentials, error) {
	// Check state and pay the hashing cost before taking any locks.
	p, err := s.repo.GetByID(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if p.IsCodeUsed {
		return nil, apperr.ErrAlreadyActivated
	}
	role, err := RoleFor(p.Position)
	if err != nil {
		return nil, err
	}

	secret, err := s.secret()
	if err != nil {
		return nil, err
	}
	base := truncateRunes(BaseHandle(p.DisplayName()), maxBaseHandleRunes)
	position := string(p.Position)
	acct, err := s.accounts.Prepare(account.NewAccount{
		Handle:      base,
		Secret:      secret,
		DisplayName: p.DisplayName(),
		Email:       p.Email,
		Phone:       p.Phone,
		Role:        role,
		Position:    &position,
		FirstLogin:  true,
		Status:      account.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	var previous *uuid.UUID
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		locked, err := s.repo.GetByIDForUpdate(ctx, profileID)
		if err != nil {
			return err
		}
		if locked.IsCodeUsed {
			return apperr.ErrAlreadyActivated
		}

		previous = locked.UserRef
		if previous != nil {
			if err := s.accounts.DeleteAccount(ctx, *previous); err != nil {
				return err
			}
		}

		if err := s.allocateHandle(ctx, base, acct); err != nil {
			return err
		}
		return s.repo.SetCredentials(ctx, profileID, acct.ID, secret)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CredentialIssued()
	ev := s.logger.Info().Str("profile_id", profileID.String()).Str("account_id", acct.ID.String()).
		Str("username", acct.Handle)
	if previous != nil {
		ev = ev.Str("replaced_account_id", previous.String())
	}
	ev.Msg("staff credentials issued")

	return &IssuedCredentials{
		ProfileID: profileID,
		AccountID: acct.ID,
		Username:  acct.Handle,
		Secret:    secret,
		Role:      role,
	}, nil
}

// allocateHandle inserts acct under base or base plus the next free numeric
// suffix. A concurrent insert of the same candidate makes the conditional
// insert skip, and the next attempt re-reads the taken handles.
func (s *Service) allocateHandle(ctx context.Context, base string, acct *account.Account) error {
	for attempt := 0; attempt < maxHandleAttempts; attempt++ {
		taken, err := s.accounts.HandlesLike(ctx, base)
		if err != nil {
			return err
		}
		acct.Handle = NextHandle(base, taken)
		ok, err := s.accounts.TryInsert(ctx, acct)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.logger.Debug().Str("username", acct.Handle).Int("attempt", attempt+1).Msg("username taken, retrying")
	}
	return apperr.Wrap(apperr.ErrDuplicateHandle, "could not allocate a unique username", nil)
}

// NextHandle returns base when unused, else base followed by one more than
// the largest numeric suffix in taken.
func NextHandle(base string, taken []string) string {
	used := false
	highest := 0
	for _, h := range taken {
		if h == base {
			used = true
			continue
		}
		suffix := strings.TrimPrefix(h, base)
		if suffix == h || suffix == "" {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		used = true
		if n > highest {
			highest = n
		}
	}
	if !used {
		return base
	}
	return base + strconv.Itoa(highest+1)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimRight(string(r[:n]), ".")
}

// OnFirstAuthentication activates a pending staff account and marks its
// profile's code as used. Calling it for an already active account does
// nothing.
func (s *Service) OnFirstAuthentication(ctx context.Context, accountID uuid.UUID) error {
	activated := false
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Profile first, matching the lock order of IssueCredentials.
		p, err := s.repo.GetByAccountForUpdate(ctx, accountID)
		if err != nil && !errors.Is(err, apperr.ErrNotFound) {
			return err
		}

		a, err := s.accounts.GetForUpdate(ctx, accountID)
		if errors.Is(err, apperr.ErrNotFound) {
			// replaced by a concurrent regeneration
			return apperr.ErrInvalidCredentials
		}
		if err != nil {
			return err
		}
		if a.Status != account.StatusPending || !a.FirstLogin {
			return nil
		}

		if err := s.accounts.Activate(ctx, a); err != nil {
			return err
		}
		if p != nil {
			if err := s.repo.MarkCodeUsed(ctx, p.ID); err != nil {
				return err
			}
		}
		activated = true
		return nil
	})
	if err != nil {
		return err
	}
	if activated {
		s.metrics.FirstLogin()
		s.logger.Info().Str("account_id", accountID.String()).Msg("staff credentials activated")
	}
	return nil
}
