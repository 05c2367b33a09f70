package claiming

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/notification"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

const codeLength = 6

// Records is the part of the clinical record store claiming needs.
type Records interface {
	GetByID(ctx context.Context, id uuid.UUID) (*patient.Record, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*patient.Record, error)
	SearchUnlinked(ctx context.Context, c patient.Criteria) ([]*patient.Record, error)
	LinkAccount(ctx context.Context, id, accountID uuid.UUID, email *string) error
}

// ResendLimiter throttles challenge dispatch per record. cache.Cooldown
// implements it. Release hands back a window whose send did not go out.
type ResendLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
	Release(ctx context.Context, key string) error
}

type Config struct {
	ChallengeTTL time.Duration
	SessionTTL   time.Duration
	ClinicName   string
}

type Service struct {
	records    Records
	accounts   *account.Store
	challenges Repository
	tx         db.Transactor
	dispatcher *notification.Dispatcher
	sessions   auth.SessionIssuer
	limiter    ResendLimiter
	cfg        Config
	logger     zerolog.Logger
	metrics    *metrics.Collector

	now  func() time.Time
	code func() (string, error)
}

func NewService(records Records, accounts *account.Store, challenges Repository, tx db.Transactor,
	dispatcher *notification.Dispatcher, sessions auth.SessionIssuer, cfg Config,
	logger zerolog.Logger, m *metrics.Collector) *Service {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = 10 * time.Minute
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	return &Service{
		records:    records,
		accounts:   accounts,
		challenges: challenges,
		tx:         tx,
		dispatcher: dispatcher,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
		code: func() (string, error) {
			return auth.RandomString(auth.Digits, codeLength)
		},
	}
}

// SetResendLimiter enables per-record dispatch throttling.
func (s *Service) SetResendLimiter(l ResendLimiter) {
	s.limiter = l
}

// reject counts a classified business-rule failure and returns err.
func (s *Service) reject(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind != apperr.KindDependency {
		s.metrics.ClaimRejected(ae.Code)
	}
	return err
}

// Search finds unlinked records by partial name, exact birth date and
// partial phone.
func (s *Service) Search(ctx context.Context, name string, birthDate date.Date, phone string) (*SearchResult, error) {
	name, phone = strings.TrimSpace(name), strings.TrimSpace(phone)
	if name == "" || phone == "" || birthDate.IsZero() {
		return nil, apperr.Validation("name, date_of_birth and phone are required")
	}

	matches, err := s.records.SearchUnlinked(ctx, patient.Criteria{Name: name, BirthDate: birthDate, Phone: phone})
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return &SearchResult{Found: false}, nil
	case 1:
		id := matches[0].ID
		return &SearchResult{Found: true, RecordID: &id}, nil
	}

	res := &SearchResult{Found: true, NeedsMoreInfo: true, Candidates: make([]Candidate, 0, len(matches))}
	for _, r := range matches {
		res.Candidates = append(res.Candidates, Candidate{ID: r.ID, DisplayName: r.DisplayName(), LastVisit: r.LastVisit})
	}
	return res, nil
}

// Select confirms one candidate. When lastVisit is given it must equal the
// stored last visit date.
func (s *Service) Select(ctx context.Context, recordID uuid.UUID, lastVisit *date.Date) (*Candidate, error) {
	r, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, s.reject(err)
	}
	if r.HasAccount {
		return nil, s.reject(apperr.ErrAlreadyLinked)
	}
	if lastVisit != nil && (r.LastVisit == nil || !r.LastVisit.Equal(*lastVisit)) {
		return nil, s.reject(apperr.ErrVerificationMismatch)
	}
	return &Candidate{ID: r.ID, DisplayName: r.DisplayName(), LastVisit: r.LastVisit}, nil
}

// SendChallenge supersedes any open challenge for the record with a new
// code and texts it to the phone on file. The challenge is committed before
// dispatch; a dispatch failure returns the result together with an
// ErrDependency.
func (s *Service) SendChallenge(ctx context.Context, recordID uuid.UUID) (*ChallengeResult, error) {
	claimed, err := s.throttle(ctx, recordID)
	if err != nil {
		return nil, s.reject(err)
	}

	res, err := s.sendChallenge(ctx, recordID)
	if err != nil && claimed {
		if rerr := s.limiter.Release(ctx, recordID.String()); rerr != nil {
			s.logger.Warn().Err(rerr).Str("patient_id", recordID.String()).Msg("resend window not released")
		}
	}
	return res, err
}

func (s *Service) sendChallenge(ctx context.Context, recordID uuid.UUID) (*ChallengeResult, error) {
	code, err := s.code()
	if err != nil {
		return nil, err
	}

	var (
		ch    *Challenge
		phone string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		r, err := s.records.GetByIDForUpdate(ctx, recordID)
		if err != nil {
			return err
		}
		if r.HasAccount {
			return apperr.ErrAlreadyLinked
		}
		if r.Phone == nil || strings.TrimSpace(*r.Phone) == "" {
			return apperr.ErrNoContactMethod
		}
		phone = strings.TrimSpace(*r.Phone)

		if err := s.challenges.DeleteUnverified(ctx, recordID); err != nil {
			return err
		}
		now := s.now().UTC()
		ch = &Challenge{
			ID:        uuid.New(),
			PatientID: recordID,
			Code:      code,
			ExpiresAt: now.Add(s.cfg.ChallengeTTL),
			CreatedAt: now,
		}
		return s.challenges.Create(ctx, ch)
	})
	if err != nil {
		return nil, s.reject(err)
	}

	res := &ChallengeResult{
		RecordID:    recordID,
		MaskedPhone: MaskPhone(phone),
		ExpiresAt:   ch.ExpiresAt,
	}

	n, err := s.dispatcher.Send(ctx, notification.TemplateClaimCode, map[string]string{
		"clinic":  s.cfg.ClinicName,
		"code":    code,
		"minutes": strconv.Itoa(int(s.cfg.ChallengeTTL.Minutes())),
	}, phone)
	if err != nil {
		res.Delivery = notification.StatusFailed
		s.metrics.ChallengeSent(notification.StatusFailed)
		ev := s.logger.Warn().Err(err).Str("patient_id", recordID.String())
		if n != nil {
			ev = ev.Str("notification_id", n.ID)
		}
		ev.Msg("verification code dispatch failed")
		return res, apperr.Wrap(apperr.ErrDependency, "verification code could not be delivered", err)
	}

	res.Delivery = n.Status
	s.metrics.ChallengeSent(n.Status)
	s.logger.Info().Str("patient_id", recordID.String()).Str("notification_id", n.ID).
		Time("expires_at", ch.ExpiresAt).Msg("verification code sent")
	return res, nil
}

// ResendChallenge has the same effect as SendChallenge.
func (s *Service) ResendChallenge(ctx context.Context, recordID uuid.UUID) (*ChallengeResult, error) {
	return s.SendChallenge(ctx, recordID)
}

// throttle reports whether a resend window was claimed for the record.
func (s *Service) throttle(ctx context.Context, recordID uuid.UUID) (bool, error) {
	if s.limiter == nil {
		return false, nil
	}
	ok, wait, err := s.limiter.Allow(ctx, recordID.String())
	if err != nil {
		// a cache outage must not block claiming
		s.logger.Warn().Err(err).Msg("resend limiter unavailable")
		return false, nil
	}
	if !ok {
		return false, apperr.Wrap(apperr.ErrRateLimited,
			fmt.Sprintf("a code was sent recently, retry in %s", wait.Round(time.Second)), nil)
	}
	return true, nil
}

// VerifyAndLink answers a challenge and binds the record to a new patient
// account. All checks and writes share one transaction.
func (s *Service) VerifyAndLink(ctx context.Context, recordID uuid.UUID, code string, f NewAccountFields) (*LinkResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, s.reject(apperr.ErrInvalidChallenge)
	}

	displayName := strings.TrimSpace(f.DisplayName)
	email := f.Email
	if email != nil {
		if e := strings.TrimSpace(*email); e != "" {
			email = &e
		} else {
			email = nil
		}
	}
	acct, err := s.accounts.Prepare(account.NewAccount{
		Handle:      f.Username,
		Secret:      f.Password,
		DisplayName: nonEmpty(displayName, "patient"),
		Email:       email,
		Role:        account.RolePatient,
		FirstLogin:  false,
		Status:      account.StatusActive,
	})
	if err != nil {
		return nil, s.reject(err)
	}

	var rec *patient.Record
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// The record lock comes first, as in SendChallenge.
		var err error
		rec, err = s.records.GetByIDForUpdate(ctx, recordID)
		if err != nil {
			return err
		}

		ch, err := s.challenges.LatestForUpdate(ctx, recordID, code)
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.ErrInvalidChallenge
		}
		if err != nil {
			return err
		}
		if !s.now().Before(ch.ExpiresAt) {
			return apperr.ErrChallengeExpired
		}
		if ch.Verified {
			return apperr.ErrChallengeAlreadyUsed
		}

		taken, err := s.accounts.HandleTaken(ctx, acct.Handle)
		if err != nil {
			return err
		}
		if taken {
			return apperr.ErrDuplicateHandle
		}
		if rec.HasAccount {
			return apperr.ErrAlreadyLinked
		}

		if displayName == "" {
			acct.DisplayName = rec.DisplayName()
		}
		if acct.Phone == nil {
			acct.Phone = rec.Phone
		}
		if err := s.accounts.Insert(ctx, acct); err != nil {
			return err
		}
		if err := s.records.LinkAccount(ctx, recordID, acct.ID, email); err != nil {
			return err
		}
		return s.challenges.MarkVerified(ctx, ch.ID)
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.RecordLinked()
	s.logger.Info().Str("patient_id", recordID.String()).Str("account_id", acct.ID.String()).
		Msg("record linked to account")

	if acct.Email == nil {
		acct.Email = rec.Email
	}
	res := &LinkResult{AccountID: acct.ID, RecordID: recordID, Username: acct.Handle}
	sess, err := s.sessions.Issue(account.SessionClaimsFor(acct, &recordID), s.cfg.SessionTTL)
	if err != nil {
		// The link is committed; the patient signs in with the new credentials.
		s.logger.Error().Err(err).Str("account_id", acct.ID.String()).Msg("session issue failed after link")
		res.LoginRequired = true
		return res, nil
	}
	res.Session = sess
	return res, nil
}

// PruneChallenges deletes expired challenges.
func (s *Service) PruneChallenges(ctx context.Context) (int64, error) {
	n, err := s.challenges.Prune(ctx, s.now().UTC())
	if err != nil {
		return 0, err
	}
	s.metrics.Pruned(n)
	if n > 0 {
		s.logger.Debug().Int64("deleted", n).Msg("pruned claim challenges")
	}
	return n, nil
}

// MaskPhone keeps the first 3 and last 4 digits and masks the digits in
// between. Separators and a leading + are left in place. Numbers with 7 or
// fewer digits keep only their last 2.
func MaskPhone(phone string) string {
	r := []rune(phone)
	digits := 0
	for _, c := range r {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	head, tail := 3, 4
	if digits <= head+tail {
		head, tail = 0, 2
	}

	seen := 0
	for i, c := range r {
		if !unicode.IsDigit(c) {
			continue
		}
		if seen >= head && seen < digits-tail {
			r[i] = '*'
		}
		seen++
	}
	return string(r)
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
