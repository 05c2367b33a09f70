package account

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
)

// FirstLoginHook runs when an account with FirstLogin set authenticates.
type FirstLoginHook interface {
	OnFirstAuthentication(ctx context.Context, accountID uuid.UUID) error
}

// RecordLookup resolves the clinical record linked to a patient account.
type RecordLookup interface {
	RecordIDForAccount(ctx context.Context, accountID uuid.UUID) (*uuid.UUID, error)
}

type LoginResult struct {
	Session    *auth.Session `json:"session"`
	Account    *Account      `json:"account"`
	FirstLogin bool          `json:"first_login"`
}

// Authenticator turns a successful credential check into a session.
type Authenticator struct {
	store    *Store
	hook     FirstLoginHook
	records  RecordLookup
	sessions auth.SessionIssuer
	ttl      time.Duration
	logger   zerolog.Logger
	metrics  *metrics.Collector
}

func NewAuthenticator(store *Store, hook FirstLoginHook, records RecordLookup, sessions auth.SessionIssuer,
	ttl time.Duration, logger zerolog.Logger, m *metrics.Collector) *Authenticator {
	return &Authenticator{
		store:    store,
		hook:     hook,
		records:  records,
		sessions: sessions,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
	}
}

// SessionClaimsFor builds the session identity for a.
func SessionClaimsFor(a *Account, recordID *uuid.UUID) auth.SessionClaims {
	sc := auth.SessionClaims{
		AccountID:   a.ID.String(),
		Handle:      a.Handle,
		Role:        string(a.Role),
		DisplayName: a.DisplayName,
	}
	if a.Email != nil {
		sc.Email = *a.Email
	}
	if recordID != nil {
		sc.RecordID = recordID.String()
	}
	return sc
}

func (au *Authenticator) Login(ctx context.Context, handle, secret string) (*LoginResult, error) {
	a, err := au.store.Authenticate(ctx, handle, secret)
	if err != nil {
		au.metrics.LoginFailed()
		return nil, err
	}

	first := a.FirstLogin
	if first && au.hook != nil {
		if err := au.hook.OnFirstAuthentication(ctx, a.ID); err != nil {
			return nil, err
		}
		if a, err = au.store.Get(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	var recordID *uuid.UUID
	if a.Role == RolePatient && au.records != nil {
		if recordID, err = au.records.RecordIDForAccount(ctx, a.ID); err != nil {
			return nil, err
		}
	}

	sess, err := au.sessions.Issue(SessionClaimsFor(a, recordID), au.ttl)
	if err != nil {
		return nil, err
	}

	au.logger.Info().Str("account_id", a.ID.String()).Str("role", string(a.Role)).Bool("first_login", first).Msg("login")
	return &LoginResult{Session: sess, Account: a, FirstLogin: first}, nil
}
