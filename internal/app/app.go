// Package app assembles the back-office services and mounts their routes.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/billing"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/claiming"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/staff"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/notification"
)

// Repos is the storage behind every service.
type Repos struct {
	Accounts   account.Repository
	Staff      staff.Repository
	Patients   patient.Repository
	Challenges claiming.Repository
	Treatments billing.TreatmentRepository
	Payments   billing.PaymentRepository
}

// PostgresRepos returns the pgx-backed repositories.
func PostgresRepos(pool *pgxpool.Pool) Repos {
	return Repos{
		Accounts:   account.NewRepo(pool),
		Staff:      staff.NewRepo(pool),
		Patients:   patient.NewRepo(pool),
		Challenges: claiming.NewRepo(pool),
		Treatments: billing.NewTreatmentRepo(pool),
		Payments:   billing.NewPaymentRepo(pool),
	}
}

type Deps struct {
	Repos    Repos
	Tx       db.Transactor
	Verifier auth.Verifier
	Sessions *auth.JWTSessionIssuer
	SMS      notification.SMSSender
	// Limiter is optional. Nil leaves challenge resends unthrottled.
	Limiter    claiming.ResendLimiter
	Metrics    *metrics.Collector
	Logger     zerolog.Logger
	SessionTTL time.Duration
	OTPTTL     time.Duration
	ClinicName string
}

// App holds the wired services.
type App struct {
	Accounts      *account.Store
	Authenticator *account.Authenticator
	Staff         *staff.Service
	Patients      *patient.Service
	Claiming      *claiming.Service
	Reconciler    *billing.Reconciler
	Billing       *billing.Service

	sessions *auth.JWTSessionIssuer
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

func New(d Deps) *App {
	r := d.Repos
	accounts := account.NewStore(r.Accounts, d.Verifier, d.Logger.With().Str("component", "account").Logger())
	staffSvc := staff.NewService(r.Staff, accounts, d.Tx, d.Logger.With().Str("component", "staff").Logger(), d.Metrics)
	patients := patient.NewService(r.Patients, d.Tx, accounts, d.Logger.With().Str("component", "patient").Logger())
	authn := account.NewAuthenticator(accounts, staffSvc, patients, d.Sessions, d.SessionTTL,
		d.Logger.With().Str("component", "auth").Logger(), d.Metrics)

	claims := claiming.NewService(r.Patients, accounts, r.Challenges, d.Tx,
		notification.NewDispatcher(d.SMS, nil), d.Sessions,
		claiming.Config{ChallengeTTL: d.OTPTTL, SessionTTL: d.SessionTTL, ClinicName: d.ClinicName},
		d.Logger.With().Str("component", "claiming").Logger(), d.Metrics)
	if d.Limiter != nil {
		claims.SetResendLimiter(d.Limiter)
	}

	billingLog := d.Logger.With().Str("component", "billing").Logger()
	rec := billing.NewReconciler(r.Treatments, r.Payments, r.Patients, d.Tx, billingLog, d.Metrics)
	bill := billing.NewService(r.Treatments, r.Payments, r.Patients, rec, d.Tx, billingLog, d.Metrics)

	return &App{
		Accounts:      accounts,
		Authenticator: authn,
		Staff:         staffSvc,
		Patients:      patients,
		Claiming:      claims,
		Reconciler:    rec,
		Billing:       bill,
		sessions:      d.Sessions,
		metrics:       d.Metrics,
		logger:        d.Logger,
	}
}

// RegisterRoutes mounts the metrics endpoint on e and every API route under
// api. api must not carry its own authentication; RegisterRoutes installs
// the session middleware.
func (a *App) RegisterRoutes(e *echo.Echo, api *echo.Group) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(a.metrics.Handler()))

	api.Use(auth.JWTMiddleware(auth.JWTConfig{
		Parser:  a.sessions,
		Skipper: auth.AuthSkipper,
	}))

	staffRoles := []string{string(account.RoleClinician), string(account.RoleAssistant)}

	account.NewHandler(a.Accounts, a.Authenticator).RegisterRoutes(api)
	staff.NewHandler(a.Staff).RegisterRoutes(api)
	patient.NewHandler(a.Patients).RegisterRoutes(api, staffRoles, string(account.RolePatient))
	claiming.NewHandler(a.Claiming).RegisterRoutes(api)
	billing.NewHandler(a.Billing).RegisterRoutes(api, staffRoles, string(account.RoleClinician))
}

// RunPruner deletes expired claim challenges every interval until ctx is
// cancelled.
func (a *App) RunPruner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Claiming.PruneChallenges(ctx)
			if err != nil {
				a.logger.Error().Err(err).Msg("prune claim challenges")
				continue
			}
			if n > 0 {
				a.logger.Info().Int64("deleted", n).Msg("pruned expired claim challenges")
			}
		}
	}
}
