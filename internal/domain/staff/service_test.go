package staff_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/staff"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/auth"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/metrics"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/testutil/memstore"
)

type env struct {
	db      *memstore.DB
	store   *account.Store
	svc     *staff.Service
	auth    *account.Authenticator
	metrics *metrics.Collector
}

func newEnv(t *testing.T) *env {
	t.Helper()
	d := memstore.New()
	m := metrics.NewCollector()
	store := account.NewStore(d.Accounts(), auth.NewBcryptVerifier(4), zerolog.Nop())
	svc := staff.NewService(d.Staff(), store, d.Transactor(), zerolog.Nop(), m)
	au := account.NewAuthenticator(store, svc, nil, auth.NewJWTSessionIssuer("test-secret", "test"),
		time.Hour, zerolog.Nop(), m)
	return &env{db: d, store: store, svc: svc, auth: au, metrics: m}
}

func (e *env) createProfile(t *testing.T, first, last string, pos staff.Position) *staff.Profile {
	t.Helper()
	p := &staff.Profile{FirstName: first, LastName: last, Position: pos}
	if err := e.svc.Create(context.Background(), p); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return p
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		p    staff.Profile
	}{
		{"missing first name", staff.Profile{LastName: "Santos", Position: staff.PositionDentist}},
		{"missing last name", staff.Profile{FirstName: "Maria", Position: staff.PositionDentist}},
		{"bad position", staff.Profile{FirstName: "Maria", LastName: "Santos", Position: "janitor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.p
			err := e.svc.Create(context.Background(), &p)
			if !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestCreate_IgnoresCredentialFields(t *testing.T) {
	e := newEnv(t)
	ref := uuid.New()
	code := "LEAKED"
	p := &staff.Profile{FirstName: "Maria", LastName: "Santos", Position: staff.PositionDentist,
		UserRef: &ref, GeneratedCode: &code, IsCodeUsed: true}
	if err := e.svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := e.svc.Get(context.Background(), p.ID)
	if got.State() != "no-credentials" || got.GeneratedCode != nil {
		t.Errorf("expected a profile without credentials, got %+v", got)
	}
}

func TestIssueCredentials_CreatesPendingAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)

	creds, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if creds.Username != "maria.santos" {
		t.Errorf("expected maria.santos, got %s", creds.Username)
	}
	if len(creds.Secret) != 12 {
		t.Errorf("expected a 12 character secret, got %q", creds.Secret)
	}
	if creds.Role != account.RoleClinician {
		t.Errorf("expected clinician role, got %s", creds.Role)
	}

	a, err := e.store.Get(ctx, creds.AccountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Status != account.StatusPending || !a.FirstLogin {
		t.Errorf("expected pending first-login account, got status=%s first_login=%v", a.Status, a.FirstLogin)
	}
	if a.Position == nil || *a.Position != "dentist" {
		t.Errorf("expected position dentist, got %v", a.Position)
	}

	got, _ := e.svc.Get(ctx, p.ID)
	if got.State() != "issued-unused" {
		t.Errorf("expected issued-unused, got %s", got.State())
	}
	if got.GeneratedCode == nil || *got.GeneratedCode != creds.Secret {
		t.Errorf("expected generated code to match the issued secret")
	}
	if v := testutil.ToFloat64(e.metrics.CredentialsIssued); v != 1 {
		t.Errorf("expected 1 issued credential, got %v", v)
	}
}

func TestIssueCredentials_RegenerateReplacesUnused(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionAssistant)

	first, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("first issue: %v", err)
	}
	second, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("second issue: %v", err)
	}

	if first.AccountID == second.AccountID {
		t.Fatal("expected a new account")
	}
	if second.Username != "maria.santos" {
		t.Errorf("expected the freed username to be reused, got %s", second.Username)
	}
	if _, err := e.store.Get(ctx, first.AccountID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected old account to be removed, got %v", err)
	}
	if _, err := e.auth.Login(ctx, first.Username, first.Secret); !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Errorf("expected old secret to be rejected, got %v", err)
	}
	if _, err := e.auth.Login(ctx, second.Username, second.Secret); err != nil {
		t.Errorf("expected new credentials to work, got %v", err)
	}
	if c := e.db.Counts(); c.Accounts != 1 {
		t.Errorf("expected one account, got %d", c.Accounts)
	}
}

func TestIssueCredentials_HandleSuffixes(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	want := []string{"maria.santos", "maria.santos1", "maria.santos2"}
	for i, w := range want {
		p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
		creds, err := e.svc.IssueCredentials(ctx, p.ID)
		if err != nil {
			t.Fatalf("issue %d: %v", i, err)
		}
		if creds.Username != w {
			t.Errorf("issue %d: expected %s, got %s", i, w, creds.Username)
		}
	}
}

func TestIssueCredentials_ConcurrentSameName(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const n = 6
	profiles := make([]*staff.Profile, n)
	for i := range profiles {
		profiles[i] = e.createProfile(t, "Jo", "Lim", staff.PositionAssistant)
	}

	var wg sync.WaitGroup
	handles := make([]string, n)
	errs := make([]error, n)
	for i := range profiles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			creds, err := e.svc.IssueCredentials(ctx, profiles[i].ID)
			errs[i] = err
			if err == nil {
				handles[i] = creds.Username
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, h := range handles {
		if errs[i] != nil {
			t.Fatalf("issue %d: %v", i, errs[i])
		}
		if seen[h] {
			t.Errorf("duplicate username %s", h)
		}
		seen[h] = true
	}
}

func TestIssueCredentials_Errors(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.svc.IssueCredentials(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
	creds, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := e.auth.Login(ctx, creds.Username, creds.Secret); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := e.svc.IssueCredentials(ctx, p.ID); !errors.Is(err, apperr.ErrAlreadyActivated) {
		t.Errorf("expected already activated, got %v", err)
	}
}

func TestFirstLogin_ActivatesCredentials(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
	creds, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	res, err := e.auth.Login(ctx, creds.Username, creds.Secret)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !res.FirstLogin {
		t.Error("expected first login to be reported")
	}
	if res.Account.Status != account.StatusActive || res.Account.FirstLogin {
		t.Errorf("expected active account after first login, got %+v", res.Account)
	}

	got, _ := e.svc.Get(ctx, p.ID)
	if !got.IsCodeUsed || got.State() != "activated" {
		t.Errorf("expected profile to be activated, got %+v", got)
	}

	res, err = e.auth.Login(ctx, creds.Username, creds.Secret)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if res.FirstLogin {
		t.Error("expected later logins not to be first logins")
	}
	if v := testutil.ToFloat64(e.metrics.FirstLogins); v != 1 {
		t.Errorf("expected one first-login activation, got %v", v)
	}
}

func TestOnFirstAuthentication_UnknownAccount(t *testing.T) {
	e := newEnv(t)
	err := e.svc.OnFirstAuthentication(context.Background(), uuid.New())
	if !errors.Is(err, apperr.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestOnFirstAuthentication_Idempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
	creds, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := e.svc.OnFirstAuthentication(ctx, creds.AccountID); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if v := testutil.ToFloat64(e.metrics.FirstLogins); v != 1 {
		t.Errorf("expected a single activation, got %v", v)
	}
}

func TestUpdate_PositionChangesRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
	creds, err := e.svc.IssueCredentials(ctx, p.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	p.Position = staff.PositionAssistant
	if err := e.svc.Update(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	a, err := e.store.Get(ctx, creds.AccountID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if a.Role != account.RoleAssistant {
		t.Errorf("expected assistant role, got %s", a.Role)
	}
	if a.Position == nil || *a.Position != "assistant" {
		t.Errorf("expected position assistant, got %v", a.Position)
	}
}

func TestDelete_RemovesLinkedAccount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	p := e.createProfile(t, "Maria", "Santos", staff.PositionDentist)
	if _, err := e.svc.IssueCredentials(ctx, p.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := e.svc.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if c := e.db.Counts(); c.Staff != 0 || c.Accounts != 0 {
		t.Errorf("expected profile and account removed, got %+v", c)
	}
	if err := e.svc.Delete(ctx, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
