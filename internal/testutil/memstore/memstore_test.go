package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/billing"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/claiming"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/staff"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/date"
)

func seedRecord(t *testing.T, d *DB) *patient.Record {
	t.Helper()
	r := &patient.Record{FirstName: "Ana", LastName: "Reyes", BirthDate: date.MustParse("1990-04-02")}
	if err := d.Patients().Create(context.Background(), r); err != nil {
		t.Fatalf("create record: %v", err)
	}
	return r
}

func TestAccountHandleUnique(t *testing.T) {
	d := New()
	ctx := context.Background()
	a := &account.Account{Handle: "ana", Role: account.RolePatient, Status: account.StatusActive}
	if err := d.Accounts().Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := d.Accounts().Insert(ctx, &account.Account{Handle: "ana"}); !errors.Is(err, apperr.ErrDuplicateHandle) {
		t.Fatalf("expected duplicate handle, got %v", err)
	}
	ok, err := d.Accounts().TryInsert(ctx, &account.Account{Handle: "ana"})
	if err != nil || ok {
		t.Fatalf("expected skipped insert, got ok=%v err=%v", ok, err)
	}

	for _, h := range []string{"ana1", "ana12", "anabel"} {
		if err := d.Accounts().Insert(ctx, &account.Account{Handle: h}); err != nil {
			t.Fatalf("insert %s: %v", h, err)
		}
	}
	like, err := d.Accounts().HandlesLike(ctx, "ana")
	if err != nil {
		t.Fatalf("handles like: %v", err)
	}
	if len(like) != 3 {
		t.Errorf("expected ana, ana1, ana12; got %v", like)
	}
}

func TestAccountDeleteDetachesRows(t *testing.T) {
	d := New()
	ctx := context.Background()
	a := &account.Account{Handle: "ana"}
	if err := d.Accounts().Insert(ctx, a); err != nil {
		t.Fatalf("insert: %v", err)
	}
	r := seedRecord(t, d)
	if err := d.Patients().LinkAccount(ctx, r.ID, a.ID, nil); err != nil {
		t.Fatalf("link: %v", err)
	}
	p := &staff.Profile{FirstName: "Ben", LastName: "Cruz", Position: staff.PositionDentist}
	if err := d.Staff().Create(ctx, p); err != nil {
		t.Fatalf("create staff: %v", err)
	}

	if err := d.Accounts().Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, _ := d.Patients().GetByID(ctx, r.ID)
	if got.UserRef != nil || got.HasAccount {
		t.Errorf("expected record to be detached, got %+v", got)
	}
}

func TestLockRequiresTransaction(t *testing.T) {
	d := New()
	r := seedRecord(t, d)

	if _, err := d.Patients().GetByIDForUpdate(context.Background(), r.ID); !errors.Is(err, ErrLockOutsideTx) {
		t.Fatalf("expected ErrLockOutsideTx, got %v", err)
	}
	err := d.Transactor().WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := d.Patients().GetByIDForUpdate(ctx, r.ID)
		return err
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRollbackRestoresTables(t *testing.T) {
	d := New()
	tx := d.Transactor()
	boom := errors.New("boom")

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		seedRecord(t, d)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if n := d.Counts().Patients; n != 0 {
		t.Errorf("expected rollback, found %d records", n)
	}
}

func TestFailOn(t *testing.T) {
	d := New()
	boom := errors.New("boom")
	d.FailOn("patient.Create", boom)

	err := d.Patients().Create(context.Background(), &patient.Record{FirstName: "A", LastName: "B"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected fault, got %v", err)
	}
	d.FailOn("patient.Create", nil)
	seedRecord(t, d)
}

func TestLatestChallengeWins(t *testing.T) {
	d := New()
	r := seedRecord(t, d)
	ctx := context.Background()
	at := time.Now().UTC()

	first := &claiming.Challenge{PatientID: r.ID, Code: "123456", ExpiresAt: at.Add(time.Minute), CreatedAt: at}
	second := &claiming.Challenge{PatientID: r.ID, Code: "123456", ExpiresAt: at.Add(time.Minute), CreatedAt: at}
	for _, ch := range []*claiming.Challenge{first, second} {
		if err := d.Challenges().Create(ctx, ch); err != nil {
			t.Fatalf("create challenge: %v", err)
		}
	}

	err := d.Transactor().WithinTx(ctx, func(ctx context.Context) error {
		got, err := d.Challenges().LatestForUpdate(ctx, r.ID, "123456")
		if err != nil {
			return err
		}
		if got.ID != second.ID {
			t.Errorf("expected the later insert, got %s", got.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n, err := d.Challenges().Prune(ctx, at.Add(2*time.Minute))
	if err != nil || n != 2 {
		t.Errorf("expected 2 pruned, got %d (%v)", n, err)
	}
}

func TestPatientDeleteCascades(t *testing.T) {
	d := New()
	ctx := context.Background()
	r := seedRecord(t, d)

	tr := &billing.Treatment{PatientID: r.ID, Description: "Filling", Cost: decimal.NewFromInt(100), Status: "planned"}
	if err := d.Treatments().Create(ctx, tr); err != nil {
		t.Fatalf("create treatment: %v", err)
	}
	pay := &billing.Payment{PatientID: r.ID, TreatmentID: &tr.ID, Amount: decimal.NewFromInt(50), Method: "cash", Status: "completed"}
	if err := d.Payments().Create(ctx, pay); err != nil {
		t.Fatalf("create payment: %v", err)
	}

	if err := d.Patients().Delete(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c := d.Counts()
	if c.Treatments != 0 || c.Payments != 0 {
		t.Errorf("expected cascade, got %s", d)
	}
}

func TestTreatmentDeleteDetachesPayments(t *testing.T) {
	d := New()
	ctx := context.Background()
	r := seedRecord(t, d)

	tr := &billing.Treatment{PatientID: r.ID, Description: "Crown", Cost: decimal.NewFromInt(100), Status: "planned"}
	if err := d.Treatments().Create(ctx, tr); err != nil {
		t.Fatalf("create treatment: %v", err)
	}
	pay := &billing.Payment{PatientID: r.ID, TreatmentID: &tr.ID, Amount: decimal.NewFromInt(50), Method: "cash", Status: "completed"}
	if err := d.Payments().Create(ctx, pay); err != nil {
		t.Fatalf("create payment: %v", err)
	}
	if err := d.Treatments().Delete(ctx, tr.ID); err != nil {
		t.Fatalf("delete treatment: %v", err)
	}

	got, err := d.Payments().GetByID(ctx, pay.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if got.TreatmentID != nil {
		t.Errorf("expected payment to be detached")
	}
	if _, err := d.Treatments().GetByID(ctx, uuid.New()); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
