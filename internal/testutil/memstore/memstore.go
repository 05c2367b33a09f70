// Package memstore is an in-memory implementation of every repository in
// the clinic, sharing one set of tables so cascades and transactions
// behave like the Postgres schema. It is for tests only.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/billing"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/claiming"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/staff"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/db/dbtest"
)

// ErrLockOutsideTx is returned by FOR UPDATE reads made without a
// transaction.
var ErrLockOutsideTx = errors.New("memstore: row lock requested outside a transaction")

var errUniqueUserRef = errors.New("memstore: user_ref already linked to another row")

type tables struct {
	accounts   map[uuid.UUID]account.Account
	staff      map[uuid.UUID]staff.Profile
	patients   map[uuid.UUID]patient.Record
	challenges map[uuid.UUID]claiming.Challenge
	treatments map[uuid.UUID]billing.Treatment
	payments   map[uuid.UUID]billing.Payment
	order      map[uuid.UUID]int64
	seq        int64
}

func newTables() tables {
	return tables{
		accounts:   make(map[uuid.UUID]account.Account),
		staff:      make(map[uuid.UUID]staff.Profile),
		patients:   make(map[uuid.UUID]patient.Record),
		challenges: make(map[uuid.UUID]claiming.Challenge),
		treatments: make(map[uuid.UUID]billing.Treatment),
		payments:   make(map[uuid.UUID]billing.Payment),
		order:      make(map[uuid.UUID]int64),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (t tables) clone() tables {
	return tables{
		accounts:   cloneMap(t.accounts),
		staff:      cloneMap(t.staff),
		patients:   cloneMap(t.patients),
		challenges: cloneMap(t.challenges),
		treatments: cloneMap(t.treatments),
		payments:   cloneMap(t.payments),
		order:      cloneMap(t.order),
		seq:        t.seq,
	}
}

// DB holds the tables. Row values are stored by value and copied on the way
// out, so callers never alias stored rows.
type DB struct {
	mu     sync.Mutex
	t      tables
	faults map[string]error
}

func New() *DB {
	return &DB{t: newTables(), faults: make(map[string]error)}
}

// Snapshot implements dbtest.Snapshotter.
func (d *DB) Snapshot() any {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t.clone()
}

// Restore implements dbtest.Snapshotter.
func (d *DB) Restore(state any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.t = state.(tables)
}

// Transactor returns a dbtest.Transactor bound to this store.
func (d *DB) Transactor() *dbtest.Transactor {
	return dbtest.NewTransactor(d)
}

// FailOn makes the named operation (for example "patient.LinkAccount")
// return err until cleared with a nil err.
func (d *DB) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.faults, op)
		return
	}
	d.faults[op] = err
}

// begin locks the store and returns the fault injected for op, if any.
// Callers unlock with defer d.mu.Unlock() regardless of the result.
func (d *DB) begin(op string) error {
	d.mu.Lock()
	return d.faults[op]
}

func (d *DB) lockCheck(ctx context.Context) error {
	if !dbtest.InTx(ctx) {
		return ErrLockOutsideTx
	}
	return nil
}

func (d *DB) nextSeq(id uuid.UUID) {
	d.t.seq++
	d.t.order[id] = d.t.seq
}

func (d *DB) String() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("memstore{accounts:%d staff:%d patients:%d challenges:%d treatments:%d payments:%d}",
		len(d.t.accounts), len(d.t.staff), len(d.t.patients), len(d.t.challenges),
		len(d.t.treatments), len(d.t.payments))
}

// Counts exposes table sizes for assertions.
type Counts struct {
	Accounts, Staff, Patients, Challenges, Treatments, Payments int
}

func (d *DB) Counts() Counts {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Counts{
		Accounts:   len(d.t.accounts),
		Staff:      len(d.t.staff),
		Patients:   len(d.t.patients),
		Challenges: len(d.t.challenges),
		Treatments: len(d.t.treatments),
		Payments:   len(d.t.payments),
	}
}

func (d *DB) Accounts() account.Repository { return accountRepo{d} }
func (d *DB) Staff() staff.Repository { return staffRepo{d} }
func (d *DB) Patients() patient.Repository { return patientRepo{d} }
func (d *DB) Challenges() claiming.Repository { return challengeRepo{d} }
func (d *DB) Treatments() billing.TreatmentRepository { return treatmentRepo{d} }
func (d *DB) Payments() billing.PaymentRepository { return paymentRepo{d} }
