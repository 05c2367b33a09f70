// Package dbtest provides an in-memory stand-in for db.Transactor so
// service tests can exercise commit, rollback and contention without
// Postgres.
package dbtest

import (
	"context"
	"sync"
)

// Snapshotter is implemented by in-memory repositories that take part in
// transactions.
type Snapshotter interface {
	Snapshot() any
	Restore(state any)
}

type txKey struct{}

// Transactor serializes transactions on a single lock and restores every
// registered store when fn fails. Full serialization is stricter than the row
// locks used in Postgres, which is enough for the outcomes the tests assert.
type Transactor struct {
	mu      sync.Mutex
	stores  []Snapshotter
	Commits int
	Aborts  int
}

func NewTransactor(stores ...Snapshotter) *Transactor {
	return &Transactor{stores: stores}
}

// Register adds stores after construction.
func (t *Transactor) Register(stores ...Snapshotter) {
	t.stores = append(t.stores, stores...)
}

// InTx reports whether ctx carries a transaction from this package.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bool)
	return ok
}

func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if InTx(ctx) {
		return fn(ctx)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snaps := make([]any, len(t.stores))
	for i, s := range t.stores {
		snaps[i] = s.Snapshot()
	}

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		for i, s := range t.stores {
			s.Restore(snaps[i])
		}
		t.Aborts++
		return err
	}
	t.Commits++
	return nil
}
