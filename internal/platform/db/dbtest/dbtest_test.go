package dbtest

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type counterStore struct {
	mu sync.Mutex
	n  int
}

func (c *counterStore) Snapshot() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

func (c *counterStore) Restore(state any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = state.(int)
}

func (c *counterStore) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func TestTransactor_CommitAndRollback(t *testing.T) {
	store := &counterStore{}
	tx := NewTransactor(store)
	ctx := context.Background()

	if err := tx.WithinTx(ctx, func(ctx context.Context) error {
		store.inc()
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	boom := errors.New("boom")
	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		store.inc()
		store.inc()
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if store.n != 1 {
		t.Errorf("expected rollback to 1, got %d", store.n)
	}
	if tx.Commits != 1 || tx.Aborts != 1 {
		t.Errorf("unexpected counters commits=%d aborts=%d", tx.Commits, tx.Aborts)
	}
}

func TestTransactor_NestedJoinsOuter(t *testing.T) {
	store := &counterStore{}
	tx := NewTransactor(store)

	err := tx.WithinTx(context.Background(), func(ctx context.Context) error {
		if !InTx(ctx) {
			t.Fatal("expected transaction in context")
		}
		return tx.WithinTx(ctx, func(ctx context.Context) error {
			store.inc()
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.Commits != 1 {
		t.Errorf("expected a single commit, got %d", tx.Commits)
	}
}
