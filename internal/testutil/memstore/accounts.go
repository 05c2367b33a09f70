package memstore

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/account"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
)

type accountRepo struct{ d *DB }

func (r accountRepo) handleTaken(handle string, exclude *uuid.UUID) bool {
	for id, a := range r.d.t.accounts {
		if a.Handle == handle && (exclude == nil || id != *exclude) {
			return true
		}
	}
	return false
}

func (r accountRepo) insert(a *account.Account) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	r.d.t.accounts[a.ID] = *a
}

func (r accountRepo) Insert(_ context.Context, a *account.Account) error {
	err := r.d.begin("account.Insert")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if r.handleTaken(a.Handle, nil) {
		return apperr.ErrDuplicateHandle
	}
	r.insert(a)
	return nil
}

func (r accountRepo) TryInsert(_ context.Context, a *account.Account) (bool, error) {
	err := r.d.begin("account.TryInsert")
	defer r.d.mu.Unlock()
	if err != nil {
		return false, err
	}
	if r.handleTaken(a.Handle, nil) {
		return false, nil
	}
	r.insert(a)
	return true, nil
}

func (r accountRepo) get(id uuid.UUID) (*account.Account, error) {
	a, ok := r.d.t.accounts[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &a, nil
}

func (r accountRepo) GetByID(_ context.Context, id uuid.UUID) (*account.Account, error) {
	err := r.d.begin("account.GetByID")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r accountRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	err := r.d.begin("account.GetByIDForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r accountRepo) GetByHandle(_ context.Context, handle string) (*account.Account, error) {
	err := r.d.begin("account.GetByHandle")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, a := range r.d.t.accounts {
		if a.Handle == handle {
			return &a, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r accountRepo) HandleExists(_ context.Context, handle string, exclude *uuid.UUID) (bool, error) {
	err := r.d.begin("account.HandleExists")
	defer r.d.mu.Unlock()
	if err != nil {
		return false, err
	}
	return r.handleTaken(handle, exclude), nil
}

func (r accountRepo) HandlesLike(_ context.Context, base string) ([]string, error) {
	err := r.d.begin("account.HandlesLike")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile("^" + regexp.QuoteMeta(base) + "[0-9]*$")
	var out []string
	for _, a := range r.d.t.accounts {
		if re.MatchString(a.Handle) {
			out = append(out, a.Handle)
		}
	}
	return out, nil
}

func (r accountRepo) Update(_ context.Context, a *account.Account) error {
	err := r.d.begin("account.Update")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	current, ok := r.d.t.accounts[a.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	if r.handleTaken(a.Handle, &a.ID) {
		return apperr.ErrDuplicateHandle
	}
	a.UpdatedAt = time.Now().UTC()
	updated := *a
	updated.VerifierHash = current.VerifierHash
	updated.CreatedAt = current.CreatedAt
	r.d.t.accounts[a.ID] = updated
	return nil
}

func (r accountRepo) UpdateVerifier(_ context.Context, id uuid.UUID, hash string) error {
	err := r.d.begin("account.UpdateVerifier")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	a, ok := r.d.t.accounts[id]
	if !ok {
		return apperr.ErrNotFound
	}
	a.VerifierHash = hash
	a.UpdatedAt = time.Now().UTC()
	r.d.t.accounts[id] = a
	return nil
}

// Delete applies ON DELETE SET NULL to staff profiles and records.
func (r accountRepo) Delete(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("account.Delete")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	delete(r.d.t.accounts, id)
	for pid, p := range r.d.t.staff {
		if p.UserRef != nil && *p.UserRef == id {
			p.UserRef = nil
			r.d.t.staff[pid] = p
		}
	}
	for pid, p := range r.d.t.patients {
		if p.UserRef != nil && *p.UserRef == id {
			p.UserRef = nil
			p.HasAccount = false
			r.d.t.patients[pid] = p
		}
	}
	return nil
}
