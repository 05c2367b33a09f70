package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/staff"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/pagination"
)

type staffRepo struct{ d *DB }

func (r staffRepo) Create(_ context.Context, p *staff.Profile) error {
	err := r.d.begin("staff.Create")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.d.t.staff[p.ID] = *p
	return nil
}

func (r staffRepo) get(id uuid.UUID) (*staff.Profile, error) {
	p, ok := r.d.t.staff[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (r staffRepo) GetByID(_ context.Context, id uuid.UUID) (*staff.Profile, error) {
	err := r.d.begin("staff.GetByID")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r staffRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*staff.Profile, error) {
	err := r.d.begin("staff.GetByIDForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r staffRepo) GetByAccountForUpdate(ctx context.Context, accountID uuid.UUID) (*staff.Profile, error) {
	err := r.d.begin("staff.GetByAccountForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	for _, p := range r.d.t.staff {
		if p.UserRef != nil && *p.UserRef == accountID {
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r staffRepo) Update(_ context.Context, p *staff.Profile) error {
	err := r.d.begin("staff.Update")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	current, ok := r.d.t.staff[p.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	current.FirstName = p.FirstName
	current.LastName = p.LastName
	current.Position = p.Position
	current.Email = p.Email
	current.Phone = p.Phone
	current.UpdatedAt = time.Now().UTC()
	p.UpdatedAt = current.UpdatedAt
	r.d.t.staff[p.ID] = current
	return nil
}

func (r staffRepo) Delete(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("staff.Delete")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.staff[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.d.t.staff, id)
	return nil
}

func (r staffRepo) List(_ context.Context, limit, offset int) ([]*staff.Profile, int, error) {
	err := r.d.begin("staff.List")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	all := make([]*staff.Profile, 0, len(r.d.t.staff))
	for _, p := range r.d.t.staff {
		p := p
		all = append(all, &p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].LastName != all[j].LastName {
			return all[i].LastName < all[j].LastName
		}
		return all[i].FirstName < all[j].FirstName
	})
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func (r staffRepo) SetCredentials(_ context.Context, id, accountID uuid.UUID, code string) error {
	err := r.d.begin("staff.SetCredentials")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p, ok := r.d.t.staff[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for oid, other := range r.d.t.staff {
		if oid != id && other.UserRef != nil && *other.UserRef == accountID {
			return apperr.Dependency("set staff credentials", errUniqueUserRef)
		}
	}
	ref, c := accountID, code
	p.UserRef = &ref
	p.GeneratedCode = &c
	p.IsCodeUsed = false
	p.UpdatedAt = time.Now().UTC()
	r.d.t.staff[id] = p
	return nil
}

func (r staffRepo) MarkCodeUsed(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("staff.MarkCodeUsed")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p, ok := r.d.t.staff[id]
	if !ok {
		return apperr.ErrNotFound
	}
	p.IsCodeUsed = true
	p.UpdatedAt = time.Now().UTC()
	r.d.t.staff[id] = p
	return nil
}
