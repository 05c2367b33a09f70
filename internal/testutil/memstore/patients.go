package memstore

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/patient"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
	"github.com/kristalyn-ag/dentist-app-sub002/pkg/pagination"
)

type patientRepo struct{ d *DB }

func (r patientRepo) Create(_ context.Context, p *patient.Record) error {
	err := r.d.begin("patient.Create")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.HasAccount = p.UserRef != nil
	r.d.t.patients[p.ID] = *p
	return nil
}

func (r patientRepo) get(id uuid.UUID) (*patient.Record, error) {
	p, ok := r.d.t.patients[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &p, nil
}

func (r patientRepo) GetByID(_ context.Context, id uuid.UUID) (*patient.Record, error) {
	err := r.d.begin("patient.GetByID")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r patientRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*patient.Record, error) {
	err := r.d.begin("patient.GetByIDForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	return r.get(id)
}

func (r patientRepo) GetByAccount(_ context.Context, accountID uuid.UUID) (*patient.Record, error) {
	err := r.d.begin("patient.GetByAccount")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	for _, p := range r.d.t.patients {
		if p.UserRef != nil && *p.UserRef == accountID {
			return &p, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (r patientRepo) Update(_ context.Context, p *patient.Record) error {
	err := r.d.begin("patient.Update")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	current, ok := r.d.t.patients[p.ID]
	if !ok {
		return apperr.ErrNotFound
	}
	p.UpdatedAt = time.Now().UTC()
	current.FirstName = p.FirstName
	current.LastName = p.LastName
	current.BirthDate = p.BirthDate
	current.Gender = p.Gender
	current.Phone = p.Phone
	current.Email = p.Email
	current.Address = p.Address
	current.MedicalHistory = p.MedicalHistory
	current.Allergies = p.Allergies
	current.LastVisit = p.LastVisit
	current.UpdatedAt = p.UpdatedAt
	r.d.t.patients[p.ID] = current
	return nil
}

// Delete cascades to challenges, treatments and payments.
func (r patientRepo) Delete(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("patient.Delete")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.patients[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(r.d.t.patients, id)
	for cid, c := range r.d.t.challenges {
		if c.PatientID == id {
			delete(r.d.t.challenges, cid)
			delete(r.d.t.order, cid)
		}
	}
	for tid, t := range r.d.t.treatments {
		if t.PatientID == id {
			delete(r.d.t.treatments, tid)
		}
	}
	for pid, p := range r.d.t.payments {
		if p.PatientID == id {
			delete(r.d.t.payments, pid)
		}
	}
	return nil
}

func sortRecords(items []*patient.Record) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].LastName != items[j].LastName {
			return items[i].LastName < items[j].LastName
		}
		return items[i].FirstName < items[j].FirstName
	})
}

func (r patientRepo) List(_ context.Context, query string, limit, offset int) ([]*patient.Record, int, error) {
	err := r.d.begin("patient.List")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, 0, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	var all []*patient.Record
	for _, p := range r.d.t.patients {
		p := p
		if q != "" && !strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), q) {
			continue
		}
		all = append(all, &p)
	}
	sortRecords(all)
	start, end := pagination.Params{Limit: limit, Offset: offset}.Window(len(all))
	return all[start:end], len(all), nil
}

func (r patientRepo) SearchUnlinked(_ context.Context, c patient.Criteria) ([]*patient.Record, error) {
	err := r.d.begin("patient.SearchUnlinked")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	var out []*patient.Record
	for _, p := range r.d.t.patients {
		p := p
		if c.Matches(&p) {
			out = append(out, &p)
		}
	}
	sortRecords(out)
	return out, nil
}

func (r patientRepo) LinkAccount(_ context.Context, id, accountID uuid.UUID, email *string) error {
	err := r.d.begin("patient.LinkAccount")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p, ok := r.d.t.patients[id]
	if !ok {
		return apperr.ErrNotFound
	}
	for oid, other := range r.d.t.patients {
		if oid != id && other.UserRef != nil && *other.UserRef == accountID {
			return apperr.Dependency("link patient", errUniqueUserRef)
		}
	}
	ref := accountID
	p.UserRef = &ref
	p.HasAccount = true
	if email != nil {
		e := *email
		p.Email = &e
	}
	p.UpdatedAt = time.Now().UTC()
	r.d.t.patients[id] = p
	return nil
}

func (r patientRepo) SetTotalBalance(_ context.Context, id uuid.UUID, total decimal.Decimal) error {
	err := r.d.begin("patient.SetTotalBalance")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	p, ok := r.d.t.patients[id]
	if !ok {
		return apperr.ErrNotFound
	}
	p.TotalBalance = total
	p.UpdatedAt = time.Now().UTC()
	r.d.t.patients[id] = p
	return nil
}
