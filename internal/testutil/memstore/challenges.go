package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kristalyn-ag/dentist-app-sub002/internal/domain/claiming"
	"github.com/kristalyn-ag/dentist-app-sub002/internal/platform/apperr"
)

type challengeRepo struct{ d *DB }

func (r challengeRepo) Create(_ context.Context, ch *claiming.Challenge) error {
	err := r.d.begin("claiming.Create")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	if _, ok := r.d.t.patients[ch.PatientID]; !ok {
		return apperr.ErrNotFound
	}
	if ch.ID == uuid.Nil {
		ch.ID = uuid.New()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	r.d.t.challenges[ch.ID] = *ch
	r.d.nextSeq(ch.ID)
	return nil
}

func (r challengeRepo) DeleteUnverified(_ context.Context, patientID uuid.UUID) error {
	err := r.d.begin("claiming.DeleteUnverified")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	for id, c := range r.d.t.challenges {
		if c.PatientID == patientID && !c.Verified {
			delete(r.d.t.challenges, id)
			delete(r.d.t.order, id)
		}
	}
	return nil
}

func (r challengeRepo) LatestForUpdate(ctx context.Context, patientID uuid.UUID, code string) (*claiming.Challenge, error) {
	err := r.d.begin("claiming.LatestForUpdate")
	defer r.d.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := r.d.lockCheck(ctx); err != nil {
		return nil, err
	}
	var latest *claiming.Challenge
	for _, c := range r.d.t.challenges {
		c := c
		if c.PatientID != patientID || c.Code != code {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) ||
			(c.CreatedAt.Equal(latest.CreatedAt) && r.d.t.order[c.ID] > r.d.t.order[latest.ID]) {
			latest = &c
		}
	}
	if latest == nil {
		return nil, apperr.ErrNotFound
	}
	return latest, nil
}

func (r challengeRepo) MarkVerified(_ context.Context, id uuid.UUID) error {
	err := r.d.begin("claiming.MarkVerified")
	defer r.d.mu.Unlock()
	if err != nil {
		return err
	}
	c, ok := r.d.t.challenges[id]
	if !ok {
		return apperr.ErrNotFound
	}
	c.Verified = true
	r.d.t.challenges[id] = c
	return nil
}

func (r challengeRepo) Prune(_ context.Context, now time.Time) (int64, error) {
	err := r.d.begin("claiming.Prune")
	defer r.d.mu.Unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for id, c := range r.d.t.challenges {
		if c.ExpiresAt.Before(now) {
			delete(r.d.t.challenges, id)
			delete(r.d.t.order, id)
			n++
		}
	}
	return n, nil
}
