package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type fakeDonorRepo struct {
	mu     sync.Mutex
	donors map[uuid.UUID]*domain.Donor
}

func newFakeDonorRepo() *fakeDonorRepo {
	return &fakeDonorRepo{donors: make(map[uuid.UUID]*domain.Donor)}
}

func (f *fakeDonorRepo) Create(_ context.Context, d *domain.Donor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donors[d.ID] = d
	return nil
}

func (f *fakeDonorRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Donor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.donors[id]
	if !ok {
		return nil, fmt.Errorf("donor %s: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (f *fakeDonorRepo) Update(_ context.Context, d *domain.Donor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.donors[d.ID] = d
	return nil
}

type fakeEvalRepo struct {
	mu   sync.Mutex
	rows []*domain.CriterionEvaluation
}

func (f *fakeEvalRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.CriterionEvaluation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.CriterionEvaluation
	for _, r := range f.rows {
		if r.DonorID == donorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeEvalRepo) UpdateVerdict(_ context.Context, id uuid.UUID, result domain.VerdictResult, reasoning string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.Result = result
			r.Reasoning = reasoning
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeLabRepo struct {
	labs []*domain.LaboratoryResult
}

func (f *fakeLabRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.LaboratoryResult, error) {
	var out []*domain.LaboratoryResult
	for _, lr := range f.labs {
		if lr.DonorID == donorID {
			out = append(out, lr)
		}
	}
	return out, nil
}

type eligKey struct {
	donor  uuid.UUID
	tissue domain.TissueType
}

type fakeEligRepo struct {
	mu       sync.Mutex
	records  map[eligKey]*domain.DonorEligibility
	replaces int
}

func newFakeEligRepo() *fakeEligRepo {
	return &fakeEligRepo{records: make(map[eligKey]*domain.DonorEligibility)}
}

func (f *fakeEligRepo) Replace(_ context.Context, rec *domain.DonorEligibility) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replaces++
	f.records[eligKey{rec.DonorID, rec.TissueType}] = rec
	return nil
}

func (f *fakeEligRepo) Get(_ context.Context, donorID uuid.UUID, tissue domain.TissueType) (*domain.DonorEligibility, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[eligKey{donorID, tissue}]
	if !ok {
		return nil, fmt.Errorf("eligibility: %w", domain.ErrNotFound)
	}
	return rec, nil
}

func (f *fakeEligRepo) DeleteForTissue(_ context.Context, donorID uuid.UUID, tissue domain.TissueType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, eligKey{donorID, tissue})
	return nil
}

type fakeDocRepo struct {
	mu   sync.Mutex
	docs []*domain.Document
}

func (f *fakeDocRepo) Create(_ context.Context, d *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, d)
	return nil
}

func (f *fakeDocRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDocRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Document
	for _, d := range f.docs {
		if d.DonorID == donorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDocRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.DocumentStatus, progress int, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ID == id {
			d.Status = status
			d.Progress = progress
			d.ErrorMessage = errMsg
			return nil
		}
	}
	return domain.ErrNotFound
}

type fakeAnchorStore struct {
	mu        sync.Mutex
	decisions map[uuid.UUID]*domain.AnchorDecision
	similar   []domain.SimilarCase
}

func newFakeAnchorStore() *fakeAnchorStore {
	return &fakeAnchorStore{decisions: make(map[uuid.UUID]*domain.AnchorDecision)}
}

func (f *fakeAnchorStore) Upsert(_ context.Context, d *domain.AnchorDecision) error {
	if err := d.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[d.DonorID] = d
	return nil
}

func (f *fakeAnchorStore) GetByDonor(_ context.Context, donorID uuid.UUID) (*domain.AnchorDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.decisions[donorID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func (f *fakeAnchorStore) SearchSimilar(_ context.Context, _ []float32, limit int, threshold float64) ([]domain.SimilarCase, error) {
	var out []domain.SimilarCase
	for _, c := range f.similar {
		if c.Similarity >= threshold {
			out = append(out, c)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeAnchorStore) List(_ context.Context) ([]*domain.AnchorDecision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.AnchorDecision
	for _, d := range f.decisions {
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeAnchorStore) Close() error { return nil }

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func docFixture(donorID uuid.UUID, status domain.DocumentStatus, created time.Time) *domain.Document {
	d := &domain.Document{
		ID:      uuid.New(),
		DonorID: donorID,
		Status:  status,
	}
	d.CreatedAt = created
	d.UpdatedAt = created
	return d
}
