package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donor-eligibility-engine/internal/anchor"
	"github.com/donor-eligibility-engine/internal/criteria"
	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/lock"
	"github.com/donor-eligibility-engine/internal/metrics"
	"github.com/donor-eligibility-engine/internal/rules"
	"github.com/donor-eligibility-engine/internal/service"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type memDonorRepo struct {
	mu     sync.Mutex
	donors map[uuid.UUID]*domain.Donor
}

func newMemDonorRepo() *memDonorRepo { return &memDonorRepo{donors: make(map[uuid.UUID]*domain.Donor)} }

func (m *memDonorRepo) Create(_ context.Context, d *domain.Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donors[d.ID] = d
	return nil
}

func (m *memDonorRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Donor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.donors[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memDonorRepo) Update(_ context.Context, d *domain.Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.donors[d.ID]; !ok {
		return domain.ErrNotFound
	}
	m.donors[d.ID] = d
	return nil
}

type memDocRepo struct {
	mu   sync.Mutex
	docs []*domain.Document
}

func (m *memDocRepo) Create(_ context.Context, d *domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, d)
	return nil
}

func (m *memDocRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memDocRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Document
	for _, d := range m.docs {
		if d.DonorID == donorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDocRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.DocumentStatus, progress int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.ID == id {
			d.Status = status
			d.Progress = progress
			d.ErrorMessage = errMsg
			return nil
		}
	}
	return domain.ErrNotFound
}

type memEvalRepo struct {
	rows []*domain.CriterionEvaluation
}

func (m *memEvalRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.CriterionEvaluation, error) {
	var out []*domain.CriterionEvaluation
	for _, r := range m.rows {
		if r.DonorID == donorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memEvalRepo) UpdateVerdict(_ context.Context, id uuid.UUID, result domain.VerdictResult, reasoning string) error {
	for _, r := range m.rows {
		if r.ID == id {
			r.Result = result
			r.Reasoning = reasoning
			return nil
		}
	}
	return domain.ErrNotFound
}

type memLabRepo struct {
	labs []*domain.LaboratoryResult
}

func (m *memLabRepo) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*domain.LaboratoryResult, error) {
	var out []*domain.LaboratoryResult
	for _, l := range m.labs {
		if l.DonorID == donorID {
			out = append(out, l)
		}
	}
	return out, nil
}

type eligKey struct {
	donor  uuid.UUID
	tissue domain.TissueType
}

type memEligRepo struct {
	mu      sync.Mutex
	records map[eligKey]*domain.DonorEligibility
}

func newMemEligRepo() *memEligRepo {
	return &memEligRepo{records: make(map[eligKey]*domain.DonorEligibility)}
}

func (m *memEligRepo) Replace(_ context.Context, record *domain.DonorEligibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[eligKey{record.DonorID, record.TissueType}] = record
	return nil
}

func (m *memEligRepo) Get(_ context.Context, donorID uuid.UUID, tissue domain.TissueType) (*domain.DonorEligibility, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[eligKey{donorID, tissue}]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memEligRepo) DeleteForTissue(_ context.Context, donorID uuid.UUID, tissue domain.TissueType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, eligKey{donorID, tissue})
	return nil
}

type memAnchorStore struct {
	mu        sync.Mutex
	decisions map[uuid.UUID]*domain.AnchorDecision
	similar   []domain.SimilarCase
}

var _ anchor.Store = (*memAnchorStore)(nil)

func newMemAnchorStore() *memAnchorStore {
	return &memAnchorStore{decisions: make(map[uuid.UUID]*domain.AnchorDecision)}
}

func (m *memAnchorStore) Upsert(_ context.Context, d *domain.AnchorDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[d.DonorID] = d
	return nil
}

func (m *memAnchorStore) GetByDonor(_ context.Context, donorID uuid.UUID) (*domain.AnchorDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decisions[donorID]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memAnchorStore) SearchSimilar(context.Context, []float32, int, float64) ([]domain.SimilarCase, error) {
	return m.similar, nil
}

func (m *memAnchorStore) List(context.Context) ([]*domain.AnchorDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.AnchorDecision
	for _, d := range m.decisions {
		out = append(out, d)
	}
	return out, nil
}

func (m *memAnchorStore) Close() error { return nil }

type staticEmbedder struct{}

func (staticEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

type apiFixture struct {
	donors  *memDonorRepo
	docs    *memDocRepo
	evals   *memEvalRepo
	elig    *memEligRepo
	anchors *memAnchorStore
	locks   *lock.MemoryManager
	server  *Server
}

func newAPIFixture(t *testing.T, apiKey string) *apiFixture {
	t.Helper()
	catalog, err := criteria.Load()
	require.NoError(t, err)

	f := &apiFixture{
		donors:  newMemDonorRepo(),
		docs:    &memDocRepo{},
		evals:   &memEvalRepo{},
		elig:    newMemEligRepo(),
		anchors: newMemAnchorStore(),
	}
	log := testLogger()

	f.locks = lock.NewMemoryManager(time.Minute)
	evaluator := service.NewEvaluator(f.donors, f.evals, &memLabRepo{}, f.elig,
		catalog, rules.NewRegistry(log), log)
	trigger := service.NewTrigger(f.docs, evaluator, f.locks,
		domain.TriggerConfig{LockAttempts: 3, LockBackoffBase: time.Millisecond, ReconcileInterval: time.Minute}, log)
	snapshots := service.NewSnapshotBuilder(f.donors, &memLabRepo{}, f.elig, log)
	predictor := service.NewPredictor(snapshots, f.anchors, staticEmbedder{},
		domain.PredictorConfig{SimilarityThreshold: 0.85, MaxCases: 10}, log)

	f.server = NewServer(domain.ServerConfig{APIKey: apiKey}, "info", Deps{
		Donors:    f.donors,
		Documents: f.docs,
		Evaluator: evaluator,
		Trigger:   trigger,
		Predictor: predictor,
		Metrics:   metrics.New(),
		Log:       log,
	})
	return f
}

func (f *apiFixture) request(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) addDonor(t *testing.T, age int) *domain.Donor {
	t.Helper()
	donor := &domain.Donor{
		ID:           uuid.New(),
		DonorNumber:  "DN-200",
		Age:          &age,
		Gender:       "male",
		CauseOfDeath: "anoxia",
	}
	require.NoError(t, f.donors.Create(context.Background(), donor))
	return donor
}

func TestCreateDonor(t *testing.T) {
	f := newAPIFixture(t, "")

	rec := f.request(t, http.MethodPost, "/api/v1/donors", map[string]interface{}{
		"donor_number": "DN-300",
		"age":          61,
		"gender":       "female",
	}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Donor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "DN-300", created.DonorNumber)
	assert.NotEqual(t, uuid.Nil, created.ID)

	stored, err := f.donors.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, 61, *stored.Age)
}

func TestCreateDonorRejectsMissingNumber(t *testing.T) {
	f := newAPIFixture(t, "")
	rec := f.request(t, http.MethodPost, "/api/v1/donors", map[string]interface{}{"age": 40}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDonorNotFound(t *testing.T) {
	f := newAPIFixture(t, "")
	rec := f.request(t, http.MethodGet, "/api/v1/donors/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDonorRejectsMalformedID(t *testing.T) {
	f := newAPIFixture(t, "")
	rec := f.request(t, http.MethodGet, "/api/v1/donors/not-a-uuid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterDocument(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	rec := f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/documents",
		map[string]interface{}{"file_name": "chart.pdf"}, nil)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var doc domain.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, domain.DocumentUploaded, doc.Status)
	assert.Equal(t, donor.ID, doc.DonorID)
}

func TestEvaluateAndFetchEligibility(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	f.evals.rows = []*domain.CriterionEvaluation{{
		ID:            uuid.New(),
		DonorID:       donor.ID,
		DocumentID:    uuid.New(),
		CriterionName: "hiv_aids",
		TissueType:    domain.BOTH,
		Fields:        domain.FieldMap{"aids_diagnosed": true},
	}}

	rec := f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/evaluate", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.request(t, http.MethodGet,
		"/api/v1/donors/"+donor.ID.String()+"/eligibility/skin", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var record domain.DonorEligibility
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, domain.INELIGIBLE, record.Status)
	require.Len(t, record.BlockingCriteria, 1)
	assert.Equal(t, "hiv_aids", record.BlockingCriteria[0].Name)
}

func TestEvaluateConflictsWhileLockHeld(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	ok, err := f.locks.TryLock(context.Background(), "donor-evaluation:"+donor.ID.String())
	require.NoError(t, err)
	require.True(t, ok)

	rec := f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/evaluate", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	require.NoError(t, f.locks.Unlock(context.Background(), "donor-evaluation:"+donor.ID.String()))
	rec = f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/evaluate", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestGetEligibilityRejectsUnknownTissue(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	rec := f.request(t, http.MethodGet,
		"/api/v1/donors/"+donor.ID.String()+"/eligibility/cornea", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordDecisionAndPredict(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	rec := f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/decision",
		map[string]interface{}{"outcome": "ACCEPTED"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := f.anchors.GetByDonor(context.Background(), donor.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAccepted, stored.Outcome)
	assert.Equal(t, domain.SourceManualApproval, stored.Source)

	f.anchors.similar = []domain.SimilarCase{
		{DonorID: uuid.New(), Outcome: domain.OutcomeAccepted, Similarity: 0.95},
	}

	rec = f.request(t, http.MethodGet, "/api/v1/donors/"+donor.ID.String()+"/prediction", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result domain.PredictionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Outcome)
	assert.Equal(t, domain.OutcomeAccepted, *result.Outcome)
}

func TestPredictRejectsBadQueryParameters(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	rec := f.request(t, http.MethodGet,
		"/api/v1/donors/"+donor.ID.String()+"/prediction?threshold=1.5", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.request(t, http.MethodGet,
		"/api/v1/donors/"+donor.ID.String()+"/prediction?max_cases=0", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecordDecisionRejectsBadOutcome(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	rec := f.request(t, http.MethodPost, "/api/v1/donors/"+donor.ID.String()+"/decision",
		map[string]interface{}{"outcome": "MAYBE"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindSimilarByCriteria(t *testing.T) {
	f := newAPIFixture(t, "")
	donor := f.addDonor(t, 45)

	age47 := 47
	require.NoError(t, f.anchors.Upsert(context.Background(), &domain.AnchorDecision{
		DonorID: uuid.New(),
		Outcome: domain.OutcomeRejected,
		Source:  domain.SourceBatchImport,
		Snapshot: domain.ParameterSnapshot{
			Demographics: domain.DonorDemographics{Age: &age47, Gender: "male"},
			CauseOfDeath: "anoxia due to drowning",
		},
	}))

	rec := f.request(t, http.MethodGet, "/api/v1/donors/"+donor.ID.String()+"/similar?limit=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Matches []service.CriteriaMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Matches, 1)
	assert.InDelta(t, 0.6, body.Matches[0].Score, 1e-9)
}

func TestAPIKeyEnforcement(t *testing.T) {
	f := newAPIFixture(t, "secret")

	rec := f.request(t, http.MethodGet, "/api/v1/donors/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/v1/donors/"+uuid.NewString(), nil,
		map[string]string{"X-API-Key": "secret"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "authenticated request reaches the handler")

	// health stays open
	rec = f.request(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newAPIFixture(t, "")
	_ = f.request(t, http.MethodGet, "/health", nil, nil)

	rec := f.request(t, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "donor_engine_http_requests_total")
}
