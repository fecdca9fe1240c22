package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donor-eligibility-engine/internal/criteria"
	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/lock"
	"github.com/donor-eligibility-engine/internal/rules"
)

func triggerConfig() domain.TriggerConfig {
	return domain.TriggerConfig{
		LockAttempts:      3,
		LockBackoffBase:   time.Millisecond,
		LockTTL:           time.Minute,
		ReconcileInterval: time.Minute,
	}
}

type triggerFixture struct {
	*evaluatorFixture
	docs    *fakeDocRepo
	locks   *lock.MemoryManager
	trigger *Trigger
}

func newTriggerFixture(t *testing.T) *triggerFixture {
	t.Helper()
	ef := newEvaluatorFixture(t)
	docs := &fakeDocRepo{}
	locks := lock.NewMemoryManager(time.Minute)
	return &triggerFixture{
		evaluatorFixture: ef,
		docs:             docs,
		locks:            locks,
		trigger:          NewTrigger(docs, ef.evaluator, locks, triggerConfig(), testLogger()),
	}
}

func TestTriggerSkipsWhileDocumentsInFlight(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)
	now := time.Now()

	f.docs.docs = []*domain.Document{
		docFixture(donor.ID, domain.DocumentCompleted, now),
		docFixture(donor.ID, domain.DocumentProcessing, now),
	}
	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "hiv_aids", domain.BOTH, domain.FieldMap{"aids_diagnosed": true}),
	}

	require.NoError(t, f.trigger.TriggerIfReady(context.Background(), donor.ID))
	_, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	assert.ErrorIs(t, err, domain.ErrNotFound, "evaluation must not run while a document is in flight")
}

func TestTriggerSkipsWithoutAnyCompletedDocument(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	f.docs.docs = []*domain.Document{
		docFixture(donor.ID, domain.DocumentFailed, time.Now()),
		docFixture(donor.ID, domain.DocumentRejected, time.Now()),
	}
	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "hiv_aids", domain.BOTH, domain.FieldMap{"aids_diagnosed": true}),
	}

	require.NoError(t, f.trigger.TriggerIfReady(context.Background(), donor.ID))
	_, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTriggerRunsWhenAllDocumentsSettled(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	f.docs.docs = []*domain.Document{
		docFixture(donor.ID, domain.DocumentCompleted, time.Now()),
		docFixture(donor.ID, domain.DocumentFailed, time.Now()),
	}
	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "hiv_aids", domain.BOTH, domain.FieldMap{"aids_diagnosed": true}),
	}

	require.NoError(t, f.trigger.TriggerIfReady(context.Background(), donor.ID))

	rec, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	require.NoError(t, err)
	assert.Equal(t, domain.INELIGIBLE, rec.Status)
}

func TestTriggerNoDocumentsNeverReady(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	require.NoError(t, f.trigger.TriggerIfReady(context.Background(), donor.ID))
	_, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Concurrent triggers for the same donor must not interleave: the lock
// serializes them and both converge on the same decision.
func TestTriggerConcurrentRunsConverge(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	f.docs.docs = []*domain.Document{docFixture(donor.ID, domain.DocumentCompleted, time.Now())}
	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "smallpox", domain.BOTH, domain.FieldMap{"smallpox_vaccine": true}),
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.trigger.TriggerIfReady(context.Background(), donor.ID))
		}()
	}
	wg.Wait()

	rec, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	require.NoError(t, err)
	assert.Equal(t, domain.REQUIRES_REVIEW, rec.Status)
}

// The operator path skips the readiness check entirely; a donor with no
// documents still evaluates.
func TestEvaluateNowIgnoresReadiness(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "hiv_aids", domain.BOTH, domain.FieldMap{"aids_diagnosed": true}),
	}

	require.NoError(t, f.trigger.EvaluateNow(context.Background(), donor.ID))

	rec, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	require.NoError(t, err)
	assert.Equal(t, domain.INELIGIBLE, rec.Status)
}

func TestEvaluateNowReportsContention(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)
	ctx := context.Background()

	ok, err := f.locks.TryLock(ctx, evaluationLockKey(donor.ID))
	require.NoError(t, err)
	require.True(t, ok)

	err = f.trigger.EvaluateNow(ctx, donor.ID)
	assert.ErrorIs(t, err, domain.ErrEvaluationInProgress)

	// the holder's release makes the donor evaluable again
	require.NoError(t, f.locks.Unlock(ctx, evaluationLockKey(donor.ID)))
	assert.NoError(t, f.trigger.EvaluateNow(ctx, donor.ID))
}

type staticLister struct {
	ids []uuid.UUID
}

func (s *staticLister) ListDonorsNeedingEvaluation(context.Context) ([]uuid.UUID, error) {
	return s.ids, nil
}

func TestReconciliationSweepTriggersMissedDonors(t *testing.T) {
	f := newTriggerFixture(t)
	donor := f.addDonor(t, 45)

	f.docs.docs = []*domain.Document{docFixture(donor.ID, domain.DocumentCompleted, time.Now())}
	f.evals.rows = []*domain.CriterionEvaluation{
		evalRow(donor.ID, uuid.New(), "hiv_aids", domain.BOTH, domain.FieldMap{"aids_diagnosed": true}),
	}

	f.trigger.sweep(context.Background(), &staticLister{ids: []uuid.UUID{donor.ID}})

	rec, err := f.elig.Get(context.Background(), donor.ID, domain.SKIN)
	require.NoError(t, err)
	assert.Equal(t, domain.INELIGIBLE, rec.Status)
}

// Catalog sanity: the trigger fixture relies on criteria the tests
// reference actually existing.
func TestFixtureCriteriaExist(t *testing.T) {
	catalog, err := criteria.Load()
	require.NoError(t, err)
	reg := rules.NewRegistry(testLogger())

	for _, name := range []string{"hiv_aids", "smallpox", "toxicology", "tattoo", "tuberculosis", "hiv"} {
		cfg, ok := catalog.Get(name)
		require.True(t, ok, "criterion %s missing from catalog", name)
		assert.True(t, reg.Has(cfg.RuleID))
	}
}
