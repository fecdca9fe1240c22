package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/lock"
)

// ReadyDonorLister finds donors whose documents have settled but whose
// eligibility decisions are missing or stale. Backed by a repository
// query; used by the reconciliation sweep.
type ReadyDonorLister interface {
	ListDonorsNeedingEvaluation(ctx context.Context) ([]uuid.UUID, error)
}

// Trigger decides when a donor's evaluation should run and serializes
// runs per donor through the lock manager.
type Trigger struct {
	docs      domain.DocumentRepository
	evaluator *Evaluator
	locks     lock.Manager
	cfg       domain.TriggerConfig
	log       *logrus.Logger
}

func NewTrigger(docs domain.DocumentRepository, evaluator *Evaluator, locks lock.Manager,
	cfg domain.TriggerConfig, log *logrus.Logger) *Trigger {
	return &Trigger{docs: docs, evaluator: evaluator, locks: locks, cfg: cfg, log: log}
}

// ready reports whether evaluation should run: every document terminal
// and at least one completed. A donor with no documents is never ready.
func (t *Trigger) ready(ctx context.Context, donorID uuid.UUID) (bool, error) {
	docs, err := t.docs.ListByDonor(ctx, donorID)
	if err != nil {
		return false, fmt.Errorf("checking readiness for donor %s: %w", donorID, err)
	}
	if len(docs) == 0 {
		return false, nil
	}

	completed := false
	for _, doc := range docs {
		if !doc.Status.IsTerminal() {
			return false, nil
		}
		if doc.Status == domain.DocumentCompleted {
			completed = true
		}
	}
	return completed, nil
}

// TriggerIfReady runs evaluation when the donor's documents have
// settled. The per-donor lock is tried a configured number of times
// with doubling backoff; failure to acquire is a skip, not an error,
// because whoever holds the lock is already doing the work.
func (t *Trigger) TriggerIfReady(ctx context.Context, donorID uuid.UUID) error {
	ready, err := t.ready(ctx, donorID)
	if err != nil {
		return err
	}
	if !ready {
		t.log.WithField("donor_id", donorID).Debug("Donor not ready for evaluation")
		return nil
	}

	key := evaluationLockKey(donorID)
	acquired := false
	backoff := t.cfg.LockBackoffBase
	for attempt := 1; attempt <= t.cfg.LockAttempts; attempt++ {
		acquired, err = t.locks.TryLock(ctx, key)
		if err != nil {
			return fmt.Errorf("acquiring evaluation lock: %w", err)
		}
		if acquired {
			break
		}
		if attempt < t.cfg.LockAttempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	if !acquired {
		t.log.WithField("donor_id", donorID).Info("Evaluation lock contended, skipping run")
		return nil
	}
	defer func() {
		if err := t.locks.Unlock(context.WithoutCancel(ctx), key); err != nil {
			t.log.WithError(err).WithField("donor_id", donorID).Warn("Failed to release evaluation lock")
		}
	}()

	// state may have moved while we waited for the lock
	ready, err = t.ready(ctx, donorID)
	if err != nil {
		return err
	}
	if !ready {
		return nil
	}

	if err := t.evaluator.EvaluateDonor(ctx, donorID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			t.log.WithField("donor_id", donorID).Warn("Donor disappeared before evaluation")
			return nil
		}
		return err
	}
	return nil
}

// EvaluateNow runs an operator-requested evaluation under the donor's
// lock, skipping the readiness check. A single lock attempt is made;
// contention is domain.ErrEvaluationInProgress because the holder's run
// will see the same data.
func (t *Trigger) EvaluateNow(ctx context.Context, donorID uuid.UUID) error {
	key := evaluationLockKey(donorID)
	acquired, err := t.locks.TryLock(ctx, key)
	if err != nil {
		return fmt.Errorf("acquiring evaluation lock: %w", err)
	}
	if !acquired {
		return domain.ErrEvaluationInProgress
	}
	defer func() {
		if err := t.locks.Unlock(context.WithoutCancel(ctx), key); err != nil {
			t.log.WithError(err).WithField("donor_id", donorID).Warn("Failed to release evaluation lock")
		}
	}()

	return t.evaluator.EvaluateDonor(ctx, donorID)
}

func evaluationLockKey(donorID uuid.UUID) string {
	return "donor-evaluation:" + donorID.String()
}

// RunReconciliation periodically sweeps for donors whose evaluation was
// missed (trigger lost a lock race and the holder crashed, or a crash
// landed between document completion and evaluation) and re-triggers
// them. Blocks until ctx is canceled.
func (t *Trigger) RunReconciliation(ctx context.Context, lister ReadyDonorLister) {
	ticker := time.NewTicker(t.cfg.ReconcileInterval)
	defer ticker.Stop()

	t.log.WithField("interval", t.cfg.ReconcileInterval).Info("Reconciliation sweep started")
	for {
		select {
		case <-ctx.Done():
			t.log.Info("Reconciliation sweep stopped")
			return
		case <-ticker.C:
			t.sweep(ctx, lister)
		}
	}
}

func (t *Trigger) sweep(ctx context.Context, lister ReadyDonorLister) {
	donorIDs, err := lister.ListDonorsNeedingEvaluation(ctx)
	if err != nil {
		t.log.WithError(err).Error("Reconciliation sweep query failed")
		return
	}
	for _, donorID := range donorIDs {
		if err := t.TriggerIfReady(ctx, donorID); err != nil {
			t.log.WithError(err).WithField("donor_id", donorID).Error("Reconciliation evaluation failed")
		}
	}
	if len(donorIDs) > 0 {
		t.log.WithField("count", len(donorIDs)).Info("Reconciliation sweep re-triggered donors")
	}
}
