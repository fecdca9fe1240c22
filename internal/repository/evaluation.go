package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

// Evaluations are read newest-document-first ordered ascending so that
// merging in iteration order makes the newest document win.
const evaluationListQuery = `
	SELECT ce.id, ce.donor_id, ce.document_id, ce.criterion_name, ce.tissue_type,
	       ce.extracted_data, ce.evaluation_result, ce.evaluation_reasoning,
	       ce.created_at, ce.updated_at
	FROM criteria_evaluations ce
	JOIN documents d ON d.id = ce.document_id
	WHERE ce.donor_id = $1
	ORDER BY d.created_at ASC, ce.criterion_name ASC`

const evaluationInsertQuery = `
	INSERT INTO criteria_evaluations (id, donor_id, document_id, criterion_name, tissue_type, extracted_data, evaluation_result, evaluation_reasoning, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

const evaluationUpdateVerdictQuery = `
	UPDATE criteria_evaluations SET evaluation_result = $2, evaluation_reasoning = $3, updated_at = NOW()
	WHERE id = $1`

// EvaluationRepo persists per-criterion extracted data and verdicts.
type EvaluationRepo struct {
	db  DB
	log *logrus.Logger
}

func NewEvaluationRepo(db DB, log *logrus.Logger) *EvaluationRepo {
	return &EvaluationRepo{db: db, log: log}
}

// Create stores one extraction row. New rows default to MD discretion
// until the evaluation pass assigns a real verdict.
func (r *EvaluationRepo) Create(ctx context.Context, ev *domain.CriterionEvaluation) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.Result == "" {
		ev.Result = domain.MD_DISCRETION
	}

	_, err := r.db.Exec(ctx, evaluationInsertQuery,
		ev.ID, ev.DonorID, ev.DocumentID, ev.CriterionName, ev.TissueType,
		ev.Fields, ev.Result, ev.Reasoning)
	if err != nil {
		return fmt.Errorf("creating evaluation for criterion %s: %w", ev.CriterionName, err)
	}
	return nil
}

func (r *EvaluationRepo) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*domain.CriterionEvaluation, error) {
	rows, err := r.db.Query(ctx, evaluationListQuery, donorID)
	if err != nil {
		return nil, fmt.Errorf("listing evaluations for donor %s: %w", donorID, err)
	}
	defer rows.Close()

	var evals []*domain.CriterionEvaluation
	for rows.Next() {
		var ev domain.CriterionEvaluation
		if err := rows.Scan(&ev.ID, &ev.DonorID, &ev.DocumentID, &ev.CriterionName,
			&ev.TissueType, &ev.Fields, &ev.Result, &ev.Reasoning,
			&ev.CreatedAt, &ev.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning evaluation row: %w", err)
		}
		evals = append(evals, &ev)
	}
	return evals, rows.Err()
}

func (r *EvaluationRepo) UpdateVerdict(ctx context.Context, id uuid.UUID, result domain.VerdictResult, reasoning string) error {
	if !result.IsValid() {
		return fmt.Errorf("evaluation %s: %w: %s", id, domain.ErrInvalidVerdict, result)
	}

	tag, err := r.db.Exec(ctx, evaluationUpdateVerdictQuery, id, result, reasoning)
	if err != nil {
		return fmt.Errorf("updating evaluation %s verdict: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("evaluation %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"evaluation_id": id,
		"result":        result,
	}).Debug("Evaluation verdict updated")
	return nil
}
