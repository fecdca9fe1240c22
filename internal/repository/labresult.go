package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

const labResultInsertQuery = `
	INSERT INTO laboratory_results (id, donor_id, document_id, category, test_name, test_method, result_value, specimen_type, collected_at, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())`

const labResultListQuery = `
	SELECT id, donor_id, document_id, category, test_name, test_method, result_value, specimen_type, collected_at, created_at
	FROM laboratory_results WHERE donor_id = $1 ORDER BY created_at ASC`

// LabResultRepo persists structured laboratory results extracted from
// documents.
type LabResultRepo struct {
	db  DB
	log *logrus.Logger
}

func NewLabResultRepo(db DB, log *logrus.Logger) *LabResultRepo {
	return &LabResultRepo{db: db, log: log}
}

func (r *LabResultRepo) Create(ctx context.Context, lr *domain.LaboratoryResult) error {
	if lr.ID == uuid.Nil {
		lr.ID = uuid.New()
	}
	if !lr.Category.IsValid() {
		return fmt.Errorf("lab result %s: invalid category %q", lr.TestName, lr.Category)
	}

	_, err := r.db.Exec(ctx, labResultInsertQuery,
		lr.ID, lr.DonorID, lr.DocumentID, lr.Category, lr.TestName, lr.TestMethod,
		lr.ResultValue, lr.SpecimenType, lr.CollectedAt)
	if err != nil {
		return fmt.Errorf("creating lab result %s: %w", lr.TestName, err)
	}
	return nil
}

func (r *LabResultRepo) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*domain.LaboratoryResult, error) {
	rows, err := r.db.Query(ctx, labResultListQuery, donorID)
	if err != nil {
		return nil, fmt.Errorf("listing lab results for donor %s: %w", donorID, err)
	}
	defer rows.Close()

	var results []*domain.LaboratoryResult
	for rows.Next() {
		var lr domain.LaboratoryResult
		if err := rows.Scan(&lr.ID, &lr.DonorID, &lr.DocumentID, &lr.Category, &lr.TestName,
			&lr.TestMethod, &lr.ResultValue, &lr.SpecimenType, &lr.CollectedAt, &lr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning lab result row: %w", err)
		}
		results = append(results, &lr)
	}
	return results, rows.Err()
}
