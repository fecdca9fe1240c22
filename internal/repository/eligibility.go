package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

const eligibilityUpsertQuery = `
	INSERT INTO donor_eligibility (id, donor_id, tissue_type, overall_status, blocking_criteria, md_discretion_criteria, evaluated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW())
	ON CONFLICT (donor_id, tissue_type)
	DO UPDATE SET overall_status = EXCLUDED.overall_status,
	              blocking_criteria = EXCLUDED.blocking_criteria,
	              md_discretion_criteria = EXCLUDED.md_discretion_criteria,
	              evaluated_at = NOW()`

const eligibilitySelectQuery = `
	SELECT id, donor_id, tissue_type, overall_status, blocking_criteria, md_discretion_criteria, evaluated_at
	FROM donor_eligibility WHERE donor_id = $1 AND tissue_type = $2`

const eligibilityDeleteQuery = `
	DELETE FROM donor_eligibility WHERE donor_id = $1 AND tissue_type = $2`

// EligibilityRepo persists aggregated per-tissue decisions. Replace is
// a full overwrite keyed by (donor, tissue) so re-evaluation is
// idempotent.
type EligibilityRepo struct {
	db  DB
	log *logrus.Logger
}

func NewEligibilityRepo(db DB, log *logrus.Logger) *EligibilityRepo {
	return &EligibilityRepo{db: db, log: log}
}

func (r *EligibilityRepo) Replace(ctx context.Context, record *domain.DonorEligibility) error {
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	blocking, err := json.Marshal(record.BlockingCriteria)
	if err != nil {
		return fmt.Errorf("marshaling blocking criteria: %w", err)
	}
	discretionList, err := json.Marshal(record.DiscretionCriteria)
	if err != nil {
		return fmt.Errorf("marshaling discretion criteria: %w", err)
	}

	_, err = r.db.Exec(ctx, eligibilityUpsertQuery,
		record.ID, record.DonorID, record.TissueType, record.Status, blocking, discretionList)
	if err != nil {
		return fmt.Errorf("replacing eligibility for donor %s tissue %s: %w", record.DonorID, record.TissueType, err)
	}

	r.log.WithFields(logrus.Fields{
		"donor_id":    record.DonorID,
		"tissue_type": record.TissueType,
		"status":      record.Status,
	}).Info("Eligibility decision stored")
	return nil
}

func (r *EligibilityRepo) Get(ctx context.Context, donorID uuid.UUID, tissue domain.TissueType) (*domain.DonorEligibility, error) {
	var rec domain.DonorEligibility
	var blocking, discretionList []byte

	err := r.db.QueryRow(ctx, eligibilitySelectQuery, donorID, tissue).Scan(
		&rec.ID, &rec.DonorID, &rec.TissueType, &rec.Status, &blocking, &discretionList, &rec.EvaluatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("eligibility for donor %s tissue %s: %w", donorID, tissue, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching eligibility for donor %s: %w", donorID, err)
	}

	if len(blocking) > 0 {
		if err := json.Unmarshal(blocking, &rec.BlockingCriteria); err != nil {
			return nil, fmt.Errorf("unmarshaling blocking criteria: %w", err)
		}
	}
	if len(discretionList) > 0 {
		if err := json.Unmarshal(discretionList, &rec.DiscretionCriteria); err != nil {
			return nil, fmt.Errorf("unmarshaling discretion criteria: %w", err)
		}
	}
	return &rec, nil
}

func (r *EligibilityRepo) DeleteForTissue(ctx context.Context, donorID uuid.UUID, tissue domain.TissueType) error {
	_, err := r.db.Exec(ctx, eligibilityDeleteQuery, donorID, tissue)
	if err != nil {
		return fmt.Errorf("deleting eligibility for donor %s tissue %s: %w", donorID, tissue, err)
	}
	return nil
}
