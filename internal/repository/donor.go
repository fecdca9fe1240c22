package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

const donorInsertQuery = `
	INSERT INTO donors (id, donor_number, age, gender, date_of_birth, cause_of_death, tissue_types, medical_history, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

const donorSelectQuery = `
	SELECT id, donor_number, age, gender, date_of_birth, cause_of_death, tissue_types, medical_history, created_at, updated_at
	FROM donors WHERE id = $1`

const donorUpdateQuery = `
	UPDATE donors
	SET donor_number = $2, age = $3, gender = $4, date_of_birth = $5, cause_of_death = $6,
	    tissue_types = $7, medical_history = $8, updated_at = NOW()
	WHERE id = $1`

// DonorRepo persists donor cases.
type DonorRepo struct {
	db  DB
	log *logrus.Logger
}

func NewDonorRepo(db DB, log *logrus.Logger) *DonorRepo {
	return &DonorRepo{db: db, log: log}
}

func (r *DonorRepo) Create(ctx context.Context, donor *domain.Donor) error {
	if err := donor.Validate(); err != nil {
		return err
	}
	if donor.ID == uuid.Nil {
		donor.ID = uuid.New()
	}

	_, err := r.db.Exec(ctx, donorInsertQuery,
		donor.ID, donor.DonorNumber, donor.Age, donor.Gender, donor.DateOfBirth,
		donor.CauseOfDeath, donor.TissueTypes, donor.MedicalHistory)
	if err != nil {
		return fmt.Errorf("creating donor %s: %w", donor.DonorNumber, err)
	}

	r.log.WithFields(logrus.Fields{
		"donor_id":     donor.ID,
		"donor_number": donor.DonorNumber,
	}).Info("Donor created")
	return nil
}

func (r *DonorRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Donor, error) {
	var d domain.Donor
	err := r.db.QueryRow(ctx, donorSelectQuery, id).Scan(
		&d.ID, &d.DonorNumber, &d.Age, &d.Gender, &d.DateOfBirth,
		&d.CauseOfDeath, &d.TissueTypes, &d.MedicalHistory, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("donor %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching donor %s: %w", id, err)
	}
	return &d, nil
}

func (r *DonorRepo) Update(ctx context.Context, donor *domain.Donor) error {
	if err := donor.Validate(); err != nil {
		return err
	}

	tag, err := r.db.Exec(ctx, donorUpdateQuery,
		donor.ID, donor.DonorNumber, donor.Age, donor.Gender, donor.DateOfBirth,
		donor.CauseOfDeath, donor.TissueTypes, donor.MedicalHistory)
	if err != nil {
		return fmt.Errorf("updating donor %s: %w", donor.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("donor %s: %w", donor.ID, domain.ErrNotFound)
	}
	return nil
}
