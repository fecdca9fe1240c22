package repository

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donor-eligibility-engine/internal/domain"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestDonorRepoCreate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	age := 54
	donor := &domain.Donor{
		ID:          uuid.New(),
		DonorNumber: "DN-2024-001",
		Age:         &age,
		Gender:      "male",
		TissueTypes: []string{"musculoskeletal", "skin"},
	}

	mock.ExpectExec("INSERT INTO donors").
		WithArgs(donor.ID, donor.DonorNumber, donor.Age, donor.Gender, donor.DateOfBirth,
			donor.CauseOfDeath, donor.TissueTypes, donor.MedicalHistory).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewDonorRepo(mock, testLogger())
	require.NoError(t, repo.Create(context.Background(), donor))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDonorRepoGetByIDNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM donors").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	repo := NewDonorRepo(mock, testLogger())
	_, err = repo.GetByID(context.Background(), id)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepoUpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(id, domain.DocumentCompleted, 100, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewDocumentRepo(mock, testLogger())
	require.NoError(t, repo.UpdateStatus(context.Background(), id, domain.DocumentCompleted, 100, ""))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepoUpdateStatusRejectsInvalid(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewDocumentRepo(mock, testLogger())
	err = repo.UpdateStatus(context.Background(), uuid.New(), domain.DocumentStatus("BOGUS"), 0, "")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestEvaluationRepoUpdateVerdict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE criteria_evaluations SET evaluation_result").
		WithArgs(id, domain.UNACCEPTABLE, "Positive HIV test result").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := NewEvaluationRepo(mock, testLogger())
	require.NoError(t, repo.UpdateVerdict(context.Background(), id, domain.UNACCEPTABLE, "Positive HIV test result"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEligibilityRepoReplaceUpserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rec := &domain.DonorEligibility{
		DonorID:    uuid.New(),
		TissueType: domain.SKIN,
		Status:     domain.INELIGIBLE,
		BlockingCriteria: []domain.CriterionRef{
			{Name: "hiv", Reasoning: "Positive HIV test result"},
		},
	}
	blocking, _ := json.Marshal(rec.BlockingCriteria)
	discretionList, _ := json.Marshal(rec.DiscretionCriteria)

	mock.ExpectExec("INSERT INTO donor_eligibility").
		WithArgs(pgxmock.AnyArg(), rec.DonorID, rec.TissueType, rec.Status, blocking, discretionList).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	repo := NewEligibilityRepo(mock, testLogger())
	require.NoError(t, repo.Replace(context.Background(), rec))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEligibilityRepoGetRoundTrip(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	donorID := uuid.New()
	blocking, _ := json.Marshal([]domain.CriterionRef{{Name: "sepsis", Reasoning: "Documented diagnosis"}})

	rows := pgxmock.NewRows([]string{
		"id", "donor_id", "tissue_type", "overall_status",
		"blocking_criteria", "md_discretion_criteria", "evaluated_at",
	}).AddRow(uuid.New(), donorID, domain.MUSCULOSKELETAL, domain.INELIGIBLE,
		blocking, []byte("[]"), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM donor_eligibility").
		WithArgs(donorID, domain.MUSCULOSKELETAL).
		WillReturnRows(rows)

	repo := NewEligibilityRepo(mock, testLogger())
	got, err := repo.Get(context.Background(), donorID, domain.MUSCULOSKELETAL)
	require.NoError(t, err)
	assert.Equal(t, domain.INELIGIBLE, got.Status)
	require.Len(t, got.BlockingCriteria, 1)
	assert.Equal(t, "sepsis", got.BlockingCriteria[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLabResultRepoListByDonor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	donorID := uuid.New()
	rows := pgxmock.NewRows([]string{
		"id", "donor_id", "document_id", "category", "test_name", "test_method",
		"result_value", "specimen_type", "collected_at", "created_at",
	}).AddRow(uuid.New(), donorID, uuid.New(), domain.TestSerology, "HIV-1/2 Ab", "CMIA",
		"Non-Reactive", "blood", (*time.Time)(nil), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM laboratory_results").
		WithArgs(donorID).
		WillReturnRows(rows)

	repo := NewLabResultRepo(mock, testLogger())
	results, err := repo.ListByDonor(context.Background(), donorID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "HIV-1/2 Ab", results[0].TestName)
	require.NoError(t, mock.ExpectationsWereMet())
}
