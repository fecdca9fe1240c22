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

const documentInsertQuery = `
	INSERT INTO documents (id, donor_id, file_name, status, progress, error_message, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

const documentSelectQuery = `
	SELECT id, donor_id, file_name, status, progress, error_message, created_at, updated_at
	FROM documents WHERE id = $1`

const documentListQuery = `
	SELECT id, donor_id, file_name, status, progress, error_message, created_at, updated_at
	FROM documents WHERE donor_id = $1 ORDER BY created_at ASC`

const documentUpdateStatusQuery = `
	UPDATE documents SET status = $2, progress = $3, error_message = $4, updated_at = NOW()
	WHERE id = $1`

// A donor needs evaluation when all documents are terminal, at least
// one completed, and no eligibility decision postdates the newest
// document change.
const donorsNeedingEvaluationQuery = `
	SELECT d.donor_id
	FROM documents d
	GROUP BY d.donor_id
	HAVING bool_and(d.status IN ('COMPLETED', 'FAILED', 'REJECTED'))
	   AND bool_or(d.status = 'COMPLETED')
	   AND MAX(d.updated_at) > COALESCE(
	       (SELECT MAX(e.evaluated_at) FROM donor_eligibility e WHERE e.donor_id = d.donor_id),
	       'epoch'::timestamptz)`

// DocumentRepo persists donor documents and their pipeline state.
type DocumentRepo struct {
	db  DB
	log *logrus.Logger
}

func NewDocumentRepo(db DB, log *logrus.Logger) *DocumentRepo {
	return &DocumentRepo{db: db, log: log}
}

func (r *DocumentRepo) Create(ctx context.Context, doc *domain.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.Status == "" {
		doc.Status = domain.DocumentUploaded
	}

	_, err := r.db.Exec(ctx, documentInsertQuery,
		doc.ID, doc.DonorID, doc.FileName, doc.Status, doc.Progress, doc.ErrorMessage)
	if err != nil {
		return fmt.Errorf("creating document %s: %w", doc.FileName, err)
	}

	r.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"donor_id":    doc.DonorID,
		"file_name":   doc.FileName,
	}).Info("Document created")
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	var d domain.Document
	err := r.db.QueryRow(ctx, documentSelectQuery, id).Scan(
		&d.ID, &d.DonorID, &d.FileName, &d.Status, &d.Progress, &d.ErrorMessage,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching document %s: %w", id, err)
	}
	return &d, nil
}

func (r *DocumentRepo) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*domain.Document, error) {
	rows, err := r.db.Query(ctx, documentListQuery, donorID)
	if err != nil {
		return nil, fmt.Errorf("listing documents for donor %s: %w", donorID, err)
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var d domain.Document
		if err := rows.Scan(&d.ID, &d.DonorID, &d.FileName, &d.Status, &d.Progress,
			&d.ErrorMessage, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", err)
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (r *DocumentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus, progress int, errMsg string) error {
	if !status.IsValid() {
		return fmt.Errorf("document %s: %w: %s", id, domain.ErrInvalidStatus, status)
	}

	tag, err := r.db.Exec(ctx, documentUpdateStatusQuery, id, status, progress, errMsg)
	if err != nil {
		return fmt.Errorf("updating document %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"document_id": id,
		"status":      status,
		"progress":    progress,
	}).Debug("Document status updated")
	return nil
}

// ListDonorsNeedingEvaluation returns donors whose documents have
// settled without a current eligibility decision. Feeds the
// reconciliation sweep.
func (r *DocumentRepo) ListDonorsNeedingEvaluation(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, donorsNeedingEvaluationQuery)
	if err != nil {
		return nil, fmt.Errorf("listing donors needing evaluation: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning donor id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
