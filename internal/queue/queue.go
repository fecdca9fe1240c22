// Package queue implements the document work queue on top of the
// documents table. Claiming uses FOR UPDATE SKIP LOCKED so concurrent
// workers and replicas never double-process a document.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/repository"
)

const claimQuery = `
	SELECT id, donor_id, file_name, status, progress, error_message, created_at, updated_at
	FROM documents
	WHERE status = 'UPLOADED'
	ORDER BY created_at ASC
	LIMIT 1
	FOR UPDATE SKIP LOCKED`

const markProcessingQuery = `
	UPDATE documents SET status = 'PROCESSING', progress = 0, error_message = '', updated_at = NOW()
	WHERE id = $1`

// In-flight statuses are reset on startup: a crashed worker leaves its
// claims behind and they must rejoin the queue rather than sit stuck.
const resetStuckQuery = `
	UPDATE documents
	SET status = 'UPLOADED', progress = 0, updated_at = NOW()
	WHERE status IN ('PROCESSING', 'ANALYZING', 'REVIEWING')`

// Queue claims pending documents for processing.
type Queue struct {
	db  repository.DB
	log *logrus.Logger
}

func New(db repository.DB, log *logrus.Logger) *Queue {
	return &Queue{db: db, log: log}
}

// Claim atomically takes the oldest UPLOADED document and moves it to
// PROCESSING. Returns (nil, nil) when the queue is empty.
func (q *Queue) Claim(ctx context.Context) (*domain.Document, error) {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var doc domain.Document
	err = tx.QueryRow(ctx, claimQuery).Scan(
		&doc.ID, &doc.DonorID, &doc.FileName, &doc.Status, &doc.Progress,
		&doc.ErrorMessage, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming document: %w", err)
	}

	if _, err := tx.Exec(ctx, markProcessingQuery, doc.ID); err != nil {
		return nil, fmt.Errorf("marking document %s processing: %w", doc.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	doc.Status = domain.DocumentProcessing
	doc.Progress = 0
	doc.ErrorMessage = ""

	q.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"donor_id":    doc.DonorID,
	}).Info("Document claimed for processing")
	return &doc, nil
}

// ResetStuck returns the number of in-flight documents pushed back to
// UPLOADED. Called once at startup before workers begin polling.
func (q *Queue) ResetStuck(ctx context.Context) (int64, error) {
	tag, err := q.db.Exec(ctx, resetStuckQuery)
	if err != nil {
		return 0, fmt.Errorf("resetting stuck documents: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		q.log.WithField("count", n).Warn("Reset stuck in-flight documents to UPLOADED")
		return n, nil
	}
	return 0, nil
}
