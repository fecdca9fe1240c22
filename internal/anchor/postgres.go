package anchor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

// PostgresStore keeps anchor decisions in Postgres with pgvector
// embeddings so similarity search runs server-side.
type PostgresStore struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewPostgresStore opens and pings the anchor database.
func NewPostgresStore(databaseURL string, log *logrus.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening anchor database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging anchor database: %w", err)
	}
	return &PostgresStore{db: db, log: log}, nil
}

// NewPostgresStoreWithDB wraps an existing handle, used by tests.
func NewPostgresStoreWithDB(db *sql.DB, log *logrus.Logger) *PostgresStore {
	return &PostgresStore{db: db, log: log}
}

const anchorUpsertQuery = `
	INSERT INTO donor_anchor_decisions (id, donor_id, outcome, outcome_source, parameter_snapshot, parameter_embedding, threshold_used, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
	ON CONFLICT (donor_id)
	DO UPDATE SET outcome = EXCLUDED.outcome,
	              outcome_source = EXCLUDED.outcome_source,
	              parameter_snapshot = EXCLUDED.parameter_snapshot,
	              parameter_embedding = EXCLUDED.parameter_embedding,
	              threshold_used = EXCLUDED.threshold_used,
	              updated_at = NOW()
	RETURNING id`

const anchorSelectQuery = `
	SELECT id, donor_id, outcome, outcome_source, parameter_snapshot, threshold_used, created_at, updated_at
	FROM donor_anchor_decisions WHERE donor_id = $1`

const anchorListQuery = `
	SELECT id, donor_id, outcome, outcome_source, parameter_snapshot, threshold_used, created_at, updated_at
	FROM donor_anchor_decisions ORDER BY created_at DESC`

const anchorSearchQuery = `
	SELECT donor_id, outcome, parameter_snapshot,
	       1 - (parameter_embedding <=> $1::vector) AS similarity
	FROM donor_anchor_decisions
	WHERE parameter_embedding IS NOT NULL
	  AND 1 - (parameter_embedding <=> $1::vector) >= $2
	ORDER BY parameter_embedding <=> $1::vector
	LIMIT $3`

func (s *PostgresStore) Upsert(ctx context.Context, decision *domain.AnchorDecision) error {
	if err := decision.Validate(); err != nil {
		return err
	}
	if decision.ID == uuid.Nil {
		decision.ID = uuid.New()
	}

	snapshot, err := json.Marshal(decision.Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}

	var embedding any
	if len(decision.Embedding) > 0 {
		embedding = vectorLiteral(decision.Embedding)
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, anchorUpsertQuery,
		decision.ID, decision.DonorID, decision.Outcome, decision.Source,
		snapshot, embedding, decision.ThresholdUsed).Scan(&id)
	if err != nil {
		return fmt.Errorf("upserting anchor decision for donor %s: %w", decision.DonorID, err)
	}
	decision.ID = id

	s.log.WithFields(logrus.Fields{
		"donor_id": decision.DonorID,
		"outcome":  decision.Outcome,
		"source":   decision.Source,
	}).Info("Anchor decision stored")
	return nil
}

func (s *PostgresStore) GetByDonor(ctx context.Context, donorID uuid.UUID) (*domain.AnchorDecision, error) {
	var d domain.AnchorDecision
	var snapshot []byte

	err := s.db.QueryRowContext(ctx, anchorSelectQuery, donorID).Scan(
		&d.ID, &d.DonorID, &d.Outcome, &d.Source, &snapshot, &d.ThresholdUsed,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("anchor decision for donor %s: %w", donorID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching anchor decision for donor %s: %w", donorID, err)
	}

	if err := json.Unmarshal(snapshot, &d.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot for donor %s: %w", donorID, err)
	}
	return &d, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*domain.AnchorDecision, error) {
	rows, err := s.db.QueryContext(ctx, anchorListQuery)
	if err != nil {
		return nil, fmt.Errorf("listing anchor decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.AnchorDecision
	for rows.Next() {
		var d domain.AnchorDecision
		var snapshot []byte
		if err := rows.Scan(&d.ID, &d.DonorID, &d.Outcome, &d.Source, &snapshot,
			&d.ThresholdUsed, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning anchor decision row: %w", err)
		}
		if err := json.Unmarshal(snapshot, &d.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]domain.SimilarCase, error) {
	rows, err := s.db.QueryContext(ctx, anchorSearchQuery, vectorLiteral(embedding), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("searching similar anchor cases: %w", err)
	}
	defer rows.Close()

	var cases []domain.SimilarCase
	for rows.Next() {
		var c domain.SimilarCase
		var snapshot []byte
		if err := rows.Scan(&c.DonorID, &c.Outcome, &snapshot, &c.Similarity); err != nil {
			return nil, fmt.Errorf("scanning similar case row: %w", err)
		}
		if err := json.Unmarshal(snapshot, &c.Snapshot); err != nil {
			return nil, fmt.Errorf("unmarshaling similar case snapshot: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// vectorLiteral renders the pgvector text input format.
func vectorLiteral(embedding []float32) string {
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
