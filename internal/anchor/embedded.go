package anchor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/donor-eligibility-engine/internal/domain"
)

const embeddedSchema = `
	CREATE TABLE IF NOT EXISTS anchor_decisions (
		id TEXT PRIMARY KEY,
		donor_id TEXT NOT NULL UNIQUE,
		outcome TEXT NOT NULL,
		outcome_source TEXT NOT NULL,
		parameter_snapshot TEXT NOT NULL,
		parameter_embedding TEXT,
		threshold_used REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`

// EmbeddedStore keeps anchor decisions in a local SQLite file and
// serves similarity search from an in-memory chromem index rebuilt at
// open. Suited to single-node deployments without a pgvector database.
type EmbeddedStore struct {
	mu         sync.RWMutex
	db         *sql.DB
	collection *chromem.Collection
	log        *logrus.Logger
}

// NewEmbeddedStore opens (creating if needed) the SQLite file and
// rebuilds the vector index from persisted rows.
func NewEmbeddedStore(path string, log *logrus.Logger) (*EmbeddedStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening anchor store at %s: %w", path, err)
	}
	if _, err := db.Exec(embeddedSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating anchor schema: %w", err)
	}

	collection, err := chromem.NewDB().CreateCollection("anchor_decisions", nil,
		func(ctx context.Context, text string) ([]float32, error) {
			return nil, errors.New("anchor store requires precomputed embeddings")
		})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector collection: %w", err)
	}

	s := &EmbeddedStore{db: db, collection: collection, log: log}
	if err := s.rebuildIndex(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *EmbeddedStore) rebuildIndex(ctx context.Context) error {
	decisions, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding vector index: %w", err)
	}
	count := 0
	for _, d := range decisions {
		if len(d.Embedding) == 0 {
			continue
		}
		if err := s.indexDecision(ctx, d); err != nil {
			return err
		}
		count++
	}
	s.log.WithField("count", count).Info("Anchor vector index rebuilt")
	return nil
}

func (s *EmbeddedStore) indexDecision(ctx context.Context, d *domain.AnchorDecision) error {
	err := s.collection.AddDocument(ctx, chromem.Document{
		ID:        d.DonorID.String(),
		Embedding: d.Embedding,
		Content:   d.DonorID.String(),
		Metadata:  map[string]string{"outcome": string(d.Outcome)},
	})
	if err != nil {
		return fmt.Errorf("indexing anchor decision for donor %s: %w", d.DonorID, err)
	}
	return nil
}

func (s *EmbeddedStore) Upsert(ctx context.Context, decision *domain.AnchorDecision) error {
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
	var embedding []byte
	if len(decision.Embedding) > 0 {
		embedding, err = json.Marshal(decision.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anchor_decisions (id, donor_id, outcome, outcome_source, parameter_snapshot, parameter_embedding, threshold_used, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (donor_id)
		DO UPDATE SET outcome = excluded.outcome,
		              outcome_source = excluded.outcome_source,
		              parameter_snapshot = excluded.parameter_snapshot,
		              parameter_embedding = excluded.parameter_embedding,
		              threshold_used = excluded.threshold_used,
		              updated_at = excluded.updated_at`,
		decision.ID.String(), decision.DonorID.String(), string(decision.Outcome),
		string(decision.Source), string(snapshot), string(embedding),
		decision.ThresholdUsed, now, now)
	if err != nil {
		return fmt.Errorf("upserting anchor decision for donor %s: %w", decision.DonorID, err)
	}

	if len(decision.Embedding) > 0 {
		if err := s.indexDecision(ctx, decision); err != nil {
			return err
		}
	}

	s.log.WithFields(logrus.Fields{
		"donor_id": decision.DonorID,
		"outcome":  decision.Outcome,
	}).Info("Anchor decision stored")
	return nil
}

func (s *EmbeddedStore) GetByDonor(ctx context.Context, donorID uuid.UUID) (*domain.AnchorDecision, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, donor_id, outcome, outcome_source, parameter_snapshot, parameter_embedding, threshold_used, created_at, updated_at
		FROM anchor_decisions WHERE donor_id = ?`, donorID.String())

	d, err := scanEmbeddedRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("anchor decision for donor %s: %w", donorID, domain.ErrNotFound)
	}
	return d, err
}

func (s *EmbeddedStore) List(ctx context.Context) ([]*domain.AnchorDecision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, donor_id, outcome, outcome_source, parameter_snapshot, parameter_embedding, threshold_used, created_at, updated_at
		FROM anchor_decisions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing anchor decisions: %w", err)
	}
	defer rows.Close()

	var out []*domain.AnchorDecision
	for rows.Next() {
		d, err := scanEmbeddedRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanEmbeddedRow(scan func(...any) error) (*domain.AnchorDecision, error) {
	var d domain.AnchorDecision
	var id, donorID, outcome, source, snapshot, embedding string

	err := scan(&id, &donorID, &outcome, &source, &snapshot, &embedding,
		&d.ThresholdUsed, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if d.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parsing anchor decision id: %w", err)
	}
	if d.DonorID, err = uuid.Parse(donorID); err != nil {
		return nil, fmt.Errorf("parsing anchor donor id: %w", err)
	}
	d.Outcome = domain.AnchorOutcome(outcome)
	d.Source = domain.OutcomeSource(source)

	if err := json.Unmarshal([]byte(snapshot), &d.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot: %w", err)
	}
	if embedding != "" {
		if err := json.Unmarshal([]byte(embedding), &d.Embedding); err != nil {
			return nil, fmt.Errorf("unmarshaling embedding: %w", err)
		}
	}
	return &d, nil
}

func (s *EmbeddedStore) SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]domain.SimilarCase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := s.collection.Count()
	if n == 0 {
		return nil, nil
	}
	if limit > n {
		limit = n
	}

	results, err := s.collection.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	var cases []domain.SimilarCase
	for _, res := range results {
		if float64(res.Similarity) < threshold {
			continue
		}
		donorID, err := uuid.Parse(res.ID)
		if err != nil {
			continue
		}
		decision, err := s.GetByDonor(ctx, donorID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		cases = append(cases, domain.SimilarCase{
			DonorID:    donorID,
			Outcome:    decision.Outcome,
			Similarity: float64(res.Similarity),
			Snapshot:   decision.Snapshot,
		})
	}
	return cases, nil
}

func (s *EmbeddedStore) Close() error {
	return s.db.Close()
}
