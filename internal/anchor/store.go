// Package anchor persists finalized donor decisions as reference cases
// for similarity-based outcome prediction. Two backends exist: Postgres
// with pgvector for shared deployments, and an embedded SQLite store
// with an in-memory vector index for single-node use.
package anchor

import (
	"context"

	"github.com/google/uuid"

	"github.com/donor-eligibility-engine/internal/domain"
)

// Store is the anchor decision persistence boundary. Upsert is keyed by
// donor: a re-decided donor supersedes its earlier anchor row.
type Store interface {
	Upsert(ctx context.Context, decision *domain.AnchorDecision) error
	GetByDonor(ctx context.Context, donorID uuid.UUID) (*domain.AnchorDecision, error)
	SearchSimilar(ctx context.Context, embedding []float32, limit int, threshold float64) ([]domain.SimilarCase, error)
	List(ctx context.Context) ([]*domain.AnchorDecision, error)
	Close() error
}
