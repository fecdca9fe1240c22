package domain

import (
	"context"

	"github.com/google/uuid"
)

// ConfigManager provides access to validated application configuration.
type ConfigManager interface {
	GetConfig() *Config
	Validate() error
}

// DonorRepository persists donor cases.
type DonorRepository interface {
	Create(ctx context.Context, donor *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	Update(ctx context.Context, donor *Donor) error
}

// DocumentRepository persists donor documents and their pipeline state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status DocumentStatus, progress int, errMsg string) error
}

// EvaluationRepository persists per-criterion extracted data and
// verdicts. Rows come back ordered by document recency so field merges
// are last-write-wins by newest document.
type EvaluationRepository interface {
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*CriterionEvaluation, error)
	UpdateVerdict(ctx context.Context, id uuid.UUID, result VerdictResult, reasoning string) error
}

// EligibilityRepository persists aggregated per-tissue decisions.
type EligibilityRepository interface {
	Replace(ctx context.Context, record *DonorEligibility) error
	Get(ctx context.Context, donorID uuid.UUID, tissue TissueType) (*DonorEligibility, error)
	DeleteForTissue(ctx context.Context, donorID uuid.UUID, tissue TissueType) error
}

// LabResultRepository reads structured laboratory results.
type LabResultRepository interface {
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*LaboratoryResult, error)
}

// DocumentProcessor is the external extraction collaborator boundary.
// Given a claimed document it performs the PROCESSING work (text
// extraction, criterion field maps, lab rows) and returns when the
// document content has been fully extracted and stored.
type DocumentProcessor interface {
	Process(ctx context.Context, doc *Document) error
}

// Embedder is the external embedding collaborator boundary: text in,
// fixed-length vector out.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
