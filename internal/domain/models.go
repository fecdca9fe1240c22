package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Donor is a deceased tissue donor case. Created on intake, mutated by
// update endpoints, never deleted by the engine.
type Donor struct {
	ID           uuid.UUID  `json:"id"`
	DonorNumber  string     `json:"donor_number"`
	Age          *int       `json:"age,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	DateOfBirth  *time.Time `json:"date_of_birth,omitempty"`
	CauseOfDeath string     `json:"cause_of_death,omitempty"`
	TissueTypes  []string   `json:"tissue_types,omitempty"`

	// MedicalHistory holds free-text category summaries keyed by
	// category name (past medical history, surgery history,
	// medications, allergies, family history, social history).
	MedicalHistory map[string]string `json:"medical_history,omitempty"`

	Timestamps
}

// Validate ensures donor data meets intake requirements.
func (d *Donor) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("donor validation: %w", errors.New("ID is required"))
	}
	if d.DonorNumber == "" {
		return fmt.Errorf("donor validation: %w", errors.New("donor number is required"))
	}
	if d.Age != nil && (*d.Age < 0 || *d.Age > 130) {
		return fmt.Errorf("donor validation: implausible age %d", *d.Age)
	}
	return nil
}

// Document is one uploaded donor document moving through the intake
// pipeline. The engine reads its status for queue membership and
// evaluation readiness; the processing itself is an external
// collaborator.
type Document struct {
	ID           uuid.UUID      `json:"id"`
	DonorID      uuid.UUID      `json:"donor_id"`
	FileName     string         `json:"file_name"`
	Status       DocumentStatus `json:"status"`
	Progress     int            `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`

	Timestamps
}

// Validate ensures the document is well-formed.
func (doc *Document) Validate() error {
	if doc.DonorID == uuid.Nil {
		return fmt.Errorf("document validation: %w", errors.New("donor ID is required"))
	}
	if !doc.Status.IsValid() {
		return fmt.Errorf("document validation: %w", ErrInvalidStatus)
	}
	if doc.Progress < 0 || doc.Progress > 100 {
		return fmt.Errorf("document validation: progress %d out of range", doc.Progress)
	}
	return nil
}

// LaboratoryResult is one structured lab test row extracted from a
// document. Immutable once stored; read-only input to rule functions.
type LaboratoryResult struct {
	ID           uuid.UUID    `json:"id"`
	DonorID      uuid.UUID    `json:"donor_id"`
	DocumentID   uuid.UUID    `json:"document_id"`
	Category     TestCategory `json:"test_category"`
	TestName     string       `json:"test_name"`
	TestMethod   string       `json:"test_method,omitempty"`
	ResultValue  string       `json:"result_value"`
	SpecimenType string       `json:"specimen_type,omitempty"`
	CollectedAt  *time.Time   `json:"collected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// CriterionEvaluation is one extracted-data row keyed by (donor,
// document, criterion, tissue type), carrying the most recent verdict
// computed for that criterion. Fields come from the extraction
// collaborator; the verdict is overwritten on each evaluation pass.
type CriterionEvaluation struct {
	ID            uuid.UUID     `json:"id"`
	DonorID       uuid.UUID     `json:"donor_id"`
	DocumentID    uuid.UUID     `json:"document_id"`
	CriterionName string        `json:"criterion_name"`
	TissueType    TissueType    `json:"tissue_type"`
	Fields        FieldMap      `json:"extracted_data"`
	Result        VerdictResult `json:"result,omitempty"`
	Reasoning     string        `json:"reasoning,omitempty"`

	Timestamps
}

// DonorEligibility is the aggregated decision for one (donor, tissue
// type). Recomputed in full on every aggregation run; never merged.
type DonorEligibility struct {
	ID                 uuid.UUID         `json:"id"`
	DonorID            uuid.UUID         `json:"donor_id"`
	TissueType         TissueType        `json:"tissue_type"`
	Status             EligibilityStatus `json:"status"`
	BlockingCriteria   []CriterionRef    `json:"blocking_criteria"`
	DiscretionCriteria []CriterionRef    `json:"md_discretion_criteria"`
	EvaluatedAt        time.Time         `json:"evaluated_at"`
}

// Validate ensures the record is internally consistent.
func (e *DonorEligibility) Validate() error {
	if e.DonorID == uuid.Nil {
		return fmt.Errorf("eligibility validation: %w", errors.New("donor ID is required"))
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("eligibility validation: %w", ErrInvalidStatus)
	}
	if e.TissueType != MUSCULOSKELETAL && e.TissueType != SKIN {
		return fmt.Errorf("eligibility validation: %w: %s", ErrInvalidTissueType, e.TissueType)
	}
	if e.Status == INELIGIBLE && len(e.BlockingCriteria) == 0 {
		return fmt.Errorf("eligibility validation: INELIGIBLE without blocking criteria")
	}
	return nil
}

// DonorDemographics is the demographic slice of a parameter snapshot.
type DonorDemographics struct {
	Age         *int   `json:"age,omitempty"`
	Gender      string `json:"gender,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	DonorNumber string `json:"unique_donor_id,omitempty"`
}

// SnapshotLabResults groups lab rows by category for a snapshot.
type SnapshotLabResults struct {
	Serology []string `json:"serology_results,omitempty"`
	Cultures []string `json:"culture_results,omitempty"`
	Other    []string `json:"other_lab_tests,omitempty"`
}

// ParameterSnapshot is the frozen feature set of a donor case at
// decision time. It is rendered to text for embedding and stored on
// the anchor decision for audit and criteria-based fallback matching.
type ParameterSnapshot struct {
	Demographics     DonorDemographics  `json:"donor_demographics"`
	CauseOfDeath     string             `json:"cause_of_death,omitempty"`
	TissueTypes      []string           `json:"tissue_types,omitempty"`
	MedicalHistory   map[string]string  `json:"medical_history_categories,omitempty"`
	LabResults       SnapshotLabResults `json:"lab_results"`
	CriticalFindings []CriterionRef     `json:"critical_findings,omitempty"`
	Timestamp        time.Time          `json:"snapshot_timestamp"`
}

// AnchorDecision is a finalized (snapshot, outcome) reference case used
// for similarity search. One row per donor, superseded by upsert; the
// stored embedding is never recomputed in place.
type AnchorDecision struct {
	ID            uuid.UUID         `json:"id"`
	DonorID       uuid.UUID         `json:"donor_id"`
	Outcome       AnchorOutcome     `json:"outcome"`
	Source        OutcomeSource     `json:"outcome_source"`
	Snapshot      ParameterSnapshot `json:"snapshot"`
	Embedding     []float32         `json:"-"`
	ThresholdUsed float64           `json:"threshold_used,omitempty"`

	Timestamps
}

// Validate ensures the anchor decision can be stored.
func (a *AnchorDecision) Validate() error {
	if a.DonorID == uuid.Nil {
		return fmt.Errorf("anchor decision validation: %w", errors.New("donor ID is required"))
	}
	if !a.Outcome.IsValid() {
		return fmt.Errorf("anchor decision validation: %w: %s", ErrInvalidOutcome, a.Outcome)
	}
	if !a.Source.IsValid() {
		return fmt.Errorf("anchor decision validation: invalid outcome source %s", a.Source)
	}
	return nil
}

// SimilarCase is one nearest-neighbor match returned by the predictor.
type SimilarCase struct {
	DonorID    uuid.UUID         `json:"donor_id"`
	Outcome    AnchorOutcome     `json:"outcome"`
	Similarity float64           `json:"similarity"`
	Snapshot   ParameterSnapshot `json:"snapshot"`
}

// PredictionResult is the outcome of a similarity prediction. Outcome
// is nil when no prediction could be made; that is a result, not an
// error.
type PredictionResult struct {
	Outcome      *AnchorOutcome `json:"predicted_outcome"`
	Confidence   float64        `json:"confidence"`
	SimilarCases []SimilarCase  `json:"similar_cases"`
	Reasoning    string         `json:"reasoning"`
}
