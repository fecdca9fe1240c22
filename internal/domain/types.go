// Package domain contains core business entities and types for deceased
// tissue donor eligibility screening. Criterion verdicts and eligibility
// statuses follow AATB-style acceptance policy: any unacceptable criterion
// blocks recovery, any discretionary criterion escalates the case to
// medical director review.
package domain

import (
	"errors"
	"fmt"
	"time"
)

// VerdictResult is the tri-state outcome of evaluating a single
// acceptance criterion. MD_DISCRETION means the criterion cannot be
// decided automatically and requires medical director review.
type VerdictResult string

const (
	ACCEPTABLE    VerdictResult = "acceptable"
	UNACCEPTABLE  VerdictResult = "unacceptable"
	MD_DISCRETION VerdictResult = "md_discretion"
)

// TissueType is the applicability scope of a criterion and the
// granularity of a final eligibility decision.
type TissueType string

const (
	MUSCULOSKELETAL TissueType = "musculoskeletal"
	SKIN            TissueType = "skin"
	BOTH            TissueType = "both"
)

// EligibilityStatus is the aggregated per-tissue decision for a donor.
type EligibilityStatus string

const (
	ELIGIBLE        EligibilityStatus = "ELIGIBLE"
	INELIGIBLE      EligibilityStatus = "INELIGIBLE"
	REQUIRES_REVIEW EligibilityStatus = "REQUIRES_REVIEW"
)

// DocumentStatus tracks a donor document through the intake pipeline.
// COMPLETED, FAILED and REJECTED are terminal.
type DocumentStatus string

const (
	DocumentUploaded   DocumentStatus = "UPLOADED"
	DocumentProcessing DocumentStatus = "PROCESSING"
	DocumentAnalyzing  DocumentStatus = "ANALYZING"
	DocumentReviewing  DocumentStatus = "REVIEWING"
	DocumentCompleted  DocumentStatus = "COMPLETED"
	DocumentFailed     DocumentStatus = "FAILED"
	DocumentRejected   DocumentStatus = "REJECTED"
)

// AnchorOutcome is the finalized decision recorded for a historical case.
type AnchorOutcome string

const (
	OutcomeAccepted AnchorOutcome = "ACCEPTED"
	OutcomeRejected AnchorOutcome = "REJECTED"
)

// OutcomeSource records how an anchor decision entered the system.
type OutcomeSource string

const (
	SourceBatchImport    OutcomeSource = "BATCH_IMPORT"
	SourceManualApproval OutcomeSource = "MANUAL_APPROVAL"
	SourcePredicted      OutcomeSource = "PREDICTED"
)

// TestCategory partitions laboratory results into serology and culture.
type TestCategory string

const (
	TestSerology TestCategory = "SEROLOGY"
	TestCulture  TestCategory = "CULTURE"
)

// Validation errors for medical data integrity
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidVerdict    = errors.New("invalid criterion verdict")
	ErrInvalidTissueType = errors.New("invalid tissue type")
	ErrInvalidStatus     = errors.New("invalid eligibility status")
	ErrInvalidOutcome    = errors.New("invalid anchor outcome")
	ErrNoEmbedding       = errors.New("no embedding available")

	// ErrEvaluationInProgress reports that another run holds the
	// donor's evaluation lock.
	ErrEvaluationInProgress = errors.New("evaluation already in progress")
)

// IsValid validates that the verdict is one of the three recognized
// states. Only valid verdicts may be persisted or aggregated.
func (v VerdictResult) IsValid() bool {
	switch v {
	case ACCEPTABLE, UNACCEPTABLE, MD_DISCRETION:
		return true
	default:
		return false
	}
}

// String returns the string representation of the verdict.
func (v VerdictResult) String() string {
	return string(v)
}

// LogFields returns structured logging fields for audit trails.
func (v VerdictResult) LogFields() map[string]any {
	return map[string]any{
		"verdict":         string(v),
		"is_valid":        v.IsValid(),
		"requires_review": v == MD_DISCRETION,
		"blocks_recovery": v == UNACCEPTABLE,
	}
}

// IsValid validates the tissue type.
func (t TissueType) IsValid() bool {
	switch t {
	case MUSCULOSKELETAL, SKIN, BOTH:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tissue type.
func (t TissueType) String() string {
	return string(t)
}

// AppliesTo reports whether a criterion tagged with tissue type t
// participates in the decision for tissue type target. Criteria tagged
// "both" apply to every tissue type.
func (t TissueType) AppliesTo(target TissueType) bool {
	return t == BOTH || t == target
}

// DecisionTissueTypes are the tissue types at which eligibility
// decisions are made. "both" is an applicability tag, never a decision
// granularity.
func DecisionTissueTypes() []TissueType {
	return []TissueType{MUSCULOSKELETAL, SKIN}
}

// IsValid validates the eligibility status.
func (s EligibilityStatus) IsValid() bool {
	switch s {
	case ELIGIBLE, INELIGIBLE, REQUIRES_REVIEW:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s EligibilityStatus) String() string {
	return string(s)
}

// IsValid validates the document status.
func (d DocumentStatus) IsValid() bool {
	switch d {
	case DocumentUploaded, DocumentProcessing, DocumentAnalyzing,
		DocumentReviewing, DocumentCompleted, DocumentFailed, DocumentRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the document has finished its lifecycle.
func (d DocumentStatus) IsTerminal() bool {
	switch d {
	case DocumentCompleted, DocumentFailed, DocumentRejected:
		return true
	default:
		return false
	}
}

// IsInFlight reports whether the document is mid-pipeline. In-flight
// documents are reset to UPLOADED during crash recovery.
func (d DocumentStatus) IsInFlight() bool {
	switch d {
	case DocumentProcessing, DocumentAnalyzing, DocumentReviewing:
		return true
	default:
		return false
	}
}

// IsValid validates the anchor outcome.
func (o AnchorOutcome) IsValid() bool {
	return o == OutcomeAccepted || o == OutcomeRejected
}

// IsValid validates the outcome source.
func (s OutcomeSource) IsValid() bool {
	switch s {
	case SourceBatchImport, SourceManualApproval, SourcePredicted:
		return true
	default:
		return false
	}
}

// IsValid validates the test category.
func (c TestCategory) IsValid() bool {
	return c == TestSerology || c == TestCulture
}

// CriterionConfig is one entry of the static criterion catalog: the
// named criterion, the rule identifier it dispatches to, the data
// points the extraction collaborator is expected to supply, and whether
// the criterion is evaluated once per tissue type.
type CriterionConfig struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name"`
	RuleID         string   `json:"evaluation_logic"`
	DataPoints     []string `json:"data_points"`
	TissueSpecific bool     `json:"tissue_specific"`
}

// Validate ensures a catalog entry is usable for dispatch.
func (c *CriterionConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("criterion config validation: %w", errors.New("name is required"))
	}
	if c.RuleID == "" {
		return fmt.Errorf("criterion config validation: criterion %q has no rule identifier", c.Name)
	}
	return nil
}

// CriterionRef identifies a criterion that contributed to an
// eligibility decision, with the reasoning it produced.
type CriterionRef struct {
	Name      string `json:"criterion_name"`
	Reasoning string `json:"reasoning"`
}

// Verdict pairs a tri-state result with its human-readable reasoning.
type Verdict struct {
	Result    VerdictResult `json:"result"`
	Reasoning string        `json:"reasoning"`
}

// Timestamps is the shared audit pair embedded by persisted entities.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
