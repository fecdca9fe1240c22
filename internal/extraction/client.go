// Package extraction adapts the external document extraction service to
// the DocumentProcessor boundary. The service does the reading; this
// client sends it the document reference, stores what comes back
// (criterion field maps and structured lab rows) and advances the
// document through ANALYZING and REVIEWING.
package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/criteria"
	"github.com/donor-eligibility-engine/internal/domain"
)

// EvaluationWriter stores extracted criterion rows.
type EvaluationWriter interface {
	Create(ctx context.Context, ev *domain.CriterionEvaluation) error
}

// LabResultWriter stores extracted laboratory rows.
type LabResultWriter interface {
	Create(ctx context.Context, lr *domain.LaboratoryResult) error
}

// Client implements domain.DocumentProcessor against an HTTP extraction
// service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	docs    domain.DocumentRepository
	evals   EvaluationWriter
	labs    LabResultWriter
	catalog *criteria.Catalog
	log     *logrus.Logger
}

func NewClient(cfg domain.ExtractionConfig, docs domain.DocumentRepository,
	evals EvaluationWriter, labs LabResultWriter, catalog *criteria.Catalog,
	log *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		docs:       docs,
		evals:      evals,
		labs:       labs,
		catalog:    catalog,
		log:        log,
	}
}

type extractRequest struct {
	DocumentID uuid.UUID `json:"document_id"`
	DonorID    uuid.UUID `json:"donor_id"`
	FileName   string    `json:"file_name"`
	Criteria   []string  `json:"criteria"`
}

type extractedCriterion struct {
	CriterionName string          `json:"criterion_name"`
	Fields        domain.FieldMap `json:"extracted_data"`
}

type extractedLabResult struct {
	Category     domain.TestCategory `json:"test_category"`
	TestName     string              `json:"test_name"`
	TestMethod   string              `json:"test_method"`
	ResultValue  string              `json:"result_value"`
	SpecimenType string              `json:"specimen_type"`
	CollectedAt  *time.Time          `json:"collected_at"`
}

type extractResponse struct {
	Criteria   []extractedCriterion `json:"criteria"`
	LabResults []extractedLabResult `json:"lab_results"`
}

// Process sends the document to the extraction service and persists the
// returned rows. Criteria flagged tissue-specific in the catalog get one
// row per decision tissue; everything else gets a single "both" row.
func (c *Client) Process(ctx context.Context, doc *domain.Document) error {
	if err := c.docs.UpdateStatus(ctx, doc.ID, domain.DocumentAnalyzing, 25, ""); err != nil {
		return fmt.Errorf("marking document analyzing: %w", err)
	}

	result, err := c.extract(ctx, doc)
	if err != nil {
		return err
	}

	if err := c.docs.UpdateStatus(ctx, doc.ID, domain.DocumentReviewing, 75, ""); err != nil {
		return fmt.Errorf("marking document reviewing: %w", err)
	}

	for _, crit := range result.Criteria {
		if _, ok := c.catalog.Get(crit.CriterionName); !ok {
			c.log.WithFields(logrus.Fields{
				"document_id": doc.ID,
				"criterion":   crit.CriterionName,
			}).Warn("Extraction returned unknown criterion, skipping")
			continue
		}
		for _, tissue := range c.catalog.TissueTypesFor(crit.CriterionName) {
			row := &domain.CriterionEvaluation{
				DonorID:       doc.DonorID,
				DocumentID:    doc.ID,
				CriterionName: crit.CriterionName,
				TissueType:    tissue,
				Fields:        crit.Fields.Clone(),
			}
			if err := c.evals.Create(ctx, row); err != nil {
				return fmt.Errorf("storing extraction for criterion %s: %w", crit.CriterionName, err)
			}
		}
	}

	for _, lab := range result.LabResults {
		row := &domain.LaboratoryResult{
			DonorID:      doc.DonorID,
			DocumentID:   doc.ID,
			Category:     lab.Category,
			TestName:     lab.TestName,
			TestMethod:   lab.TestMethod,
			ResultValue:  lab.ResultValue,
			SpecimenType: lab.SpecimenType,
			CollectedAt:  lab.CollectedAt,
		}
		if err := c.labs.Create(ctx, row); err != nil {
			return fmt.Errorf("storing lab result %s: %w", lab.TestName, err)
		}
	}

	c.log.WithFields(logrus.Fields{
		"document_id": doc.ID,
		"donor_id":    doc.DonorID,
		"criteria":    len(result.Criteria),
		"lab_results": len(result.LabResults),
	}).Info("Document extraction stored")
	return nil
}

func (c *Client) extract(ctx context.Context, doc *domain.Document) (*extractResponse, error) {
	body, err := json.Marshal(extractRequest{
		DocumentID: doc.ID,
		DonorID:    doc.DonorID,
		FileName:   doc.FileName,
		Criteria:   c.catalog.Names(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling extraction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/extract", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating extraction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extraction request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading extraction response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extraction service returned status %d: %s", resp.StatusCode, string(payload))
	}

	var parsed extractResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parsing extraction response: %w", err)
	}
	return &parsed, nil
}
