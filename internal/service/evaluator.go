package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/criteria"
	"github.com/donor-eligibility-engine/internal/domain"
	"github.com/donor-eligibility-engine/internal/rules"
)

// Evaluator runs the criterion evaluation pass for one donor: merge
// extracted data per criterion across documents, dispatch each group to
// its rule, persist the verdicts, then aggregate per-tissue decisions.
type Evaluator struct {
	donors      domain.DonorRepository
	evals       domain.EvaluationRepository
	labs        domain.LabResultRepository
	eligibility domain.EligibilityRepository
	catalog     *criteria.Catalog
	registry    *rules.Registry
	log         *logrus.Logger
}

func NewEvaluator(donors domain.DonorRepository, evals domain.EvaluationRepository,
	labs domain.LabResultRepository, eligibility domain.EligibilityRepository,
	catalog *criteria.Catalog, registry *rules.Registry, log *logrus.Logger) *Evaluator {
	return &Evaluator{
		donors:      donors,
		evals:       evals,
		labs:        labs,
		eligibility: eligibility,
		catalog:     catalog,
		registry:    registry,
		log:         log,
	}
}

// criterionGroup collects the evaluation rows for one (criterion,
// tissue) pair across documents, in document recency order.
type criterionGroup struct {
	name   string
	tissue domain.TissueType
	rows   []*domain.CriterionEvaluation
}

// EvaluateDonor runs the full evaluation for a donor. It is safe to
// re-run at any time: verdicts and decisions are fully recomputed from
// stored extraction rows.
func (e *Evaluator) EvaluateDonor(ctx context.Context, donorID uuid.UUID) error {
	donor, err := e.donors.GetByID(ctx, donorID)
	if err != nil {
		return fmt.Errorf("evaluating donor: %w", err)
	}

	labs, err := e.labs.ListByDonor(ctx, donorID)
	if err != nil {
		return fmt.Errorf("loading lab results: %w", err)
	}

	evals, err := e.evals.ListByDonor(ctx, donorID)
	if err != nil {
		return fmt.Errorf("loading criterion evaluations: %w", err)
	}
	if len(evals) == 0 {
		e.log.WithField("donor_id", donorID).Info("No criterion evaluations to process")
		return nil
	}

	donorInfo := rules.DonorInfo{Age: donor.Age, Gender: donor.Gender}

	for _, group := range groupEvaluations(evals) {
		cfg, ok := e.catalog.Get(group.name)
		if !ok {
			e.log.WithFields(logrus.Fields{
				"donor_id":  donorID,
				"criterion": group.name,
			}).Warn("Criterion not found in catalog, skipping")
			continue
		}

		// rows are ordered oldest first, so merging in order makes
		// the newest document's value win per field
		merged := domain.FieldMap{}
		for _, row := range group.rows {
			merged.Merge(row.Fields)
		}

		verdict := e.registry.Evaluate(cfg.RuleID, rules.Input{
			Fields: merged,
			Labs:   labs,
			Donor:  donorInfo,
			Config: cfg,
			Tissue: group.tissue,
		})

		for _, row := range group.rows {
			if err := e.evals.UpdateVerdict(ctx, row.ID, verdict.Result, verdict.Reasoning); err != nil {
				return fmt.Errorf("persisting verdict for criterion %s: %w", group.name, err)
			}
			row.Result = verdict.Result
			row.Reasoning = verdict.Reasoning
			row.Fields = merged
		}

		e.log.WithFields(logrus.Fields{
			"donor_id":  donorID,
			"criterion": group.name,
			"tissue":    group.tissue,
			"result":    verdict.Result,
		}).Debug("Criterion evaluated")
	}

	if err := e.aggregate(ctx, donorID, evals); err != nil {
		return err
	}

	e.log.WithField("donor_id", donorID).Info("Donor evaluation completed")
	return nil
}

// Eligibility returns the stored per-tissue decision for a donor.
func (e *Evaluator) Eligibility(ctx context.Context, donorID uuid.UUID, tissue domain.TissueType) (*domain.DonorEligibility, error) {
	return e.eligibility.Get(ctx, donorID, tissue)
}

// groupEvaluations groups rows by (criterion, tissue type), preserving
// the repository's document ordering within each group and the order of
// first appearance across groups.
func groupEvaluations(evals []*domain.CriterionEvaluation) []*criterionGroup {
	type key struct {
		name   string
		tissue domain.TissueType
	}
	index := make(map[key]*criterionGroup)
	var groups []*criterionGroup

	for _, ev := range evals {
		k := key{ev.CriterionName, ev.TissueType}
		g, ok := index[k]
		if !ok {
			g = &criterionGroup{name: ev.CriterionName, tissue: ev.TissueType}
			index[k] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, ev)
	}
	return groups
}
