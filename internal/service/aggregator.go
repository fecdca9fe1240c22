package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/donor-eligibility-engine/internal/domain"
)

// aggregate rolls evaluated criteria up into one decision per concrete
// tissue type. Any UNACCEPTABLE verdict makes the tissue INELIGIBLE;
// otherwise any MD_DISCRETION verdict makes it REQUIRES_REVIEW;
// otherwise ELIGIBLE. A tissue with no contributing evaluations gets no
// decision at all.
func (e *Evaluator) aggregate(ctx context.Context, donorID uuid.UUID, evals []*domain.CriterionEvaluation) error {
	byTissue := map[domain.TissueType][]*domain.CriterionEvaluation{
		domain.MUSCULOSKELETAL: nil,
		domain.SKIN:            nil,
	}
	for _, ev := range evals {
		for _, tissue := range []domain.TissueType{domain.MUSCULOSKELETAL, domain.SKIN} {
			if ev.TissueType.AppliesTo(tissue) {
				byTissue[tissue] = append(byTissue[tissue], ev)
			}
		}
	}

	for _, tissue := range []domain.TissueType{domain.MUSCULOSKELETAL, domain.SKIN} {
		tissueEvals := byTissue[tissue]
		if len(tissueEvals) == 0 {
			continue
		}

		var blocking, discretionList []domain.CriterionRef
		seen := make(map[string]bool)
		for _, ev := range tissueEvals {
			// a criterion contributes once per tissue even when
			// several documents produced rows for it
			if seen[ev.CriterionName] {
				continue
			}
			seen[ev.CriterionName] = true

			switch ev.Result {
			case domain.UNACCEPTABLE:
				blocking = append(blocking, domain.CriterionRef{Name: ev.CriterionName, Reasoning: ev.Reasoning})
			case domain.MD_DISCRETION:
				discretionList = append(discretionList, domain.CriterionRef{Name: ev.CriterionName, Reasoning: ev.Reasoning})
			}
		}

		status := domain.ELIGIBLE
		if len(blocking) > 0 {
			status = domain.INELIGIBLE
		} else if len(discretionList) > 0 {
			status = domain.REQUIRES_REVIEW
		}

		record := &domain.DonorEligibility{
			DonorID:            donorID,
			TissueType:         tissue,
			Status:             status,
			BlockingCriteria:   blocking,
			DiscretionCriteria: discretionList,
			EvaluatedAt:        time.Now().UTC(),
		}
		if err := e.eligibility.Replace(ctx, record); err != nil {
			return fmt.Errorf("storing eligibility for tissue %s: %w", tissue, err)
		}

		e.log.WithFields(logrus.Fields{
			"donor_id":    donorID,
			"tissue_type": tissue,
			"status":      status,
			"blocking":    len(blocking),
			"discretion":  len(discretionList),
		}).Info("Eligibility decision generated")
	}
	return nil
}
